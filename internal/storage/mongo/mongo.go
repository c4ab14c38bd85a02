// mongo — журнал инцидентов безопасности в MongoDB.
// Записи живут ограниченное время: TTL-индекс по expires_at удаляет их сам.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	incidentsCollection = "security_incidents"
	defaultDBName       = "flexibill"
	defaultTTL          = 90 * 24 * time.Hour
)

// Incidents — адаптер коллекции инцидентов.
type Incidents struct {
	client *mongodriver.Client
	coll   *mongodriver.Collection
	ttl    time.Duration
	now    func() time.Time
}

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
// ttl <= 0 заменяется значением по умолчанию (90 дней).
func New(ctx context.Context, uri string, ttl time.Duration) (*Incidents, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))
	in := &Incidents{
		client: cli,
		coll:   db.Collection(incidentsCollection),
		ttl:    ttl,
		now:    time.Now,
	}

	if err := in.ensureIndexes(ctx); err != nil {
		_ = in.Close(ctx)
		return nil, err
	}

	return in, nil
}

// Close отключает клиента.
func (in *Incidents) Close(ctx context.Context) error {
	return in.client.Disconnect(ctx)
}

// Ping проверяет доступность primary (для readiness).
func (in *Incidents) Ping(ctx context.Context) error {
	return in.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes создаёт индексы журнала:
// - TTL по expires_at (expireAfterSeconds=0, момент хранится в документе);
// - выборка по пользователю: user_id + created_at(desc);
// - общая лента: created_at(desc).
func (in *Incidents) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_desc"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
	}

	if _, err := in.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// databaseFromURI извлекает имя базы из пути URI или возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
