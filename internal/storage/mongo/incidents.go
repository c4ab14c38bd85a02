package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/flexibill/internal/models"
)

// incidentDoc — BSON-представление models.SecurityIncident.
// UUID хранятся строками: так их удобно искать из mongosh.
type incidentDoc struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	UserID    string    `bson:"user_id"`
	FamilyID  string    `bson:"family_id,omitempty"`
	Detail    string    `bson:"detail,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Record сохраняет инцидент. Пустые ID и CreatedAt заполняются.
func (in *Incidents) Record(ctx context.Context, incident models.SecurityIncident) error {
	const op = "storage.mongo.Record"

	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = in.now().UTC()
	}

	doc := incidentDoc{
		ID:        incident.ID.String(),
		Kind:      string(incident.Kind),
		UserID:    incident.UserID.String(),
		Detail:    incident.Detail,
		CreatedAt: incident.CreatedAt,
		ExpiresAt: incident.CreatedAt.Add(in.ttl),
	}
	if incident.FamilyID != uuid.Nil {
		doc.FamilyID = incident.FamilyID.String()
	}

	if _, err := in.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Since возвращает инциденты начиная с since, новые первыми; limit <= 0 — 100.
func (in *Incidents) Since(ctx context.Context, since time.Time, limit int) ([]models.SecurityIncident, error) {
	const op = "storage.mongo.Since"

	if limit <= 0 {
		limit = 100
	}

	filter := bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := in.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]models.SecurityIncident, 0, limit)
	for cur.Next(ctx) {
		var doc incidentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}

func (d incidentDoc) toModel() models.SecurityIncident {
	// Документы пишет только Record, поэтому ошибки разбора здесь не ожидаются.
	id, _ := uuid.Parse(d.ID)
	userID, _ := uuid.Parse(d.UserID)
	var familyID uuid.UUID
	if d.FamilyID != "" {
		familyID, _ = uuid.Parse(d.FamilyID)
	}

	return models.SecurityIncident{
		ID:        id,
		Kind:      models.IncidentKind(d.Kind),
		UserID:    userID,
		FamilyID:  familyID,
		Detail:    d.Detail,
		CreatedAt: d.CreatedAt.UTC(),
	}
}
