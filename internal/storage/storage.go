// storage описывает контракты хранилищ сервиса. Реализации: postgres (pgx)
// и memory (для тестов и env=local). Семантика условных обновлений у обеих
// реализаций одинакова.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (хэш refresh-токена, id семейства).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict — условное обновление не затронуло ни одной строки:
	// токен уже отозван, истёк или семейство отозвано конкурентным запросом.
	ErrConflict = errors.New("conflict")
)

// TokenStorage — контракт хранилища refresh-токенов и семейств.
// Смысл валидности записей определяет только service.TokenService.
type TokenStorage interface {
	// CreateFamily сохраняет новое семейство.
	CreateFamily(ctx context.Context, family *models.TokenFamily) error
	// FamilyByID находит семейство по id.
	FamilyByID(ctx context.Context, id uuid.UUID) (*models.TokenFamily, error)
	// SaveRefreshToken сохраняет первый токен семейства.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит токен по хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RotateRefreshToken в одной транзакции: отзывает oldHash, только если он
	// не отозван, не истёк к now и его семейство активно; сохраняет next и
	// обновляет last_used_at семейства. Ноль затронутых строк — ErrConflict.
	RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, now time.Time) error
	// RevokeFamily отзывает семейство и все его токены. Повторный вызов не
	// меняет revoked_at и причину; возвращает число отозванных сейчас токенов.
	RevokeFamily(ctx context.Context, familyID uuid.UUID, reason models.RevokeReason, now time.Time) (int64, error)
	// RevokeUserTokens отзывает все семейства и токены пользователя.
	RevokeUserTokens(ctx context.Context, userID uuid.UUID, reason models.RevokeReason, now time.Time) (families int64, tokens int64, err error)
	// RevokeExpiredTokens помечает отозванными не более limit просроченных токенов.
	RevokeExpiredTokens(ctx context.Context, now time.Time, limit int) (int64, error)
	// SuspiciousUsers возвращает пользователей, у которых с момента since
	// семейство было отозвано из-за повторного использования токена.
	SuspiciousUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// ItemStorage — связанные банковские доступы.
type ItemStorage interface {
	// SaveItem создаёт или обновляет элемент.
	SaveItem(ctx context.Context, item *models.Item) error
	// ItemByID находит элемент по id провайдера.
	ItemByID(ctx context.Context, id string) (*models.Item, error)
	// SetItemStatus обновляет статус элемента.
	SetItemStatus(ctx context.Context, id string, status models.ItemStatus, now time.Time) error
}

// WebhookStorage — дедупликация доставок webhook.
type WebhookStorage interface {
	// ClaimWebhook атомарно помечает событие key как принятое.
	// false — событие уже было принято раньше (дубликат).
	ClaimWebhook(ctx context.Context, key string, now time.Time) (bool, error)
	// ReleaseWebhook снимает отметку, чтобы повторная доставка была обработана.
	ReleaseWebhook(ctx context.Context, key string) error
}

// TransactionStorage — приёмник транзакций, полученных от провайдера.
type TransactionStorage interface {
	// UpsertTransactions сохраняет транзакции элемента; повторная запись идемпотентна.
	UpsertTransactions(ctx context.Context, itemID string, txs []models.Transaction) (int64, error)
}

// Storage — полный контракт хранилища сервиса.
type Storage interface {
	TokenStorage
	ItemStorage
	WebhookStorage
	TransactionStorage
	Close()
}
