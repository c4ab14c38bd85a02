package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// SaveItem создаёт элемент или обновляет токен и статус существующего.
func (s *Storage) SaveItem(ctx context.Context, item *models.Item) error {
	const op = "storage.postgres.SaveItem"

	query := `
        INSERT INTO provider_items(id, user_id, institution_id, encrypted_token, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            encrypted_token = EXCLUDED.encrypted_token,
            institution_id  = EXCLUDED.institution_id,
            status          = EXCLUDED.status,
            updated_at      = EXCLUDED.updated_at
    `

	_, err := s.db.Exec(ctx, query,
		item.ID,
		item.UserID,
		item.InstitutionID,
		item.EncryptedToken,
		string(item.Status),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ItemByID находит элемент по id провайдера.
func (s *Storage) ItemByID(ctx context.Context, id string) (*models.Item, error) {
	const op = "storage.postgres.ItemByID"

	query := `
        SELECT id, user_id, institution_id, encrypted_token, status, created_at, updated_at
        FROM provider_items
        WHERE id = $1
    `

	var (
		it     models.Item
		status string
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&it.ID,
		&it.UserID,
		&it.InstitutionID,
		&it.EncryptedToken,
		&status,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}
	it.Status = models.ItemStatus(status)

	return &it, nil
}

// SetItemStatus обновляет статус элемента.
func (s *Storage) SetItemStatus(ctx context.Context, id string, status models.ItemStatus, now time.Time) error {
	const op = "storage.postgres.SetItemStatus"

	query := `
        UPDATE provider_items
        SET status = $2, updated_at = $3
        WHERE id = $1
    `

	tag, err := s.db.Exec(ctx, query, id, string(status), now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
