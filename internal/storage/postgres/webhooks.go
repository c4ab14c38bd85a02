package postgres

import (
	"context"
	"fmt"
	"time"
)

// ClaimWebhook атомарно помечает доставку key как принятую.
func (s *Storage) ClaimWebhook(ctx context.Context, key string, now time.Time) (bool, error) {
	const op = "storage.postgres.ClaimWebhook"

	query := `
        INSERT INTO webhook_deliveries(dedup_key, received_at)
        VALUES ($1, $2)
        ON CONFLICT (dedup_key) DO NOTHING
    `

	tag, err := s.db.Exec(ctx, query, key, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReleaseWebhook снимает отметку о доставке.
func (s *Storage) ReleaseWebhook(ctx context.Context, key string) error {
	const op = "storage.postgres.ReleaseWebhook"

	if _, err := s.db.Exec(ctx, `DELETE FROM webhook_deliveries WHERE dedup_key = $1`, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
