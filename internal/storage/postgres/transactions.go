package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/flexibill/internal/models"
)

// UpsertTransactions сохраняет транзакции элемента пачкой (pgx.Batch).
// Повторная запись той же транзакции обновляет её поля.
func (s *Storage) UpsertTransactions(ctx context.Context, itemID string, txs []models.Transaction) (int64, error) {
	const op = "storage.postgres.UpsertTransactions"

	if len(txs) == 0 {
		return 0, nil
	}

	query := `
        INSERT INTO provider_transactions(id, item_id, account_id, amount, currency, tx_date, name, merchant, pending, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
        ON CONFLICT (id) DO UPDATE SET
            amount     = EXCLUDED.amount,
            currency   = EXCLUDED.currency,
            tx_date    = EXCLUDED.tx_date,
            name       = EXCLUDED.name,
            merchant   = EXCLUDED.merchant,
            pending    = EXCLUDED.pending,
            updated_at = now()
    `

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(query,
			tx.ID,
			itemID,
			tx.AccountID,
			tx.Amount,
			tx.Currency,
			tx.Date,
			tx.Name,
			tx.Merchant,
			tx.Pending,
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	var n int64
	for i := 0; i < len(txs); i++ {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("%s: %w", op, err)
		}
		n += tag.RowsAffected()
	}

	return n, nil
}
