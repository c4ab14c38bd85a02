package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// CreateFamily сохраняет новое семейство refresh-токенов.
func (s *Storage) CreateFamily(ctx context.Context, family *models.TokenFamily) error {
	const op = "storage.postgres.CreateFamily"

	query := `
        INSERT INTO token_families(id, user_id, created_at, last_used_at, is_revoked)
        VALUES ($1, $2, $3, $4, FALSE)
    `

	_, err := s.db.Exec(ctx, query, family.ID, family.UserID, family.CreatedAt, family.LastUsedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// FamilyByID находит семейство по id.
func (s *Storage) FamilyByID(ctx context.Context, id uuid.UUID) (*models.TokenFamily, error) {
	const op = "storage.postgres.FamilyByID"

	query := `
        SELECT id, user_id, created_at, last_used_at, is_revoked, revoked_at, COALESCE(revoke_reason, '')
        FROM token_families
        WHERE id = $1
    `

	var (
		f      models.TokenFamily
		reason string
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&f.ID,
		&f.UserID,
		&f.CreatedAt,
		&f.LastUsedAt,
		&f.Revoked,
		&f.RevokedAt,
		&reason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f.RevokeReason = models.RevokeReason(reason)

	return &f, nil
}

// SaveRefreshToken сохраняет refresh-токен (только хэш).
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	if err := insertToken(ctx, s.db, token); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// execer — общее подмножество pgxpool.Pool и pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertToken(ctx context.Context, db execer, token *models.RefreshToken) error {
	query := `
        INSERT INTO refresh_tokens(token_hash, user_id, family_id, issued_at, last_refreshed_at, expires_at, is_revoked)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE)
    `

	_, err := db.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.FamilyID,
		token.IssuedAt,
		token.LastRefreshedAt,
		token.ExpiresAt,
	)

	return err
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
        SELECT token_hash, user_id, family_id, issued_at, last_refreshed_at, expires_at, is_revoked, revoked_at
        FROM refresh_tokens
        WHERE token_hash = $1
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.FamilyID,
		&token.IssuedAt,
		&token.LastRefreshedAt,
		&token.ExpiresAt,
		&token.Revoked,
		&token.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RotateRefreshToken атомарно заменяет oldHash на next.
//
// Порядок блокировок всегда семейство → токены (как и в RevokeFamily),
// поэтому конкурентные ротация и отзыв не взаимоблокируются. Из двух
// конкурентных ротаций одного токена условный UPDATE пропустит только одну.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, now time.Time) error {
	const op = "storage.postgres.RotateRefreshToken"

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const lockFamily = `
            SELECT f.id, f.is_revoked
            FROM token_families f
            JOIN refresh_tokens t ON t.family_id = f.id
            WHERE t.token_hash = $1
            FOR UPDATE OF f
        `

		var (
			familyID uuid.UUID
			revoked  bool
		)
		if err := tx.QueryRow(ctx, lockFamily, oldHash).Scan(&familyID, &revoked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrConflict
			}
			return err
		}
		if revoked || familyID != next.FamilyID {
			return storage.ErrConflict
		}

		const revokeOld = `
            UPDATE refresh_tokens
            SET is_revoked = TRUE, revoked_at = $2
            WHERE token_hash = $1 AND is_revoked = FALSE AND expires_at > $2
        `
		tag, err := tx.Exec(ctx, revokeOld, oldHash, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrConflict
		}

		if err := insertToken(ctx, tx, next); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return err
		}

		const touchFamily = `
            UPDATE token_families
            SET last_used_at = $2
            WHERE id = $1 AND is_revoked = FALSE
        `
		_, err = tx.Exec(ctx, touchFamily, familyID, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeFamily отзывает семейство и все его активные токены.
// Уже отозванное семейство не меняется; его оставшиеся токены отзываются.
func (s *Storage) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason models.RevokeReason, now time.Time) (int64, error) {
	const op = "storage.postgres.RevokeFamily"

	var revoked int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const lockFamily = `
            SELECT is_revoked
            FROM token_families
            WHERE id = $1
            FOR UPDATE
        `
		var already bool
		if err := tx.QueryRow(ctx, lockFamily, familyID).Scan(&already); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return err
		}

		if !already {
			const revokeFamily = `
                UPDATE token_families
                SET is_revoked = TRUE, revoked_at = $2, revoke_reason = $3
                WHERE id = $1 AND is_revoked = FALSE
            `
			if _, err := tx.Exec(ctx, revokeFamily, familyID, now, string(reason)); err != nil {
				return err
			}
		}

		const revokeTokens = `
            UPDATE refresh_tokens
            SET is_revoked = TRUE, revoked_at = $2
            WHERE family_id = $1 AND is_revoked = FALSE
        `
		tag, err := tx.Exec(ctx, revokeTokens, familyID, now)
		if err != nil {
			return err
		}
		revoked = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return revoked, nil
}

// RevokeUserTokens отзывает все семейства и токены пользователя.
func (s *Storage) RevokeUserTokens(ctx context.Context, userID uuid.UUID, reason models.RevokeReason, now time.Time) (int64, int64, error) {
	const op = "storage.postgres.RevokeUserTokens"

	var families, tokens int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const revokeFamilies = `
            UPDATE token_families
            SET is_revoked = TRUE, revoked_at = $2, revoke_reason = $3
            WHERE user_id = $1 AND is_revoked = FALSE
        `
		tag, err := tx.Exec(ctx, revokeFamilies, userID, now, string(reason))
		if err != nil {
			return err
		}
		families = tag.RowsAffected()

		const revokeTokens = `
            UPDATE refresh_tokens
            SET is_revoked = TRUE, revoked_at = $2
            WHERE user_id = $1 AND is_revoked = FALSE
        `
		tag, err = tx.Exec(ctx, revokeTokens, userID, now)
		if err != nil {
			return err
		}
		tokens = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	return families, tokens, nil
}

// RevokeExpiredTokens помечает отозванными не более limit просроченных токенов.
// Строки, заблокированные конкурентной ротацией, пропускаются до следующего прохода.
func (s *Storage) RevokeExpiredTokens(ctx context.Context, now time.Time, limit int) (int64, error) {
	const op = "storage.postgres.RevokeExpiredTokens"

	if limit <= 0 {
		limit = 500
	}

	query := `
        UPDATE refresh_tokens
        SET is_revoked = TRUE, revoked_at = $1
        WHERE token_hash IN (
            SELECT token_hash
            FROM refresh_tokens
            WHERE is_revoked = FALSE AND expires_at <= $1
            ORDER BY expires_at
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
    `

	tag, err := s.db.Exec(ctx, query, now, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// SuspiciousUsers возвращает пользователей с семействами, отозванными из-за
// повторного использования токена начиная с since.
func (s *Storage) SuspiciousUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	const op = "storage.postgres.SuspiciousUsers"

	query := `
        SELECT DISTINCT user_id
        FROM token_families
        WHERE is_revoked = TRUE AND revoke_reason = $1 AND revoked_at >= $2
        ORDER BY user_id
    `

	rows, err := s.db.Query(ctx, query, string(models.RevokeReuse), since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}
