package models

import (
	"time"

	"github.com/google/uuid"
)

// RevokeReason — причина отзыва семейства.
type RevokeReason string

const (
	RevokeLogout RevokeReason = "logout"
	RevokeReuse  RevokeReason = "reuse"
	RevokeAdmin  RevokeReason = "admin"
)

// TokenFamily — цепочка refresh-токенов одной сессии входа.
// Отзыв монотонен и распространяется на все токены семейства.
type TokenFamily struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CreatedAt    time.Time
	LastUsedAt   time.Time
	Revoked      bool
	RevokedAt    *time.Time
	RevokeReason RevokeReason
}
