package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — запись refresh-токена. Сам секрет не хранится: только его хэш
// (sha256 → base64url). Токен принадлежит ровно одному семейству и может быть
// использован для ротации не более одного раза.
type RefreshToken struct {
	TokenHash       string
	UserID          uuid.UUID
	FamilyID        uuid.UUID
	IssuedAt        time.Time
	LastRefreshedAt time.Time
	ExpiresAt       time.Time
	Revoked         bool
	RevokedAt       *time.Time
}

// Expired сообщает, истёк ли токен к моменту now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Swept сообщает, что токен отозван очисткой после истечения срока.
// Ротация возможна только до ExpiresAt, поэтому у ротированного токена
// RevokedAt всегда раньше ExpiresAt.
func (t *RefreshToken) Swept() bool {
	return t.Revoked && t.RevokedAt != nil && !t.RevokedAt.Before(t.ExpiresAt)
}
