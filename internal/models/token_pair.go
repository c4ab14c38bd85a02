package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair — пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — случайный секрет, который клиент предъявляет для ротации;
//     на сервере хранится только его хэш;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session — результат входа: новое семейство и первая пара токенов.
type Session struct {
	FamilyID uuid.UUID
	UserID   uuid.UUID
	Tokens   TokenPair
}

// TokenMetadata — безопасные для передачи сведения о валидном refresh-токене.
type TokenMetadata struct {
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}
