package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentKind — тип инцидента безопасности.
type IncidentKind string

const (
	// IncidentTokenReuse — предъявлен уже отозванный refresh-токен активного семейства
	// либо проигрыш в гонке ротации.
	IncidentTokenReuse IncidentKind = "refresh_token_reuse"
	// IncidentSuspiciousActivity — пользователь попал в выборку подозрительной активности.
	IncidentSuspiciousActivity IncidentKind = "suspicious_activity"
	// IncidentRevokeAll — администратор отозвал все сессии пользователя.
	IncidentRevokeAll IncidentKind = "revoke_all"
)

// SecurityIncident — запись журнала инцидентов.
type SecurityIncident struct {
	ID        uuid.UUID
	Kind      IncidentKind
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	Detail    string
	CreatedAt time.Time
}
