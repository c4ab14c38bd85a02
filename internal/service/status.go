package service

import (
	"fmt"

	"github.com/pribylovaa/flexibill/internal/models"
)

// Status — ожидаемый исход проверки refresh-токена.
type Status int

const (
	// StatusValid — токен существует, не отозван и не истёк.
	StatusValid Status = iota
	// StatusUnknown — токен не найден (или пустой).
	StatusUnknown
	// StatusExpired — истёк срок токена или семейства.
	StatusExpired
	// StatusRevoked — семейство отозвано (logout, admin, ранее обнаруженная атака).
	StatusRevoked
	// StatusReused — предъявлен уже использованный токен активного семейства
	// или проигрыш в гонке ротации. Семейство отозвано.
	StatusReused
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusUnknown:
		return "unknown"
	case StatusExpired:
		return "expired"
	case StatusRevoked:
		return "revoked"
	case StatusReused:
		return "reused"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Err отображает исход на ошибку для транспорта: nil для StatusValid,
// ErrSecurityIncident для StatusReused, иначе ErrAuthentication.
func (s Status) Err() error {
	switch s {
	case StatusValid:
		return nil
	case StatusReused:
		return ErrSecurityIncident
	default:
		return fmt.Errorf("%s: %w", s, ErrAuthentication)
	}
}

// RotationResult — результат ротации. Session заполнена только при StatusValid.
type RotationResult struct {
	Status  Status
	Session *models.Session
}

// Err — см. Status.Err.
func (r RotationResult) Err() error { return r.Status.Err() }

// ValidationResult — результат проверки. Metadata заполнена только при StatusValid.
type ValidationResult struct {
	Status   Status
	Metadata *models.TokenMetadata
}
