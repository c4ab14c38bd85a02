package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/pkg/redact"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// maxTokenAttempts — попытки сгенерировать уникальный refresh-токен.
const maxTokenAttempts = 5

// TokenService выпускает, ротирует и отзывает refresh-токены.
type TokenService struct {
	storage storage.TokenStorage
	cfg     config.AuthConfig
	opts    options
}

// NewTokenService создаёт TokenService.
func NewTokenService(st storage.TokenStorage, cfg config.AuthConfig, opts ...Option) *TokenService {
	return &TokenService{
		storage: st,
		cfg:     cfg,
		opts:    buildOptions(opts),
	}
}

type accessClaims struct {
	UserID   string `json:"uid"`
	FamilyID string `json:"fid"`
	jwt.RegisteredClaims
}

// AccessClaims — проверенные сведения из access-токена.
type AccessClaims struct {
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	ExpiresAt time.Time
}

func (s *TokenService) now() time.Time { return s.opts.now().UTC() }

// Issue открывает новое семейство для пользователя и выдаёт первую пару токенов.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	const op = "service.token.Issue"

	lg := log.From(ctx)

	if userID == uuid.Nil {
		return nil, fmt.Errorf("%s: user id: %w", op, ErrInvalidArgument)
	}

	now := s.now()
	family := &models.TokenFamily{
		ID:         uuid.New(),
		UserID:     userID,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if err := s.storage.CreateFamily(ctx, family); err != nil {
		lg.Error("create_family_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, expiresAt, err := s.saveFirstToken(ctx, family, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.pair(ctx, family, plain, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("session_issued",
		slog.String("user_id", userID.String()),
		slog.String("family_id", family.ID.String()),
	)

	return &models.Session{FamilyID: family.ID, UserID: userID, Tokens: *pair}, nil
}

// saveFirstToken генерирует и сохраняет первый токен семейства; коллизии хэша повторяются.
func (s *TokenService) saveFirstToken(ctx context.Context, family *models.TokenFamily, now time.Time) (string, time.Time, error) {
	const op = "service.token.saveFirstToken"

	lg := log.From(ctx)

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		plain, token, err := s.newToken(family, now)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}

		return plain, token.ExpiresAt, nil
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// Rotate обменивает refresh-токен на новую пару в том же семействе.
//
// Отозванный токен активного семейства или проигрыш в гонке ротации означают
// повторное использование: семейство отзывается целиком, результат StatusReused.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (RotationResult, error) {
	res, err := s.rotate(ctx, refreshToken)
	if err == nil {
		s.opts.metrics.TokenRotation(res.Status.String())
	}

	return res, err
}

// RotateWithAccess — Rotate с проверкой, что предъявленный access-токен
// (возможно, уже истёкший) выпущен для того же семейства.
func (s *TokenService) RotateWithAccess(ctx context.Context, refreshToken, accessToken string) (RotationResult, error) {
	if accessToken == "" {
		return s.Rotate(ctx, refreshToken)
	}

	claims, err := s.parseAccess(accessToken, false)
	if err != nil {
		s.opts.metrics.TokenRotation(StatusUnknown.String())
		return RotationResult{Status: StatusUnknown}, nil
	}

	hash := hashToken(refreshToken)
	tok, err := s.storage.RefreshTokenByHash(ctx, hash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.opts.metrics.TokenRotation(StatusUnknown.String())
		return RotationResult{Status: StatusUnknown}, nil
	case err != nil:
		return RotationResult{}, fmt.Errorf("service.token.RotateWithAccess: %w", err)
	}

	if tok.FamilyID != claims.FamilyID || tok.UserID != claims.UserID {
		log.From(ctx).Warn("access_token_family_mismatch",
			slog.String("user_id", tok.UserID.String()),
			slog.String("family_id", tok.FamilyID.String()),
		)
		s.opts.metrics.TokenRotation(StatusUnknown.String())
		return RotationResult{Status: StatusUnknown}, nil
	}

	return s.Rotate(ctx, refreshToken)
}

func (s *TokenService) rotate(ctx context.Context, refreshToken string) (RotationResult, error) {
	const op = "service.token.Rotate"

	lg := log.From(ctx)

	if refreshToken == "" {
		return RotationResult{Status: StatusUnknown}, nil
	}

	hash := hashToken(refreshToken)
	now := s.now()

	tok, fam, status, err := s.lookup(ctx, hash, now)
	if err != nil {
		return RotationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case StatusValid:
	case StatusReused:
		if err := s.reuseDetected(ctx, tok, "revoked refresh token presented", now); err != nil {
			return RotationResult{}, fmt.Errorf("%s: %w", op, err)
		}
		return RotationResult{Status: StatusReused}, nil
	default:
		lg.Warn("refresh_rejected",
			slog.String("op", op),
			slog.String("status", status.String()),
			slog.String("token", redact.Hash(hash)),
		)
		return RotationResult{Status: status}, nil
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		plain, next, err := s.newToken(fam, now)
		if err != nil {
			return RotationResult{}, fmt.Errorf("%s: %w", op, err)
		}

		err = s.storage.RotateRefreshToken(ctx, hash, next, now)
		switch {
		case err == nil:
			pair, err := s.pair(ctx, fam, plain, next.ExpiresAt, now)
			if err != nil {
				return RotationResult{}, fmt.Errorf("%s: %w", op, err)
			}

			lg.Debug("refresh_rotated",
				slog.String("user_id", fam.UserID.String()),
				slog.String("family_id", fam.ID.String()),
			)

			return RotationResult{
				Status:  StatusValid,
				Session: &models.Session{FamilyID: fam.ID, UserID: fam.UserID, Tokens: *pair},
			}, nil

		case errors.Is(err, storage.ErrAlreadyExists):
			// Редкая коллизия хэша нового токена — генерируем заново.
			continue

		case errors.Is(err, storage.ErrConflict):
			return s.lostRace(ctx, tok, now)

		default:
			lg.Error("rotate_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return RotationResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return RotationResult{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// lostRace обрабатывает условное обновление, не затронувшее строк.
// Если семейство к этому моменту уже отозвано (logout, admin), это обычный
// отказ. Если токен между чтением и обновлением истёк или его отозвала
// очистка, это StatusExpired. Иначе токен успел использовать кто-то другой.
func (s *TokenService) lostRace(ctx context.Context, tok *models.RefreshToken, now time.Time) (RotationResult, error) {
	const op = "service.token.lostRace"

	fam, err := s.storage.FamilyByID(ctx, tok.FamilyID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return RotationResult{Status: StatusUnknown}, nil
	case err != nil:
		return RotationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if fam.Revoked && fam.RevokeReason != models.RevokeReuse {
		return RotationResult{Status: StatusRevoked}, nil
	}

	cur, err := s.storage.RefreshTokenByHash(ctx, tok.TokenHash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return RotationResult{Status: StatusUnknown}, nil
	case err != nil:
		return RotationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if cur.Swept() || (!cur.Revoked && cur.Expired(now)) {
		return RotationResult{Status: StatusExpired}, nil
	}

	if err := s.reuseDetected(ctx, tok, "concurrent rotation of the same refresh token", now); err != nil {
		return RotationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return RotationResult{Status: StatusReused}, nil
}

// lookup находит токен и семейство и вычисляет статус без изменений в хранилище.
// StatusReused означает: токен отозван ротацией, а семейство ещё активно.
func (s *TokenService) lookup(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, *models.TokenFamily, Status, error) {
	const op = "service.token.lookup"

	lg := log.From(ctx)

	tok, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, StatusUnknown, nil
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	fam, err := s.storage.FamilyByID(ctx, tok.FamilyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tok, nil, StatusUnknown, nil
		}

		lg.Error("family_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case fam.Revoked:
		return tok, fam, StatusRevoked, nil
	case tok.Swept():
		// Истёкший токен, отозванный очисткой, не повторное использование.
		return tok, fam, StatusExpired, nil
	case tok.Revoked:
		return tok, fam, StatusReused, nil
	case tok.Expired(now), !now.Before(s.familyDeadline(fam)):
		return tok, fam, StatusExpired, nil
	default:
		return tok, fam, StatusValid, nil
	}
}

// reuseDetected отзывает семейство токена и фиксирует инцидент.
func (s *TokenService) reuseDetected(ctx context.Context, tok *models.RefreshToken, detail string, now time.Time) error {
	const op = "service.token.reuseDetected"

	lg := log.From(ctx)

	revoked, err := s.storage.RevokeFamily(ctx, tok.FamilyID, models.RevokeReuse, now)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		lg.Error("revoke_family_failed",
			slog.String("op", op),
			slog.String("family_id", tok.FamilyID.String()),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Warn("refresh_token_reuse_detected",
		slog.String("user_id", tok.UserID.String()),
		slog.String("family_id", tok.FamilyID.String()),
		slog.Int64("tokens_revoked", revoked),
		slog.String("detail", detail),
	)
	s.opts.metrics.TokenReuse()

	incident := models.SecurityIncident{
		ID:        uuid.New(),
		Kind:      models.IncidentTokenReuse,
		UserID:    tok.UserID,
		FamilyID:  tok.FamilyID,
		Detail:    detail,
		CreatedAt: now,
	}
	if err := s.opts.incidents.Record(ctx, incident); err != nil {
		// Журнал вторичен: семейство уже отозвано.
		lg.Error("incident_record_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// Validate проверяет refresh-токен без изменения состояния.
func (s *TokenService) Validate(ctx context.Context, refreshToken string) (ValidationResult, error) {
	const op = "service.token.Validate"

	if refreshToken == "" {
		return ValidationResult{Status: StatusUnknown}, nil
	}

	tok, _, status, err := s.lookup(ctx, hashToken(refreshToken), s.now())
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case StatusValid:
		return ValidationResult{
			Status: StatusValid,
			Metadata: &models.TokenMetadata{
				UserID:    tok.UserID,
				FamilyID:  tok.FamilyID,
				IssuedAt:  tok.IssuedAt,
				ExpiresAt: tok.ExpiresAt,
			},
		}, nil
	case StatusReused:
		// Validate ничего не меняет: для клиента это просто отозванный токен.
		return ValidationResult{Status: StatusRevoked}, nil
	default:
		return ValidationResult{Status: status}, nil
	}
}

// Logout отзывает семейство, которому принадлежит токен.
// Отозванный токен активного семейства обрабатывается как повторное использование.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) (Status, error) {
	const op = "service.token.Logout"

	if refreshToken == "" {
		return StatusUnknown, nil
	}

	now := s.now()
	tok, fam, status, err := s.lookup(ctx, hashToken(refreshToken), now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case StatusUnknown, StatusRevoked:
		return status, nil
	case StatusReused:
		if err := s.reuseDetected(ctx, tok, "revoked refresh token presented on logout", now); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		return StatusReused, nil
	}

	if _, err := s.storage.RevokeFamily(ctx, fam.ID, models.RevokeLogout, now); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_logged_out",
		slog.String("user_id", fam.UserID.String()),
		slog.String("family_id", fam.ID.String()),
	)

	return status, nil
}

// RevokeFamily отзывает семейство по id. Повторный отзыв не меняет причину.
func (s *TokenService) RevokeFamily(ctx context.Context, familyID uuid.UUID, reason models.RevokeReason) (int64, error) {
	const op = "service.token.RevokeFamily"

	if familyID == uuid.Nil {
		return 0, fmt.Errorf("%s: family id: %w", op, ErrInvalidArgument)
	}

	n, err := s.storage.RevokeFamily(ctx, familyID, reason, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// ParseAccessToken проверяет подпись, срок, issuer и audience access-токена.
func (s *TokenService) ParseAccessToken(token string) (*AccessClaims, error) {
	return s.parseAccess(token, true)
}

func (s *TokenService) parseAccess(tokenStr string, validateClaims bool) (*AccessClaims, error) {
	const op = "service.token.ParseAccessToken"

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
		jwt.WithTimeFunc(s.now),
	}
	if !validateClaims {
		// Для привязки при ротации годится и истёкший access-токен.
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		},
		parserOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthentication)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthentication)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthentication)
	}
	fid, err := uuid.Parse(claims.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthentication)
	}

	out := &AccessClaims{UserID: uid, FamilyID: fid}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

// pair подписывает access-токен и собирает пару.
func (s *TokenService) pair(ctx context.Context, fam *models.TokenFamily, refresh string, refreshExp, now time.Time) (*models.TokenPair, error) {
	const op = "service.token.pair"

	accessExp := now.Add(s.cfg.AccessTokenTTL)
	claims := accessClaims{
		UserID:   fam.UserID.String(),
		FamilyID: fam.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   fam.UserID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      signed,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// newToken генерирует секрет и запись токена семейства fam.
// Срок токена не выходит за абсолютный срок семейства.
func (s *TokenService) newToken(fam *models.TokenFamily, now time.Time) (string, *models.RefreshToken, error) {
	const op = "service.token.newToken"

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	plain := base64.RawURLEncoding.EncodeToString(b)

	expiresAt := now.Add(s.cfg.RefreshTokenTTL)
	if deadline := s.familyDeadline(fam); s.cfg.FamilyTTL > 0 && deadline.Before(expiresAt) {
		expiresAt = deadline
	}

	return plain, &models.RefreshToken{
		TokenHash:       hashToken(plain),
		UserID:          fam.UserID,
		FamilyID:        fam.ID,
		IssuedAt:        now,
		LastRefreshedAt: now,
		ExpiresAt:       expiresAt,
	}, nil
}

// familyDeadline — абсолютный срок семейства; без FamilyTTL срока нет.
func (s *TokenService) familyDeadline(fam *models.TokenFamily) time.Time {
	if s.cfg.FamilyTTL <= 0 {
		return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return fam.CreatedAt.Add(s.cfg.FamilyTTL)
}

// hashToken — sha256 секрета в base64url; в хранилище попадает только он.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
