package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/storage/memory"
)

// Очистка и ротация на реальной базе: истёкший токен, отозванный очисткой,
// остаётся истёкшим и не превращается в инцидент безопасности.
func TestIntegration_RotateAfterCleanupSweep(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	var mu sync.Mutex
	now := time.Now().UTC().Truncate(time.Microsecond)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	inc := memory.NewIncidents()
	tokens := service.NewTokenService(st, config.AuthConfig{
		JWTSecret:       "integration-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		FamilyTTL:       72 * time.Hour,
		Issuer:          "flexibill",
		Audience:        []string{"flexibill-app"},
	}, service.WithClock(clock), service.WithIncidents(inc))
	sweeper := service.NewCleanupService(st, config.CleanupConfig{
		BatchSize:        100,
		SuspiciousWindow: 24 * time.Hour,
	}, service.WithClock(clock), service.WithIncidents(inc))

	sess, err := tokens.Issue(ctx, uuid.New())
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(25 * time.Hour)
	mu.Unlock()

	n, err := sweeper.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	res, err := tokens.Rotate(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, service.StatusExpired, res.Status)

	v, err := tokens.Validate(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, service.StatusExpired, v.Status)

	fam, err := st.FamilyByID(ctx, sess.FamilyID)
	require.NoError(t, err)
	require.False(t, fam.Revoked)
	require.NotEqual(t, models.RevokeReuse, fam.RevokeReason)

	users, err := sweeper.CheckSuspiciousActivity(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
}
