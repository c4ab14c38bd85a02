package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/flexibill/internal/models"
)

func TestIncidents_RecordAndSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	in := NewIncidents()
	now := time.Now().UTC()
	user := uuid.New()

	require.NoError(t, in.Record(ctx, models.SecurityIncident{Kind: models.IncidentTokenReuse, UserID: user, CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, in.Record(ctx, models.SecurityIncident{Kind: models.IncidentRevokeAll, UserID: user, CreatedAt: now}))
	require.NoError(t, in.Record(ctx, models.SecurityIncident{Kind: models.IncidentSuspiciousActivity, UserID: user}))

	got, err := in.Since(ctx, now.Add(-3*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, models.IncidentTokenReuse, got[2].Kind)
	for _, it := range got {
		require.NotEqual(t, uuid.Nil, it.ID)
	}

	got, err = in.Since(ctx, now.Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
