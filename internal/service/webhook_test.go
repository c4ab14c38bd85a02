package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/flexibill/internal/models"
)

type memArchive struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (a *memArchive) Put(_ context.Context, key string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}
	if a.objs == nil {
		a.objs = make(map[string][]byte)
	}
	a.objs[key] = append([]byte(nil), payload...)

	return nil
}

func webhookPayload(t *testing.T, typ, code, itemID string) []byte {
	t.Helper()

	b, err := json.Marshal(map[string]any{
		"webhook_type":     typ,
		"webhook_code":     code,
		"item_id":          itemID,
		"new_transactions": 3,
	})
	require.NoError(t, err)

	return b
}

func TestWebhook_TransactionsSyncedOnce(t *testing.T) {
	items, st, p, _ := newTestItemService(t)
	arch := &memArchive{}
	svc := NewWebhookService(st, items, arch, 0, nil)
	ctx := context.Background()

	item, err := items.LinkItem(ctx, uuid.New(), "public-sandbox-1")
	require.NoError(t, err)
	p.transactions = fakeTransactions("acc-1", 3)

	payload := webhookPayload(t, "TRANSACTIONS", "DEFAULT_UPDATE", item.ID)

	outcome, err := svc.Handle(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, WebhookProcessed, outcome)
	require.Len(t, st.Transactions(item.ID), 3)
	require.Len(t, arch.objs, 1)
	for key := range arch.objs {
		require.True(t, strings.HasPrefix(key, "provider/"))
	}

	// Повторная доставка того же тела не вызывает провайдера.
	outcome, err = svc.Handle(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, WebhookDuplicate, outcome)
	require.Equal(t, int32(1), p.txCalls.Load())
}

func TestWebhook_FailureReleasesClaim(t *testing.T) {
	items, st, p, _ := newTestItemService(t)
	svc := NewWebhookService(st, items, nil, 0, nil)
	ctx := context.Background()

	item, err := items.LinkItem(ctx, uuid.New(), "public-sandbox-1")
	require.NoError(t, err)

	// Провайдер забыл access token: бизнес-ошибка, обработка проваливается.
	p.mu.Lock()
	saved := p.accessTokens
	p.accessTokens = map[string]string{}
	p.mu.Unlock()

	payload := webhookPayload(t, "TRANSACTIONS", "INITIAL_UPDATE", item.ID)

	outcome, err := svc.Handle(ctx, payload)
	require.Error(t, err)
	require.Equal(t, WebhookFailed, outcome)

	p.mu.Lock()
	p.accessTokens = saved
	p.mu.Unlock()
	p.transactions = fakeTransactions("acc-1", 2)

	// Отметка снята: повторная доставка обрабатывается.
	outcome, err = svc.Handle(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, WebhookProcessed, outcome)
	require.Len(t, st.Transactions(item.ID), 2)
}

func TestWebhook_ItemStatus(t *testing.T) {
	items, st, _, _ := newTestItemService(t)
	svc := NewWebhookService(st, items, nil, 0, nil)
	ctx := context.Background()

	item, err := items.LinkItem(ctx, uuid.New(), "public-sandbox-1")
	require.NoError(t, err)

	cases := []struct {
		code string
		want models.ItemStatus
	}{
		{"PENDING_EXPIRATION", models.ItemPendingExpiration},
		{"ERROR", models.ItemLoginRequired},
		{"LOGIN_REPAIRED", models.ItemActive},
		{"USER_PERMISSION_REVOKED", models.ItemRevoked},
	}
	for _, tc := range cases {
		outcome, err := svc.Handle(ctx, webhookPayload(t, "ITEM", tc.code, item.ID))
		require.NoError(t, err, tc.code)
		require.Equal(t, WebhookProcessed, outcome, tc.code)

		got, err := st.ItemByID(ctx, item.ID)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Status, tc.code)
	}
}

func TestWebhook_IgnoredAndInvalid(t *testing.T) {
	items, st, _, _ := newTestItemService(t)
	svc := NewWebhookService(st, items, &memArchive{err: errors.New("s3 down")}, 0, nil)
	ctx := context.Background()

	outcome, err := svc.Handle(ctx, webhookPayload(t, "AUTH", "AUTOMATICALLY_VERIFIED", "item-x"))
	require.NoError(t, err)
	require.Equal(t, WebhookIgnored, outcome)

	// Неизвестный элемент не должен вызывать бесконечные повторы доставки.
	outcome, err = svc.Handle(ctx, webhookPayload(t, "ITEM", "ERROR", "unknown-item"))
	require.NoError(t, err)
	require.Equal(t, WebhookIgnored, outcome)

	outcome, err = svc.Handle(ctx, []byte("{not json"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, WebhookFailed, outcome)
}
