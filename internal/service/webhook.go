package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// WebhookOutcome — результат обработки доставки.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookFailed    WebhookOutcome = "failed"
)

// Archive сохраняет сырые тела доставок.
type Archive interface {
	Put(ctx context.Context, key string, payload []byte) error
}

// WebhookStore — то, что нужно обработчику webhook от хранилища.
type WebhookStore interface {
	storage.WebhookStorage
	storage.ItemStorage
	storage.TransactionStorage
}

// WebhookService обрабатывает push-события провайдера.
// Повторная доставка того же тела не обрабатывается дважды.
type WebhookService struct {
	storage WebhookStore
	items   *ItemService
	archive Archive
	window  time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewWebhookService создаёт WebhookService. archive и m могут быть nil.
func NewWebhookService(st WebhookStore, items *ItemService, archive Archive, window time.Duration, m *metrics.Metrics) *WebhookService {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	return &WebhookService{
		storage: st,
		items:   items,
		archive: archive,
		window:  window,
		metrics: m,
		now:     time.Now,
	}
}

// Handle разбирает и обрабатывает доставку.
//
// Ключ дедупликации — sha256 тела. При ошибке обработки отметка снимается,
// чтобы повторная доставка провайдером была обработана заново.
func (s *WebhookService) Handle(ctx context.Context, payload []byte) (WebhookOutcome, error) {
	const op = "service.webhook.Handle"

	var ev models.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Type == "" {
		s.metrics.Webhook("", string(WebhookFailed))
		return WebhookFailed, fmt.Errorf("%s: payload: %w", op, ErrInvalidArgument)
	}

	lg := log.From(ctx).With(
		slog.String("webhook_type", ev.Type),
		slog.String("webhook_code", ev.Code),
		slog.String("item_id", ev.ItemID),
	)
	ctx = log.Into(ctx, lg)

	sum := sha256.Sum256(payload)
	key := hex.EncodeToString(sum[:])
	now := s.now().UTC()

	claimed, err := s.storage.ClaimWebhook(ctx, key, now)
	if err != nil {
		lg.Error("webhook_claim_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		s.metrics.Webhook(ev.Type, string(WebhookFailed))
		return WebhookFailed, fmt.Errorf("%s: %w", op, err)
	}
	if !claimed {
		lg.Info("webhook_duplicate")
		s.metrics.Webhook(ev.Type, string(WebhookDuplicate))
		return WebhookDuplicate, nil
	}

	if s.archive != nil {
		name := fmt.Sprintf("provider/%s/%s.json", now.Format("2006/01/02"), key)
		if err := s.archive.Put(ctx, name, payload); err != nil {
			// Архив вспомогательный: обработку не останавливаем.
			lg.Warn("webhook_archive_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	outcome, err := s.dispatch(ctx, &ev)
	if err != nil {
		if rerr := s.storage.ReleaseWebhook(context.WithoutCancel(ctx), key); rerr != nil {
			lg.Error("webhook_release_failed",
				slog.String("op", op),
				slog.String("err", rerr.Error()),
			)
		}

		lg.Error("webhook_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		s.metrics.Webhook(ev.Type, string(WebhookFailed))
		return WebhookFailed, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("webhook_handled", slog.String("outcome", string(outcome)))
	s.metrics.Webhook(ev.Type, string(outcome))

	return outcome, nil
}

func (s *WebhookService) dispatch(ctx context.Context, ev *models.WebhookEvent) (WebhookOutcome, error) {
	switch ev.Type {
	case "TRANSACTIONS":
		switch ev.Code {
		case "INITIAL_UPDATE", "HISTORICAL_UPDATE", "DEFAULT_UPDATE", "SYNC_UPDATES_AVAILABLE":
			return s.syncTransactions(ctx, ev.ItemID)
		}

	case "ITEM":
		switch ev.Code {
		case "ERROR":
			return s.setStatus(ctx, ev.ItemID, models.ItemLoginRequired)
		case "PENDING_EXPIRATION":
			return s.setStatus(ctx, ev.ItemID, models.ItemPendingExpiration)
		case "USER_PERMISSION_REVOKED":
			return s.setStatus(ctx, ev.ItemID, models.ItemRevoked)
		case "LOGIN_REPAIRED":
			return s.setStatus(ctx, ev.ItemID, models.ItemActive)
		}
	}

	return WebhookIgnored, nil
}

func (s *WebhookService) syncTransactions(ctx context.Context, itemID string) (WebhookOutcome, error) {
	const op = "service.webhook.syncTransactions"

	item, err := s.storage.ItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("webhook_unknown_item")
			return WebhookIgnored, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if item.Status == models.ItemRevoked {
		return WebhookIgnored, nil
	}

	txs, err := s.items.Transactions(ctx, item, s.window)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	n, err := s.storage.UpsertTransactions(ctx, item.ID, txs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("transactions_synced", slog.Int64("count", n))

	return WebhookProcessed, nil
}

func (s *WebhookService) setStatus(ctx context.Context, itemID string, status models.ItemStatus) (WebhookOutcome, error) {
	const op = "service.webhook.setStatus"

	err := s.storage.SetItemStatus(ctx, itemID, status, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("webhook_unknown_item")
			return WebhookIgnored, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return WebhookProcessed, nil
}
