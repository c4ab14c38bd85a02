package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/gateway"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/provider"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// DependencyProvider — имя зависимости провайдера в реестре автоматов.
const DependencyProvider = "plaid-api"

// ErrItemRevoked — пользователь отозвал доступ к банку; нужна повторная привязка.
// Транспорт: HTTP 409.
var ErrItemRevoked = errors.New("item access revoked")

// Provider — вызовы API провайдера, которые использует сервис.
type Provider interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*provider.ExchangeResult, error)
	GetItem(ctx context.Context, accessToken string) (*provider.ItemInfo, error)
	GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error)
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error)
}

// Sealer шифрует access token элемента перед сохранением.
type Sealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(ciphertext, additional []byte) ([]byte, error)
}

// ItemService связывает банковские счета пользователя через провайдера.
// Все вызовы провайдера идут через gateway.
type ItemService struct {
	storage  storage.ItemStorage
	provider Provider
	gw       *gateway.Gateway
	box      Sealer
	now      func() time.Time
}

// NewItemService создаёт ItemService.
func NewItemService(st storage.ItemStorage, p Provider, gw *gateway.Gateway, box Sealer) *ItemService {
	return &ItemService{
		storage:  st,
		provider: p,
		gw:       gw,
		box:      box,
		now:      time.Now,
	}
}

// LinkToken создаёт link-токен для формы привязки банка.
func (s *ItemService) LinkToken(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "service.items.LinkToken"

	if userID == uuid.Nil {
		return "", fmt.Errorf("%s: user id: %w", op, ErrInvalidArgument)
	}

	token, err := gateway.Call(ctx, s.gw, DependencyProvider, "", func(ctx context.Context) (string, error) {
		return s.provider.CreateLinkToken(ctx, userID.String())
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// LinkItem обменивает public token на access token и сохраняет элемент.
// Access token хранится только в зашифрованном виде.
func (s *ItemService) LinkItem(ctx context.Context, userID uuid.UUID, publicToken string) (*models.Item, error) {
	const op = "service.items.LinkItem"

	lg := log.From(ctx)

	if userID == uuid.Nil || publicToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	exchanged, err := gateway.Call(ctx, s.gw, DependencyProvider, "", func(ctx context.Context) (*provider.ExchangeResult, error) {
		return s.provider.ExchangePublicToken(ctx, publicToken)
	})
	if err != nil {
		lg.Error("public_token_exchange_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info, err := gateway.Call(ctx, s.gw, DependencyProvider, "item:"+exchanged.ItemID, func(ctx context.Context) (*provider.ItemInfo, error) {
		return s.provider.GetItem(ctx, exchanged.AccessToken)
	})
	if err != nil {
		// Элемент уже создан у провайдера: без institution_id он всё равно пригоден.
		lg.Warn("item_info_unavailable",
			slog.String("op", op),
			slog.String("item_id", exchanged.ItemID),
			slog.String("err", err.Error()),
		)
		info = &provider.ItemInfo{}
	}

	sealed, err := s.box.Seal([]byte(exchanged.AccessToken), []byte(exchanged.ItemID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	item := &models.Item{
		ID:             exchanged.ItemID,
		UserID:         userID,
		InstitutionID:  info.InstitutionID,
		EncryptedToken: sealed,
		Status:         models.ItemActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.storage.SaveItem(ctx, item); err != nil {
		lg.Error("save_item_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("item_linked",
		slog.String("user_id", userID.String()),
		slog.String("item_id", item.ID),
	)

	out := *item
	out.EncryptedToken = nil

	return &out, nil
}

// Accounts возвращает счета элемента пользователя. При открытом автомате
// отдаётся последний успешный ответ из кэша.
func (s *ItemService) Accounts(ctx context.Context, userID uuid.UUID, itemID string) ([]models.Account, error) {
	const op = "service.items.Accounts"

	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.accessToken(item)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accounts, err := gateway.Call(ctx, s.gw, DependencyProvider, "accounts:"+item.ID, func(ctx context.Context) ([]models.Account, error) {
		return s.provider.GetAccounts(ctx, access)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return accounts, nil
}

// Transactions забирает транзакции элемента за окно [now-window, now].
func (s *ItemService) Transactions(ctx context.Context, item *models.Item, window time.Duration) ([]models.Transaction, error) {
	const op = "service.items.Transactions"

	access, err := s.accessToken(item)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	end := s.now().UTC()
	start := end.Add(-window)

	txs, err := gateway.Call(ctx, s.gw, DependencyProvider, "", func(ctx context.Context) ([]models.Transaction, error) {
		return s.provider.GetTransactions(ctx, access, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return txs, nil
}

func (s *ItemService) ownedItem(ctx context.Context, userID uuid.UUID, itemID string) (*models.Item, error) {
	if userID == uuid.Nil || itemID == "" {
		return nil, ErrInvalidArgument
	}

	item, err := s.storage.ItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Чужой элемент неотличим от отсутствующего.
	if item.UserID != userID {
		return nil, ErrNotFound
	}
	if item.Status == models.ItemRevoked {
		return nil, ErrItemRevoked
	}

	return item, nil
}

func (s *ItemService) accessToken(item *models.Item) (string, error) {
	plain, err := s.box.Open(item.EncryptedToken, []byte(item.ID))
	if err != nil {
		return "", err
	}

	return string(plain), nil
}
