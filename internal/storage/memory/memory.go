// memory — реализация storage.Storage в памяти процесса.
// Все операции выполняются под одним мьютексом, поэтому условные обновления
// (ротация, отзыв) атомарны так же, как транзакции postgres-реализации.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/storage"
)

// Storage хранит копии записей; наружу отдаются только копии.
type Storage struct {
	mu           sync.Mutex
	families     map[uuid.UUID]models.TokenFamily
	tokens       map[string]models.RefreshToken
	items        map[string]models.Item
	webhooks     map[string]time.Time
	transactions map[string]map[string]models.Transaction
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		families:     make(map[uuid.UUID]models.TokenFamily),
		tokens:       make(map[string]models.RefreshToken),
		items:        make(map[string]models.Item),
		webhooks:     make(map[string]time.Time),
		transactions: make(map[string]map[string]models.Transaction),
	}
}

// Close ничего не делает: ресурсов нет.
func (s *Storage) Close() {}

func (s *Storage) CreateFamily(_ context.Context, family *models.TokenFamily) error {
	const op = "storage.memory.CreateFamily"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[family.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	s.families[family.ID] = *family

	return nil
}

func (s *Storage) FamilyByID(_ context.Context, id uuid.UUID) (*models.TokenFamily, error) {
	const op = "storage.memory.FamilyByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &f, nil
}

func (s *Storage) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	const op = "storage.memory.SaveRefreshToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.TokenHash]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.families[token.FamilyID]; !ok {
		return fmt.Errorf("%s: family: %w", op, storage.ErrNotFound)
	}
	s.tokens[token.TokenHash] = *token

	return nil
}

func (s *Storage) RefreshTokenByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.memory.RefreshTokenByHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &t, nil
}

func (s *Storage) RotateRefreshToken(_ context.Context, oldHash string, next *models.RefreshToken, now time.Time) error {
	const op = "storage.memory.RotateRefreshToken"

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[oldHash]
	if !ok || old.Revoked || old.Expired(now) {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	fam, ok := s.families[old.FamilyID]
	if !ok || fam.Revoked || next.FamilyID != old.FamilyID {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	if _, exists := s.tokens[next.TokenHash]; exists {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	revokedAt := now
	old.Revoked = true
	old.RevokedAt = &revokedAt
	s.tokens[oldHash] = old

	s.tokens[next.TokenHash] = *next

	fam.LastUsedAt = now
	s.families[fam.ID] = fam

	return nil
}

func (s *Storage) RevokeFamily(_ context.Context, familyID uuid.UUID, reason models.RevokeReason, now time.Time) (int64, error) {
	const op = "storage.memory.RevokeFamily"

	s.mu.Lock()
	defer s.mu.Unlock()

	fam, ok := s.families[familyID]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.revokeFamilyLocked(fam, reason, now), nil
}

func (s *Storage) RevokeUserTokens(_ context.Context, userID uuid.UUID, reason models.RevokeReason, now time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var families, tokens int64
	for _, fam := range s.families {
		if fam.UserID != userID {
			continue
		}
		if !fam.Revoked {
			families++
		}
		tokens += s.revokeFamilyLocked(fam, reason, now)
	}

	// Токены, чьё семейство по какой-то причине отсутствует, тоже отзываются.
	for hash, t := range s.tokens {
		if t.UserID == userID && !t.Revoked {
			at := now
			t.Revoked = true
			t.RevokedAt = &at
			s.tokens[hash] = t
			tokens++
		}
	}

	return families, tokens, nil
}

// revokeFamilyLocked отзывает семейство (если ещё активно) и все его активные токены.
func (s *Storage) revokeFamilyLocked(fam models.TokenFamily, reason models.RevokeReason, now time.Time) int64 {
	if !fam.Revoked {
		at := now
		fam.Revoked = true
		fam.RevokedAt = &at
		fam.RevokeReason = reason
		s.families[fam.ID] = fam
	}

	var n int64
	for hash, t := range s.tokens {
		if t.FamilyID != fam.ID || t.Revoked {
			continue
		}
		at := now
		t.Revoked = true
		t.RevokedAt = &at
		s.tokens[hash] = t
		n++
	}

	return n
}

func (s *Storage) RevokeExpiredTokens(_ context.Context, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.tokens {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if t.Revoked || !t.Expired(now) {
			continue
		}
		at := now
		t.Revoked = true
		t.RevokedAt = &at
		s.tokens[hash] = t
		n++
	}

	return n, nil
}

func (s *Storage) SuspiciousUsers(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{})
	for _, f := range s.families {
		if f.RevokeReason != models.RevokeReuse || f.RevokedAt == nil || f.RevokedAt.Before(since) {
			continue
		}
		seen[f.UserID] = struct{}{}
	}

	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out, nil
}

func (s *Storage) SaveItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *item
	cp.EncryptedToken = append([]byte(nil), item.EncryptedToken...)
	s.items[item.ID] = cp

	return nil
}

func (s *Storage) ItemByID(_ context.Context, id string) (*models.Item, error) {
	const op = "storage.memory.ItemByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	it.EncryptedToken = append([]byte(nil), it.EncryptedToken...)

	return &it, nil
}

func (s *Storage) SetItemStatus(_ context.Context, id string, status models.ItemStatus, now time.Time) error {
	const op = "storage.memory.SetItemStatus"

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	it.Status = status
	it.UpdatedAt = now
	s.items[id] = it

	return nil
}

func (s *Storage) ClaimWebhook(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[key]; ok {
		return false, nil
	}
	s.webhooks[key] = now

	return true, nil
}

func (s *Storage) ReleaseWebhook(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.webhooks, key)

	return nil
}

func (s *Storage) UpsertTransactions(_ context.Context, itemID string, txs []models.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.transactions[itemID]
	if !ok {
		byID = make(map[string]models.Transaction)
		s.transactions[itemID] = byID
	}
	for _, tx := range txs {
		byID[tx.ID] = tx
	}

	return int64(len(txs)), nil
}

// Transactions возвращает сохранённые транзакции элемента, отсортированные по id.
func (s *Storage) Transactions(itemID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Transaction, 0, len(s.transactions[itemID]))
	for _, tx := range s.transactions[itemID] {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
