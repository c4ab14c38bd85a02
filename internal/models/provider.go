package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus — состояние связи с банком у провайдера.
type ItemStatus string

const (
	ItemActive            ItemStatus = "active"
	ItemLoginRequired     ItemStatus = "login_required"
	ItemPendingExpiration ItemStatus = "pending_expiration"
	ItemRevoked           ItemStatus = "revoked"
)

// Item — связанный через провайдера банковский доступ пользователя.
// AccessToken хранится только в зашифрованном виде (EncryptedToken).
type Item struct {
	ID             string
	UserID         uuid.UUID
	InstitutionID  string
	EncryptedToken []byte
	Status         ItemStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Account — счёт в банке, полученный от провайдера.
type Account struct {
	ID               string  `json:"account_id"`
	Name             string  `json:"name"`
	Mask             string  `json:"mask"`
	Type             string  `json:"type"`
	Subtype          string  `json:"subtype"`
	CurrentBalance   float64 `json:"current_balance"`
	AvailableBalance float64 `json:"available_balance"`
	Currency         string  `json:"iso_currency_code"`
}

// Transaction — операция по счёту, полученная от провайдера.
type Transaction struct {
	ID        string  `json:"transaction_id"`
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"iso_currency_code"`
	// Date — дата операции в формате YYYY-MM-DD, как её отдаёт провайдер.
	Date     string `json:"date"`
	Name     string `json:"name"`
	Merchant string `json:"merchant_name"`
	Pending  bool   `json:"pending"`
}

// WebhookEvent — разобранное push-событие провайдера.
type WebhookEvent struct {
	Type            string `json:"webhook_type"`
	Code            string `json:"webhook_code"`
	ItemID          string `json:"item_id"`
	NewTransactions int    `json:"new_transactions"`
	Error           *struct {
		Code    string `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error,omitempty"`
}
