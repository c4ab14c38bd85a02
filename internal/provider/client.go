// provider — HTTP-клиент API провайдера финансовых данных (Plaid-совместимый).
//
// Клиент не повторяет запросы и не держит состояние о доступности API:
// этим занимается gateway. Ошибки API возвращаются как *Error, ошибки
// транспорта — как есть, чтобы retry.IsTransient мог их классифицировать.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
)

const (
	// maxBodyBytes — предел чтения тела ответа.
	maxBodyBytes = 4 << 20
	// transactionsPage — размер страницы /transactions/get (максимум API — 500).
	transactionsPage = 500
	dateLayout       = "2006-01-02"
)

// Client вызывает API провайдера с аутентификацией client_id/secret в теле запроса.
type Client struct {
	http       *http.Client
	baseURL    string
	clientID   string
	secret     string
	webhookURL string
}

// Option настраивает Client.
type Option func(*Client)

// WithWebhookURL задаёт адрес, на который провайдер будет слать webhook
// для созданных link-токенов.
func WithWebhookURL(u string) Option {
	return func(c *Client) { c.webhookURL = u }
}

// New создаёт клиента. HTTP-клиент настраивается извне (таймауты, прокси).
func New(client *http.Client, baseURL, clientID, secret string, opts ...Option) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		http:     client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExchangeResult — результат обмена public token.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// ItemInfo — сведения о связанном доступе.
type ItemInfo struct {
	ItemID        string `json:"item_id"`
	InstitutionID string `json:"institution_id"`
	Webhook       string `json:"webhook"`
	Error         *Error `json:"error"`
}

// CreateLinkToken создаёт link-токен, с которым клиентское приложение
// открывает форму привязки банка.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	const op = "provider.CreateLinkToken"

	req := map[string]any{
		"user":          map[string]string{"client_user_id": userID},
		"client_name":   "FlexiBill",
		"products":      []string{"auth", "transactions"},
		"country_codes": []string{"US"},
		"language":      "en",
	}
	if c.webhookURL != "" {
		req["webhook"] = c.webhookURL
	}

	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", req, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if resp.LinkToken == "" {
		return "", fmt.Errorf("%s: %w", op, errEmptyResponse)
	}

	return resp.LinkToken, nil
}

// ExchangePublicToken обменивает одноразовый public token на постоянный access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	const op = "provider.ExchangePublicToken"

	var resp ExchangeResult
	if err := c.post(ctx, "/item/public_token/exchange", map[string]any{"public_token": publicToken}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.AccessToken == "" || resp.ItemID == "" {
		return nil, fmt.Errorf("%s: %w", op, errEmptyResponse)
	}

	return &resp, nil
}

// GetItem возвращает сведения о связанном доступе.
func (c *Client) GetItem(ctx context.Context, accessToken string) (*ItemInfo, error) {
	const op = "provider.GetItem"

	var resp struct {
		Item ItemInfo `json:"item"`
	}
	if err := c.post(ctx, "/item/get", map[string]any{"access_token": accessToken}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &resp.Item, nil
}

type wireAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Mask      string `json:"mask"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Balances  struct {
		Available *float64 `json:"available"`
		Current   *float64 `json:"current"`
		Currency  string   `json:"iso_currency_code"`
	} `json:"balances"`
}

// GetAccounts возвращает счета связанного доступа.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error) {
	const op = "provider.GetAccounts"

	var resp struct {
		Accounts []wireAccount `json:"accounts"`
	}
	if err := c.post(ctx, "/accounts/get", map[string]any{"access_token": accessToken}, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		acc := models.Account{
			ID:       a.AccountID,
			Name:     a.Name,
			Mask:     a.Mask,
			Type:     a.Type,
			Subtype:  a.Subtype,
			Currency: a.Balances.Currency,
		}
		if a.Balances.Current != nil {
			acc.CurrentBalance = *a.Balances.Current
		}
		if a.Balances.Available != nil {
			acc.AvailableBalance = *a.Balances.Available
		}
		out = append(out, acc)
	}

	return out, nil
}

// GetTransactions возвращает транзакции за период [start, end], проходя все страницы.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error) {
	const op = "provider.GetTransactions"

	var out []models.Transaction
	for {
		req := map[string]any{
			"access_token": accessToken,
			"start_date":   start.UTC().Format(dateLayout),
			"end_date":     end.UTC().Format(dateLayout),
			"options": map[string]int{
				"count":  transactionsPage,
				"offset": len(out),
			},
		}

		var resp struct {
			Transactions []models.Transaction `json:"transactions"`
			Total        int                  `json:"total_transactions"`
		}
		if err := c.post(ctx, "/transactions/get", req, &resp); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, resp.Transactions...)
		if len(resp.Transactions) == 0 || len(out) >= resp.Total {
			return out, nil
		}
	}
}

// post выполняет JSON-запрос к API и декодирует ответ в dst.
func (c *Client) post(ctx context.Context, path string, body map[string]any, dst any) error {
	lg := log.From(ctx)

	body["client_id"] = c.clientID
	body["secret"] = c.secret

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("new_request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		lg.Warn("provider_http_error",
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &Error{Status: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Code == "" {
			apiErr.Type = "API_ERROR"
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		lg.Warn("provider_api_error",
			slog.String("path", path),
			slog.Int("status", apiErr.Status),
			slog.String("code", apiErr.Code),
			slog.String("request_id", apiErr.RequestID),
		)
		return apiErr
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
