package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/transport/http/apierrors"
	"github.com/pribylovaa/flexibill/internal/transport/http/middleware"
)

type linkItemRequest struct {
	PublicToken string `json:"public_token"`
}

type itemResponse struct {
	ItemID        string    `json:"item_id"`
	InstitutionID string    `json:"institution_id,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// WebhookReceive — POST /api/webhooks/provider.
//
// Ответ 200 подтверждает доставку (в т.ч. дубликат). Ошибка обработки отдаётся
// 5xx, чтобы провайдер повторил доставку.
func (h *Handlers) WebhookReceive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("read body: %w", service.ErrInvalidArgument))
		return
	}

	outcome, err := h.Webhooks.Handle(r.Context(), payload)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// LinkToken — POST /api/items/link-token (пользователь).
func (h *Handlers) LinkToken(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrAuthentication)
		return
	}

	tok, err := h.Items.LinkToken(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"link_token": tok})
}

// LinkItem — POST /api/items (пользователь): обмен public token на доступ к банку.
func (h *Handlers) LinkItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrAuthentication)
		return
	}

	var req linkItemRequest
	if err := decodeStrict(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	item, err := h.Items.LinkItem(r.Context(), uid, req.PublicToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// Accounts — GET /api/items/{id}/accounts (пользователь).
// При открытом автомате отдаются последние закэшированные данные.
func (h *Handlers) Accounts(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrAuthentication)
		return
	}

	accounts, err := h.Items.Accounts(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func toItemResponse(it *models.Item) itemResponse {
	return itemResponse{
		ItemID:        it.ID,
		InstitutionID: it.InstitutionID,
		Status:        string(it.Status),
		CreatedAt:     it.CreatedAt,
	}
}
