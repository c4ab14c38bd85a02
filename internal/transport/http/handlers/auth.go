package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/transport/http/apierrors"
	"github.com/pribylovaa/flexibill/internal/transport/http/middleware"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	// AccessToken — необязательная привязка: истёкший access-токен той же сессии.
	AccessToken string `json:"access_token,omitempty"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type sessionResponse struct {
	tokenResponse
	UserID   uuid.UUID `json:"user_id"`
	FamilyID uuid.UUID `json:"family_id"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type issueRequest struct {
	UserID string `json:"user_id"`
}

type validateResponse struct {
	Status    string     `json:"status"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	FamilyID  *uuid.UUID `json:"family_id,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toTokenResponse(p models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// Refresh — POST /api/auth/refresh.
//
// Любой неуспех ротации (неизвестный, истёкший, отозванный или повторно
// предъявленный токен) отдаётся одинаковым 401 unauthenticated.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeStrict(w, r, &req); err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("refresh: %w", service.ErrAuthentication))
		return
	}

	access := req.AccessToken
	if access == "" {
		access = middleware.BearerToken(r)
	}

	var (
		res service.RotationResult
		err error
	)
	if access != "" {
		res, err = h.Tokens.RotateWithAccess(r.Context(), req.RefreshToken, access)
	} else {
		res, err = h.Tokens.Rotate(r.Context(), req.RefreshToken)
	}
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if err := res.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toTokenResponse(res.Session.Tokens))
}

// Logout — POST /api/auth/logout. Повторный logout той же сессии идемпотентен.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeStrict(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	status, err := h.Tokens.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	switch status {
	case service.StatusValid, service.StatusExpired, service.StatusRevoked:
		w.WriteHeader(http.StatusNoContent)
	default:
		apierrors.WriteError(w, r, status.Err())
	}
}

// IssueSession — POST /api/internal/sessions (admin).
// Вызывается внешним сервисом входа после успешной аутентификации пользователя.
func (h *Handlers) IssueSession(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeStrict(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("user_id: %w", service.ErrInvalidArgument))
		return
	}

	sess, err := h.Tokens.Issue(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, sessionResponse{
		tokenResponse: toTokenResponse(sess.Tokens),
		UserID:        sess.UserID,
		FamilyID:      sess.FamilyID,
	})
}

// ValidateToken — POST /api/internal/tokens/validate (admin).
// Только чтение: состояние семейства не меняется.
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeStrict(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.Tokens.Validate(r.Context(), req.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := validateResponse{Status: res.Status.String()}
	if md := res.Metadata; md != nil {
		out.UserID, out.FamilyID = &md.UserID, &md.FamilyID
		out.IssuedAt, out.ExpiresAt = &md.IssuedAt, &md.ExpiresAt
	}

	writeJSON(w, http.StatusOK, out)
}
