package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/transport/http/apierrors"
)

const (
	defaultIncidentsWindow = 24 * time.Hour
	defaultIncidentsLimit  = 100
	maxIncidentsLimit      = 1000
)

type revokeAllResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	RevokedTokens int64     `json:"revoked_tokens"`
}

type breakerView struct {
	Name             string     `json:"name"`
	State            string     `json:"state"`
	Failures         int        `json:"failures"`
	Successes        int        `json:"successes"`
	LastFailure      *time.Time `json:"last_failure,omitempty"`
	FailureThreshold int        `json:"failure_threshold"`
	ResetTimeoutMS   int64      `json:"reset_timeout_ms"`
	SuccessThreshold int        `json:"success_threshold"`
}

type incidentView struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	UserID    uuid.UUID  `json:"user_id"`
	FamilyID  *uuid.UUID `json:"family_id,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RevokeAll — POST /api/admin/users/{id}/revoke-all.
func (h *Handlers) RevokeAll(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("user id: %w", service.ErrInvalidArgument))
		return
	}

	n, err := h.Cleanup.RevokeAllUserTokens(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, revokeAllResponse{UserID: uid, RevokedTokens: n})
}

// ListBreakers — GET /api/admin/breakers.
func (h *Handlers) ListBreakers(w http.ResponseWriter, r *http.Request) {
	snaps := h.Breakers.Status()

	out := make([]breakerView, 0, len(snaps))
	for _, s := range snaps {
		v := breakerView{
			Name:             s.Name,
			State:            s.State.String(),
			Failures:         s.Failures,
			Successes:        s.Successes,
			FailureThreshold: s.FailureThreshold,
			ResetTimeoutMS:   s.ResetTimeout.Milliseconds(),
			SuccessThreshold: s.SuccessThreshold,
		}
		if !s.LastFailure.IsZero() {
			lf := s.LastFailure
			v.LastFailure = &lf
		}
		out = append(out, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{"breakers": out})
}

// ResetBreakers — POST /api/admin/breakers/reset[?name=...].
// Без name сбрасываются все автоматы.
func (h *Handlers) ResetBreakers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	if name == "" {
		h.Breakers.ResetAll()
	} else {
		b, ok := h.Breakers.Get(name)
		if !ok {
			apierrors.WriteError(w, r, fmt.Errorf("breaker %q: %w", name, service.ErrNotFound))
			return
		}
		b.Reset()
	}

	log.From(r.Context()).Info("breakers_reset", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// Incidents — GET /api/admin/security/incidents?since=RFC3339&limit=N.
// По умолчанию — последние сутки.
func (h *Handlers) Incidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since := time.Now().Add(-defaultIncidentsWindow)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierrors.WriteError(w, r, fmt.Errorf("since: %w", service.ErrInvalidArgument))
			return
		}
		since = t
	}

	limit := defaultIncidentsLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxIncidentsLimit {
			apierrors.WriteError(w, r, fmt.Errorf("limit: %w", service.ErrInvalidArgument))
			return
		}
		limit = n
	}

	list, err := h.Cleanup.Incidents(r.Context(), since, limit)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]incidentView, 0, len(list))
	for _, in := range list {
		v := incidentView{
			ID:        in.ID,
			Kind:      string(in.Kind),
			UserID:    in.UserID,
			Detail:    in.Detail,
			CreatedAt: in.CreatedAt,
		}
		if in.FamilyID != uuid.Nil {
			fid := in.FamilyID
			v.FamilyID = &fid
		}
		out = append(out, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{"incidents": out})
}

// openBreakers — имена автоматов в состоянии Open.
func openBreakers(reg *breaker.Registry) []string {
	var out []string
	for _, s := range reg.Status() {
		if s.State == breaker.Open {
			out = append(out, s.Name)
		}
	}
	return out
}
