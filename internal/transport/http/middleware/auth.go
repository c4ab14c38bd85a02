package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/pkg/log"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/transport/http/apierrors"
)

// HeaderAdminToken — заголовок служебного токена.
const HeaderAdminToken = "X-Admin-Token"

// AccessParser проверяет access-токен пользователя.
type AccessParser interface {
	ParseAccessToken(token string) (*service.AccessClaims, error)
}

type claimsKey struct{}

// BearerToken возвращает токен из "Authorization: Bearer <token>" или "".
func BearerToken(r *http.Request) string {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

// AdminToken пропускает запрос только с верным X-Admin-Token.
// Сравнение выполняется за постоянное время; пустой ожидаемый токен
// закрывает маршруты полностью.
func AdminToken(expected string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAdminToken)
			if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				apierrors.WriteError(w, r, fmt.Errorf("admin token: %w", service.ErrAuthentication))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserAuth требует валидный access-токен и кладёт его claims в контекст.
func UserAuth(p AccessParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				apierrors.WriteError(w, r, fmt.Errorf("bearer: %w", service.ErrAuthentication))
				return
			}

			claims, err := p.ParseAccessToken(tok)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = log.WithAttrs(ctx, slog.String("user_id", claims.UserID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID возвращает id пользователя, установленный UserAuth.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	c, ok := ctx.Value(claimsKey{}).(*service.AccessClaims)
	if !ok || c == nil {
		return uuid.Nil, false
	}
	return c.UserID, true
}
