package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"claimflow/internal/logs"
	"claimflow/internal/models"
)

type ctxKey struct{}

// PrincipalFrom достаёт Principal, положенный Session. Хендлеры читают его
// один раз и дальше передают явно.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(models.Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

type CookieOptions struct {
	Name   string
	Secure bool
}

// Resolver отдаёт актуального Principal по id из токена. Роль берётся из
// справочника, а не из токена, поэтому смена роли действует сразу.
// Ошибка, обёрнутая в ErrInvalidToken, означает "пользователя больше нет".
type Resolver interface {
	Principal(ctx context.Context, userID string) (models.Principal, error)
}

// Session проверяет токен из cookie или Authorization: Bearer.
func Session(iss *Issuer, cookie CookieOptions, users Resolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				if c, err := r.Cookie(cookie.Name); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				models.WriteProblemCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized", "missing session token", nil)
				return
			}
			claimed, err := iss.Parse(token)
			if err != nil {
				models.WriteProblemCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized", err.Error(), nil)
				return
			}
			p, err := users.Principal(r.Context(), claimed.UserID)
			switch {
			case errors.Is(err, ErrInvalidToken):
				models.WriteProblemCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized", err.Error(), nil)
				return
			case err != nil:
				logs.Logger.WithError(err).WithField("user_id", claimed.UserID).Error("resolve session principal")
				models.WriteProblemCode(w, http.StatusInternalServerError, "INTERNAL", "Internal Server Error",
					"unexpected server error", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearer(r *http.Request) string {
	const p = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, p) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, p))
}

func SetCookie(w http.ResponseWriter, o CookieOptions, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter, o CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
