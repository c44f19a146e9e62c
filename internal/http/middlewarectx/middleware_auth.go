// Package middlewarectx содержит HTTP middleware: проверку JWT, определение
// владельца попытки оформления и ограничение частоты запросов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ идентификатора пользователя в контексте.
	UserUID Key = "user_uid"
	// Email ключ e-mail пользователя в контексте.
	Email Key = "email"
)

// TokenParser проверяет JWT и возвращает его claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// RequireJWT пропускает запрос только с валидным токеном. Без токена отвечает 401
// и адресом страницы входа.
func RequireJWT(parser TokenParser, signInURL string, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(parser, signInURL, true, log)
}

// OptionalJWT кладет пользователя в контекст, если токен передан, и пропускает
// анонимные запросы. Переданный, но невалидный токен дает 401.
func OptionalJWT(parser TokenParser, signInURL string, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(parser, signInURL, false, log)
}

func jwtMiddleware(parser TokenParser, signInURL string, required bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWT"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				unauthorized(w, r, "missing or invalid authorization header", signInURL)
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				unauthorized(w, r, "invalid or expired token", signInURL)
				return
			}

			ctx := context.WithValue(r.Context(), UserUID, claims.UserUID())
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg, signInURL string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.ErrorWithData(msg, map[string]string{"redirect_url": signInURL}))
}

// UserFromContext возвращает пользователя, положенного JWT middleware.
func UserFromContext(ctx context.Context) (userUID, email string) {
	userUID, _ = ctx.Value(UserUID).(string)
	email, _ = ctx.Value(Email).(string)
	return userUID, email
}
