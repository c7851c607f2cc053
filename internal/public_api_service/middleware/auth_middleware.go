package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const ActorContextKey = ContextKey("actor")

// AdminClaims are the claims the admin console puts in its access tokens.
type AdminClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// AuthMiddleware accepts HS256 bearer tokens signed with secret and stores the
// caller as a domain.Actor in the request context.
func AuthMiddleware(secret []byte, logger *slog.Logger) func(next http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			var claims AdminClaims
			if _, err := parser.ParseWithClaims(tokenString, &claims, keyFunc); err != nil {
				level := slog.LevelWarn
				if errors.Is(err, jwt.ErrTokenExpired) {
					level = slog.LevelInfo
				}
				logger.Log(r.Context(), level, "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				logger.WarnContext(r.Context(), "Token has no subject")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			actor := domain.Actor{UserID: claims.Subject, Name: claims.Name}
			if actor.Name == "" {
				actor.Name = actor.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(domain.Actor)
	return actor, ok
}
