package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docadmin/internal/api"
	"github.com/cloo-solutions/docadmin/internal/domain"
)

type contextKey string

// ActorIDKey holds the id of the admin user behind the request's API key
const ActorIDKey contextKey = "actor_id"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			actorID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrNotAdmin):
					api.Error(w, http.StatusForbidden, "caller is not an administrator")
				case errors.Is(err, domain.ErrAPIKeyRevoked):
					api.Error(w, http.StatusUnauthorized, "api key has been revoked")
				default:
					api.Error(w, http.StatusUnauthorized, "invalid api key")
				}
				return
			}

			if slot, ok := r.Context().Value(actorSlotKey).(*actorSlot); ok {
				slot.id = actorID
			}
			ctx := context.WithValue(r.Context(), ActorIDKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActorID returns the authenticated admin id, or "" outside APIKeyAuth.
func GetActorID(ctx context.Context) string {
	actorID, _ := ctx.Value(ActorIDKey).(string)
	return actorID
}
