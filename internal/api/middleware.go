package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ronycse16b/soulcraft-orders/internal/auth"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
)

// adminIDHeader carries the session-resolved admin id. Session issuance and
// validation happen upstream; this service only resolves the identity's
// role and permissions from the identity store.
const adminIDHeader = "X-Admin-Id"

type contextKey string

const actorKey contextKey = "actor"

// AdminDirectory is the identity-store lookup the middleware resolves
// actors through.
type AdminDirectory interface {
	GetAdminUser(ctx context.Context, id int64) (*models.AdminUser, error)
}

// Identity resolves the acting identity from the request and stores it in
// the context as an auth.Actor. Requests with no resolvable identity are
// rejected before reaching any handler.
func Identity(directory AdminDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(adminIDHeader)
			if raw == "" {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}

			user, err := directory.GetAdminUser(r.Context(), id)
			if err != nil {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}

			actor := auth.Actor{
				ID:          user.ID,
				Role:        user.Role,
				Permissions: user.Permissions,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

func actorFrom(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(auth.Actor)
	return actor, ok
}
