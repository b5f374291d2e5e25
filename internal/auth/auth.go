// Package auth resolves bearer tokens into an explicit caller context.
// The context is plain data passed through context.Context; core code
// never reads ambient globals for identity.
package auth

import (
	"context"
	"net/http"
	"strings"

	"dinedeals-api/internal/database"
	"dinedeals-api/internal/models"
)

// CallerContext identifies the authenticated caller of an RPC method.
type CallerContext struct {
	UserID       string
	Role         models.Role
	RestaurantID string
}

// IsRestaurant reports whether the caller holds the restaurant role.
func (c CallerContext) IsRestaurant() bool {
	return c.Role == models.RoleRestaurant
}

type ctxKey struct{}

// WithCaller attaches a caller context.
func WithCaller(ctx context.Context, caller CallerContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, caller)
}

// CallerFrom extracts the caller context, if the request authenticated.
func CallerFrom(ctx context.Context) (CallerContext, bool) {
	caller, ok := ctx.Value(ctxKey{}).(CallerContext)
	return caller, ok
}

// Middleware resolves an Authorization bearer token against the session
// store and attaches the caller to the request context. Requests
// without a token pass through unauthenticated; it is the handler's job
// to reject methods that require identity.
func Middleware(db *database.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token != "" {
				user, err := db.GetSessionUser(r.Context(), token)
				if err == nil && user != nil {
					caller := CallerContext{
						UserID:       user.ID,
						Role:         user.Role,
						RestaurantID: user.RestaurantID,
					}
					r = r.WithContext(WithCaller(r.Context(), caller))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
