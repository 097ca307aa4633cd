// Package identity carries the authenticated customer through a request.
//
// Tokens are issued by the account service. The edge gateway verifies them and
// forwards the customer as X-User-ID / X-User-Email; internal services only read
// those headers.
package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

type contextKey struct{}

func WithCustomer(ctx context.Context, c domain.Customer) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (domain.Customer, bool) {
	c, ok := ctx.Value(contextKey{}).(domain.Customer)
	return c, ok
}

// Middleware rejects requests that arrive without a forwarded customer.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderUserID)
		if id == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		c := domain.Customer{ID: id, Email: r.Header.Get(HeaderUserEmail)}
		next.ServeHTTP(w, r.WithContext(WithCustomer(r.Context(), c)))
	})
}
