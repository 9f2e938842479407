// Package auth implements the bearer-token gate for the catalogd backend.
// Only the presence and shape of the Authorization header are checked;
// token content is not verified.
package auth

import (
	"context"
	"net/http"
	"strings"

	catalog "github.com/okozhin/catalogd/internal"
)

const scheme = "Bearer "

// Bearer rejects requests whose Authorization header is absent or not of
// the form "Bearer <token>". It is stateless and safe for concurrent use.
type Bearer struct{}

// NewBearer returns a Bearer gate.
func NewBearer() *Bearer { return &Bearer{} }

var _ catalog.Authenticator = (*Bearer)(nil)

// Authenticate checks the Authorization header shape. A missing header, a
// wrong scheme, or an empty token all return ErrUnauthorized. No side
// effects on failure.
func (b *Bearer) Authenticate(_ context.Context, r *http.Request) error {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return catalog.ErrUnauthorized
	}
	token := strings.TrimPrefix(raw, scheme)
	if token == raw || token == "" {
		return catalog.ErrUnauthorized
	}
	return nil
}
