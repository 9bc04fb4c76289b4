// Package identity carries the authenticated user through a request context.
// Authentication itself happens upstream; this package only reads the result.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrForbidden       = errors.New("staff only")
)

const (
	HeaderUser = "X-User-Email"
	HeaderRole = "X-User-Role"
	RoleStaff  = "staff"
)

// User is an opaque user key, usually an email, plus the staff flag.
type User struct {
	Key   string
	Staff bool
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.Key != ""
}

// Require returns the current user or ErrUnauthenticated.
func Require(ctx context.Context) (User, error) {
	u, ok := FromContext(ctx)
	if !ok {
		return User{}, ErrUnauthenticated
	}
	return u, nil
}

func RequireStaff(ctx context.Context) (User, error) {
	u, err := Require(ctx)
	if err != nil {
		return User{}, err
	}
	if !u.Staff {
		return User{}, ErrForbidden
	}
	return u, nil
}

// Headers is middleware that trusts the identity headers set by the gateway.
func Headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUser)))
		if key != "" {
			staff := strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), RoleStaff)
			r = r.WithContext(WithUser(r.Context(), User{Key: key, Staff: staff}))
		}
		next.ServeHTTP(w, r)
	})
}
