// Package identity carries the verified identity that the gateway injects
// into forwarded requests. Downstream services read it from headers without
// re-verifying the token; only the gateway may set these headers, which is a
// network perimeter guarantee rather than a cryptographic one.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/citygate/internal/common"
)

// Identity is the authenticated principal of a forwarded request.
type Identity struct {
	Username string
	Roles    []string
}

type contextKey struct{}

// FromContext returns the Identity stored by RequireUsername, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Inject overwrites the identity headers on h. Any client supplied values are
// discarded.
func Inject(h http.Header, username string, roles []string) {
	h.Set(common.UsernameHeaderName, username)
	if len(roles) == 0 {
		h.Del(common.RolesHeaderName)
		return
	}
	h.Set(common.RolesHeaderName, strings.Join(roles, ","))
}

// FromHeader reads the identity headers. ok is false when the username header
// is absent or blank.
func FromHeader(h http.Header) (id *Identity, ok bool) {
	username := strings.TrimSpace(h.Get(common.UsernameHeaderName))
	if username == "" {
		return nil, false
	}
	return &Identity{Username: username, Roles: splitRoles(h.Get(common.RolesHeaderName))}, true
}

func splitRoles(v string) []string {
	if v == "" {
		return nil
	}
	var roles []string
	for _, r := range strings.Split(v, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// RequireUsername rejects requests without the verified-identity header with
// 401 and stores the identity in the request context otherwise.
func RequireUsername(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromHeader(r.Header)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing identity"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
	})
}
