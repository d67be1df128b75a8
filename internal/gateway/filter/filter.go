// Package filter is the gateway's edge authorization step. Every inbound
// request is either let through on an open path, or must carry a bearer token
// that verifies with the shared signing secret. Verified requests are
// forwarded with the identity headers set from the token claims.
package filter

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/citygate/internal/auth"
	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/gateway/rules"
	"github.com/dmitrijs2005/citygate/internal/identity"
	"github.com/dmitrijs2005/citygate/internal/logging"
)

// Verifier validates a raw token. *auth.Issuer satisfies it.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Outcome string

const (
	OutcomeOpen            Outcome = "open"
	OutcomeAllowed         Outcome = "allowed"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeForbidden       Outcome = "forbidden"
)

// Recorder receives one call per authorization decision.
type Recorder interface {
	ObserveDecision(outcome string)
}

type Filter struct {
	verifier Verifier
	rules    atomic.Pointer[rules.Table]
	recorder Recorder
	log      logging.Logger
}

type Option func(*Filter)

func WithRecorder(r Recorder) Option {
	return func(f *Filter) { f.recorder = r }
}

func WithLogger(l logging.Logger) Option {
	return func(f *Filter) { f.log = l }
}

func New(v Verifier, table *rules.Table, opts ...Option) *Filter {
	f := &Filter{verifier: v, log: logging.Nop{}}
	for _, opt := range opts {
		opt(f)
	}
	f.rules.Store(table)
	return f
}

// SetRules replaces the open-path table. Requests already in flight keep
// the table they started with.
func (f *Filter) SetRules(t *rules.Table) {
	f.rules.Store(t)
}

// Authorize decides what happens to r. On OutcomeOpen the request is
// returned unchanged; on OutcomeAllowed a copy carrying the verified identity
// is returned. The other outcomes return a nil request and an error matching
// common.ErrUnauthenticated or common.ErrForbidden.
func (f *Filter) Authorize(r *http.Request) (Outcome, *http.Request, error) {
	if f.rules.Load().IsOpen(r.URL.Path) {
		return OutcomeOpen, r, nil
	}

	header := r.Header.Get(common.AuthorizationHeaderName)
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return OutcomeUnauthenticated, nil, common.ErrUnauthenticated
	}

	claims, err := f.verifier.Verify(strings.TrimPrefix(header, common.BearerPrefix))
	if err != nil {
		return OutcomeForbidden, nil, errors.Join(common.ErrForbidden, err)
	}

	id := &identity.Identity{Username: claims.Username(), Roles: claims.Roles}
	out := r.Clone(identity.NewContext(r.Context(), id))
	identity.Inject(out.Header, id.Username, id.Roles)
	return OutcomeAllowed, out, nil
}

// Middleware runs Authorize ahead of next. Rejections get an empty body
// with 401 or 403.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, fwd, err := f.Authorize(r)
		setDecision(r.Context(), outcome)
		if f.recorder != nil {
			f.recorder.ObserveDecision(string(outcome))
		}

		switch outcome {
		case OutcomeUnauthenticated:
			w.WriteHeader(http.StatusUnauthorized)
			return
		case OutcomeForbidden:
			f.log.Debug(r.Context(), "token rejected", "path", r.URL.Path, "reason", reason(err))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, fwd)
	})
}

func reason(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrInvalidSignature):
		return "signature"
	default:
		return "malformed"
	}
}
