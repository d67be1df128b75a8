// Package proxy forwards authorized requests to backend services by path
// prefix.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/citygate/internal/gateway/config"
	"github.com/dmitrijs2005/citygate/internal/logging"
)

// Unmatched is the route label for requests no route accepts.
const Unmatched = "unmatched"

type route struct {
	prefix string
	strip  bool
	proxy  *httputil.ReverseProxy
}

// matches reports whether p falls under the prefix on a segment boundary:
// "/sensors" accepts "/sensors" and "/sensors/1" but not "/sensorsX".
func (rt *route) matches(p string) bool {
	if !strings.HasPrefix(p, rt.prefix) {
		return false
	}
	return len(p) == len(rt.prefix) || strings.HasSuffix(rt.prefix, "/") || p[len(rt.prefix)] == '/'
}

// Table is an immutable set of routes ordered longest prefix first.
type Table struct {
	routes []*route
}

// NewTable builds one reverse proxy per route.
func NewTable(cfgs []config.RouteConfig, transport http.RoundTripper, log logging.Logger) (*Table, error) {
	t := &Table{routes: make([]*route, 0, len(cfgs))}
	for _, c := range cfgs {
		target, err := url.Parse(c.Backend)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", c.Prefix, err)
		}
		t.routes = append(t.routes, newRoute(c, target, transport, log))
	}
	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].prefix) > len(t.routes[j].prefix)
	})
	return t, nil
}

func newRoute(c config.RouteConfig, target *url.URL, transport http.RoundTripper, log logging.Logger) *route {
	rt := &route{prefix: c.Prefix, strip: c.StripPrefix}
	rt.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if rt.strip {
				pr.Out.URL.Path = stripPrefix(pr.In.URL.Path, rt.prefix)
				pr.Out.URL.RawPath = ""
			}
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn(r.Context(), "backend unavailable", "route", rt.prefix, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return rt
}

func stripPrefix(p, prefix string) string {
	rest := strings.TrimPrefix(p, strings.TrimSuffix(prefix, "/"))
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}

func (t *Table) match(p string) *route {
	if t == nil {
		return nil
	}
	for _, rt := range t.routes {
		if rt.matches(p) {
			return rt
		}
	}
	return nil
}

// Router dispatches to the current Table. The table can be swapped while
// requests are being served.
type Router struct {
	table atomic.Pointer[Table]
}

func NewRouter(t *Table) *Router {
	r := &Router{}
	r.table.Store(t)
	return r
}

func (r *Router) SetTable(t *Table) {
	r.table.Store(t)
}

// RouteName is the prefix of the route serving p, or Unmatched.
func (r *Router) RouteName(p string) string {
	if rt := r.table.Load().match(p); rt != nil {
		return rt.prefix
	}
	return Unmatched
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt := r.table.Load().match(req.URL.Path)
	if rt == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no route"}`))
		return
	}
	rt.proxy.ServeHTTP(w, req)
}
