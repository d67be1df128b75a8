// Package rules decides which request paths bypass token verification. The
// decision is a declarative table of exact and prefix rules, kept apart from
// the verification logic.
package rules

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
)

type Rule struct {
	Path  string    `yaml:"path"`
	Match MatchKind `yaml:"match"`
}

// DefaultOpenPaths are the login and registration endpoints, with and
// without the /api prefix.
func DefaultOpenPaths() []Rule {
	return []Rule{
		{Path: "/api/auth/login", Match: MatchExact},
		{Path: "/api/auth/register", Match: MatchExact},
		{Path: "/auth/login", Match: MatchExact},
		{Path: "/auth/register", Match: MatchExact},
	}
}

// Table is immutable once built and safe for concurrent use.
type Table struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewTable validates rules and builds a lookup table. An empty match kind
// means exact.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{exact: make(map[string]struct{}, len(rules))}

	for i, r := range rules {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("open path %d: %q must start with /", i, r.Path)
		}
		switch r.Match {
		case MatchExact, "":
			t.exact[r.Path] = struct{}{}
		case MatchPrefix:
			t.prefixes = append(t.prefixes, r.Path)
		default:
			return nil, fmt.Errorf("open path %d: unknown match %q", i, r.Match)
		}
	}

	sort.Slice(t.prefixes, func(i, j int) bool { return len(t.prefixes[i]) > len(t.prefixes[j]) })
	return t, nil
}

// IsOpen reports whether p may be forwarded without a token. Paths that are
// not in canonical form (dot segments, duplicate slashes) are never open.
func (t *Table) IsOpen(p string) bool {
	if t == nil || p == "" || p != canonical(p) {
		return false
	}
	if _, ok := t.exact[p]; ok {
		return true
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Len is the number of rules in the table.
func (t *Table) Len() int {
	return len(t.exact) + len(t.prefixes)
}

func canonical(p string) string {
	c := path.Clean(p)
	if strings.HasSuffix(p, "/") && c != "/" {
		c += "/"
	}
	return c
}
