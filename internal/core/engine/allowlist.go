package engine

import (
	"sort"
	"strings"
)

// MethodSet is a fail-closed allow-list of JSON-RPC method names.
type MethodSet map[string]struct{}

// NewMethodSet builds a set from configured names. Blank entries are dropped;
// everything else is kept verbatim so matching stays case-sensitive.
func NewMethodSet(methods []string) MethodSet {
	set := make(MethodSet, len(methods))
	for _, method := range methods {
		if strings.TrimSpace(method) == "" {
			continue
		}
		set[method] = struct{}{}
	}
	return set
}

// IsAllowed reports exact membership. A nil or empty set allows nothing.
func (s MethodSet) IsAllowed(method string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[method]
	return ok
}

// Methods returns the configured names sorted.
func (s MethodSet) Methods() []string {
	methods := make([]string, 0, len(s))
	for method := range s {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
