package resolve

import (
	"os"
	"sort"
	"strings"
)

// Context supplies values for placeholder names. Implementations are
// read-only once constructed.
type Context interface {
	Lookup(name string) (string, bool)
}

// Map is a Context backed by a plain map.
type Map map[string]string

// Lookup implements Context.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Keys returns the variable names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Env snapshots the process environment. Later changes to the environment
// are not observed.
func Env() Map {
	return FromEnviron(os.Environ())
}

// FromEnviron builds a Map from KEY=VALUE pairs as returned by os.Environ.
func FromEnviron(environ []string) Map {
	m := make(Map, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// Layered consults each Context in order and returns the first hit.
type Layered []Context

// Lookup implements Context.
func (l Layered) Lookup(name string) (string, bool) {
	for _, c := range l {
		if c == nil {
			continue
		}
		if v, ok := c.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}
