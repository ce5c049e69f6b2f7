package loader

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"
)

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		scripts: make(map[string]*script),
		m:       &sync.RWMutex{},
	}
}

// Registry is the set of references currently active in the environment
type Registry struct {
	scripts map[string]*script
	m       *sync.RWMutex
}

type script struct {
	resource string
	source   string
	body     []byte
}

func (r *Registry) add(ref Reference, body []byte) {
	r.m.Lock()
	defer r.m.Unlock()
	r.scripts[ref.ID] = &script{
		resource: ref.Resource,
		source:   ref.Source.URL,
		body:     body,
	}
}

func (r *Registry) remove(id string) {
	r.m.Lock()
	defer r.m.Unlock()
	delete(r.scripts, id)
}

// Len returns the number of active references
func (r *Registry) Len() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return len(r.scripts)
}

// Defines reports whether an active reference of resource defines symbol.
// A script defines a symbol when it assigns it (g.Chart = ...) or declares it
// with var, let, const, class or function. Bodies that look like an HTML
// document never define anything, CDNs serve those for errors with a 200.
func (r *Registry) Defines(resource, symbol string) bool {
	return r.defines(resource, symbolPattern(symbol))
}

func (r *Registry) defines(resource string, pattern *regexp.Regexp) bool {
	r.m.RLock()
	defer r.m.RUnlock()
	for _, s := range r.scripts {
		if s.resource != resource || isMarkup(s.body) {
			continue
		}
		if pattern.Match(s.body) {
			return true
		}
	}
	return false
}

// symbolPattern matches an assignment to or a declaration of symbol
func symbolPattern(symbol string) *regexp.Regexp {
	sym := regexp.QuoteMeta(symbol)
	return regexp.MustCompile(fmt.Sprintf(
		`(?:^|[^\w$])%[1]s\s*=(?:[^=]|$)|\b(?:var|let|const|class|function)\s+%[1]s(?:[^\w$]|$)`,
		sym,
	))
}

func isMarkup(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

// SymbolPresent returns a Present check for a resource loaded into registry
// whose entry point is symbol
func SymbolPresent(registry *Registry, resource, symbol string) func() bool {
	pattern := symbolPattern(symbol)
	return func() bool {
		return registry.defines(resource, pattern)
	}
}
