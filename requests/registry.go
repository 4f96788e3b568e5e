package requests

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/brettbedarf/sfm"
)

// Decoder builds a core request from an HTTP request whose form has already
// been parsed.
type Decoder func(r *http.Request) (*sfm.Request, error)

// Route is the HTTP method a verb is served on and its decoder.
type Route struct {
	Verb   sfm.Verb
	Method string
	Decode Decoder
}

// Registry maps wire verbs to routes. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	routes map[sfm.Verb]Route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[sfm.Verb]Route)}
}

// Register ties a decoder to a verb. The first registration for a verb wins.
func (reg *Registry) Register(verb sfm.Verb, method string, dec Decoder) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.routes[verb]; ok {
		return
	}
	reg.routes[verb] = Route{Verb: verb, Method: method, Decode: dec}
}

// Route picks the route for a raw verb from the URL. Unknown or unregistered
// verbs fail with NotFound.
func (reg *Registry) Route(raw string) (Route, error) {
	verb, err := sfm.ParseVerb(raw)
	if err != nil {
		return Route{}, sfm.NewError(sfm.KindNotFound, err)
	}
	reg.mu.RLock()
	route, ok := reg.routes[verb]
	reg.mu.RUnlock()
	if !ok {
		return Route{}, sfm.NewError(sfm.KindNotFound, fmt.Errorf("no route for %q", verb))
	}
	return route, nil
}

// Verbs returns the registered verbs.
func (reg *Registry) Verbs() []sfm.Verb {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	verbs := make([]sfm.Verb, 0, len(reg.routes))
	for v := range reg.routes {
		verbs = append(verbs, v)
	}
	return verbs
}
