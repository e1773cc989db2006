package registry

import (
	"errors"
	"sync"

	"github.com/NethermindEth/masp/agent"
)

// ErrDuplicateName is returned when registering a name that is already taken.
var ErrDuplicateName = errors.New("agent name already exists")

// Registry holds the live agents keyed by name, preserving insertion order
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{agents: make(map[string]*agent.Agent)}
}

// Register stores an agent in the registry
func (r *Registry) Register(a *agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.Name]; exists {
		return ErrDuplicateName
	}
	r.agents[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

// Remove deletes the named agent and reports whether it existed
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return false
	}
	delete(r.agents, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the named agent
func (r *Registry) Get(name string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// All returns every agent in registration order
func (r *Registry) All() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*agent.Agent, 0, len(r.order))
	for _, name := range r.order {
		agents = append(agents, r.agents[name])
	}
	return agents
}

// Len returns the number of registered agents
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
