package rules

import (
	"fmt"
	"strings"
	"sync"
)

// Registry keeps rules in registration order, which is the order the
// dispatcher evaluates them in.
type Registry struct {
	mu     sync.RWMutex
	order  []Rule
	byName map[string]Rule
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Rule)}
}

func (r *Registry) Register(rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(rule.Name())
	if _, ok := r.byName[key]; ok {
		return fmt.Errorf("rule %s: %w", rule.Name(), ErrAlreadyExists)
	}
	r.byName[key] = rule
	r.order = append(r.order, rule)
	return nil
}

// Get looks a rule up by name, ignoring case.
func (r *Registry) Get(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byName[strings.ToLower(name)]
	return rule, ok
}

// Rules returns a snapshot in registration order.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.order...)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, rule := range r.order {
		names = append(names, rule.Name())
	}
	return names
}
