package provider

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// ErrDuplicate is returned when a provider ID is registered twice.
var ErrDuplicate = errors.New("provider already registered")

// ErrInvalidRegistration is returned for a registration missing its ID, name
// or capability.
var ErrInvalidRegistration = errors.New("invalid provider registration")

// Registration binds a capability to the identity it is reported under.
type Registration struct {
	Provider Provider
	ID       string // Stable identifier, e.g. "swift"
	Name     string // Display name, e.g. "Swift Freight"
}

// Registry keeps registrations in the order they were added. The quote
// engine reports successful quotes in this order.
// Thread-safe: all methods may be called concurrently.
type Registry struct {
	regs []Registration
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends reg to the registry.
//
// Returns:
//   - ErrInvalidRegistration if ID, Name or Provider is missing
//   - ErrDuplicate if the ID is already registered
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" || reg.Name == "" || reg.Provider == nil {
		return fmt.Errorf("%w: id=%q name=%q", ErrInvalidRegistration, reg.ID, reg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.regs, func(existing Registration) bool { return existing.ID == reg.ID }) {
		return fmt.Errorf("%w: %s", ErrDuplicate, reg.ID)
	}
	r.regs = append(r.regs, reg)
	return nil
}

// All returns a copy of every registration in registration order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.regs)
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.regs)
}
