// Package platform manages the source-control platform implementations the
// inventory can run against.
package platform

import (
	"fmt"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
)

// Deps is everything a platform needs to operate: credentials, the API
// endpoint, and the tunable heuristics shared with classification.
type Deps struct {
	Rotator        *credential.Rotator
	BaseURL        string
	Heuristics     domain.Heuristics
	AdminDetection domain.AdminDetection
	Clock          domain.Clock
}

// Factory is a constructor function that creates a Platform from its deps.
type Factory func(deps Deps) domain.Platform

// Registry manages all registered platform implementations.
type Registry struct {
	platforms map[string]Factory
}

// NewRegistry creates an empty platform registry.
func NewRegistry() *Registry {
	return &Registry{
		platforms: make(map[string]Factory),
	}
}

// Register adds a platform factory under the given name (e.g. "azuredevops").
func (r *Registry) Register(name string, factory Factory) {
	r.platforms[name] = factory
}

// Get returns a configured platform instance for the given name.
func (r *Registry) Get(name string, deps Deps) (domain.Platform, error) {
	factory, ok := r.platforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown platform type: %q", name)
	}
	return factory(deps), nil
}

// Names returns the list of registered platform names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	return names
}
