package sponge

import (
	"github.com/hashicorp/go-multierror"
)

// Builder configures an EventManager before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	registry *Registry
	keys     []keyRegistration
	options  []Option
	bundles  []*Bundle
}

type keyRegistration struct {
	name    string
	allowed Type
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Registry sets the registry. Defaults to NewDefaultRegistry().
func (b *Builder) Registry(r *Registry) *Builder {
	b.registry = r
	return b
}

// ContextKey registers an additional context key before any listener is
// compiled.
func (b *Builder) ContextKey(name string, allowed Type) *Builder {
	b.keys = append(b.keys, keyRegistration{name: name, allowed: allowed})
	return b
}

// Option adds manager options.
func (b *Builder) Option(opts ...Option) *Builder {
	b.options = append(b.options, opts...)
	return b
}

// Bundle adds a bundle to the builder.
func (b *Builder) Bundle(bundle *Bundle) *Builder {
	b.bundles = append(b.bundles, bundle)
	return b
}

// Init creates the EventManager and registers all bundles.
//
// Listeners that fail to register are left out; their errors are collected
// into the returned *multierror.Error. The manager is returned even then and
// dispatches to every listener that registered.
func (b *Builder) Init() (*EventManager, error) {
	r := b.registry
	if r == nil {
		r = NewDefaultRegistry()
	}

	var result *multierror.Error
	for _, k := range b.keys {
		if _, err := RegisterContextKey(r, k.name, k.allowed); err != nil {
			result = multierror.Append(result, err)
		}
	}

	m := NewEventManager(r, b.options...)
	for _, bundle := range b.bundles {
		if _, err := m.RegisterBundle(bundle); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return m, result.ErrorOrNil()
}
