package sponge

import (
	"github.com/hashicorp/go-multierror"
)

// Bundle groups the listeners of one plugin. Bundles are registered with a
// Builder or directly with EventManager.RegisterBundle.
type Bundle struct {
	name string

	// listeners holds listener registrations in declaration order
	listeners []listenerRegistration
}

// listenerRegistration holds a listener registration.
type listenerRegistration struct {
	fn   any
	opts []ListenerOption
}

// NewBundle creates a new bundle for the plugin with the given id.
func NewBundle(plugin string) *Bundle {
	return &Bundle{name: plugin}
}

// Name returns the plugin id.
func (b *Bundle) Name() string {
	return b.name
}

// Listener adds a listener to the bundle.
//
//	bund := sponge.NewBundle("protect").
//	    Listener(onBreak, sponge.Params(sponge.ContextValue(sponge.KeyOwner))).
//	    Listener(onPlace, sponge.WithOrder(sponge.OrderEarly))
func (b *Bundle) Listener(fn any, opts ...ListenerOption) *Bundle {
	b.listeners = append(b.listeners, listenerRegistration{fn: fn, opts: opts})
	return b
}

// Len returns the number of listeners in the bundle.
func (b *Bundle) Len() int {
	return len(b.listeners)
}

// RegisterBundle registers every listener of b. A failing listener does not
// stop the others; all failures are returned together as a
// *multierror.Error of *ListenerError.
func (m *EventManager) RegisterBundle(b *Bundle) ([]*Handle, error) {
	var (
		handles []*Handle
		result  *multierror.Error
	)
	for _, reg := range b.listeners {
		h, err := m.Register(b.name, reg.fn, reg.opts...)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		handles = append(handles, h)
	}
	return handles, result.ErrorOrNil()
}
