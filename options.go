package sponge

import (
	"log/slog"
	"slices"
)

// PanicHandler is called with the recovered value when a listener panics.
type PanicHandler func(h *Handle, e Event, recovered any)

// options configures an EventManager.
type options struct {
	logger       *slog.Logger
	traceSkips   bool
	panicHandler PanicHandler
}

func defaultOptions() options {
	return options{logger: slog.Default()}
}

// Option configures an EventManager.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTraceSkips logs every skipped listener invocation at debug level.
func WithTraceSkips(trace bool) Option {
	return func(o *options) {
		o.traceSkips = trace
	}
}

// WithPanicHandler replaces the default handling of listener panics, which
// logs the panic at error level and continues with the next listener.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.panicHandler = h
	}
}

// listenerConfig holds the per-listener registration settings.
type listenerConfig struct {
	name      string
	filters   []Filter
	order     Order
	events    []Type
	exclude   bool
	cancelled Tristate
}

func defaultListenerConfig() listenerConfig {
	return listenerConfig{order: OrderDefault, cancelled: False}
}

// ListenerOption configures a single listener registration.
type ListenerOption func(*listenerConfig)

// Params sets the filters of the listener parameters following the event,
// one per parameter in order.
func Params(filters ...Filter) ListenerOption {
	return func(c *listenerConfig) {
		c.filters = slices.Clone(filters)
	}
}

// WithOrder sets the position of the listener relative to the others.
// Defaults to OrderDefault.
func WithOrder(o Order) ListenerOption {
	return func(c *listenerConfig) {
		c.order = o
	}
}

// IncludeEvents delivers only events that are an instance of one of types.
func IncludeEvents(types ...Type) ListenerOption {
	return func(c *listenerConfig) {
		c.events = slices.Clone(types)
		c.exclude = false
	}
}

// ExcludeEvents drops events that are an instance of any of types.
func ExcludeEvents(types ...Type) ListenerOption {
	return func(c *listenerConfig) {
		c.events = slices.Clone(types)
		c.exclude = true
	}
}

// WithCancelled selects events by cancellation state. The default False
// skips cancelled events, Undefined delivers all and True only cancelled ones.
func WithCancelled(t Tristate) ListenerOption {
	return func(c *listenerConfig) {
		c.cancelled = t
	}
}

// Named overrides the listener name used in logs and shape names.
func Named(name string) ListenerOption {
	return func(c *listenerConfig) {
		c.name = name
	}
}
