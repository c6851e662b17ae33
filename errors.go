package sponge

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownContextKey is matched by every *UnknownContextKeyError.
	ErrUnknownContextKey = errors.New("sponge: unknown context key")

	// ErrInvalidListener indicates a listener func with an unusable signature.
	ErrInvalidListener = errors.New("sponge: invalid listener")

	// ErrFilterMismatch indicates a filter that cannot serve its parameter.
	ErrFilterMismatch = errors.New("sponge: filter does not fit parameter")

	// ErrUnknownGetter indicates a getter filter naming a missing event method.
	ErrUnknownGetter = errors.New("sponge: unknown getter")

	// ErrVerify indicates an emitted program that failed verification.
	ErrVerify = errors.New("sponge: program verification failed")

	// ErrDuplicateEntry indicates a registry id that is already taken.
	ErrDuplicateEntry = errors.New("sponge: duplicate registry entry")

	// ErrRegistryFull indicates that no more context keys can be registered.
	ErrRegistryFull = errors.New("sponge: registry full")
)

// UnknownContextKeyError is returned when a context value filter names a key
// that is not registered. The listener is not installed.
type UnknownContextKeyError struct {
	Name string
}

func (e *UnknownContextKeyError) Error() string {
	return fmt.Sprintf("sponge: the %s context key specified by the context value filter was not found", e.Name)
}

// Is makes errors.Is(err, ErrUnknownContextKey) match.
func (e *UnknownContextKeyError) Is(target error) bool {
	return target == ErrUnknownContextKey
}

// ListenerError describes a failed listener registration.
type ListenerError struct {
	Plugin   string
	Listener string
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("sponge: register listener %s of plugin %s: %v", e.Listener, e.Plugin, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
