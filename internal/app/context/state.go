package appctx

import (
	"context"
	"errors"
	"fmt"
)

// ErrStateMissing is returned when a state key has no value.
var ErrStateMissing = errors.New("appctx: state key not set")

// ErrTypeMismatch is returned when a state value's type does not match the
// requested type T. This indicates a programming error where the same key
// is used with different types.
var ErrTypeMismatch = errors.New("appctx: state value type mismatch")

// State is the free-form, request-scoped bag shared by every middleware unit
// of one request. Keys are any comparable value: plain strings for ad-hoc use,
// or a *Key for collision-free typed access.
//
// State is NOT safe for concurrent use; a request's units run sequentially.
type State map[any]any

// Set stores v under key.
func (s State) Set(key, v any) {
	s[key] = v
}

// Get returns the raw value stored under key.
func (s State) Get(key any) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Delete removes key.
func (s State) Delete(key any) {
	delete(s, key)
}

// StateValue returns the value under key asserted to T.
func StateValue[T any](s State, key any) (T, error) {
	var zero T
	v, ok := s[key]
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrStateMissing, key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %v holds %T, requested %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}

// Key is a typed state key. Each *Key is distinct, even when two share a
// name, so packages cannot clobber each other's entries.
type Key[T any] struct {
	name string
}

// NewKey returns a fresh key. name is only used in error messages.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

func (k *Key[T]) String() string {
	return k.name
}

// Get returns the key's value from s.
func (k *Key[T]) Get(s State) (T, error) {
	return StateValue[T](s, k)
}

// Set stores v in s.
func (k *Key[T]) Set(s State, v T) {
	s[k] = v
}

// memoKey namespaces memoized entries inside State.
type memoKey struct {
	key any
}

// memoEntry stores the result of a Memoize call, including any error.
// Both successful results and errors are cached to prevent redundant calls
// within the same request.
type memoEntry struct {
	value any
	err   error
}

// Memoize returns the cached result for key, or calls fetchFn once to fetch
// and cache it for the rest of the request. fetchFn receives c so it sees
// the request's deadline and values.
//
// The same key must always be used with the same type T; a mismatch returns
// ErrTypeMismatch.
func Memoize[T any](c *Context, key any, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	mk := memoKey{key: key}
	if raw, ok := c.state[mk]; ok {
		entry := raw.(memoEntry)
		var zero T
		if entry.err != nil {
			return zero, entry.err
		}
		v, ok := entry.value.(T)
		if !ok {
			return zero, fmt.Errorf("%w: key %v holds %T, requested %T", ErrTypeMismatch, key, entry.value, zero)
		}
		return v, nil
	}

	val, err := fetchFn(c)
	c.state[mk] = memoEntry{value: val, err: err}
	return val, err
}

// Provider binds a memoization key and fetch function together so callers
// can retrieve per-request data without repeating either.
type Provider[T any] struct {
	key     *Key[T]
	fetchFn func(ctx context.Context) (T, error)
}

// NewProvider creates a Provider with a private key named name.
func NewProvider[T any](name string, fetchFn func(ctx context.Context) (T, error)) *Provider[T] {
	return &Provider[T]{key: NewKey[T](name), fetchFn: fetchFn}
}

// Get returns the memoized value for c, fetching it on first use.
func (p *Provider[T]) Get(c *Context) (T, error) {
	return Memoize(c, p.key, p.fetchFn)
}
