// Package compose turns an ordered sequence of middleware units into one
// cascading handler.
//
// Units run in order on the way in and resume in reverse order on the way
// out, around a single enclosed continuation:
//
//	h, err := compose.Compose(logRequest, authenticate, serve)
//	err = h(c)
//
// Each unit receives a next function that runs the rest of the chain and
// returns its error. A unit that returns an error without calling next stops
// the descent; units further down are never entered.
package compose

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNilMiddleware is returned by Compose when an element of the sequence is nil.
var ErrNilMiddleware = errors.New("compose: middleware must be a function")

// ErrNextCalledTwice is returned from a second call to the same next function.
var ErrNextCalledTwice = errors.New("compose: next() called multiple times")

// Next runs the downstream remainder of the chain.
type Next func() error

// Middleware is one unit of the chain. It may call next at most once.
type Middleware[C any] func(c C, next Next) error

// Handler is the composed form of a middleware sequence.
type Handler[C any] func(c C) error

// Compose builds the cascading handler for units. The sequence is copied so
// later changes to the caller's slice do not leak into the handler. An empty
// sequence yields a handler that returns nil without touching c.
func Compose[C any](units ...Middleware[C]) (Handler[C], error) {
	chain, err := snapshot(units)
	if err != nil {
		return nil, err
	}
	return func(c C) error {
		return run(chain, c, nil)
	}, nil
}

// Nest is like Compose but returns a Middleware: once the last unit calls
// next, the outer continuation runs.
func Nest[C any](units ...Middleware[C]) (Middleware[C], error) {
	chain, err := snapshot(units)
	if err != nil {
		return nil, err
	}
	return func(c C, next Next) error {
		return run(chain, c, next)
	}, nil
}

func snapshot[C any](units []Middleware[C]) ([]Middleware[C], error) {
	chain := make([]Middleware[C], len(units))
	for i, u := range units {
		if u == nil {
			return nil, fmt.Errorf("%w: element %d is nil", ErrNilMiddleware, i)
		}
		chain[i] = u
	}
	return chain, nil
}

// run dispatches one invocation. index is the highest unit entered so far;
// it is local to the invocation so concurrent requests never share it.
func run[C any](chain []Middleware[C], c C, tail Next) error {
	index := -1

	var dispatch func(i int) error
	dispatch = func(i int) error {
		if i <= index {
			return ErrNextCalledTwice
		}
		index = i

		if i == len(chain) {
			if tail == nil {
				return nil
			}
			return tail()
		}

		return invoke(chain[i], c, func() error { return dispatch(i + 1) })
	}

	return dispatch(0)
}

// invoke calls unit and turns a panic into a *PanicError.
func invoke[C any](unit Middleware[C], c C, next Next) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(v, debug.Stack())
		}
	}()
	return unit(c, next)
}
