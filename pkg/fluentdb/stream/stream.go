// Package stream provides the cold, single-subscription result sequences
// fluentdb delivers rows through. A stream does no work until its first
// Next call, yields elements strictly forward, and releases its underlying
// resources when closed, drained, or failed.
package stream

import (
	"context"
	"errors"
)

// ErrAlreadyConsumed reports a second subscription to a one-shot sequence.
var ErrAlreadyConsumed = errors.New("stream already consumed")

// NextFunc pulls the next element. ok is false at the end of the sequence.
type NextFunc[T any] func() (value T, ok bool, err error)

// OpenFunc starts the underlying work of a cold stream on first demand.
// The returned close function releases the acquired resources and must
// tolerate being called exactly once.
type OpenFunc[T any] func(ctx context.Context) (next NextFunc[T], close func() error, err error)

// Stream is a finite, forward-only, single-subscription sequence.
//
// The zero value is not usable; construct with New or Fail. Streams are not
// safe for concurrent use by multiple goroutines.
type Stream[T any] struct {
	open    OpenFunc[T]
	next    NextFunc[T]
	closeFn func() error

	started bool
	closed  bool
	cur     T
	err     error
}

// New returns a cold stream over open. open is not invoked until the first
// Next call.
func New[T any](open OpenFunc[T]) *Stream[T] {
	return &Stream[T]{open: open}
}

// Fail returns a stream that surfaces err on first consumption.
func Fail[T any](err error) *Stream[T] {
	return New[T](func(context.Context) (NextFunc[T], func() error, error) {
		return nil, nil, err
	})
}

// Of returns a stream over fixed elements.
func Of[T any](items ...T) *Stream[T] {
	return New[T](func(context.Context) (NextFunc[T], func() error, error) {
		i := 0

		next := func() (T, bool, error) {
			var zero T
			if i >= len(items) {
				return zero, false, nil
			}

			v := items[i]
			i++

			return v, true, nil
		}

		return next, func() error { return nil }, nil
	})
}

// Next advances to the next element, starting the underlying work on the
// first call. It reports false when the sequence ends, fails, or the
// context is done; Err distinguishes the cases. Elements delivered before
// a failure remain valid.
func (s *Stream[T]) Next(ctx context.Context) bool {
	if s.closed {
		if s.err == nil {
			s.err = ErrAlreadyConsumed
		}

		return false
	}

	if err := ctx.Err(); err != nil {
		s.fail(err)
		return false
	}

	if !s.started {
		s.started = true

		next, closeFn, err := s.open(ctx)
		if err != nil {
			s.fail(err)
			return false
		}

		s.next, s.closeFn = next, closeFn
	}

	value, ok, err := s.next()
	if err != nil {
		s.fail(err)
		return false
	}

	if !ok {
		s.release()
		return false
	}

	s.cur = value

	return true
}

// Value returns the element produced by the last successful Next.
func (s *Stream[T]) Value() T {
	return s.cur
}

// Err returns the error that terminated the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying resources. It is idempotent, and safe to
// call before the stream is drained; dropping a subscription mid-stream
// must not leak the cursor or its connection.
func (s *Stream[T]) Close() error {
	return s.release()
}

func (s *Stream[T]) fail(err error) {
	s.err = err
	s.release()
}

func (s *Stream[T]) release() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if s.closeFn == nil {
		return nil
	}

	closeFn := s.closeFn
	s.closeFn = nil

	return closeFn()
}

// Collect drains the stream into a slice, closing it afterwards.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	defer s.Close()

	var out []T

	for s.Next(ctx) {
		out = append(out, s.Value())
	}

	if err := s.Err(); err != nil {
		return out, err
	}

	return out, nil
}

// One drains the stream expecting exactly one element.
func (s *Stream[T]) One(ctx context.Context) (T, error) {
	var zero T

	defer s.Close()

	if !s.Next(ctx) {
		if err := s.Err(); err != nil {
			return zero, err
		}

		return zero, errors.New("empty result")
	}

	v := s.Value()

	if s.Next(ctx) {
		return zero, errors.New("more than one result")
	}

	if err := s.Err(); err != nil {
		return zero, err
	}

	return v, nil
}

// Map derives a stream by converting each element of s. A conversion
// failure terminates the derived sequence at the offending element without
// invalidating elements already delivered.
func Map[T, U any](s *Stream[T], fn func(T) (U, error)) *Stream[U] {
	return New[U](func(ctx context.Context) (NextFunc[U], func() error, error) {
		next := func() (U, bool, error) {
			var zero U

			if !s.Next(ctx) {
				return zero, false, s.Err()
			}

			v, err := fn(s.Value())
			if err != nil {
				return zero, false, err
			}

			return v, true, nil
		}

		return next, s.Close, nil
	})
}
