// Package idalloc hands out opaque user identifiers that are unique for the
// lifetime of an Allocator.
package idalloc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/TSherpa10/moodzy/errors"
)

// DefaultMaxAttempts bounds the collision retry loop.
const DefaultMaxAttempts = 64

// Generator produces candidate identifiers.
type Generator func() (string, error)

// RandomUUID draws a version 4 UUID from crypto/rand.
func RandomUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Allocator issues identifiers and remembers every one it has issued.
// Identifiers are never released, so a deleted user's id is never handed out
// again.
type Allocator struct {
	mu          sync.Mutex
	issued      map[string]struct{}
	generate    Generator
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithGenerator replaces the candidate source.
func WithGenerator(g Generator) Option {
	return func(a *Allocator) {
		if g != nil {
			a.generate = g
		}
	}
}

// WithMaxAttempts sets how many colliding candidates Allocate tolerates.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// New returns an Allocator backed by RandomUUID.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		issued:      make(map[string]struct{}),
		generate:    RandomUUID,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns an identifier no previous call on a has returned.
func (a *Allocator) Allocate() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		candidate, err := a.generate()
		if err != nil {
			return "", errors.WrapTransient(err, "idalloc", "Allocate", "generate candidate")
		}
		if candidate == "" {
			continue
		}
		if _, taken := a.issued[candidate]; taken {
			continue
		}
		a.issued[candidate] = struct{}{}
		return candidate, nil
	}

	return "", errors.WrapFatal(
		fmt.Errorf("%w: %d colliding candidates", errors.ErrResourceExhausted, a.maxAttempts),
		"idalloc", "Allocate", "find unused id")
}

// Issued reports whether id was handed out by a.
func (a *Allocator) Issued(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.issued[id]
	return ok
}

// Len returns how many identifiers have been issued.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.issued)
}
