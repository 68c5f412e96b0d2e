// Package registry is the in-memory store of user records. Records are kept
// in their encoded wire form and decoded on every read.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/idalloc"
	"github.com/TSherpa10/moodzy/pkg/timestamp"
)

// CreateInput describes a new user. IsReal defaults to true when nil.
type CreateInput struct {
	Name   string
	Mood   string
	IsReal *bool
}

// Patch lists the fields to change. Nil or blank fields are ignored.
type Patch struct {
	Name *string
	Mood *string
}

// Store maps user ids to encoded records. All methods are safe for
// concurrent use; every mutation runs under one write lock.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
	order   []string // creation order, oldest first

	ids    *idalloc.Allocator
	clock  timestamp.Clock
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithAllocator sets the id source.
func WithAllocator(a *idalloc.Allocator) Option {
	return func(s *Store) {
		if a != nil {
			s.ids = a
		}
	}
}

// WithClock sets the clock that stamps records.
func WithClock(c timestamp.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string][]byte),
		ids:     idalloc.New(),
		clock:   timestamp.System,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "registry")
	return s
}

// Create validates in, assigns an id and timestamps, and stores the record.
func (s *Store) Create(ctx context.Context, in CreateInput) (codec.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return codec.UserRecord{}, err
	}

	name := strings.TrimSpace(in.Name)
	mood := strings.TrimSpace(in.Mood)

	verr := errors.NewValidationError()
	if name == "" {
		verr.Add("name", "min", "name must not be empty")
	}
	if mood == "" {
		verr.Add("mood", "min", "mood must not be empty")
	}
	if err := verr.OrNil(); err != nil {
		return codec.UserRecord{}, err
	}

	isReal := true
	if in.IsReal != nil {
		isReal = *in.IsReal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.Allocate()
	if err != nil {
		return codec.UserRecord{}, errors.Wrap(err, "registry", "Create", "allocate id")
	}

	now := s.clock.Now()
	rec := codec.UserRecord{
		ID:          id,
		Name:        name,
		Mood:        mood,
		IsReal:      isReal,
		TimeCreated: now,
		TimeUpdated: now,
	}

	encoded := codec.EncodeUser(rec)
	s.records[id] = encoded
	s.order = append(s.order, id)

	out, err := codec.DecodeUser(encoded)
	if err != nil {
		return codec.UserRecord{}, errors.WrapFatal(err, "registry", "Create", "decode stored record")
	}

	s.logger.Debug("user created", "id", id, "is_real", isReal)
	return out, nil
}

// List returns every record, most recently created first.
func (s *Store) List(ctx context.Context) ([]codec.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]codec.UserRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		rec, err := codec.DecodeUser(s.records[id])
		if err != nil {
			return nil, errors.WrapFatal(err, "registry", "List", fmt.Sprintf("decode record %s", id))
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (codec.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return codec.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	encoded, ok := s.records[id]
	if !ok {
		return codec.UserRecord{}, notFound(id)
	}
	rec, err := codec.DecodeUser(encoded)
	if err != nil {
		return codec.UserRecord{}, errors.WrapFatal(err, "registry", "Get", "decode record")
	}
	return rec, nil
}

// Update applies p to the record for id and bumps TimeUpdated so it is
// strictly greater than its previous value.
func (s *Store) Update(ctx context.Context, id string, p Patch) (codec.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return codec.UserRecord{}, err
	}

	name, hasName := trimmed(p.Name)
	mood, hasMood := trimmed(p.Mood)

	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, ok := s.records[id]
	if !ok {
		return codec.UserRecord{}, notFound(id)
	}

	if !hasName && !hasMood {
		return codec.UserRecord{}, errors.NewValidationError(errors.Issue{
			Field:      "body",
			Constraint: "min_fields",
			Message:    "at least one of name or mood must be provided",
		})
	}

	rec, err := codec.DecodeUser(encoded)
	if err != nil {
		return codec.UserRecord{}, errors.WrapFatal(err, "registry", "Update", "decode record")
	}

	if hasName {
		rec.Name = name
	}
	if hasMood {
		rec.Mood = mood
	}
	rec.TimeUpdated = timestamp.After(rec.TimeUpdated, s.clock.Now())

	encoded = codec.EncodeUser(rec)
	s.records[id] = encoded

	out, err := codec.DecodeUser(encoded)
	if err != nil {
		return codec.UserRecord{}, errors.WrapFatal(err, "registry", "Update", "decode stored record")
	}

	s.logger.Debug("user updated", "id", id)
	return out, nil
}

// Delete removes the record for id. The id is never issued again.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return notFound(id)
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.Debug("user deleted", "id", id)
	return nil
}

// Clear removes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	s.records = make(map[string][]byte)
	s.order = nil

	s.logger.Info("registry cleared", "removed", n)
	return n, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func notFound(id string) error {
	return fmt.Errorf("user %q: %w", id, errors.ErrNotFound)
}

func trimmed(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	t := strings.TrimSpace(*v)
	return t, t != ""
}
