package syncstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/input/feed"
)

// ErrUnrecognizedMessage rejects push messages that are not relay events.
var ErrUnrecognizedMessage = stderrors.New("unrecognized push message")

// User is one mirrored registry record.
type User = codec.UserRecord

// NewUser is the input to AddUser. IsReal defaults to true when nil.
type NewUser struct {
	Name   string `json:"name"`
	Mood   string `json:"mood"`
	IsReal *bool  `json:"isReal,omitempty"`
}

// Patch lists the fields to change on a user.
type Patch struct {
	Name *string `json:"name,omitempty"`
	Mood *string `json:"mood,omitempty"`
}

// API is the registry surface the store's actions call.
type API interface {
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, in NewUser) (User, error)
	Update(ctx context.Context, id string, p Patch) (User, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is the client-side mirror. All methods are safe for concurrent use;
// merges are serialized by one mutex.
type Store struct {
	api    API
	logger *slog.Logger

	mu          sync.RWMutex
	users       []User // front is newest
	loading     bool
	lastErr     error
	fetchedOnce bool

	applied  atomic.Int64
	rejected atomic.Int64
}

// New returns an empty Store. api may be nil when only the merge functions
// are used.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "syncstore")
	return s
}

// Users returns a copy of the mirrored users, front first.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

// Count returns the number of mirrored users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// RealUsers returns the users entered by people.
func (s *Store) RealUsers() []User {
	return s.filter(func(u User) bool { return u.IsReal })
}

// FakeUsers returns the simulated users.
func (s *Store) FakeUsers() []User {
	return s.filter(func(u User) bool { return !u.IsReal })
}

func (s *Store) filter(keep func(User) bool) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// ByID returns the user with id.
func (s *Store) ByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.users[i], true
	}
	return User{}, false
}

// Loading reports whether a pull is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the error of the last failed action, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// FetchedOnce reports whether a pull has succeeded since the last Clear.
func (s *Store) FetchedOnce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedOnce
}

// Applied returns the number of relay events merged.
func (s *Store) Applied() int64 { return s.applied.Load() }

// Rejected returns the number of push messages rejected.
func (s *Store) Rejected() int64 { return s.rejected.Load() }

// index returns the position of id, or -1. Callers hold mu.
func (s *Store) index(id string) int {
	return slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
}

// ApplyEvent merges one relay event. A known id gets only its mood replaced;
// an unknown id is inserted at the front. Events without a mood, and inserts
// without a name, are rejected and leave the mirror untouched.
func (s *Store) ApplyEvent(ev feed.Event) error {
	if ev.Type != feed.EventType {
		return s.reject(fmt.Errorf("%w: type %q", ErrUnrecognizedMessage, ev.Type))
	}
	p := ev.Payload
	if p.ID == "" {
		return s.reject(fmt.Errorf("%w: payload without id", ErrUnrecognizedMessage))
	}
	if strings.TrimSpace(p.Mood) == "" {
		return s.reject(fmt.Errorf("%w: payload %s without mood", ErrUnrecognizedMessage, p.ID))
	}

	s.mu.Lock()
	if i := s.index(p.ID); i >= 0 {
		s.users[i].Mood = p.Mood
	} else {
		if strings.TrimSpace(p.Name) == "" {
			s.mu.Unlock()
			return s.reject(fmt.Errorf("%w: new user %s without name", ErrUnrecognizedMessage, p.ID))
		}
		s.users = slices.Insert(s.users, 0, User{
			ID:          p.ID,
			Name:        p.Name,
			Mood:        p.Mood,
			IsReal:      p.IsReal,
			TimeCreated: p.TimeCreated,
			TimeUpdated: p.TimeUpdated,
		})
	}
	s.mu.Unlock()

	s.applied.Add(1)
	return nil
}

// HandleMessage parses one text frame from the hub and merges it.
func (s *Store) HandleMessage(raw []byte) error {
	var ev feed.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return s.reject(fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err))
	}
	return s.ApplyEvent(ev)
}

func (s *Store) reject(err error) error {
	s.rejected.Add(1)
	s.logger.Warn("Rejected push message", "error", err)
	return err
}

// ApplySnapshot merges a pulled user list. For ids in both, the copy with
// the larger TimeUpdated wins and ties go to the snapshot. Real users the
// snapshot no longer lists are dropped. Simulated users the snapshot does
// not list are kept, ahead of the snapshot entries, in their current order.
func (s *Store) ApplySnapshot(snapshot []User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = merge(s.users, snapshot)
}

func merge(local, snapshot []User) []User {
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, u := range snapshot {
		inSnapshot[u.ID] = struct{}{}
	}
	byID := make(map[string]User, len(local))
	for _, u := range local {
		byID[u.ID] = u
	}

	out := make([]User, 0, len(snapshot)+len(local))
	for _, u := range local {
		if _, ok := inSnapshot[u.ID]; !ok && !u.IsReal {
			out = append(out, u)
		}
	}
	for _, u := range snapshot {
		if mine, ok := byID[u.ID]; ok && mine.TimeUpdated > u.TimeUpdated {
			out = append(out, mine)
			continue
		}
		out = append(out, u)
	}
	return out
}

// SetUsers replaces the mirror with a copy of users.
func (s *Store) SetUsers(users []User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = slices.Clone(users)
}
