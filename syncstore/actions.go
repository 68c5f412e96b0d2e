package syncstore

import (
	"context"
	"strings"

	"github.com/TSherpa10/moodzy/errors"
)

func (s *Store) requireAPI(method string) error {
	if s.api == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "syncstore", method, "api client")
	}
	return nil
}

// FetchUsers pulls the registry list and merges it with ApplySnapshot.
// Failures are recorded in Err and returned.
func (s *Store) FetchUsers(ctx context.Context) error {
	if err := s.requireAPI("FetchUsers"); err != nil {
		return err
	}

	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()

	users, err := s.api.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.users = merge(s.users, users)
	s.fetchedOnce = true
	return nil
}

// EnsureLoaded pulls once if no pull has succeeded yet.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	if s.FetchedOnce() {
		return nil
	}
	return s.FetchUsers(ctx)
}

// AddUser creates a user through the API and puts it at the front.
func (s *Store) AddUser(ctx context.Context, in NewUser) (User, error) {
	if err := s.requireAPI("AddUser"); err != nil {
		return User{}, err
	}

	isReal := true
	if in.IsReal != nil {
		isReal = *in.IsReal
	}
	created, err := s.api.Create(ctx, NewUser{
		Name:   strings.TrimSpace(in.Name),
		Mood:   strings.TrimSpace(in.Mood),
		IsReal: &isReal,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return User{}, err
	}
	if i := s.index(created.ID); i >= 0 {
		// a push for the same id may have arrived first
		s.users[i] = created
	} else {
		s.users = append([]User{created}, s.users...)
	}
	return created, nil
}

// AddSimulatedUser is AddUser with isReal=false.
func (s *Store) AddSimulatedUser(ctx context.Context, name, mood string) (User, error) {
	isReal := false
	return s.AddUser(ctx, NewUser{Name: name, Mood: mood, IsReal: &isReal})
}

// UpdateUser patches a user through the API and replaces the local copy.
func (s *Store) UpdateUser(ctx context.Context, id string, p Patch) (User, error) {
	if err := s.requireAPI("UpdateUser"); err != nil {
		return User{}, err
	}

	saved, err := s.api.Update(ctx, id, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return User{}, err
	}
	if i := s.index(id); i >= 0 {
		s.users[i] = saved
	}
	return saved, nil
}

// RemoveUser deletes a user through the API and drops the local copy.
func (s *Store) RemoveUser(ctx context.Context, id string) error {
	if err := s.requireAPI("RemoveUser"); err != nil {
		return err
	}

	err := s.api.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	if i := s.index(id); i >= 0 {
		s.users = append(s.users[:i], s.users[i+1:]...)
	}
	return nil
}

// Clear empties the registry and the mirror. The next EnsureLoaded pulls
// again.
func (s *Store) Clear(ctx context.Context) (int, error) {
	if err := s.requireAPI("Clear"); err != nil {
		return 0, err
	}

	n, err := s.api.Clear(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return 0, err
	}
	s.users = nil
	s.fetchedOnce = false
	return n, nil
}
