package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/input/feed"
)

// moodRange bounds the codes the simulator draws. It includes 9, which has
// no label of its own and decodes as the fallback.
const moodRange = 10

var names = []string{
	"Ada", "Bashir", "Chen", "Dara", "Emeka", "Farah", "Goro", "Hana",
	"Ilse", "Jonas", "Kemi", "Luca", "Mina", "Nils", "Oona", "Priya",
}

// simulator owns a fixed population of simulated users and changes one
// user's mood per draw.
type simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	users []codec.SimUser
}

func newSimulator(population int, seed uint64) *simulator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	users := make([]codec.SimUser, population)
	for i := range users {
		users[i] = codec.SimUser{
			ID:   uuid.Must(uuid.NewRandomFromReader(rngReader{rng})).String(),
			Name: names[rng.IntN(len(names))],
			Mood: int32(rng.IntN(moodRange)),
		}
	}
	return &simulator{rng: rng, users: users}
}

// next picks a user, gives it a fresh mood and returns the copy to send.
func (s *simulator) next() codec.SimUser {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.rng.IntN(len(s.users))
	s.users[i].Mood = int32(s.rng.IntN(moodRange))
	return s.users[i]
}

// serve publishes one user every interval on pub until ctx ends or count
// messages were sent. A zero count never stops.
func (s *simulator) serve(ctx context.Context, pub zmq4.Socket, interval time.Duration, count int, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; count == 0 || sent < count; sent++ {
		u := s.next()
		if err := pub.Send(zmq4.NewMsg(codec.EncodeSimUser(u))); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Debug("Published", "id", u.ID, "name", u.Name, "mood", feed.MoodLabel(u.Mood))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// rngReader lets uuid draw from the seeded source so runs are repeatable.
type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.Uint32())
	}
	return len(p), nil
}
