package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateInitialized, "initialized"},
		{StateStarted, "started"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestStats_ZeroValue(t *testing.T) {
	var s Stats

	h := s.Health(false)
	assert.False(t, h.Healthy)
	assert.Zero(t, h.ErrorCount)
	assert.Zero(t, h.Uptime)

	fm := s.Flow()
	assert.Zero(t, fm.MessagesPerSecond)
	assert.Zero(t, fm.ErrorRate)
	assert.True(t, fm.LastActivity.IsZero())
}

func TestStats_Counters(t *testing.T) {
	var s Stats
	s.Reset()

	s.RecordMessage(10)
	s.RecordMessage(30)
	s.RecordError(errors.New("bad payload"))

	assert.Equal(t, int64(2), s.Messages())
	assert.Equal(t, int64(1), s.Errors())

	h := s.Health(true)
	assert.True(t, h.Healthy)
	assert.Equal(t, 1, h.ErrorCount)
	assert.Equal(t, "bad payload", h.LastError)

	fm := s.Flow()
	assert.InDelta(t, 0.5, fm.ErrorRate, 1e-9)
	assert.False(t, fm.LastActivity.IsZero())
	assert.Greater(t, fm.MessagesPerSecond, 0.0)
}

func TestStats_ResetClearsCounters(t *testing.T) {
	var s Stats
	s.Reset()
	s.RecordMessage(1)
	s.RecordError(nil)

	s.Reset()

	assert.Zero(t, s.Messages())
	assert.Zero(t, s.Errors())
	assert.Empty(t, s.Health(true).LastError)
}
