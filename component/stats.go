package component

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates the counters a component reports through Health and
// DataFlow. The zero value is ready to use; call Reset when the component
// starts so uptime is measured from the start.
type Stats struct {
	messages atomic.Int64
	bytes    atomic.Int64
	errors   atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastActivity time.Time
	lastError    string
}

// Reset zeroes the counters and restarts the uptime clock.
func (s *Stats) Reset() {
	s.messages.Store(0)
	s.bytes.Store(0)
	s.errors.Store(0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.lastActivity = time.Time{}
	s.lastError = ""
	s.mu.Unlock()
}

// RecordMessage counts one message of n bytes.
func (s *Stats) RecordMessage(n int) {
	s.messages.Add(1)
	s.bytes.Add(int64(n))

	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// RecordError counts err and remembers its text for Health.
func (s *Stats) RecordError(err error) {
	s.errors.Add(1)
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Messages returns the number of messages recorded since Reset.
func (s *Stats) Messages() int64 {
	return s.messages.Load()
}

// Errors returns the number of errors recorded since Reset.
func (s *Stats) Errors() int64 {
	return s.errors.Load()
}

// Health reports the component healthy when running.
func (s *Stats) Health(running bool) HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uptime time.Duration
	if running && !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}

	return HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errors.Load()),
		LastError:  s.lastError,
		Uptime:     uptime,
	}
}

// Flow derives rates from the counters and the time since Reset.
func (s *Stats) Flow() FlowMetrics {
	messages := s.messages.Load()
	bytes := s.bytes.Load()
	errorCount := s.errors.Load()

	s.mu.RLock()
	start := s.startTime
	last := s.lastActivity
	s.mu.RUnlock()

	var fm FlowMetrics
	fm.LastActivity = last
	if !start.IsZero() {
		if uptime := time.Since(start).Seconds(); uptime > 0 {
			fm.MessagesPerSecond = float64(messages) / uptime
			fm.BytesPerSecond = float64(bytes) / uptime
		}
	}
	if messages > 0 {
		fm.ErrorRate = float64(errorCount) / float64(messages)
	}
	return fm
}
