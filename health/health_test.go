package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/component"
)

type fakeReporter struct {
	mu     sync.Mutex
	status component.HealthStatus
}

func (f *fakeReporter) Health() component.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeReporter) set(hs component.HealthStatus) {
	f.mu.Lock()
	f.status = hs
	f.mu.Unlock()
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status    string
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{StatusHealthy, true, false, false},
		{StatusDegraded, false, true, false},
		{StatusUnhealthy, false, false, true},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := Status{Status: tt.status}
			assert.Equal(t, tt.healthy, s.IsHealthy())
			assert.Equal(t, tt.degraded, s.IsDegraded())
			assert.Equal(t, tt.unhealthy, s.IsUnhealthy())
		})
	}
}

func TestWithSubStatus_DoesNotShareBacking(t *testing.T) {
	base := NewHealthy("system", "ok").WithSubStatus(NewHealthy("a", "ok"))
	left := base.WithSubStatus(NewHealthy("b", "ok"))
	right := base.WithSubStatus(NewDegraded("c", "slow"))

	require.Len(t, left.SubStatuses, 2)
	require.Len(t, right.SubStatuses, 2)
	assert.Equal(t, "b", left.SubStatuses[1].Component)
	assert.Equal(t, "c", right.SubStatuses[1].Component)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StatusHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StatusDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("moodzy", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, "moodzy", got.Component)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_SortsAndCopies(t *testing.T) {
	subs := []Status{NewHealthy("hub", ""), NewHealthy("feed", "")}

	got := Aggregate("moodzy", subs)

	assert.Equal(t, "feed", got.SubStatuses[0].Component)
	assert.Equal(t, "hub", got.SubStatuses[1].Component)
	assert.Equal(t, "hub", subs[0].Component, "input must not be reordered")
}

func TestFromComponentHealth(t *testing.T) {
	ch := component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: 2,
		LastError:  "dial tcp://127.0.0.1:9000 failed: token=abc123",
		Uptime:     time.Minute,
	}

	got := FromComponentHealth("feed", ch)

	assert.Equal(t, StatusHealthy, got.Status)
	assert.True(t, got.Healthy)
	assert.NotContains(t, got.Message, "127.0.0.1")
	assert.NotContains(t, got.Message, "abc123")
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 2, got.Metrics.ErrorCount)
	assert.Equal(t, time.Minute, got.Metrics.Uptime)

	down := FromComponentHealth("hub", component.HealthStatus{})
	assert.Equal(t, StatusUnhealthy, down.Status)
	assert.Equal(t, "Component not running", down.Message)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain failure", "plain failure"},
		{"connect nats://user:pw@10.0.0.1:4222 refused", "connect [URL] refused"},
		{"read /etc/moodzy/config.yaml", "read [PATH]"},
		{"listen on 192.168.1.10", "listen on [IP]"},
		{"password=hunter2", "[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeErrorMessage(tt.in))
		})
	}
}

func TestMonitor_PushedStatuses(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("nats", "connected")

	got, ok := m.Get("nats")
	require.True(t, ok)
	assert.Equal(t, "nats", got.Component)
	assert.False(t, got.Timestamp.IsZero())

	m.UpdateDegraded("nats", "reconnecting")
	got, _ = m.Get("nats")
	assert.True(t, got.IsDegraded())

	m.Remove("nats")
	_, ok = m.Get("nats")
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestMonitor_TrackedReportersArePolled(t *testing.T) {
	m := NewMonitor()
	feed := &fakeReporter{}
	feed.set(component.HealthStatus{Healthy: true})
	m.Track("feed", feed)
	m.UpdateHealthy("nats", "connected")

	assert.Equal(t, 2, m.Count())
	assert.True(t, m.AggregateHealth("moodzy").IsHealthy())

	feed.set(component.HealthStatus{Healthy: false})

	report := m.AggregateHealth("moodzy")
	assert.True(t, report.IsUnhealthy())
	require.Len(t, report.SubStatuses, 2)
	assert.Equal(t, "feed", report.SubStatuses[0].Component)
}

func TestMonitor_TrackReplacesPushedStatus(t *testing.T) {
	m := NewMonitor()
	m.UpdateUnhealthy("hub", "not started")
	m.Track("hub", &fakeReporter{status: component.HealthStatus{Healthy: true}})

	got, ok := m.Get("hub")
	require.True(t, ok)
	assert.True(t, got.IsHealthy())
	assert.Equal(t, 1, m.Count())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.UpdateHealthy("nats", "ok")
		}()
		go func() {
			defer wg.Done()
			_ = m.AggregateHealth("moodzy")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Count())
}
