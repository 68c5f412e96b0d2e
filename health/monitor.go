package health

import (
	"sync"
	"time"

	"github.com/TSherpa10/moodzy/component"
)

// Reporter is anything that reports component health on demand.
type Reporter interface {
	Health() component.HealthStatus
}

// Monitor tracks health of multiple components in a thread-safe manner
type Monitor struct {
	mu        sync.RWMutex
	statuses  map[string]Status
	reporters map[string]Reporter
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses:  make(map[string]Status),
		reporters: make(map[string]Reporter),
	}
}

// Track registers a reporter polled on every Get and AggregateHealth.
// It replaces any pushed status with the same name.
func (m *Monitor) Track(name string, r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	m.reporters[name] = r
}

// Update records a pushed status for name.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	delete(m.reporters, name)
	m.statuses[name] = status
}

// UpdateHealthy is a convenience method to update a component as healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy is a convenience method to update a component as unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded is a convenience method to update a component as degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get returns the current status for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.reporters[name]; ok {
		return FromComponentHealth(name, r.Health()), true
	}
	status, ok := m.statuses[name]
	return status, ok
}

// Remove removes a component from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	delete(m.reporters, name)
}

// Count returns the number of components being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses) + len(m.reporters)
}

// AggregateHealth polls every reporter and aggregates all entries.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses)+len(m.reporters))
	for _, status := range m.statuses {
		subs = append(subs, status)
	}
	reporters := make(map[string]Reporter, len(m.reporters))
	for name, r := range m.reporters {
		reporters[name] = r
	}
	m.mu.RUnlock()

	for name, r := range reporters {
		subs = append(subs, FromComponentHealth(name, r.Health()))
	}
	return Aggregate(systemName, subs)
}
