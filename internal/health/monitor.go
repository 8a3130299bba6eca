// Package health aggregates identity-provider health samples over a sliding
// window and classifies the gateway as healthy, degraded or in emergency.
// The classification is advisory: it surfaces the emergency-access entry
// point and never bypasses normal authentication by itself.
package health

import (
	"sync"
	"time"
)

// Tracked components.
const (
	ComponentConnectivity = "identity-provider-connectivity"
	ComponentAuthSuccess  = "authentication-success-rate"
)

// Status is the health classification.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusEmergency Status = "emergency"
)

// Level returns the numeric gauge value for a status.
func (s Status) Level() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusEmergency:
		return 2
	default:
		return 0
	}
}

const defaultWindow = 5 * time.Minute

// Emergency thresholds.
const (
	emergencyConnectivityRatio = 0.5
	emergencyAuthSuccessRatio  = 0.8
	emergencyMeanLatency       = 10 * time.Second
	emergencyConsecutiveFails  = 5
)

// Degraded thresholds.
const (
	degradedConnectivityRatio = 0.9
	degradedAuthSuccessRatio  = 0.95
	degradedMeanLatency       = 2 * time.Second
)

type sample struct {
	at      time.Time
	success bool
	latency time.Duration
}

// Monitor holds the sliding sample window. It is shared mutable state
// written by every login attempt; all access is mutex-guarded.
type Monitor struct {
	mu      sync.Mutex
	now     func() time.Time
	window  time.Duration
	samples map[string][]sample

	consecutiveFailures int
}

// MonitorOption configures Monitor behavior.
type MonitorOption func(*Monitor)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MonitorOption {
	return func(m *Monitor) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithWindow overrides the sliding window length.
func WithWindow(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		now:     time.Now,
		window:  defaultWindow,
		samples: make(map[string][]sample),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends one sample for the component and trims expired samples.
// An authentication success resets the consecutive-failure counter.
func (m *Monitor) Record(component string, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.samples[component] = append(m.trimLocked(m.samples[component], now), sample{
		at:      now,
		success: success,
		latency: latency,
	})

	if component == ComponentAuthSuccess {
		if success {
			m.consecutiveFailures = 0
		} else {
			m.consecutiveFailures++
		}
	}
}

// Reset clears every sample and counter.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = make(map[string][]sample)
	m.consecutiveFailures = 0
}

// Snapshot is the derived view served by the health endpoint.
type Snapshot struct {
	Status                   Status  `json:"status"`
	ConnectivityRatio        float64 `json:"connectivity_ratio"`
	AuthSuccessRatio         float64 `json:"auth_success_ratio"`
	MeanLatencyMillis        float64 `json:"mean_latency_ms"`
	ConsecutiveFailures      int     `json:"consecutive_failures"`
	SampleCount              int     `json:"sample_count"`
	WindowSeconds            int     `json:"window_seconds"`
	EmergencyModeRecommended bool    `json:"emergency_mode_recommended"`
}

// Snapshot derives current ratios and the status classification. An empty
// window reads as fully healthy: no evidence, no recommendation.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for component, list := range m.samples {
		m.samples[component] = m.trimLocked(list, now)
	}

	connectivity := ratioLocked(m.samples[ComponentConnectivity])
	authSuccess := ratioLocked(m.samples[ComponentAuthSuccess])

	var (
		total        int
		latencySum   time.Duration
		latencyCount int
	)
	for _, list := range m.samples {
		total += len(list)
		for _, s := range list {
			latencySum += s.latency
			latencyCount++
		}
	}
	var meanLatency time.Duration
	if latencyCount > 0 {
		meanLatency = latencySum / time.Duration(latencyCount)
	}

	emergency := connectivity < emergencyConnectivityRatio ||
		authSuccess < emergencyAuthSuccessRatio ||
		meanLatency > emergencyMeanLatency ||
		m.consecutiveFailures > emergencyConsecutiveFails

	degraded := connectivity < degradedConnectivityRatio ||
		authSuccess < degradedAuthSuccessRatio ||
		meanLatency > degradedMeanLatency

	status := StatusHealthy
	switch {
	case emergency:
		status = StatusEmergency
	case degraded:
		status = StatusDegraded
	}

	return Snapshot{
		Status:                   status,
		ConnectivityRatio:        connectivity,
		AuthSuccessRatio:         authSuccess,
		MeanLatencyMillis:        float64(meanLatency) / float64(time.Millisecond),
		ConsecutiveFailures:      m.consecutiveFailures,
		SampleCount:              total,
		WindowSeconds:            int(m.window / time.Second),
		EmergencyModeRecommended: emergency,
	}
}

func (m *Monitor) trimLocked(list []sample, now time.Time) []sample {
	cutoff := now.Add(-m.window)
	i := 0
	for i < len(list) && !list[i].at.After(cutoff) {
		i++
	}
	return list[i:]
}

func ratioLocked(list []sample) float64 {
	if len(list) == 0 {
		return 1.0
	}
	ok := 0
	for _, s := range list {
		if s.success {
			ok++
		}
	}
	return float64(ok) / float64(len(list))
}
