package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPinger struct {
	latency time.Duration
	err     error
}

func (s stubPinger) Ping(context.Context) (time.Duration, error) {
	return s.latency, s.err
}

func TestProbeRecordsConnectivity(t *testing.T) {
	m := NewMonitor()
	p := NewProber(stubPinger{latency: 80 * time.Millisecond}, m, time.Second)

	for i := 0; i < 5; i++ {
		p.probe(context.Background())
	}

	snap := m.Snapshot()
	if snap.ConnectivityRatio != 1.0 {
		t.Fatalf("connectivity ratio = %v, want 1.0", snap.ConnectivityRatio)
	}
	if snap.SampleCount != 5 {
		t.Fatalf("sample count = %d, want 5", snap.SampleCount)
	}
}

func TestProbeRecordsFailures(t *testing.T) {
	m := NewMonitor()
	p := NewProber(stubPinger{err: errors.New("connection refused")}, m, time.Second)

	for i := 0; i < 6; i++ {
		p.probe(context.Background())
	}

	snap := m.Snapshot()
	if snap.Status != StatusEmergency {
		t.Fatalf("status = %q, want emergency", snap.Status)
	}
	if !snap.EmergencyModeRecommended {
		t.Fatal("expected emergency recommendation")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewMonitor()
	p := NewProber(stubPinger{}, m, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
