package health

import (
	"context"
	"time"

	"porta.dev/internal/obs"
)

// Pinger probes identity-provider reachability.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

const probeTimeout = 10 * time.Second

// Prober feeds periodic connectivity samples into the monitor so the health
// classification reflects provider reachability even between login attempts.
type Prober struct {
	pinger   Pinger
	monitor  *Monitor
	interval time.Duration
}

func NewProber(pinger Pinger, monitor *Monitor, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{pinger: pinger, monitor: monitor, interval: interval}
}

// Run probes until the context is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	latency, err := p.pinger.Ping(probeCtx)
	p.monitor.Record(ComponentConnectivity, err == nil, latency)
	obs.ObserveIdentityProvider(latency)
	obs.SetHealthStatus(p.monitor.Snapshot().Status.Level())
	if err != nil {
		obs.Emit(map[string]any{
			"level": "warn",
			"msg":   "identity provider probe failed",
			"error": err.Error(),
		})
	}
}
