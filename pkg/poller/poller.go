// Package poller periodically samples per-server telemetry from the
// upstream API and records it into local history.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/solvane/phonefleet-console/pkg/models"
	"github.com/solvane/phonefleet-console/pkg/store"
)

// Upstream is the slice of the API client the poller needs.
type Upstream interface {
	ListServers(ctx context.Context) ([]models.ProxyServer, error)
	ServerTelemetry(ctx context.Context, serverID string) (models.TelemetrySample, error)
}

type Poller struct {
	upstream  Upstream
	telemetry store.TelemetryStore
	interval  time.Duration
	retention time.Duration
}

func New(upstream Upstream, telemetry store.TelemetryStore, interval, retention time.Duration) *Poller {
	return &Poller{
		upstream:  upstream,
		telemetry: telemetry,
		interval:  interval,
		retention: retention,
	}
}

// Run polls until ctx is cancelled. Each tick fires one request per server
// concurrently and does not wait for stragglers from the previous tick, so a
// slow server never stalls the rest of the fleet.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(time.Hour)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go p.pollAll(ctx)
		case <-pruneTicker.C:
			go p.prune()
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	servers, err := p.upstream.ListServers(ctx)
	if err != nil {
		slog.Warn("telemetry poll skipped, server list unavailable", "error", err)
		return
	}

	for _, server := range servers {
		go p.pollOne(ctx, server)
	}
}

func (p *Poller) pollOne(ctx context.Context, server models.ProxyServer) {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	sample, err := p.upstream.ServerTelemetry(ctx, server.ID)
	if err != nil {
		slog.Warn("telemetry poll failed", "server", server.ID, "error", err)
		return
	}
	if sample.SampledAt.IsZero() {
		sample.SampledAt = time.Now().UTC()
	}

	if err := p.telemetry.RecordSample(&sample); err != nil {
		slog.Error("recording telemetry sample", "server", server.ID, "error", err)
	}
}

func (p *Poller) prune() {
	cutoff := time.Now().Add(-p.retention)
	n, err := p.telemetry.PruneBefore(cutoff)
	if err != nil {
		slog.Error("pruning telemetry history", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("pruned telemetry history", "rows", n, "cutoff", cutoff)
	}
}
