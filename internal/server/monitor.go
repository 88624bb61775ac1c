package server

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/go-presence/internal/stats"
)

const (
	defaultSweepInterval = 30 * time.Second

	// staleTimeout is how long a connection may go without read activity
	// before the sweep treats its socket as dead. Twice the pong window so a
	// healthy but slow client is never reaped.
	staleTimeout = 2 * pongWait
)

// HealthMonitor periodically reconciles the connection registry against
// actual channel liveness and prunes expired delivery records. It is the
// safety net for state a disconnect handler never got to clean up, e.g.
// after abrupt network loss without a close frame.
type HealthMonitor struct {
	log          *log.Logger
	ps           *PresenceServer
	interval     time.Duration
	ledgerMaxAge time.Duration
}

func NewHealthMonitor(logger *log.Logger, ps *PresenceServer, interval, ledgerMaxAge time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if ledgerMaxAge <= 0 {
		ledgerMaxAge = defaultLedgerMaxAge
	}

	return &HealthMonitor{
		log:          logger,
		ps:           ps,
		interval:     interval,
		ledgerMaxAge: ledgerMaxAge,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (hm *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hm.log.Println("health monitor stopping")
			return
		case <-ticker.C:
			hm.Sweep()
		}
	}
}

// Sweep runs one reconciliation pass. Sweeps are idempotent: they only
// remove entries that are already observably dead or expired.
func (hm *HealthMonitor) Sweep() {
	if pruned := hm.ps.ledger.PruneOlderThan(hm.ledgerMaxAge); pruned > 0 {
		hm.log.Printf("pruned %d expired delivery records", pruned)
		hm.ps.stats.Add(stats.NumDeliveryRecords, -pruned)
	}

	cutoff := time.Now().Add(-staleTimeout)
	for _, c := range hm.ps.registry.Clients() {
		if !c.staleSince(cutoff) {
			continue
		}

		hm.log.Printf("reaping stale connection for user %q", c.user.Id)
		hm.ps.Disconnect(c)
		c.stopClient()
	}
}
