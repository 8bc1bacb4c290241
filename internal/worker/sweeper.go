// Package worker holds the background loops: the proposal expiry sweep
// and the outbox dispatcher. Both run on a ticker and stop when their
// context is cancelled; cancellation stops scheduling without
// interrupting a batch already in flight.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/Arijit65/marriage-app-sub001/internal/service"
)

// Sweeper periodically flips timed-out pending proposals to expired.
type Sweeper struct {
	proposals *service.ProposalService
	interval  time.Duration
}

func NewSweeper(proposals *service.ProposalService, interval time.Duration) *Sweeper {
	return &Sweeper{proposals: proposals, interval: interval}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Println("Proposal expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Proposal expiry sweeper stopped")
			return
		case <-ticker.C:
			// The batch runs on Background so an in-flight sweep
			// finishes even if shutdown begins mid-batch.
			count, err := w.proposals.SweepExpired(context.Background(), time.Now())
			if err != nil {
				log.Printf("Expiry sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("Expiry sweep flipped %d proposals", count)
			}
		}
	}
}
