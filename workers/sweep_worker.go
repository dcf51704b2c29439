package workers

import (
	"context"
	"log"
	"time"

	"github.com/Demideni/beavbet1-sub000/services"
)

// RunSweeper drives the timeout sweeper on a fixed interval until ctx is
// cancelled. The sweeper also runs opportunistically from duel handlers; this
// loop guarantees refunds happen even on an idle instance.
func RunSweeper(ctx context.Context, sweeper *services.Sweeper, interval time.Duration) {
	log.Printf("Starting timeout sweeper (every %s)...", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Timeout sweeper stopped.")
			return
		case <-ticker.C:
			if err := sweeper.SweepOnce(); err != nil {
				log.Printf("❌ Sweep pass failed: %v", err)
			}
		}
	}
}
