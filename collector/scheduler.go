package collector

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scraper runs one scrape cycle.
type Scraper interface {
	Scrape(ctx context.Context) CycleResult
}

// Scheduler runs scrape cycles back to back with a fixed delay between
// the end of one cycle and the start of the next. The effective period is
// therefore Interval plus the cycle duration.
type Scheduler struct {
	scraper  Scraper
	Interval time.Duration
}

func NewScheduler(s Scraper, interval time.Duration) *Scheduler {
	return &Scheduler{scraper: s, Interval: interval}
}

// Run blocks until ctx is cancelled and returns ctx.Err(). The first cycle
// starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	log.WithFields(log.Fields{"interval": s.Interval}).Info("Scheduler started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := s.scraper.Scrape(ctx)
		log.WithFields(log.Fields{
			"duration": res.Duration,
			"next":     s.Interval,
		}).Debug("Total time")

		timer := time.NewTimer(s.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
