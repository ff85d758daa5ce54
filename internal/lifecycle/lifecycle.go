// Package lifecycle runs the periodic cleanup that sweeps stale queue
// entries, scheduled with go-co-op/gocron/v2 instead of a hand-rolled
// time.Ticker.
package lifecycle

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Cleaner is the slice of the Matchmaking Queue the scheduler drives.
type Cleaner interface {
	Tick()
}

// Manager owns the scheduled jobs that keep the queue and any other
// periodic sweep running for the life of the process.
type Manager struct {
	scheduler gocron.Scheduler
}

// New builds and starts a scheduler that ticks cleaner every interval.
func New(cleaner Cleaner, interval time.Duration) (*Manager, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cleaner.Tick()
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("lifecycle: queue cleanup scheduled every %s", interval)
	return &Manager{scheduler: sched}, nil
}

// Shutdown stops the scheduler, waiting for any in-flight job to
// finish.
func (m *Manager) Shutdown() {
	if err := m.scheduler.Shutdown(); err != nil {
		log.Println("lifecycle: scheduler shutdown error:", err)
	}
}
