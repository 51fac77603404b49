package training

import (
	"context"
	"sync"
	"time"

	"backend-runtrainer/internal/achievement"
	"backend-runtrainer/internal/monitoring"
)

const archiveTimeout = 10 * time.Second

// Store is the persistence the archiver needs.
type Store interface {
	SaveTraining(ctx context.Context, rec Record) (string, error)
	Lifetime(ctx context.Context, userID string) (Aggregates, error)
	UnlockAchievements(ctx context.Context, userID string, ids []achievement.ID) ([]achievement.ID, error)
}

// UnlockFunc is told about achievements a saved training unlocked.
type UnlockFunc func(rec Record, unlocked []achievement.ID)

// Archiver persists finished trainings off the request path. A single worker
// drains a bounded queue: it saves the record, re-reads the lifetime totals
// and records any newly earned achievements.
type Archiver struct {
	store    Store
	onUnlock UnlockFunc

	queue  chan Record
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewArchiver(store Store, size int, onUnlock UnlockFunc) *Archiver {
	if size <= 0 {
		size = 1
	}
	a := &Archiver{
		store:    store,
		onUnlock: onUnlock,
		queue:    make(chan Record, size),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Enqueue hands rec to the worker without blocking. It reports false when the
// queue is full or the archiver is closed; the record is then lost.
func (a *Archiver) Enqueue(rec Record) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false
	}

	select {
	case a.queue <- rec:
		return true
	default:
		monitoring.Logf("archive queue full, dropping training %s for user %s", rec.ID, rec.UserID)
		return false
	}
}

// Close stops accepting records and waits for the queued ones until ctx ends.
func (a *Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for rec := range a.queue {
		a.archive(rec)
	}
}

func (a *Archiver) archive(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	id, err := a.store.SaveTraining(ctx, rec)
	if err != nil {
		monitoring.Logf("archive training %s: %v", rec.ID, err)
		return
	}
	rec.ID = id

	totals, err := a.store.Lifetime(ctx, rec.UserID)
	if err != nil {
		monitoring.Logf("archive lifetime totals for %s: %v", rec.UserID, err)
		return
	}

	earned := achievement.Evaluate(totals.TotalDistanceKm, totals.BestPace)
	if len(earned) == 0 {
		return
	}
	unlocked, err := a.store.UnlockAchievements(ctx, rec.UserID, earned)
	if err != nil {
		monitoring.Logf("archive achievements for %s: %v", rec.UserID, err)
	}
	if len(unlocked) > 0 && a.onUnlock != nil {
		a.onUnlock(rec, unlocked)
	}
}
