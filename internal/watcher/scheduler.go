package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/repoindex/internal/debug"
	"github.com/standardbeagle/repoindex/internal/types"
)

// Scheduler consumes a Watcher's bounded event queue, collects events for
// BatchDelayMs after the last one arrives, and invokes a reindex callback
// exactly once per batch. If the callback is still running when a new
// batch becomes due, the new batch waits for it to finish before firing,
// per §4.H's "batch re-index" semantics.
type Scheduler struct {
	events     <-chan types.FileChange
	batchDelay time.Duration
	reindex    ReindexFunc
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler builds a Scheduler reading from events, batching by cfg's
// BatchDelayMs, and invoking fn once per collected batch.
func NewScheduler(events <-chan types.FileChange, cfg Config, fn ReindexFunc) *Scheduler {
	delay := time.Duration(cfg.BatchDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = time.Duration(types.DefaultBatchDelayMs) * time.Millisecond
	}
	return &Scheduler{events: events, batchDelay: delay, reindex: fn}
}

// Run starts the scheduler's collection loop in a background goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the collection loop and waits for it to exit. Any batch
// currently being collected is discarded; a reindex callback already in
// flight is allowed to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	var batch []types.FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(s.batchDelay)
		timerC = timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case change, ok := <-s.events:
			if !ok {
				return
			}
			batch = append(batch, change)
			resetTimer()
		case <-timerC:
			timerC = nil
			if len(batch) == 0 {
				continue
			}
			s.dispatch(batch)
			batch = nil
		}
	}
}

// dispatch fires the reindex callback, deduplicating by path (last event
// per path wins, mirroring the debounce contract). It runs synchronously
// on the scheduler's single collection goroutine: events arriving while
// the callback runs simply accumulate in the queue and start the next
// batch's window only once dispatch returns, which is exactly "if the
// callback is still running when a new batch is due, the new batch
// waits" without any extra synchronization.
func (s *Scheduler) dispatch(batch []types.FileChange) {
	deduped := dedupeByPath(batch)
	debug.LogWatch("dispatching reindex batch of %d change(s)", len(deduped))
	s.reindex(deduped)
}

func dedupeByPath(batch []types.FileChange) []types.FileChange {
	order := make([]string, 0, len(batch))
	last := make(map[string]types.FileChange, len(batch))
	for _, c := range batch {
		if _, exists := last[c.Path]; !exists {
			order = append(order, c.Path)
		}
		last[c.Path] = c
	}
	out := make([]types.FileChange, 0, len(order))
	for _, p := range order {
		out = append(out, last[p])
	}
	return out
}
