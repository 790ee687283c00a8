package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool runs a fixed number of workers, each pulling incident IDs off the
// Orchestrator's ready queue and driving one incident to completion before
// picking up the next — the same one-item-per-worker-until-terminal shape
// as the reference queue worker pool, with an incident phase-run standing
// in for a chat session run.
type Pool struct {
	orchestrator *Orchestrator
	workerCount  int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool builds a Pool of workerCount goroutines over o.
func NewPool(o *Orchestrator, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		orchestrator: o,
		workerCount:  workerCount,
		stopCh:       make(chan struct{}),
	}
}

// Start spawns the worker goroutines. It returns immediately; call Stop to
// shut the pool down gracefully.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		id := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go p.run(ctx, id)
	}
}

// Stop signals every worker to stop pulling new work and waits for any
// incident currently being processed to reach a stepping point.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()
	log := slog.With("worker_id", workerID)
	log.Info("orchestrator worker started")

	for {
		select {
		case <-p.stopCh:
			log.Info("orchestrator worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, orchestrator worker shutting down")
			return
		case incidentID, ok := <-p.orchestrator.incidents:
			if !ok {
				return
			}
			if err := p.orchestrator.process(ctx, incidentID); err != nil {
				log.Error("incident processing failed", "incident_id", incidentID, "error", err)
			}
		}
	}
}
