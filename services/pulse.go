package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pulse runs a background job with a single-slot queue: at most one run is in flight and
// ticks that arrive meanwhile collapse into one pending run.
type Pulse struct {
	job     func(ctx context.Context) error
	timeout time.Duration
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

func NewPulse(job func(ctx context.Context) error, timeout time.Duration, log *zap.Logger) *Pulse {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pulse{job: job, timeout: timeout, log: log, ctx: ctx, cancel: cancel}
}

// SyncPulse wires the pending-export retry as the pulse job.
func SyncPulse(syncer *SyncService, timeout time.Duration, log *zap.Logger) *Pulse {
	return NewPulse(func(ctx context.Context) error {
		exported, err := syncer.SyncPending(ctx)
		if exported > 0 {
			log.Info("pending tasks exported", zap.Int("count", exported))
		}
		return err
	}, timeout, log)
}

// Tick requests a run. It never blocks.
func (p *Pulse) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	if p.running {
		if p.pending {
			PulseRuns.WithLabelValues("coalesced").Inc()
		} else {
			p.pending = true
			PulseRuns.WithLabelValues("deferred").Inc()
		}
		return
	}
	p.running = true
	p.wg.Add(1)
	go p.loop()
}

func (p *Pulse) loop() {
	defer p.wg.Done()
	for {
		PulseRuns.WithLabelValues("started").Inc()
		p.runOnce()

		p.mu.Lock()
		if p.pending && p.ctx.Err() == nil {
			p.pending = false
			p.mu.Unlock()
			continue
		}
		p.running = false
		p.pending = false
		p.mu.Unlock()
		return
	}
}

func (p *Pulse) runOnce() {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.job(ctx); err != nil {
		p.log.Warn("sync pulse run failed", zap.Error(err))
	}
}

// Wait blocks until no run is in flight.
func (p *Pulse) Wait() {
	p.wg.Wait()
}

// Stop cancels the current run, drops any pending one and waits for the worker to exit.
func (p *Pulse) Stop() {
	p.cancel()
	p.wg.Wait()
}
