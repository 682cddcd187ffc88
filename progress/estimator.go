// Package progress approximates visual progress for remote jobs whose
// real completion signals arrive asynchronously and sparsely.
package progress

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Config controls the estimator's pacing.
type Config struct {
	// TickInterval is how often the simulated estimate advances.
	TickInterval time.Duration // default: 1s

	// MaxIncrement bounds the random advance per tick.
	MaxIncrement float64 // default: 4

	// Hold is the ceiling the simulation will not cross on its own, to
	// avoid implying near-completion before the server confirms it.
	Hold float64 // default: 85

	// CompleteStep and CompleteInterval pace the rapid wrap-up to 100
	// once the job is known to be done.
	CompleteStep     float64       // default: 5
	CompleteInterval time.Duration // default: 50ms
}

func (c *Config) defaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MaxIncrement <= 0 {
		c.MaxIncrement = 4
	}
	if c.Hold <= 0 {
		c.Hold = 85
	}
	if c.CompleteStep <= 0 {
		c.CompleteStep = 5
	}
	if c.CompleteInterval <= 0 {
		c.CompleteInterval = 50 * time.Millisecond
	}
}

// Estimator produces a monotonically increasing progress percentage for
// one job at a time. Safe for concurrent use. Restarting discards the
// previous run entirely.
type Estimator struct {
	cfg Config

	mu    sync.Mutex
	value float64
	epoch int
	done  chan struct{}
}

// New creates an Estimator. Zero fields in cfg take defaults.
func New(cfg Config) *Estimator {
	cfg.defaults()
	return &Estimator{cfg: cfg}
}

// Start resets the estimate to 0 and begins periodic simulated advance.
// Any previous run is discarded, not resumed.
func (e *Estimator) Start() {
	e.mu.Lock()
	e.halt()
	e.value = 0
	e.epoch++
	e.done = make(chan struct{})
	epoch, done := e.epoch, e.done
	e.mu.Unlock()

	go e.tickLoop(epoch, done)
}

// ReportReal overwrites the estimate with a server-reported percentage.
// Real data wins over simulation but never regresses it.
func (e *Estimator) ReportReal(p float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p > e.value {
		e.value = min(p, 100)
	}
}

// Complete stops the simulation and rapidly advances the estimate to
// exactly 100. Safe to call in any state, and more than once.
func (e *Estimator) Complete() {
	e.mu.Lock()
	e.halt()
	if e.value >= 100 {
		e.value = 100
		e.mu.Unlock()
		return
	}
	e.epoch++
	e.done = make(chan struct{})
	epoch, done := e.epoch, e.done
	e.mu.Unlock()

	go e.wrapUpLoop(epoch, done)
}

// Stop halts all timers without forcing completion. Idempotent.
func (e *Estimator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.halt()
}

// Value returns the current estimate.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// halt cancels the active loop. Caller must hold e.mu.
func (e *Estimator) halt() {
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	e.epoch++
}

func (e *Estimator) tickLoop(epoch int, done chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.epoch != epoch {
				e.mu.Unlock()
				return
			}
			if e.value < e.cfg.Hold {
				e.value = min(e.value+rand.Float64()*e.cfg.MaxIncrement, e.cfg.Hold)
			}
			e.mu.Unlock()
		}
	}
}

func (e *Estimator) wrapUpLoop(epoch int, done chan struct{}) {
	ticker := time.NewTicker(e.cfg.CompleteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.epoch != epoch {
				e.mu.Unlock()
				return
			}
			e.value = min(e.value+e.cfg.CompleteStep, 100)
			if e.value >= 100 {
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
		}
	}
}
