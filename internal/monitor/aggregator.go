package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Aggregator refreshes a HostState snapshot in the background so status
// requests never block on sampling.
type Aggregator struct {
	monitors []Monitor
	state    *HostState
	interval time.Duration
	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewAggregator(monitors []Monitor, interval time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		monitors: monitors,
		state:    &HostState{},
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Default builds an aggregator over the cpu, memory and process monitors.
func Default(interval time.Duration, logger *slog.Logger) *Aggregator {
	monitors := []Monitor{NewCPUMonitor(), NewMemoryMonitor()}
	if pm, err := NewProcessMonitor(); err != nil {
		logger.Warn("process monitor unavailable", "error", err)
	} else {
		monitors = append(monitors, pm)
	}
	return NewAggregator(monitors, interval, logger)
}

func (a *Aggregator) Start(ctx context.Context) {
	a.collect()

	go a.runLoop(ctx)

	a.logger.Debug("monitor started", "interval", a.interval, "monitors", len(a.monitors))
}

func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *Aggregator) State() *HostState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Clone()
}

func (a *Aggregator) runLoop(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.collect()
		case <-ctx.Done():
			return
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) collect() {
	next := &HostState{Timestamp: time.Now()}

	for _, m := range a.monitors {
		data, err := m.Collect()
		if err != nil {
			a.logger.Warn("monitor collection failed",
				"monitor", m.Name(),
				"error", err,
			)
			continue
		}

		switch v := data.(type) {
		case *CPUState:
			next.CPU = *v
		case *MemoryState:
			next.Memory = *v
		case *ProcessState:
			next.Process = *v
		}
	}

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()
}
