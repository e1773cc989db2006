package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/logger"
)

// Start runs one step immediately and then one per interval until Stop.
// A non-positive interval uses the configured step interval.
func (e *Engine) Start(interval time.Duration) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		interval = e.cfg.StepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := e.clock.NewTicker(interval)
	e.running, e.cancel, e.done = true, cancel, done

	go e.loop(ctx, ticker, done)

	e.log.Engine("start", "interval=%s", interval)
	e.events.Publish(communication.EventSimulationRun, map[string]any{"interval_ms": interval.Milliseconds()})
	return nil
}

// Stop prevents further steps. A step already in progress still completes.
// It reports whether the engine was running.
func (e *Engine) Stop() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if !e.running {
		return false
	}
	e.cancel()
	e.running = false
	e.log.Engine("stop", "simulation stopped")
	e.events.Publish(communication.EventSimulationHalt, nil)
	return true
}

// Running reports the lifecycle state.
func (e *Engine) Running() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.running
}

// Close stops the loop, waits for it to exit and drains ledger writes.
func (e *Engine) Close() {
	e.lifeMu.Lock()
	done := e.done
	e.lifeMu.Unlock()

	e.Stop()
	if done != nil {
		<-done
	}
	e.chainQ.Close()
}

func (e *Engine) loop(ctx context.Context, t Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			e.tick(ctx)
		}
	}
}

// tick runs a step unless one is already in progress.
func (e *Engine) tick(ctx context.Context) bool {
	if !e.stepMu.TryLock() {
		e.log.Engine("tick", "previous step still running, skipping")
		return false
	}
	defer e.stepMu.Unlock()

	if _, err := e.runStep(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, ErrNoAgents) {
			e.log.Debug(logger.ENGINE, "tick: %v", err)
		} else {
			e.log.Error("step", "%v", err)
		}
	}
	return true
}
