package trigger

import (
	"errors"
	"sort"
	"time"

	"evcore/internal/domain"
	"evcore/internal/metrics"
)

// ErrAlreadyMonitoring reports a second StartMonitoring call while the loop
// is still running.
var ErrAlreadyMonitoring = errors.New("trigger engine is already monitoring")

// SetPeriod changes the monitor polling period. Takes effect on the next
// StartMonitoring call.
func (e *Engine) SetPeriod(d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	e.mu.Lock()
	e.period = d
	e.mu.Unlock()
}

// StartMonitoring launches the background polling loop. Each tick collects
// the interval-bound actions that are due and hands them to callback.
// Idempotent: a second call while running returns ErrAlreadyMonitoring.
func (e *Engine) StartMonitoring(callback func([]domain.Action)) error {
	e.mu.Lock()
	if e.monitoring {
		e.mu.Unlock()
		return ErrAlreadyMonitoring
	}
	e.monitoring = true
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stopCh = stop
	e.doneCh = done
	period := e.period
	e.mu.Unlock()

	metrics.Monitoring.Set(1)
	e.logger.Info("monitoring started", "period", period)

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if due := e.Due(); len(due) > 0 && callback != nil {
					callback(due)
				}
			}
		}
	}()
	return nil
}

// StopMonitoring asks the loop to exit. Cooperative: the loop may run for up
// to one more polling period. Safe to call when not monitoring.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	if !e.monitoring {
		e.mu.Unlock()
		return
	}
	e.monitoring = false
	stop := e.stopCh
	e.mu.Unlock()

	close(stop)
	metrics.Monitoring.Set(0)
	e.logger.Info("monitoring stopped")
}

// Monitoring reports whether the loop is active.
func (e *Engine) Monitoring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.monitoring
}

// Wait blocks until the monitor goroutine has exited. Only meaningful after
// StopMonitoring.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.doneCh
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Due returns the enabled actions whose interval triggers have elapsed,
// priority-ordered, advancing their last-run timestamps. This is the
// time-triggered path; Analyze never sees interval triggers.
func (e *Engine) Due() []domain.Action {
	now := e.now()

	e.mu.Lock()
	var due []domain.Action
	for _, name := range e.bindOrder {
		st, ok := e.actions[name]
		if !ok || !st.Enabled {
			continue
		}
		for _, t := range e.triggers[name] {
			if t.kind != KindInterval {
				continue
			}
			if now.Sub(st.lastRun) < t.interval {
				continue
			}
			if st.Cooldown > 0 && now.Sub(st.lastRun) < st.Cooldown {
				continue
			}
			st.lastRun = now
			due = append(due, st.Action)
			break
		}
	}
	e.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Priority > due[j].Priority
	})
	return due
}
