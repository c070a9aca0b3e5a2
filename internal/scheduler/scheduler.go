// Package scheduler runs poll cycles on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

// RunFunc is one poll cycle
type RunFunc func(ctx context.Context) error

// CycleResult is the outcome of one run of a cycle
type CycleResult struct {
	Cycle     string
	Stage     string // Failed step, empty on success
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the run succeeded
func (r CycleResult) OK() bool {
	return r.Err == nil
}

type staged interface {
	Stage() string
}

type job struct {
	name     string
	interval time.Duration
	run      RunFunc

	running atomic.Bool

	mu   sync.Mutex
	last CycleResult
	runs int
}

// Scheduler runs each registered cycle once at start and then on every tick
// of its interval. A tick is skipped while the previous run of the same
// cycle is still going.
type Scheduler struct {
	logger *slog.Logger
	jobs   []*job
	wg     sync.WaitGroup
}

// New creates an empty scheduler
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Add registers a cycle. It must be called before Run.
func (s *Scheduler) Add(name string, interval time.Duration, run RunFunc) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// Run blocks until ctx is cancelled and every in-flight run has returned
func (s *Scheduler) Run(ctx context.Context) {
	var loops sync.WaitGroup
	for _, j := range s.jobs {
		loops.Add(1)
		go func() {
			defer loops.Done()
			s.loop(ctx, j)
		}()
	}
	loops.Wait()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	s.logger.Info("cycle scheduled", "cycle", j.name, "interval", j.interval)
	s.trigger(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, j)
		}
	}
}

// trigger starts a run unless one is already in progress
func (s *Scheduler) trigger(ctx context.Context, j *job) bool {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping tick", "cycle", j.name)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		s.execute(ctx, j)
	}()
	return true
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	result := CycleResult{Cycle: j.name, StartedAt: time.Now()}

	err := safeRun(ctx, j.run)
	result.Duration = time.Since(result.StartedAt)
	result.Err = err

	var st staged
	if errors.As(err, &st) {
		result.Stage = st.Stage()
	}

	j.mu.Lock()
	j.last = result
	j.runs++
	j.mu.Unlock()

	telemetry.ObserveCycle(j.name, result.Duration, err)

	if err != nil {
		s.logger.Error("cycle failed",
			"cycle", j.name,
			"stage", result.Stage,
			"error", err,
			"duration", result.Duration,
		)
		return
	}
	s.logger.Debug("cycle completed", "cycle", j.name, "duration", result.Duration)
}

// safeRun turns a panic in a cycle into an error so the loop keeps going
func safeRun(ctx context.Context, run RunFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return run(ctx)
}

// LastResults returns the most recent result of every cycle that has run,
// ordered by cycle name
func (s *Scheduler) LastResults() []CycleResult {
	out := make([]CycleResult, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		if j.runs > 0 {
			out = append(out, j.last)
		}
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Cycle < out[k].Cycle })
	return out
}

// LastResult returns the most recent result of a cycle
func (s *Scheduler) LastResult(name string) (CycleResult, bool) {
	for _, j := range s.jobs {
		if j.name != name {
			continue
		}
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.last, j.runs > 0
	}
	return CycleResult{}, false
}
