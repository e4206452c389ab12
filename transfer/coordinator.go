// Package transfer runs the attempt loop: schedule the manifest across N
// streams, orchestrate the stream pipelines, and on partial failure derive
// a residual manifest and go again, up to the retry ceiling.
package transfer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/pipeline"
	"github.com/milmillin/copyem/recovery"
	"github.com/milmillin/copyem/schedule"
	"github.com/milmillin/copyem/types"
)

// Runner abstracts one live stream pipeline for test injection.
type Runner interface {
	// Wait supervises the pipeline to termination and returns its outcome.
	Wait() *types.StreamOutcome
	// Terminate kills the pipeline's stages promptly.
	Terminate()
}

// RunnerFactory launches the pipeline for one stream plan.
// Overridden in tests; nil uses real process pipelines.
type RunnerFactory func(ctx context.Context, cfg *pipeline.Config) (Runner, error)

// Config configures a coordinator for one run invocation.
type Config struct {
	// SourceDir is the local source root.
	SourceDir string
	// Remote is the ssh destination.
	Remote string
	// DestDir is the destination root on the remote.
	DestDir string
	// Parallelism is the stream count N. Retries reschedule across the
	// same N rather than adapting to the shrinking file set, preserving
	// the parallelism the operator asked for.
	Parallelism int
	// BufferBytes sizes each stream's buffering stage.
	BufferBytes int64
	// Cost estimates per-file transfer time for scheduling.
	Cost types.CostModel
	// MaxRetries bounds recovery: at most MaxRetries+1 attempts.
	MaxRetries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Events receives progress samples. May be nil.
	Events chan<- types.ProgressEvent
	// Logger receives run-scoped entries. Required.
	Logger *log.Logger
	// Collector accumulates run metrics. Nil-safe.
	Collector *metrics.Collector
	// Factory overrides pipeline creation (for testing).
	Factory RunnerFactory
}

// Coordinator owns the state of one run invocation. All retry counters and
// attempt history are scoped here, never process-wide, so concurrent runs
// in one host process stay independent.
type Coordinator struct {
	cfg       *Config
	startTime time.Time
	history   []AttemptSummary
}

// NewCoordinator validates the configuration and creates a coordinator.
func NewCoordinator(cfg *Config) (*Coordinator, error) {
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("parallelism must be >= 1, got %d", cfg.Parallelism)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.Cost.SpeedBps <= 0 {
		return nil, fmt.Errorf("assumed speed must be positive, got %d", cfg.Cost.SpeedBps)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Coordinator{cfg: cfg}, nil
}

// Execute runs attempts over the manifest until full delivery, retry
// exhaustion, or cancellation. The returned report is always non-nil;
// the error is non-nil only for cancellation.
func (c *Coordinator) Execute(ctx context.Context, manifest types.Manifest) (*Report, error) {
	c.startTime = time.Now()
	current := manifest

	for attempt := 1; ; attempt++ {
		if len(current) == 0 {
			// Empty manifest (or nothing left): trivial success.
			return c.buildReport(types.OutcomeSuccess, manifest, nil, ""), nil
		}

		c.cfg.Collector.IncAttemptStarted()
		outcome, canceled := c.runAttempt(ctx, attempt, current)

		residual := recovery.Residual(current, outcome.Streams)

		if len(residual) == 0 {
			// Either every stream succeeded, or the fault hit after all
			// data had landed; both are full success.
			c.cfg.Collector.IncAttemptSucceeded()
			if !outcome.Success {
				c.cfg.Logger.Info("all files delivered despite reported failure", map[string]any{
					"attempt": attempt,
					"message": outcome.Message,
				})
			}
			return c.buildReport(types.OutcomeSuccess, manifest, nil, ""), nil
		}

		c.cfg.Collector.IncAttemptFailed()
		c.cfg.Logger.Warn("attempt left files undelivered", map[string]any{
			"attempt":   attempt,
			"remaining": len(residual),
			"message":   outcome.Message,
		})

		if canceled {
			return c.buildReport(types.OutcomePartial, manifest, residual, "run canceled"), ctx.Err()
		}
		if attempt > c.cfg.MaxRetries {
			msg := fmt.Sprintf("retries exhausted after %d attempts: %s", attempt, outcome.Message)
			return c.buildReport(types.OutcomePartial, manifest, residual, msg), nil
		}

		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
			return c.buildReport(types.OutcomePartial, manifest, residual, "run canceled"), ctx.Err()
		}

		current = residual
	}
}

// runAttempt schedules the manifest and supervises all N pipelines of one
// attempt to termination. The boolean reports whether ctx canceled the
// attempt.
func (c *Coordinator) runAttempt(ctx context.Context, attempt int, manifest types.Manifest) (*types.TransferOutcome, bool) {
	attemptStart := time.Now()
	plans := schedule.Partition(manifest, c.cfg.Parallelism, c.cfg.Cost)

	c.cfg.Logger.Info("attempt scheduled", map[string]any{
		"attempt":  attempt,
		"files":    len(manifest),
		"bytes":    manifest.TotalBytes(),
		"streams":  len(plans),
		"makespan": schedule.Makespan(plans),
	})

	outcomes := make([]types.StreamOutcome, len(plans))
	var (
		mu   sync.Mutex
		live []Runner
		wg   sync.WaitGroup
	)

	// Terminate every live pipeline on cancellation; outcomes are still
	// collected below so partial acknowledgments feed recovery.
	attemptCtx, stopWatch := context.WithCancel(ctx)
	go func() {
		<-attemptCtx.Done()
		mu.Lock()
		defer mu.Unlock()
		for _, r := range live {
			r.Terminate()
		}
	}()

	for i, plan := range plans {
		if len(plan.Files) == 0 {
			// More streams than files: an empty plan is a no-op success.
			outcomes[i] = types.StreamOutcome{Stream: plan.Stream, Success: true}
			continue
		}

		runner, err := c.launch(ctx, plan)
		if err != nil {
			c.cfg.Collector.IncLaunchFailure()
			c.cfg.Logger.Error("failed to launch pipeline", map[string]any{
				"stream": plan.Stream,
				"error":  err.Error(),
			})
			outcomes[i] = types.StreamOutcome{
				Stream:   plan.Stream,
				Assigned: planPaths(plan),
				Message:  fmt.Sprintf("launch failed: %v", err),
			}
			continue
		}
		c.cfg.Collector.IncStreamLaunched()

		mu.Lock()
		live = append(live, runner)
		mu.Unlock()

		wg.Add(1)
		go func(i int, r Runner) {
			defer wg.Done()
			outcomes[i] = *r.Wait()
		}(i, runner)
	}

	wg.Wait()
	stopWatch()

	outcome := &types.TransferOutcome{Success: true, Streams: outcomes}
	var faults []string
	for _, o := range outcomes {
		if !o.Success {
			outcome.Success = false
			faults = append(faults, fmt.Sprintf("stream %d: %s", o.Stream, o.Message))
		}
	}
	if len(faults) > 0 {
		outcome.Message = fmt.Sprintf("%d of %d streams failed (%s)",
			len(faults), len(plans), faults[0])
	}

	c.history = append(c.history, AttemptSummary{
		Attempt:    attempt,
		Files:      len(manifest),
		Bytes:      manifest.TotalBytes(),
		Makespan:   schedule.Makespan(plans),
		Success:    outcome.Success,
		Streams:    outcomes,
		DurationMs: time.Since(attemptStart).Milliseconds(),
	})

	return outcome, ctx.Err() != nil
}

func (c *Coordinator) launch(ctx context.Context, plan types.StreamPlan) (Runner, error) {
	pcfg := &pipeline.Config{
		Plan:        plan,
		SourceDir:   c.cfg.SourceDir,
		Remote:      c.cfg.Remote,
		DestDir:     c.cfg.DestDir,
		BufferBytes: c.cfg.BufferBytes,
		Events:      c.cfg.Events,
		Logger:      c.cfg.Logger,
		Collector:   c.cfg.Collector,
	}
	if c.cfg.Factory != nil {
		return c.cfg.Factory(ctx, pcfg)
	}
	return pipeline.Start(ctx, pcfg)
}

func planPaths(plan types.StreamPlan) []string {
	paths := make([]string, len(plan.Files))
	for i, f := range plan.Files {
		paths[i] = f.Path
	}
	return paths
}

// sortedPaths returns a deterministic copy of a path set for reporting.
func sortedPaths(m types.Manifest) []string {
	paths := m.Paths()
	sort.Strings(paths)
	return paths
}
