package transfer

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/pipeline"
	"github.com/milmillin/copyem/types"
)

type fakeRunner struct {
	outcome types.StreamOutcome
}

func (r *fakeRunner) Wait() *types.StreamOutcome { return &r.outcome }
func (r *fakeRunner) Terminate()                 {}

func testConfig(parallelism, maxRetries int, factory RunnerFactory) *Config {
	meta := &types.RunMeta{RunID: "test-run", Attempt: 1}
	return &Config{
		SourceDir:   "/src",
		Remote:      "user@host",
		DestDir:     "/dst",
		Parallelism: parallelism,
		BufferBytes: 1 << 20,
		Cost:        types.CostModel{SpeedBps: 1 << 20, Latency: 0.1},
		MaxRetries:  maxRetries,
		RunMeta:     meta,
		Logger:      log.NewLoggerWithWriter(meta, io.Discard),
		Collector:   metrics.NewCollector(meta.RunID, "user@host"),
		Factory:     factory,
	}
}

func makeManifest(n int, size int64) types.Manifest {
	m := make(types.Manifest, n)
	for i := range m {
		m[i] = types.FileEntry{Path: fmt.Sprintf("f%03d.bin", i), Size: size}
	}
	return m
}

func TestExecuteEmptyManifest(t *testing.T) {
	c, err := NewCoordinator(testConfig(2, 0, func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		t.Fatal("factory called for empty manifest")
		return nil, nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomeSuccess {
		t.Errorf("status = %q, want success", report.Status)
	}
	if report.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", report.Attempts)
	}
}

func TestExecuteSingleAttemptSuccess(t *testing.T) {
	factory := func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		return &fakeRunner{outcome: types.StreamOutcome{
			Stream:     cfg.Plan.Stream,
			Success:    true,
			Assigned:   planPaths(cfg.Plan),
			BytesMoved: cfg.Plan.TotalBytes(),
		}}, nil
	}
	c, err := NewCoordinator(testConfig(3, 2, factory))
	if err != nil {
		t.Fatal(err)
	}

	manifest := makeManifest(10, 1024)
	report, err := c.Execute(context.Background(), manifest)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomeSuccess {
		t.Fatalf("status = %q, want success: %s", report.Status, report.Message)
	}
	if report.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", report.Attempts)
	}
	if report.FilesDelivered != 10 || len(report.FilesUnresolved) != 0 {
		t.Errorf("delivered = %d, unresolved = %v", report.FilesDelivered, report.FilesUnresolved)
	}
	if report.RunID != "test-run" {
		t.Errorf("run id = %q", report.RunID)
	}
}

func TestRetryCeiling(t *testing.T) {
	// A stream that never delivers anything must be retried exactly
	// MaxRetries times before the run settles as partial.
	var launches atomic.Int64
	factory := func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		launches.Add(1)
		return &fakeRunner{outcome: types.StreamOutcome{
			Stream:   cfg.Plan.Stream,
			Assigned: planPaths(cfg.Plan),
			Message:  "ssh exited 255",
		}}, nil
	}
	c, err := NewCoordinator(testConfig(1, 2, factory))
	if err != nil {
		t.Fatal(err)
	}

	manifest := makeManifest(4, 512)
	report, err := c.Execute(context.Background(), manifest)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomePartial {
		t.Fatalf("status = %q, want partial", report.Status)
	}
	if report.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", report.Attempts)
	}
	if got := launches.Load(); got != 3 {
		t.Errorf("launches = %d, want 3", got)
	}
	if len(report.FilesUnresolved) != 4 {
		t.Errorf("unresolved = %d files, want all 4", len(report.FilesUnresolved))
	}
	if report.Metrics.AttemptsFailed != 3 {
		t.Errorf("attempts failed metric = %d, want 3", report.Metrics.AttemptsFailed)
	}
}

func TestPartialDeliveryRecovery(t *testing.T) {
	// 100 equal files over 4 streams. One stream drops its connection after
	// 10 of its 25 files; the retry carries exactly the missing 15 and the
	// run still finishes fully delivered.
	var attempt atomic.Int64
	factory := func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		assigned := planPaths(cfg.Plan)
		if cfg.Plan.Stream == 2 && attempt.Load() == 0 {
			return &fakeRunner{outcome: types.StreamOutcome{
				Stream:    cfg.Plan.Stream,
				Assigned:  assigned,
				Delivered: assigned[:10],
				Message:   "ssh exited 255: connection reset",
			}}, nil
		}
		return &fakeRunner{outcome: types.StreamOutcome{
			Stream:   cfg.Plan.Stream,
			Success:  true,
			Assigned: assigned,
		}}, nil
	}
	// Streams launch in index order, so the last stream of each attempt
	// advances the attempt counter.
	wrapped := func(ctx context.Context, pcfg *pipeline.Config) (Runner, error) {
		r, err := factory(ctx, pcfg)
		if pcfg.Plan.Stream == 3 {
			attempt.Add(1)
		}
		return r, err
	}
	c, err := NewCoordinator(testConfig(4, 1, wrapped))
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Execute(context.Background(), makeManifest(100, 1<<20))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomeSuccess {
		t.Fatalf("status = %q, want success: %s", report.Status, report.Message)
	}
	if report.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", report.Attempts)
	}
	if report.History[0].Files != 100 {
		t.Errorf("first attempt files = %d, want 100", report.History[0].Files)
	}
	if report.History[1].Files != 15 {
		t.Errorf("retry files = %d, want 15", report.History[1].Files)
	}
	if report.FilesDelivered != 100 || len(report.FilesUnresolved) != 0 {
		t.Errorf("delivered = %d, unresolved = %v", report.FilesDelivered, report.FilesUnresolved)
	}
}

func TestFailureAfterFullDeliveryIsSuccess(t *testing.T) {
	// A transport fault after every file acknowledged leaves nothing to
	// retry; the run reports success without a second attempt.
	var launches atomic.Int64
	factory := func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		launches.Add(1)
		assigned := planPaths(cfg.Plan)
		return &fakeRunner{outcome: types.StreamOutcome{
			Stream:    cfg.Plan.Stream,
			Assigned:  assigned,
			Delivered: assigned,
			Message:   "ssh exited 255 at teardown",
		}}, nil
	}
	c, err := NewCoordinator(testConfig(2, 3, factory))
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Execute(context.Background(), makeManifest(6, 100))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomeSuccess {
		t.Fatalf("status = %q, want success", report.Status)
	}
	if got := launches.Load(); got != 2 {
		t.Errorf("launches = %d, want 2 (no retry)", got)
	}
}

func TestLaunchFailureFeedsRecovery(t *testing.T) {
	// A pipeline that cannot start delivers nothing; its assignment must
	// land back in the residual and succeed on retry.
	var failed atomic.Bool
	factory := func(ctx context.Context, cfg *pipeline.Config) (Runner, error) {
		if cfg.Plan.Stream == 1 && failed.CompareAndSwap(false, true) {
			return nil, fmt.Errorf("fork: resource temporarily unavailable")
		}
		return &fakeRunner{outcome: types.StreamOutcome{
			Stream:   cfg.Plan.Stream,
			Success:  true,
			Assigned: planPaths(cfg.Plan),
		}}, nil
	}
	c, err := NewCoordinator(testConfig(2, 1, factory))
	if err != nil {
		t.Fatal(err)
	}

	report, err := c.Execute(context.Background(), makeManifest(8, 256))
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != types.OutcomeSuccess {
		t.Fatalf("status = %q, want success: %s", report.Status, report.Message)
	}
	if report.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", report.Attempts)
	}
	if report.Metrics.LaunchFailures != 1 {
		t.Errorf("launch failures = %d, want 1", report.Metrics.LaunchFailures)
	}
}

func TestNewCoordinatorRejectsBadConfig(t *testing.T) {
	base := testConfig(1, 0, nil)

	bad := *base
	bad.Parallelism = 0
	if _, err := NewCoordinator(&bad); err == nil {
		t.Error("parallelism 0 accepted")
	}

	bad = *base
	bad.MaxRetries = -1
	if _, err := NewCoordinator(&bad); err == nil {
		t.Error("negative max retries accepted")
	}

	bad = *base
	bad.Cost.SpeedBps = 0
	if _, err := NewCoordinator(&bad); err == nil {
		t.Error("zero speed accepted")
	}
}
