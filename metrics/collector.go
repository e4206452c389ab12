// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. Per-stream byte counters are
// absorbed from stream outcomes at attempt completion rather than recorded
// live, avoiding double-counting across retries.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Attempt lifecycle
	AttemptsStarted  int64 `json:"attempts_started"`
	AttemptsSucceeded int64 `json:"attempts_succeeded"`
	AttemptsFailed   int64 `json:"attempts_failed"`

	// Streams
	StreamsLaunched int64 `json:"streams_launched"`
	StreamsSucceeded int64 `json:"streams_succeeded"`
	StreamsFailed   int64 `json:"streams_failed"`
	LaunchFailures  int64 `json:"launch_failures"`

	// Transfer
	FilesAcked int64 `json:"files_acked"`
	BytesMoved int64 `json:"bytes_moved"`

	// Scraping
	StatusParseErrors int64 `json:"status_parse_errors"`

	// Dimensions (informational, set at construction)
	RunID  string `json:"run_id"`
	Remote string `json:"remote"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	attemptsStarted   int64
	attemptsSucceeded int64
	attemptsFailed    int64

	streamsLaunched  int64
	streamsSucceeded int64
	streamsFailed    int64
	launchFailures   int64

	filesAcked int64
	bytesMoved int64

	statusParseErrors int64

	runID  string
	remote string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(runID, remote string) *Collector {
	return &Collector{runID: runID, remote: remote}
}

// IncAttemptStarted records the start of an attempt.
func (c *Collector) IncAttemptStarted() {
	if c == nil {
		return
	}
	c.inc(&c.attemptsStarted)
}

// IncAttemptSucceeded records a fully delivered attempt.
func (c *Collector) IncAttemptSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.attemptsSucceeded)
}

// IncAttemptFailed records an attempt that left files undelivered.
func (c *Collector) IncAttemptFailed() {
	if c == nil {
		return
	}
	c.inc(&c.attemptsFailed)
}

// IncStreamLaunched records one pipeline successfully started.
func (c *Collector) IncStreamLaunched() {
	if c == nil {
		return
	}
	c.inc(&c.streamsLaunched)
}

// IncLaunchFailure records a pipeline that failed to start.
func (c *Collector) IncLaunchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.launchFailures)
}

// IncStatusParseErrors records a buffer status line that did not parse.
func (c *Collector) IncStatusParseErrors() {
	if c == nil {
		return
	}
	c.inc(&c.statusParseErrors)
}

// AbsorbStreamOutcome folds one terminated stream's counters into the run
// totals. Call exactly once per stream outcome.
func (c *Collector) AbsorbStreamOutcome(success bool, filesAcked int, bytesMoved int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.streamsSucceeded++
	} else {
		c.streamsFailed++
	}
	c.filesAcked += int64(filesAcked)
	c.bytesMoved += bytesMoved
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		AttemptsStarted:   c.attemptsStarted,
		AttemptsSucceeded: c.attemptsSucceeded,
		AttemptsFailed:    c.attemptsFailed,
		StreamsLaunched:   c.streamsLaunched,
		StreamsSucceeded:  c.streamsSucceeded,
		StreamsFailed:     c.streamsFailed,
		LaunchFailures:    c.launchFailures,
		FilesAcked:        c.filesAcked,
		BytesMoved:        c.bytesMoved,
		StatusParseErrors: c.statusParseErrors,
		RunID:             c.runID,
		Remote:            c.remote,
	}
}

func (c *Collector) inc(counter *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	*counter++
}
