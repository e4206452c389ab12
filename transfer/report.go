package transfer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/types"
)

// AttemptSummary records one attempt for the run report.
type AttemptSummary struct {
	Attempt    int                   `json:"attempt"`
	Files      int                   `json:"files"`
	Bytes      int64                 `json:"bytes"`
	Makespan   float64               `json:"estimated_makespan_seconds"`
	Success    bool                  `json:"success"`
	Streams    []types.StreamOutcome `json:"streams"`
	DurationMs int64                 `json:"duration_ms"`
}

// Report is the machine-readable record of a completed run.
type Report struct {
	RunID           string              `json:"run_id"`
	Status          types.OutcomeStatus `json:"status"`
	Remote          string              `json:"remote"`
	DestDir         string              `json:"dest_dir"`
	Parallelism     int                 `json:"parallelism"`
	Attempts        int                 `json:"attempts"`
	FilesTotal      int                 `json:"files_total"`
	FilesDelivered  int                 `json:"files_delivered"`
	FilesUnresolved []string            `json:"files_unresolved,omitempty"`
	BytesTotal      int64               `json:"bytes_total"`
	BytesMoved      int64               `json:"bytes_moved"`
	ElapsedMs       int64               `json:"elapsed_ms"`
	Message         string              `json:"message,omitempty"`
	History         []AttemptSummary    `json:"history,omitempty"`
	Metrics         metrics.Snapshot    `json:"metrics"`
}

// buildReport assembles the final report from the coordinator's state.
// residual is nil on success; on partial outcomes it holds the files that
// never acknowledged.
func (c *Coordinator) buildReport(status types.OutcomeStatus, manifest, residual types.Manifest, msg string) *Report {
	snap := c.cfg.Collector.Snapshot()
	r := &Report{
		Status:          status,
		Remote:          c.cfg.Remote,
		DestDir:         c.cfg.DestDir,
		Parallelism:     c.cfg.Parallelism,
		Attempts:        len(c.history),
		FilesTotal:      len(manifest),
		FilesDelivered:  len(manifest) - len(residual),
		FilesUnresolved: sortedPaths(residual),
		BytesTotal:      manifest.TotalBytes(),
		BytesMoved:      snap.BytesMoved,
		ElapsedMs:       time.Since(c.startTime).Milliseconds(),
		Message:         msg,
		History:         c.history,
		Metrics:         snap,
	}
	if c.cfg.RunMeta != nil {
		r.RunID = c.cfg.RunMeta.RunID
	}
	return r
}

// WriteReport serializes the report as indented JSON to path. "-" writes to
// stderr so stdout stays clean for scripting.
func WriteReport(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stderr.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
