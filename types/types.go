// Package types defines core domain types for the copyem transfer engine.
//
//nolint:revive // types is a common Go package naming convention
package types

import "time"

// FileEntry is one candidate file, identified by its path relative to the
// source root.
type FileEntry struct {
	// Path is the relative path from the source root, using forward slashes.
	Path string `json:"path"`
	// Size is the local file size in bytes. Always >= 0.
	Size int64 `json:"size"`
	// RemoteSize is the size of the same relative path on the destination,
	// or nil if the file is absent remotely.
	RemoteSize *int64 `json:"remote_size,omitempty"`
}

// Eligible reports whether the entry still needs to be transferred.
// A file is skipped only when the remote copy exists with the exact same
// size. Content is never hashed.
func (e FileEntry) Eligible() bool {
	return e.RemoteSize == nil || *e.RemoteSize != e.Size
}

// Manifest is an ordered list of files to transfer, deduplicated by path.
// Manifests are immutable once built: recovery derives a new manifest
// rather than mutating in place.
type Manifest []FileEntry

// TotalBytes returns the sum of all entry sizes.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, e := range m {
		total += e.Size
	}
	return total
}

// Paths returns the entry paths in manifest order.
func (m Manifest) Paths() []string {
	paths := make([]string, len(m))
	for i, e := range m {
		paths[i] = e.Path
	}
	return paths
}

// Without returns a new manifest with every path in exclude removed.
// Order of the remaining entries is preserved.
func (m Manifest) Without(exclude map[string]struct{}) Manifest {
	if len(exclude) == 0 {
		out := make(Manifest, len(m))
		copy(out, m)
		return out
	}
	out := make(Manifest, 0, len(m))
	for _, e := range m {
		if _, ok := exclude[e.Path]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CostModel estimates per-file transfer cost from an assumed link speed and
// a fixed per-file latency. Constant for the duration of a run.
type CostModel struct {
	// SpeedBps is the assumed outgoing network speed in bytes per second.
	SpeedBps int64
	// Latency is the fixed per-file setup cost in seconds.
	Latency float64
}

// Cost returns the estimated seconds to transfer size bytes.
func (c CostModel) Cost(size int64) float64 {
	return c.Latency + float64(size)/float64(c.SpeedBps)
}

// StreamPlan is the ordered work list for one transfer stream.
type StreamPlan struct {
	// Stream is the zero-based stream index.
	Stream int `json:"stream"`
	// Files are transferred strictly in this order within the stream.
	Files []FileEntry `json:"files"`
	// EstimatedTime is the sum of per-file costs in seconds.
	EstimatedTime float64 `json:"estimated_time"`
}

// TotalBytes returns the sum of the plan's file sizes.
func (p StreamPlan) TotalBytes() int64 {
	var total int64
	for _, e := range p.Files {
		total += e.Size
	}
	return total
}

// ProgressEvent is one progress sample forwarded to the external sink.
// Events for different streams interleave arbitrarily.
type ProgressEvent struct {
	// Stream is the originating stream index.
	Stream int
	// BytesDelta is the number of bytes moved since the previous event
	// for this stream. Zero for pure file-completion events.
	BytesDelta int64
	// File is the relative path just confirmed written remotely, or empty.
	File string
	// Status is the raw buffer-stage status line, for display only.
	Status string
	// Time is when the sample was taken.
	Time time.Time
}

// RunMeta identifies one run invocation and its current attempt.
type RunMeta struct {
	// RunID is a unique identifier for the whole run.
	RunID string
	// Attempt is the attempt number, starting at 1.
	Attempt int
}
