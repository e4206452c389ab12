package types

// OutcomeStatus classifies the terminal state of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every manifest file was delivered.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial indicates retries were exhausted with files unresolved.
	OutcomePartial OutcomeStatus = "partial"
	// OutcomeFatal indicates a setup error aborted the run before or during
	// the first attempt (unreadable source, unreachable remote).
	OutcomeFatal OutcomeStatus = "fatal"
)

// StreamOutcome is the terminal result of one stream pipeline.
type StreamOutcome struct {
	// Stream is the stream index.
	Stream int `json:"stream"`
	// Success is true when every pipeline stage exited zero.
	Success bool `json:"success"`
	// Assigned lists the paths the stream was scheduled to carry, in order.
	Assigned []string `json:"assigned"`
	// Delivered lists the paths acknowledged by the remote consumer before
	// the stream terminated, in acknowledgment order. On success this may
	// lag Assigned; the whole plan still counts as delivered.
	Delivered []string `json:"delivered"`
	// BytesMoved is the byte count observed through the buffer stage.
	BytesMoved int64 `json:"bytes_moved"`
	// Message describes the failure, empty on success.
	Message string `json:"message,omitempty"`
}

// DeliveredSet returns the set of paths this outcome proves were written
// remotely. A successful stream delivered its whole assignment; a failed
// stream delivered only what the consumer acknowledged.
func (o StreamOutcome) DeliveredSet() map[string]struct{} {
	var paths []string
	if o.Success {
		paths = o.Assigned
	} else {
		paths = o.Delivered
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// TransferOutcome is the aggregate terminal result of one attempt.
type TransferOutcome struct {
	// Success is true when every stream succeeded.
	Success bool `json:"success"`
	// Streams holds the per-stream outcomes, indexed by stream.
	Streams []StreamOutcome `json:"streams"`
	// Message summarizes the failure, empty on success.
	Message string `json:"message,omitempty"`
}
