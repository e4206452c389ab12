package progress

import (
	"sync"

	"github.com/milmillin/copyem/types"
)

// StreamLine is the display state of one stream.
type StreamLine struct {
	Stream     int
	Status     string
	FilesDone  int
	FilesTotal int
	LastFile   string
}

// View is a snapshot of everything the display renders.
type View struct {
	Streams []StreamLine
	Stats   Stats
}

// Tracker drains progress events and maintains per-stream display state.
// One tracker serves the whole run across attempts.
type Tracker struct {
	mu      sync.Mutex
	streams map[int]*StreamLine
	meter   *Meter
	done    chan struct{}
}

// NewTracker creates a tracker for a run moving totalBytes in total.
func NewTracker(totalBytes int64) *Tracker {
	t := &Tracker{
		streams: make(map[int]*StreamLine),
		meter:   NewMeter(),
		done:    make(chan struct{}),
	}
	t.meter.Start(totalBytes)
	return t
}

// SetPlan records the file counts for each stream of the current attempt,
// resetting per-stream completion counters.
func (t *Tracker) SetPlan(plans []types.StreamPlan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams = make(map[int]*StreamLine, len(plans))
	for _, p := range plans {
		t.streams[p.Stream] = &StreamLine{
			Stream:     p.Stream,
			FilesTotal: len(p.Files),
		}
	}
}

// Run consumes events until the channel closes. Call in a goroutine; Wait
// blocks until the drain finishes.
func (t *Tracker) Run(events <-chan types.ProgressEvent) {
	defer close(t.done)
	for ev := range events {
		t.apply(ev)
	}
}

// Wait blocks until Run has drained the event channel.
func (t *Tracker) Wait() { <-t.done }

func (t *Tracker) apply(ev types.ProgressEvent) {
	if ev.BytesDelta > 0 {
		t.meter.Add(ev.BytesDelta)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	line, ok := t.streams[ev.Stream]
	if !ok {
		line = &StreamLine{Stream: ev.Stream}
		t.streams[ev.Stream] = line
	}
	if ev.Status != "" {
		line.Status = ev.Status
	}
	if ev.File != "" {
		line.FilesDone++
		line.LastFile = ev.File
	}
}

// View returns a render-ready snapshot, streams ordered by index.
func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	view := View{Stats: t.meter.Snapshot()}
	for i := 0; ; i++ {
		line, ok := t.streams[i]
		if !ok {
			break
		}
		view.Streams = append(view.Streams, *line)
	}
	return view
}
