package pipeline

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/types"
)

// stderrTailLines bounds the retained diagnostic output per stage.
const stderrTailLines = 32

// statusRe matches mbuffer's periodic status line, e.g.
//
//	in @ 14.0 MiB/s, out @ 24.0 MiB/s,  656 MiB total, buffer  99% full
//
// Units vary in case (kiB vs MiB) and the rates jitter; only the total is
// monotonic and usable as a byte counter. Status lines are display input
// only, never a correctness signal.
var statusRe = regexp.MustCompile(`(?i)in\s+@\s+([\d.]+)\s+([kmg]?)iB/s.*out\s+@\s+([\d.]+)\s+([kmg]?)iB/s.*?([\d.]+)\s+([kmg]?)iB\s+total.*buffer\s+(\d+)%`)

var statusUnits = map[string]float64{
	"": 1, "k": 1024, "m": 1024 * 1024, "g": 1024 * 1024 * 1024,
}

// BufferStatus is one parsed buffer-stage status sample.
type BufferStatus struct {
	InRate     float64
	OutRate    float64
	TotalBytes int64
	BufferPct  int
}

// parseBufferStatus parses an mbuffer status line. Returns false for lines
// that are not status samples (startup notices, summaries).
func parseBufferStatus(line string) (BufferStatus, bool) {
	m := statusRe.FindStringSubmatch(line)
	if m == nil {
		return BufferStatus{}, false
	}

	in, _ := strconv.ParseFloat(m[1], 64)
	out, _ := strconv.ParseFloat(m[3], 64)
	total, _ := strconv.ParseFloat(m[5], 64)
	pct, _ := strconv.Atoi(m[7])

	return BufferStatus{
		InRate:     in * statusUnits[strings.ToLower(m[2])],
		OutRate:    out * statusUnits[strings.ToLower(m[4])],
		TotalBytes: int64(total * statusUnits[strings.ToLower(m[6])]),
		BufferPct:  pct,
	}, true
}

// monitor scrapes one stream's pipeline output: consumer acknowledgments
// (authoritative for recovery) and buffer status lines (display only).
// Counters are owned exclusively by this stream and snapshotted by readers.
type monitor struct {
	stream    int
	expected  map[string]struct{}
	events    chan<- types.ProgressEvent
	logger    *log.Logger
	collector *metrics.Collector

	mu           sync.Mutex
	delivered    []string
	deliveredSet map[string]struct{}
	bytesMoved   int64
	stderrTails  map[string][]string

	wg      sync.WaitGroup
	ackDone chan struct{}
}

func newMonitor(stream int, assigned []string, events chan<- types.ProgressEvent,
	logger *log.Logger, collector *metrics.Collector) *monitor {

	expected := make(map[string]struct{}, len(assigned))
	for _, p := range assigned {
		expected[p] = struct{}{}
	}
	return &monitor{
		stream:       stream,
		expected:     expected,
		events:       events,
		logger:       logger,
		collector:    collector,
		deliveredSet: make(map[string]struct{}),
		stderrTails:  make(map[string][]string),
		ackDone:      make(chan struct{}),
	}
}

// watchAcks scans the consumer's transcript for per-file acknowledgments.
// The consumer emits one line per fully written file; the scan closes
// ackDone at EOF, which is the signal that the transport stage may be
// reaped without losing buffered acknowledgments.
func (m *monitor) watchAcks(r io.Reader) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(m.ackDone)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			path, ok := normalizeAck(scanner.Text())
			if !ok {
				continue
			}
			m.recordAck(path)
		}
	}()
}

// watchStatus scans buffer status lines from the status stream, deriving
// byte deltas from the monotonic total and forwarding raw lines for
// display.
func (m *monitor) watchStatus(r io.Reader) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		scanner := bufio.NewScanner(r)
		var lastTotal int64
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			status, ok := parseBufferStatus(line)
			var delta int64
			if ok {
				if status.TotalBytes > lastTotal {
					delta = status.TotalBytes - lastTotal
					lastTotal = status.TotalBytes
				}
				m.mu.Lock()
				m.bytesMoved = lastTotal
				m.mu.Unlock()
			} else {
				m.collector.IncStatusParseErrors()
			}

			m.emit(types.ProgressEvent{
				Stream:     m.stream,
				BytesDelta: delta,
				Status:     line,
				Time:       time.Now(),
			})
		}
	}()
}

// watchStderr captures a bounded tail of one stage's stderr for failure
// diagnostics.
func (m *monitor) watchStderr(stage string, r io.Reader) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			m.mu.Lock()
			tail := append(m.stderrTails[stage], line)
			if len(tail) > stderrTailLines {
				tail = tail[len(tail)-stderrTailLines:]
			}
			m.stderrTails[stage] = tail
			m.mu.Unlock()

			m.logger.Debug("stage stderr", map[string]any{
				"stage": stage,
				"line":  line,
			})
		}
	}()
}

func (m *monitor) recordAck(path string) {
	m.mu.Lock()
	if _, expected := m.expected[path]; !expected {
		m.mu.Unlock()
		return
	}
	if _, dup := m.deliveredSet[path]; dup {
		m.mu.Unlock()
		return
	}
	m.deliveredSet[path] = struct{}{}
	m.delivered = append(m.delivered, path)
	m.mu.Unlock()

	m.emit(types.ProgressEvent{
		Stream: m.stream,
		File:   path,
		Time:   time.Now(),
	})
}

// emit forwards a progress event without blocking the scrape loops. The
// sink is a display surface; dropping a sample under backpressure is
// harmless because acknowledgments are recorded before emission.
func (m *monitor) emit(ev types.ProgressEvent) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

// snapshot returns the delivered list (in acknowledgment order) and byte
// counter. Safe to call while scanning continues.
func (m *monitor) snapshot() ([]string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delivered := make([]string, len(m.delivered))
	copy(delivered, m.delivered)
	return delivered, m.bytesMoved
}

// stderrTail returns the captured tail for a stage, joined to one string.
func (m *monitor) stderrTail(stage string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.stderrTails[stage], "\n")
}

// wait blocks until every scrape goroutine has finished.
func (m *monitor) wait() { m.wg.Wait() }

// normalizeAck maps one consumer transcript line to a manifest-relative
// path. tar -xv emits paths as written ("./a/b" or "a/b"); directory lines
// end with a slash and are not file acknowledgments.
func normalizeAck(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasSuffix(line, "/") {
		return "", false
	}
	line = strings.TrimPrefix(line, "./")
	return line, line != ""
}
