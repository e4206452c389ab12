package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/milmillin/copyem/iox"
	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/types"
)

// Config configures one stream pipeline.
type Config struct {
	// Plan is the ordered work list for this stream.
	Plan types.StreamPlan
	// SourceDir is the local source root; the producer reads relative to it.
	SourceDir string
	// Remote is the ssh destination, e.g. "user@host".
	Remote string
	// DestDir is the destination root on the remote.
	DestDir string
	// BufferBytes sizes the buffering stage.
	BufferBytes int64
	// Events receives progress samples. May be nil.
	Events chan<- types.ProgressEvent
	// Logger receives stream-scoped log entries.
	Logger *log.Logger
	// Collector accumulates run metrics. Nil-safe.
	Collector *metrics.Collector
}

// Handle is the runtime state of one active stream: the three stage
// processes, the output monitor, and the temp resources that must be
// released on every termination path.
type Handle struct {
	stream   int
	assigned []string

	producer  *Stage
	buffer    *Stage
	transport *Stage
	mon       *monitor

	listFile  string
	fifoDir   string
	statusR   *os.File
	closeOnce sync.Once

	logger    *log.Logger
	collector *metrics.Collector
}

// Start constructs and launches the pipeline for one stream plan:
//
//	tar -cf - -T <listfile>  |  mbuffer -m <n>b -q -l <fifo>  |  ssh remote "tar -xvf - -C <dst>"
//
// The producer reads exactly the plan's files in plan order, so the
// scheduler's cost-based sequencing is authoritative on the wire. The
// returned handle must be Waited on; canceling ctx kills all stages.
func Start(ctx context.Context, cfg *Config) (*Handle, error) {
	h := &Handle{
		stream:    cfg.Plan.Stream,
		assigned:  pathsOf(cfg.Plan.Files),
		logger:    cfg.Logger.WithStream(cfg.Plan.Stream),
		collector: cfg.Collector,
	}

	if err := h.prepare(cfg); err != nil {
		h.cleanup()
		return nil, err
	}

	h.logger.Info("starting transfer pipeline", map[string]any{
		"files":        len(h.assigned),
		"bytes":        cfg.Plan.TotalBytes(),
		"buffer_bytes": cfg.BufferBytes,
		"remote":       cfg.Remote,
		"dest":         cfg.DestDir,
	})

	if err := h.launch(ctx, cfg); err != nil {
		h.Terminate()
		h.cleanup()
		return nil, err
	}

	return h, nil
}

// prepare materializes the file list and the status fifo.
func (h *Handle) prepare(cfg *Config) error {
	list, err := os.CreateTemp("", "copyem-filelist-*.txt")
	if err != nil {
		return fmt.Errorf("creating file list: %w", err)
	}
	h.listFile = list.Name()
	for _, p := range h.assigned {
		if _, err := fmt.Fprintln(list, p); err != nil {
			iox.DiscardClose(list)
			return fmt.Errorf("writing file list: %w", err)
		}
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("closing file list: %w", err)
	}

	dir, err := os.MkdirTemp("", "copyem-status-*")
	if err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}
	h.fifoDir = dir
	if err := unix.Mkfifo(h.statusPath(), 0o600); err != nil {
		return fmt.Errorf("creating status fifo: %w", err)
	}
	return nil
}

// launch wires and starts the three stages, then attaches the monitor.
func (h *Handle) launch(ctx context.Context, cfg *Config) error {
	h.producer = newStage(ctx, "tar", cfg.SourceDir,
		"tar", "-cf", "-", "-T", h.listFile)
	h.buffer = newStage(ctx, "mbuffer", "",
		"mbuffer", "-m", fmt.Sprintf("%db", cfg.BufferBytes), "-q", "-l", h.statusPath())
	h.transport = newStage(ctx, "ssh", "",
		"ssh", cfg.Remote, fmt.Sprintf("tar -xvf - -C %s", cfg.DestDir))

	if err := h.buffer.pipeFrom(h.producer); err != nil {
		return err
	}
	if err := h.transport.pipeFrom(h.buffer); err != nil {
		return err
	}
	ackOut, err := h.transport.stdoutPipe()
	if err != nil {
		return err
	}

	h.mon = newMonitor(h.stream, h.assigned, cfg.Events, h.logger, h.collector)
	for _, s := range []*Stage{h.producer, h.buffer, h.transport} {
		errPipe, err := s.stderrPipe()
		if err != nil {
			return err
		}
		h.mon.watchStderr(s.Name, errPipe)
	}

	for _, s := range []*Stage{h.producer, h.buffer, h.transport} {
		if err := s.Start(); err != nil {
			return err
		}
	}

	// O_RDWR so the open never blocks on a missing writer and the scanner
	// never sees a spurious EOF between mbuffer's reopen cycles. Close()
	// unblocks the pending read during teardown.
	statusR, err := os.OpenFile(h.statusPath(), os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening status fifo: %w", err)
	}
	h.statusR = statusR

	h.mon.watchAcks(ackOut)
	h.mon.watchStatus(statusR)
	return nil
}

// Wait supervises the pipeline to termination and classifies the outcome
// from stage exit codes. All resources are released before it returns,
// regardless of outcome.
//
// The transport stage is reaped only after the acknowledgment scan hits
// EOF: reaping closes the stdout pipe, and acknowledgments still buffered
// there are the recovery coordinator's source of truth.
func (h *Handle) Wait() *types.StreamOutcome {
	exits := map[string]int{}
	exits["tar"] = h.waitStage(h.producer)
	exits["mbuffer"] = h.waitStage(h.buffer)

	<-h.mon.ackDone
	exits["ssh"] = h.waitStage(h.transport)

	h.closeStatus()
	h.mon.wait()

	delivered, bytesMoved := h.mon.snapshot()
	outcome := &types.StreamOutcome{
		Stream:     h.stream,
		Assigned:   h.assigned,
		Delivered:  delivered,
		BytesMoved: bytesMoved,
		Success:    true,
	}

	var faults []string
	for _, s := range []*Stage{h.producer, h.buffer, h.transport} {
		if code := exits[s.Name]; code != 0 {
			outcome.Success = false
			fault := fmt.Sprintf("%s exited %d", s.Name, code)
			if tail := h.mon.stderrTail(s.Name); tail != "" {
				fault += ": " + lastLine(tail)
			}
			faults = append(faults, fault)
		}
	}
	outcome.Message = strings.Join(faults, "; ")

	h.cleanup()
	h.collector.AbsorbStreamOutcome(outcome.Success, len(delivered), bytesMoved)

	if outcome.Success {
		h.logger.Info("pipeline completed", map[string]any{
			"files": len(delivered),
			"bytes": bytesMoved,
		})
	} else {
		h.logger.Warn("pipeline failed", map[string]any{
			"message":   outcome.Message,
			"delivered": len(delivered),
			"assigned":  len(h.assigned),
		})
	}

	return outcome
}

// Terminate kills every stage promptly. Wait must still be called to reap
// processes and release resources; termination errors are ignored because
// teardown is best effort.
func (h *Handle) Terminate() {
	for _, s := range []*Stage{h.transport, h.buffer, h.producer} {
		if s != nil {
			s.Kill()
		}
	}
	h.closeStatus()
}

func (h *Handle) waitStage(s *Stage) int {
	code, err := s.Wait()
	if err != nil {
		h.logger.Warn("stage wait failed", map[string]any{
			"stage": s.Name,
			"error": err.Error(),
		})
		return -1
	}
	return code
}

func (h *Handle) statusPath() string {
	return filepath.Join(h.fifoDir, "status")
}

func (h *Handle) closeStatus() {
	h.closeOnce.Do(func() {
		if h.statusR != nil {
			iox.DiscardClose(h.statusR)
		}
	})
}

func (h *Handle) cleanup() {
	if h.listFile != "" {
		iox.RemoveQuiet(h.listFile)
	}
	if h.fifoDir != "" {
		iox.RemoveAllQuiet(h.fifoDir)
	}
}

func pathsOf(files []types.FileEntry) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
