package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/milmillin/copyem/inventory"
	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/metrics"
	"github.com/milmillin/copyem/progress"
	"github.com/milmillin/copyem/schedule"
	"github.com/milmillin/copyem/transfer"
	"github.com/milmillin/copyem/tui"
	"github.com/milmillin/copyem/types"
	"github.com/milmillin/copyem/units"
)

// Exit codes for run.
const (
	exitSuccess = 0
	exitPartial = 1
	exitFatal   = 2
)

// RunCommand returns the run command, the only command that moves data.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Transfer a directory tree to a remote host",
		ArgsUsage: "SRC_DIR REMOTE DST_DIR",
		Flags:     runFlags(),
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("copyem: %v", err), exitFatal)
	}
	if info, err := os.Stat(s.sourceDir); err != nil || !info.IsDir() {
		return cli.Exit(fmt.Sprintf("copyem: source directory does not exist: %s", s.sourceDir), exitFatal)
	}

	runMeta := &types.RunMeta{RunID: uuid.NewString(), Attempt: 1}
	logger := buildLogger(s, runMeta)
	defer logger.Sync()
	collector := metrics.NewCollector(runMeta.RunID, s.remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info("starting file discovery", map[string]any{
		"source":  s.sourceDir,
		"remote":  s.remote,
		"dest":    s.destDir,
		"include": s.include,
	})

	builder := &inventory.Builder{
		Source:  s.sourceDir,
		Include: s.include,
		Remote:  &inventory.SSHLister{Remote: s.remote, DestDir: s.destDir},
		Logger:  logger,
	}
	manifest, err := builder.Build(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("copyem: %v", err), exitFatal)
	}

	plans := schedule.Partition(manifest, s.parallel, s.costModel())
	printSummary(os.Stdout, s, manifest, plans)

	if len(manifest) == 0 {
		fmt.Println("Nothing to transfer.")
		return cli.Exit("", exitSuccess)
	}

	if !s.yes && !confirm(os.Stdin, os.Stdout) {
		fmt.Println("Transfer cancelled.")
		return cli.Exit("", exitSuccess)
	}

	events := make(chan types.ProgressEvent, 256)
	tracker := progress.NewTracker(manifest.TotalBytes())
	tracker.SetPlan(plans)
	go tracker.Run(events)

	var display *tui.Display
	if !s.noTUI {
		display = tui.Start(ctx, os.Stdout, tracker.View, cancel)
	}

	coord, err := transfer.NewCoordinator(&transfer.Config{
		SourceDir:   s.sourceDir,
		Remote:      s.remote,
		DestDir:     s.destDir,
		Parallelism: s.parallel,
		BufferBytes: s.bufferBytes,
		Cost:        s.costModel(),
		MaxRetries:  s.maxRetries,
		RetryDelay:  s.retryDelay,
		RunMeta:     runMeta,
		Events:      events,
		Logger:      logger,
		Collector:   collector,
	})
	if err != nil {
		close(events)
		return cli.Exit(fmt.Sprintf("copyem: %v", err), exitFatal)
	}

	report, runErr := coord.Execute(ctx, manifest)

	close(events)
	tracker.Wait()
	if display != nil {
		display.Stop()
	}

	if s.report != "" {
		if err := transfer.WriteReport(report, s.report); err != nil {
			fmt.Fprintf(os.Stderr, "copyem: %v\n", err)
		}
	}

	printResult(report, runErr)
	if report.Status == types.OutcomeSuccess {
		return cli.Exit("", exitSuccess)
	}
	return cli.Exit("", exitPartial)
}

func buildLogger(s *settings, runMeta *types.RunMeta) *log.Logger {
	if s.noTUI && s.logFile == "" {
		return log.NewLogger(runMeta)
	}
	path := s.logFile
	if path == "" {
		path = log.DefaultLogPath(time.Now())
	}
	return log.NewFileLogger(runMeta, path)
}

func confirm(in *os.File, out *os.File) bool {
	fmt.Fprint(out, "Proceed with transfer? (y/N): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printResult(r *transfer.Report, runErr error) {
	if runErr != nil {
		fmt.Printf("Transfer interrupted: %v\n", runErr)
	}
	switch r.Status {
	case types.OutcomeSuccess:
		fmt.Printf("Transfer complete: %d files, %s moved in %d attempt(s).\n",
			r.FilesDelivered, units.FormatSize(r.BytesMoved), r.Attempts)
	default:
		fmt.Printf("Transfer incomplete: %d of %d files delivered (%s moved).\n",
			r.FilesDelivered, r.FilesTotal, units.FormatSize(r.BytesMoved))
		if r.Message != "" {
			fmt.Printf("  %s\n", r.Message)
		}
		for _, path := range r.FilesUnresolved {
			fmt.Printf("  undelivered: %s\n", path)
		}
	}
}
