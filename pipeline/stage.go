// Package pipeline constructs and supervises one stream's transfer
// pipeline: an archive producer, a buffering stage, and a secure transport
// running the remote archive consumer, chained stdout-to-stdin.
//
// Stages are explicit process objects with individually observable exit
// status, not a shell string: failure at any stage is attributable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// Stage wraps one external process in the pipeline chain.
type Stage struct {
	// Name identifies the stage in logs and failure messages
	// ("tar", "mbuffer", "ssh").
	Name string

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// newStage builds a stage command. The process is killed when ctx is
// canceled, which is the externally triggered abort path.
func newStage(ctx context.Context, name string, dir string, argv ...string) *Stage {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return &Stage{Name: name, cmd: cmd}
}

// pipeFrom wires the upstream stage's stdout into this stage's stdin.
// Must be called before either stage starts. The returned error is from
// creating the upstream pipe.
func (s *Stage) pipeFrom(upstream *Stage) error {
	out, err := upstream.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s stdout pipe: %w", upstream.Name, err)
	}
	upstream.stdout = out
	s.cmd.Stdin = out
	return nil
}

// stdoutPipe exposes the stage's stdout for scraping. For the transport
// stage this carries the remote consumer's per-file acknowledgments.
func (s *Stage) stdoutPipe() (io.ReadCloser, error) {
	out, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout pipe: %w", s.Name, err)
	}
	s.stdout = out
	return out, nil
}

// stderrPipe exposes the stage's stderr for diagnostic capture.
func (s *Stage) stderrPipe() (io.ReadCloser, error) {
	errPipe, err := s.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stderr pipe: %w", s.Name, err)
	}
	s.stderr = errPipe
	return errPipe, nil
}

// Start launches the stage process.
func (s *Stage) Start() error {
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", s.Name, err)
	}
	return nil
}

// Wait reaps the process and returns its exit code. Callers must have
// drained the stage's stdout first: Wait closes the pipe.
func (s *Stage) Wait() (int, error) {
	err := s.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}
		return -1, nil
	}
	return -1, fmt.Errorf("%s wait failed: %w", s.Name, err)
}

// Kill terminates the stage process. Best effort; errors during teardown
// are not actionable.
func (s *Stage) Kill() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}
