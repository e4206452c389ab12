package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestStageExitCode(t *testing.T) {
	s := newStage(context.Background(), "probe", "", "sh", "-c", "exit 3")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	code, err := s.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestStageChaining(t *testing.T) {
	// A two-stage chain: the producer writes lines, the consumer reverses
	// them; verifies stdout-to-stdin wiring without any transfer tooling.
	ctx := context.Background()
	producer := newStage(ctx, "producer", "", "sh", "-c", "printf 'one\ntwo\n'")
	consumer := newStage(ctx, "consumer", "", "sort", "-r")

	if err := consumer.pipeFrom(producer); err != nil {
		t.Fatal(err)
	}
	out, err := consumer.stdoutPipe()
	if err != nil {
		t.Fatal(err)
	}

	if err := producer.Start(); err != nil {
		t.Fatal(err)
	}
	if err := consumer.Start(); err != nil {
		t.Fatal(err)
	}

	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatal(err)
	}

	if code, _ := producer.Wait(); code != 0 {
		t.Errorf("producer exit = %d", code)
	}
	if code, _ := consumer.Wait(); code != 0 {
		t.Errorf("consumer exit = %d", code)
	}

	if got := strings.TrimSpace(string(data)); got != "two\none" {
		t.Errorf("chained output = %q", got)
	}
}

func TestStageKill(t *testing.T) {
	s := newStage(context.Background(), "sleeper", "", "sleep", "60")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Kill()
	code, err := s.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if code == 0 {
		t.Error("killed stage reported exit 0")
	}
}
