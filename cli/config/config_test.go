package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copyem.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `include: "*.tar"
speed: 50M
latency: 0.25
buffer_size: 2G
parallel: 8
max_retries: 3
retry_delay: 30s
log_file: /var/log/copyem.log
report: report.json
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Include != "*.tar" {
		t.Errorf("include = %q", cfg.Include)
	}
	if cfg.Speed != "50M" {
		t.Errorf("speed = %q", cfg.Speed)
	}
	if cfg.Latency != 0.25 {
		t.Errorf("latency = %v", cfg.Latency)
	}
	if cfg.BufferSize != "2G" {
		t.Errorf("buffer_size = %q", cfg.BufferSize)
	}
	if cfg.Parallel != 8 {
		t.Errorf("parallel = %d", cfg.Parallel)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max_retries = %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay.Duration != 30*time.Second {
		t.Errorf("retry_delay = %v", cfg.RetryDelay.Duration)
	}
	if cfg.LogFile != "/var/log/copyem.log" {
		t.Errorf("log_file = %q", cfg.LogFile)
	}
	if cfg.Report != "report.json" {
		t.Errorf("report = %q", cfg.Report)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Parallel != 0 || cfg.Speed != "" || cfg.RetryDelay.Duration != 0 {
		t.Errorf("empty config produced non-zero values: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTemp(t, "retry_delay: not-a-duration\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("COPYEM_TEST_SPEED", "100M")
	path := writeTemp(t, "speed: ${COPYEM_TEST_SPEED}\nreport: ${COPYEM_TEST_UNSET:-out.json}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Speed != "100M" {
		t.Errorf("speed = %q, want expanded 100M", cfg.Speed)
	}
	if cfg.Report != "out.json" {
		t.Errorf("report = %q, want default out.json", cfg.Report)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("COPYEM_TEST_VAR", "value")
	cases := []struct{ in, want string }{
		{"${COPYEM_TEST_VAR}", "value"},
		{"${COPYEM_TEST_MISSING}", ""},
		{"${COPYEM_TEST_MISSING:-fallback}", "fallback"},
		{"prefix-${COPYEM_TEST_VAR}-suffix", "prefix-value-suffix"},
		{"no vars here", "no vars here"},
	}
	for _, c := range cases {
		if got := ExpandEnv(c.in); got != c.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
