package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// statBatchSize bounds the number of paths fed to one remote stat
// invocation, keeping the remote command's stdin reasonable.
const statBatchSize = 100000

// sshExitConnFailure is ssh's exit code for connection/auth failures.
const sshExitConnFailure = 255

// xargsExitPartial is xargs' exit code when some invocations failed, which
// here just means some of the queried files do not exist remotely.
const xargsExitPartial = 123

// SSHLister queries destination file sizes over ssh with a single batched
// stat per 100k paths. Files absent remotely are simply missing from the
// result; stat's complaints about them are discarded on the remote side.
type SSHLister struct {
	// Remote is the ssh destination, e.g. "user@host".
	Remote string
	// DestDir is the destination root on the remote.
	DestDir string
}

// Sizes returns a map from relative path to remote size for every queried
// path that exists on the destination.
func (l *SSHLister) Sizes(ctx context.Context, paths []string) (map[string]int64, error) {
	sizes := make(map[string]int64, len(paths))

	for start := 0; start < len(paths); start += statBatchSize {
		end := start + statBatchSize
		if end > len(paths) {
			end = len(paths)
		}
		if err := l.statBatch(ctx, paths[start:end], sizes); err != nil {
			return nil, err
		}
	}

	return sizes, nil
}

func (l *SSHLister) statBatch(ctx context.Context, paths []string, sizes map[string]int64) error {
	script := fmt.Sprintf("cd %s && xargs stat --format='%%s\t%%n' 2> /dev/null", l.DestDir)
	cmd := exec.CommandContext(ctx, "ssh", l.Remote, script)
	cmd.Stdin = strings.NewReader(strings.Join(paths, "\n") + "\n")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("ssh invocation failed: %w", err)
		}
		switch exitErr.ExitCode() {
		case xargsExitPartial:
			// Some files absent remotely; the lines we did get are valid.
		case sshExitConnFailure:
			return fmt.Errorf("cannot reach remote %s: %s", l.Remote, strings.TrimSpace(stderr.String()))
		default:
			return fmt.Errorf("remote stat exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
	}

	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		sizeStr, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			continue
		}
		sizes[normalizePath(path)] = size
	}

	return nil
}

// normalizePath strips the "./" prefix stat echoes back for relative paths.
func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}
