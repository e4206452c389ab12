// Package inventory builds the transfer manifest.
//
// The builder walks the local source tree, applies the optional include
// pattern, queries the destination for existing sizes, and excludes every
// file whose remote size exactly matches its local size. Size equality is
// the sole incremental-skip criterion; content is never hashed.
package inventory

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/milmillin/copyem/log"
	"github.com/milmillin/copyem/types"
)

// RemoteLister maps relative paths to sizes on the destination.
// "File absent" is expressed by omission from the returned map and is not
// an error; only transport-level failures (connection refused, auth) are.
type RemoteLister interface {
	Sizes(ctx context.Context, paths []string) (map[string]int64, error)
}

// Builder scans the source tree and produces a Manifest.
type Builder struct {
	// Source is the local source root. Must be a readable directory.
	Source string
	// Include is an optional glob pattern matched against the relative
	// path; * and ? cross directory separators, matching find -path.
	// Empty matches everything.
	Include string
	// Remote queries destination sizes. Nil disables the incremental skip
	// and includes every local file.
	Remote RemoteLister
	// Logger receives scan progress. Optional.
	Logger *log.Logger
}

// Build produces the manifest of files still requiring transfer, in walk
// order, deduplicated by relative path.
//
// An unreadable source root or a failed remote query is fatal for the run.
func (b *Builder) Build(ctx context.Context) (types.Manifest, error) {
	match, err := compilePattern(b.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern %q: %w", b.Include, err)
	}

	candidates, err := b.scanLocal(ctx, match)
	if err != nil {
		return nil, err
	}

	if b.Logger != nil {
		b.Logger.Info("scanned source tree", map[string]any{
			"source": b.Source,
			"files":  len(candidates),
			"bytes":  candidates.TotalBytes(),
		})
	}

	if b.Remote == nil || len(candidates) == 0 {
		return candidates, nil
	}

	remote, err := b.Remote.Sizes(ctx, candidates.Paths())
	if err != nil {
		return nil, fmt.Errorf("remote size query failed: %w", err)
	}

	manifest := make(types.Manifest, 0, len(candidates))
	skipped := 0
	for _, entry := range candidates {
		if size, ok := remote[entry.Path]; ok {
			size := size
			entry.RemoteSize = &size
		}
		if !entry.Eligible() {
			skipped++
			continue
		}
		manifest = append(manifest, entry)
	}

	if b.Logger != nil {
		b.Logger.Info("built manifest", map[string]any{
			"eligible": len(manifest),
			"skipped":  skipped,
		})
	}

	return manifest, nil
}

// scanLocal walks the source root collecting regular files that match.
func (b *Builder) scanLocal(ctx context.Context, match func(string) bool) (types.Manifest, error) {
	root := filepath.Clean(b.Source)

	var manifest types.Manifest
	seen := make(map[string]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable anything under the source root is fatal.
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !match(rel) {
			return nil
		}
		if _, dup := seen[rel]; dup {
			return nil
		}
		seen[rel] = struct{}{}

		info, err := d.Info()
		if err != nil {
			return err
		}

		manifest = append(manifest, types.FileEntry{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	return manifest, nil
}
