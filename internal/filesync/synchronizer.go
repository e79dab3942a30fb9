package filesync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/nsethi/codemesh/internal/merkle"
)

// Delta is the set of relative-path changes detected between two snapshots
// of the same root.
type Delta struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// Synchronizer walks a root directory, honoring ignore patterns, and
// maintains an in-memory (and disk-backed) snapshot of relPath -> content
// hash, producing change deltas across calls and process restarts.
//
// A Synchronizer owns exactly one root's snapshot file; it must not be
// shared between roots.
type Synchronizer struct {
	root        string
	snapshotDir string
	matcher     *Matcher
	workers     int

	mu     sync.Mutex
	hashes map[string]merkle.H
}

// NewSynchronizer builds a Synchronizer for root, persisting its snapshot
// under snapshotDir, honoring the default ignore patterns plus any extra
// patterns supplied.
func NewSynchronizer(root, snapshotDir string, extraPatterns []string) *Synchronizer {
	return &Synchronizer{
		root:        root,
		snapshotDir: snapshotDir,
		matcher:     NewMatcher(extraPatterns),
		workers:     runtime.NumCPU(),
		hashes:      make(map[string]merkle.H),
	}
}

// Initialize loads the persisted snapshot for root if present, otherwise
// walks the tree, computes hashes, and persists a fresh baseline. Any
// failure loading the persisted snapshot is treated as a first run: the
// tree is walked and a new snapshot written (this is also how a
// snapshot-file deletion is handled — the next Initialize rebuilds the
// baseline silently rather than reporting every file as added).
func (s *Synchronizer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, err := loadSnapshot(s.snapshotDir, s.root); err == nil {
		hashes := make(map[string]merkle.H, len(snap.Hashes))
		for p, h := range snap.Hashes {
			hashes[p] = merkle.H(h)
		}
		s.hashes = hashes
		return nil
	}

	current, err := s.walk(ctx)
	if err != nil {
		return err
	}
	s.hashes = current
	return s.persist()
}

// CheckForChanges re-walks the tree, diffs against the in-memory snapshot,
// atomically replaces the snapshot with the freshly observed state, persists
// it, and returns the three-set delta. Two consecutive calls against an
// unchanged tree return an empty Delta.
func (s *Synchronizer) CheckForChanges(ctx context.Context) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.walk(ctx)
	if err != nil {
		return Delta{}, err
	}

	var delta Delta
	for p := range current {
		if _, ok := s.hashes[p]; !ok {
			delta.Added = append(delta.Added, p)
		}
	}
	for p, h := range s.hashes {
		if ch, ok := current[p]; !ok {
			delta.Removed = append(delta.Removed, p)
		} else if ch != h {
			delta.Modified = append(delta.Modified, p)
		}
	}

	s.hashes = current
	if err := s.persist(); err != nil {
		return Delta{}, err
	}
	return delta, nil
}

// Snapshot returns a copy of the in-memory relPath -> hash map.
func (s *Synchronizer) Snapshot() map[string]merkle.H {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]merkle.H, len(s.hashes))
	for p, h := range s.hashes {
		out[p] = h
	}
	return out
}

func (s *Synchronizer) persist() error {
	hashes := make(map[string]string, len(s.hashes))
	for p, h := range s.hashes {
		hashes[p] = string(h)
	}
	return saveSnapshot(s.snapshotDir, &FileSnapshot{Root: s.root, Hashes: hashes})
}

// walk discovers every relative path under the root that isn't filtered by
// the ignore matcher, hashing its contents with a bounded worker pool sized
// to runtime.NumCPU().
// Files that fail to read (permission errors, races with deletion) are
// skipped with a warning and not tracked.
func (s *Synchronizer) walk(ctx context.Context) (map[string]merkle.H, error) {
	type job struct{ relPath, absPath string }

	jobs := make(chan job, s.workers*4)
	results := make(map[string]merkle.H)
	var resultsMu sync.Mutex

	var wg sync.WaitGroup
	workers := s.workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				data, err := os.ReadFile(j.absPath)
				if err != nil {
					slog.Warn("filesync: skipping unreadable file",
						slog.String("path", j.relPath), slog.String("error", err.Error()))
					continue
				}
				h := merkle.Hash(data)
				resultsMu.Lock()
				results[j.relPath] = h
				resultsMu.Unlock()
			}
		}()
	}

	walkErr := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			slog.Warn("filesync: walk error", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if s.matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matcher.Match(rel) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobs <- job{relPath: rel, absPath: path}:
		}
		return nil
	})
	close(jobs)
	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}
	return results, nil
}
