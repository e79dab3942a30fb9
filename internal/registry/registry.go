// Package registry tracks, per codebase root path, whether that codebase is
// currently being indexed, fully indexed, or failed. The in-memory map is
// authoritative; disk is a best-effort cache read only at startup, so a
// reader always sees its own process's writes regardless of flush timing.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// State names the tag of a CodebaseRegistryEntry.
type State string

const (
	StateNotFound State = "not_found"
	StateIndexing State = "indexing"
	StateIndexed  State = "indexed"
	StateFailed   State = "failed"
)

// Completion describes how an indexed entry finished.
type Completion string

const (
	CompletionCompleted   Completion = "completed"
	CompletionLimitReached Completion = "limit_reached"
)

// Entry is a tagged union: only the fields relevant to State are
// meaningful.
type Entry struct {
	State State `json:"state"`

	Progress int `json:"progress,omitempty"` // indexing

	Files      int        `json:"files,omitempty"`      // indexed
	Chunks     int        `json:"chunks,omitempty"`      // indexed
	Completion Completion `json:"completion,omitempty"` // indexed

	Message      string `json:"message,omitempty"`      // failed
	LastProgress int    `json:"lastProgress,omitempty"` // failed

	LastUpdated time.Time `json:"lastUpdated"`
}

// Registry is the in-memory-authoritative, disk-backed path -> Entry map.
type Registry struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

type fileFormat struct {
	Codebases map[string]Entry `json:"codebases"`
}

// Open loads path (a single JSON file) if it exists, or starts empty.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		slog.Warn("registry: corrupt registry file, starting empty", slog.String("path", path), slog.String("error", err.Error()))
		return r, nil
	}
	r.entries = ff.Codebases
	if r.entries == nil {
		r.entries = make(map[string]Entry)
	}
	return r, nil
}

// Get returns the entry for codebasePath, or a not_found entry if absent.
func (r *Registry) Get(codebasePath string) Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[codebasePath]; ok {
		return e
	}
	return Entry{State: StateNotFound, LastUpdated: time.Now()}
}

// List returns a snapshot of every tracked codebase path as a map, so in no
// particular order; SortedPaths gives its keys in sorted order.
func (r *Registry) List() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// SetIndexing records indexing(progress) for codebasePath.
func (r *Registry) SetIndexing(codebasePath string, progress int) {
	r.set(codebasePath, Entry{State: StateIndexing, Progress: progress, LastUpdated: time.Now()})
}

// SetIndexed records indexed(files, chunks, completion).
func (r *Registry) SetIndexed(codebasePath string, files, chunks int, completion Completion) {
	r.set(codebasePath, Entry{
		State: StateIndexed, Files: files, Chunks: chunks, Completion: completion, LastUpdated: time.Now(),
	})
}

// SetFailed records failed(message, lastProgress).
func (r *Registry) SetFailed(codebasePath, message string, lastProgress int) {
	r.set(codebasePath, Entry{
		State: StateFailed, Message: message, LastProgress: lastProgress, LastUpdated: time.Now(),
	})
}

// Clear removes codebasePath's entry entirely (-> not_found), for a
// successful clear_index.
func (r *Registry) Clear(codebasePath string) {
	r.mu.Lock()
	delete(r.entries, codebasePath)
	r.mu.Unlock()
	r.persistBestEffort()
}

func (r *Registry) set(codebasePath string, e Entry) {
	r.mu.Lock()
	r.entries[codebasePath] = e
	r.mu.Unlock()
	r.persistBestEffort()
}

// Reconcile drops `indexed` entries whose backing collection no longer
// exists. `indexing` entries are left intact regardless of exists's answer,
// since they may be a freshly-created collection still being populated.
func (r *Registry) Reconcile(exists func(codebasePath string) bool) {
	r.mu.Lock()
	for path, e := range r.entries {
		if e.State == StateIndexed && !exists(path) {
			delete(r.entries, path)
		}
	}
	r.mu.Unlock()
	r.persistBestEffort()
}

// persistBestEffort writes the current state to disk under a flock-guarded
// temp-file+rename. Failures are logged, never returned: a mutating
// operation never fails because its disk write failed.
func (r *Registry) persistBestEffort() {
	if r.path == "" {
		return
	}
	if err := r.persist(); err != nil {
		slog.Warn("registry: failed to persist to disk", slog.String("path", r.path), slog.String("error", err.Error()))
	}
}

func (r *Registry) persist() error {
	r.mu.RLock()
	ff := fileFormat{Codebases: make(map[string]Entry, len(r.entries))}
	for k, v := range r.entries {
		ff.Codebases[k] = v
	}
	r.mu.RUnlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lockPath := r.path + ".lock"
	lk := flock.New(lockPath)
	if err := lk.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = lk.Unlock() }()

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// SortedPaths is a small helper for callers that want deterministic
// iteration order over List's result.
func SortedPaths(entries map[string]Entry) []string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
