package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/nsethi/codemesh/internal/bm25"
)

// Store manages every collection under a single storage directory: one
// SQLite file per collection plus a companion write-lock file, so two
// processes never interleave writes to the same collection file.
type Store struct {
	mu   sync.RWMutex
	dir  string
	open map[string]*openCollection
}

type openCollection struct {
	collection *Collection
	lock       *flock.Flock
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create storage dir: %w", err)
	}
	return &Store{dir: dir, open: make(map[string]*openCollection)}, nil
}

func (s *Store) dbPath(name string) string {
	return filepath.Join(s.dir, name+".db")
}

// DBPath exposes a collection's backing file path, for callers that need to
// stat it (e.g. a status command reporting storage size).
func (s *Store) DBPath(name string) string {
	return s.dbPath(name)
}

func (s *Store) lockPath(name string) string {
	return filepath.Join(s.dir, name+".lock")
}

func (s *Store) bm25Path(name string) string {
	return filepath.Join(s.dir, name+"_bm25.json")
}

// CreateCollection creates a fresh dense-only collection.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) error {
	return s.create(ctx, name, dimension, false)
}

// CreateHybridCollection creates a fresh dense+sparse collection.
func (s *Store) CreateHybridCollection(ctx context.Context, name string, dimension int) error {
	return s.create(ctx, name, dimension, true)
}

func (s *Store) create(ctx context.Context, name string, dimension int, hybrid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[name]; exists {
		return ErrCollectionExists{Name: name}
	}
	if _, err := os.Stat(s.dbPath(name)); err == nil {
		return ErrCollectionExists{Name: name}
	}

	oc, err := s.openLocked(name)
	if err != nil {
		return err
	}

	c := newCollection(name, dimension, hybrid, s.bm25Path(name), oc.collection.db)
	if err := c.persistMeta(ctx); err != nil {
		_ = oc.collection.close()
		_ = oc.lock.Unlock()
		delete(s.open, name)
		return err
	}
	if hybrid {
		c.bm25 = bm25.New(0, 0, 0, nil)
		if err := c.persistBM25(); err != nil {
			_ = oc.collection.close()
			_ = oc.lock.Unlock()
			delete(s.open, name)
			return err
		}
	}
	oc.collection = c
	return nil
}

// openLocked acquires the collection's write lock and a docDB handle,
// without yet knowing dimension/hybrid-ness (a bare shell Collection is
// installed and immediately replaced by the caller).
func (s *Store) openLocked(name string) (*openCollection, error) {
	lk := flock.New(s.lockPath(name))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("store: acquire lock for %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("store: collection %s is locked by another process", name)
	}

	db, err := openDocDB(s.dbPath(name))
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}

	oc := &openCollection{collection: &Collection{name: name, db: db}, lock: lk}
	s.open[name] = oc
	return oc, nil
}

// get returns the Collection for name, loading it from disk and acquiring
// its lock on first access in this process.
func (s *Store) get(ctx context.Context, name string) (*Collection, bool, error) {
	s.mu.RLock()
	if oc, ok := s.open[name]; ok {
		s.mu.RUnlock()
		return oc.collection, true, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if oc, ok := s.open[name]; ok {
		return oc.collection, true, nil
	}

	if _, err := os.Stat(s.dbPath(name)); err != nil {
		return nil, false, nil
	}

	oc, err := s.openLocked(name)
	if err != nil {
		return nil, false, err
	}
	c, err := loadCollection(ctx, name, s.bm25Path(name), oc.collection.db)
	if err != nil {
		_ = oc.collection.close()
		_ = oc.lock.Unlock()
		delete(s.open, name)
		return nil, false, err
	}
	oc.collection = c
	return c, true, nil
}

// HasCollection reports whether name exists, whether or not it's open.
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	c, ok, err := s.get(ctx, name)
	return ok && c != nil, err
}

// ListCollections returns every collection name under the storage
// directory, sorted.
func (s *Store) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".db") {
			names = append(names, strings.TrimSuffix(e.Name(), ".db"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// DropCollection removes all state for name. Idempotent on a non-existent
// collection.
func (s *Store) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oc, ok := s.open[name]; ok {
		_ = oc.collection.close()
		_ = oc.lock.Unlock()
		delete(s.open, name)
	}

	for _, suffix := range []string{".db", ".db-wal", ".db-shm", ".lock", "_bm25.json", "_bm25.json.tmp"} {
		path := filepath.Join(s.dir, name+suffix)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: drop collection %s: %w", name, err)
		}
	}
	return nil
}

// Collection returns the named collection, or ErrCollectionNotFound.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	c, ok, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound{Name: name}
	}
	return c, nil
}

// CheckCollectionLimit is the capacity gate remote backends use to refuse
// new collections; the local store has no configured cap, so it always
// reports room.
func (s *Store) CheckCollectionLimit() bool {
	return true
}

// Close releases every open collection's lock and database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, oc := range s.open {
		if err := oc.collection.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := oc.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.open, name)
	}
	return firstErr
}
