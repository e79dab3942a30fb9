package filesync

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nsethi/codemesh/internal/merkle"
)

// FileSnapshot is the persisted relPath -> content-hash map for one root.
type FileSnapshot struct {
	Root   string            `json:"root"`
	Hashes map[string]string `json:"hashes"`
}

func snapshotPath(snapshotDir, root string) string {
	return filepath.Join(snapshotDir, string(merkle.HashString(root))+".json")
}

func loadSnapshot(snapshotDir, root string) (*FileSnapshot, error) {
	data, err := os.ReadFile(snapshotPath(snapshotDir, root))
	if err != nil {
		return nil, err
	}
	var snap FileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func saveSnapshot(snapshotDir string, snap *FileSnapshot) error {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := snapshotPath(snapshotDir, snap.Root) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, snapshotPath(snapshotDir, snap.Root))
}

// DeleteSnapshot removes the persisted snapshot for root, if any.
func DeleteSnapshot(snapshotDir, root string) error {
	err := os.Remove(snapshotPath(snapshotDir, root))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
