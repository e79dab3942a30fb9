package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/nsethi/codemesh/internal/registry"
)

// CollectionInfo is the read-only projection backing the `status` CLI
// command and the `get_indexing_status` MCP tool.
type CollectionInfo struct {
	Name          string
	Dimension     int
	IsHybrid      bool
	DocumentCount int
	CreatedAt     time.Time
	StorageBytes  int64
}

// Status combines a root's registry entry with its collection's stats, if
// one has been created.
type Status struct {
	Registry   registry.Entry
	Collection *CollectionInfo // nil if no collection exists for root yet
}

// Status reports root's current registry state and, if a collection already
// exists, its document count/size.
func (p *Pipeline) Status(ctx context.Context, root, contextName string) (Status, error) {
	name := CollectionName(root, contextName)
	entry := p.Registry.Get(root)

	exists, err := p.Store.HasCollection(ctx, name)
	if err != nil {
		return Status{}, wrapErr("check collection", err)
	}
	if !exists {
		return Status{Registry: entry}, nil
	}

	col, err := p.Store.Collection(ctx, name)
	if err != nil {
		return Status{}, wrapErr("open collection", err)
	}
	count, err := col.DocumentCount(ctx)
	if err != nil {
		return Status{}, wrapErr("document count", err)
	}
	var sizeBytes int64
	if fi, statErr := os.Stat(p.Store.DBPath(name)); statErr == nil {
		sizeBytes = fi.Size()
	}

	return Status{
		Registry: entry,
		Collection: &CollectionInfo{
			Name:          col.Name(),
			Dimension:     col.Dimension(),
			IsHybrid:      col.IsHybrid(),
			DocumentCount: count,
			CreatedAt:     col.CreatedAt(),
			StorageBytes:  sizeBytes,
		},
	}, nil
}
