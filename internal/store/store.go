// Package store implements the Update Store: the durable, pluggable log of
// incremental CRDT updates and per-document snapshots that every other
// sync-engine component reads and writes through. It mirrors the
// interface+Memory+Bun layering of internal/storageconfig in the teacher
// repo (Repository interface, MemoryRepository, BunRepository), generalized
// from a single "profile" row type to the Update Store's doc/update/snapshot
// shape.
package store

import (
	"context"
	"time"

	"github.com/goliatone/diaryx-sync/internal/crdt"
)

// UpdateRecord is one entry in a document's update log.
type UpdateRecord struct {
	ID        uint64
	Doc       string
	Bytes     []byte
	Origin    crdt.UpdateOrigin
	Device    string
	CreatedAt time.Time
}

// ActiveFileRow is a lightweight projection used to build the sync
// handshake's file manifest without requiring a resident, fully
// materialized Workspace CRDT.
type ActiveFileRow struct {
	Path   string
	Title  string
	PartOf string
}

// ChangeType enumerates the kinds of mutation a Store can broadcast to
// subscribers, mirroring storageconfig.ChangeType.
type ChangeType string

const (
	ChangeAppended  ChangeType = "appended"
	ChangeSnapshot  ChangeType = "snapshot"
	ChangeCompacted ChangeType = "compacted"
	ChangeDeleted   ChangeType = "deleted"
)

// ChangeEvent is broadcast to subscribers whenever a document is mutated,
// letting the Sync Server fan out updates to peers without polling.
type ChangeEvent struct {
	Type ChangeType
	Doc  string
	Rec  UpdateRecord
}

// Store is the Update Store's abstract interface. Implementations must
// serialize concurrent AppendUpdate calls against the same doc, and make
// Compact safe to run concurrently with readers by writing the new
// snapshot and atomically swapping it in before deleting merged updates.
type Store interface {
	AppendUpdate(ctx context.Context, doc string, bytes []byte, origin crdt.UpdateOrigin, device string) (updateID uint64, err error)
	GetAllUpdates(ctx context.Context, doc string) ([]UpdateRecord, error)
	LoadDoc(ctx context.Context, doc string) ([]byte, bool, error)
	SaveDoc(ctx context.Context, doc string, bytes []byte) error
	ListDocs(ctx context.Context) ([]string, error)
	DeleteDoc(ctx context.Context, doc string) error
	Compact(ctx context.Context, doc string, keepLastN int) error
	QueryActiveFiles(ctx context.Context, workspaceID string) ([]ActiveFileRow, error)
	// Subscribe streams change events until ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

// loadWorkspaceSnapshot rebuilds an ephemeral Workspace CRDT handle from a
// store's persisted snapshot plus trailing updates, used only to answer
// QueryActiveFiles; it is never retained, so the store itself stays
// snapshot+log shaped rather than keeping a resident CRDT.
func loadWorkspaceSnapshot(docName string, snapshot []byte, updates []UpdateRecord) (*crdt.Workspace, error) {
	ws := crdt.NewWorkspace(docName, "query", func() string { return "" })
	if len(snapshot) > 0 {
		if err := ws.ApplyUpdate(snapshot, crdt.OriginSync); err != nil {
			return nil, err
		}
	}
	for _, u := range updates {
		if err := ws.ApplyUpdate(u.Bytes, u.Origin); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func partOfString(meta crdt.FileMetadata) string {
	if meta.PartOf == nil {
		return ""
	}
	return *meta.PartOf
}

func titleString(meta crdt.FileMetadata) string {
	if meta.Title == nil {
		return ""
	}
	return *meta.Title
}
