package main

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/google/uuid"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	wscmd "github.com/goliatone/diaryx-sync/internal/commands/workspace"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/validate"
)

// buildStore constructs the Update Store backend named by provider, opening
// and migrating a sqlite-backed bun.DB when provider is "bun".
func buildStore(provider, dsn string) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "bun":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		bunStore := store.NewBunStore(db)
		if err := bunStore.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return bunStore, nil
	default:
		return nil, diaryxerrors.Unsupported(nil, "unknown store provider: "+provider)
	}
}

// loadRuntime rebuilds a workspace's resident Workspace/Body CRDTs from
// their persisted snapshots plus trailing update log, the same replay the
// Update Store's own loadWorkspaceSnapshot helper performs internally for
// QueryActiveFiles, so that CLI commands observe the same state a live
// sync session would.
func loadRuntime(ctx context.Context, st store.Store, hist *history.Store, workspaceID, deviceID, historyRepoPath string, kind history.RepoKind) (*wscmd.Runtime, error) {
	wsDocName := crdt.WorkspaceDocName(workspaceID)
	ws := crdt.NewWorkspace(wsDocName, deviceID, uuid.NewString)
	if err := replayDoc(ctx, st, wsDocName, func(update []byte, origin crdt.UpdateOrigin) error {
		return ws.ApplyUpdate(update, origin)
	}); err != nil {
		return nil, err
	}

	bodies := crdt.NewBodyManager(deviceID)
	docs, err := st.ListDocs(ctx)
	if err != nil {
		return nil, err
	}
	prefix := crdt.BodyDocPrefix(workspaceID)
	for _, name := range docs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		body := bodies.GetOrCreate(name)
		if err := replayDoc(ctx, st, name, func(update []byte, origin crdt.UpdateOrigin) error {
			return body.ApplyUpdate(update, origin)
		}); err != nil {
			return nil, err
		}
	}

	return &wscmd.Runtime{
		Store:     st,
		History:   hist,
		Workspace: ws,
		Bodies:    bodies,
		Tracker:   validate.NewHealthTracker(),
	}, nil
}

func replayDoc(ctx context.Context, st store.Store, doc string, apply func(update []byte, origin crdt.UpdateOrigin) error) error {
	snapshot, ok, err := st.LoadDoc(ctx, doc)
	if err != nil {
		return err
	}
	if ok && len(snapshot) > 0 {
		if err := apply(snapshot, crdt.OriginSync); err != nil {
			return err
		}
	}
	updates, err := st.GetAllUpdates(ctx, doc)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := apply(u.Bytes, u.Origin); err != nil {
			return err
		}
	}
	return nil
}

func openHistory(repoPath string, kind history.RepoKind) (*history.Store, error) {
	if hist, err := history.Open(repoPath, kind); err == nil {
		return hist, nil
	}
	return history.Init(repoPath, kind)
}
