package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/uptrace/bun"
)

// BunStore persists updates and snapshots using a Bun-backed SQLite
// database (the sqlite3 driver the teacher repo already depends on),
// matching the on-disk layout's ".diaryx/crdt.db". Modeled directly on
// storageconfig.BunRepository's select/insert/update shape.
type BunStore struct {
	db          *bun.DB
	broadcaster *changeBroadcaster
}

// NewBunStore constructs a Bun-backed Update Store. Callers are expected to
// have already run the migrations created by EnsureSchema.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, broadcaster: newChangeBroadcaster()}
}

type updateModel struct {
	bun.BaseModel `bun:"table:crdt_updates"`

	ID        uint64 `bun:",pk,autoincrement"`
	Doc       string `bun:"doc"`
	Bytes     []byte `bun:"bytes"`
	Origin    int    `bun:"origin"`
	Device    string `bun:"device"`
	CreatedAt time.Time `bun:"created_at"`
}

type snapshotModel struct {
	bun.BaseModel `bun:"table:crdt_snapshots"`

	Doc       string    `bun:",pk"`
	Bytes     []byte    `bun:"bytes"`
	UpdatedAt time.Time `bun:"updated_at"`
}

// EnsureSchema creates the crdt_updates and crdt_snapshots tables if they
// do not already exist.
func (s *BunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*updateModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return diaryxerrors.IO(err, "create crdt_updates table")
	}
	if _, err := s.db.NewCreateTable().Model((*snapshotModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return diaryxerrors.IO(err, "create crdt_snapshots table")
	}
	return nil
}

func (s *BunStore) AppendUpdate(ctx context.Context, doc string, bytes []byte, origin crdt.UpdateOrigin, device string) (uint64, error) {
	model := &updateModel{Doc: doc, Bytes: bytes, Origin: int(origin), Device: device, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, diaryxerrors.IO(err, "append update")
	}
	rec := UpdateRecord{ID: model.ID, Doc: doc, Bytes: bytes, Origin: origin, Device: device, CreatedAt: model.CreatedAt}
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeAppended, Doc: doc, Rec: rec})
	return model.ID, nil
}

func (s *BunStore) GetAllUpdates(ctx context.Context, doc string) ([]UpdateRecord, error) {
	var models []updateModel
	if err := s.db.NewSelect().Model(&models).Where("doc = ?", doc).Order("id ASC").Scan(ctx); err != nil {
		return nil, diaryxerrors.IO(err, "load updates")
	}
	out := make([]UpdateRecord, len(models))
	for i, m := range models {
		out[i] = UpdateRecord{ID: m.ID, Doc: m.Doc, Bytes: m.Bytes, Origin: crdt.UpdateOrigin(m.Origin), Device: m.Device, CreatedAt: m.CreatedAt}
	}
	return out, nil
}

func (s *BunStore) LoadDoc(ctx context.Context, doc string) ([]byte, bool, error) {
	var model snapshotModel
	err := s.db.NewSelect().Model(&model).Where("doc = ?", doc).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, diaryxerrors.IO(err, "load snapshot")
	}
	return model.Bytes, true, nil
}

func (s *BunStore) SaveDoc(ctx context.Context, doc string, bytes []byte) error {
	model := &snapshotModel{Doc: doc, Bytes: bytes, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().Model(model).
		On("CONFLICT (doc) DO UPDATE").
		Set("bytes = EXCLUDED.bytes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return diaryxerrors.IO(err, "save snapshot")
	}
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeSnapshot, Doc: doc})
	return nil
}

func (s *BunStore) ListDocs(ctx context.Context) ([]string, error) {
	var updateDocs []string
	if err := s.db.NewSelect().Model((*updateModel)(nil)).ColumnExpr("DISTINCT doc").Scan(ctx, &updateDocs); err != nil {
		return nil, diaryxerrors.IO(err, "list update docs")
	}
	var snapshotDocs []string
	if err := s.db.NewSelect().Model((*snapshotModel)(nil)).Column("doc").Scan(ctx, &snapshotDocs); err != nil {
		return nil, diaryxerrors.IO(err, "list snapshot docs")
	}
	seen := make(map[string]struct{}, len(updateDocs)+len(snapshotDocs))
	out := make([]string, 0, len(updateDocs)+len(snapshotDocs))
	for _, list := range [][]string{updateDocs, snapshotDocs} {
		for _, doc := range list {
			if _, ok := seen[doc]; ok {
				continue
			}
			seen[doc] = struct{}{}
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *BunStore) DeleteDoc(ctx context.Context, doc string) error {
	if _, err := s.db.NewDelete().Model((*updateModel)(nil)).Where("doc = ?", doc).Exec(ctx); err != nil {
		return diaryxerrors.IO(err, "delete updates")
	}
	if _, err := s.db.NewDelete().Model((*snapshotModel)(nil)).Where("doc = ?", doc).Exec(ctx); err != nil {
		return diaryxerrors.IO(err, "delete snapshot")
	}
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeDeleted, Doc: doc})
	return nil
}

func (s *BunStore) Compact(ctx context.Context, doc string, keepLastN int) error {
	updates, err := s.GetAllUpdates(ctx, doc)
	if err != nil {
		return err
	}
	if keepLastN < 0 {
		keepLastN = 0
	}
	if len(updates) <= keepLastN {
		return nil
	}
	mergeCount := len(updates) - keepLastN
	toMerge := updates[:mergeCount]
	kept := updates[mergeCount:]

	snapshot, _, err := s.LoadDoc(ctx, doc)
	if err != nil {
		return err
	}
	merged, err := mergeSnapshotAndUpdates(snapshot, toMerge)
	if err != nil {
		return err
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.SaveDoc(ctx, doc, merged); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*updateModel)(nil)).
			Where("doc = ?", doc).
			Where("id NOT IN (?)", bun.In(idsOf(kept))).
			Exec(ctx); err != nil {
			return diaryxerrors.IO(err, "delete merged updates")
		}
		s.broadcaster.Broadcast(ChangeEvent{Type: ChangeCompacted, Doc: doc})
		return nil
	})
}

func idsOf(records []UpdateRecord) []uint64 {
	ids := make([]uint64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if len(ids) == 0 {
		// Avoid an empty IN clause; no record has id 0.
		ids = []uint64{0}
	}
	return ids
}

func (s *BunStore) QueryActiveFiles(ctx context.Context, workspaceID string) ([]ActiveFileRow, error) {
	doc := crdt.WorkspaceDocName(workspaceID)
	snapshot, _, err := s.LoadDoc(ctx, doc)
	if err != nil {
		return nil, err
	}
	updates, err := s.GetAllUpdates(ctx, doc)
	if err != nil {
		return nil, err
	}
	ws, err := loadWorkspaceSnapshot(doc, snapshot, updates)
	if err != nil {
		return nil, err
	}
	active := ws.ListActiveFiles()
	rows := make([]ActiveFileRow, 0, len(active))
	for docID, meta := range active {
		path, ok := ws.GetPath(docID)
		if !ok {
			continue
		}
		rows = append(rows, ActiveFileRow{Path: path, Title: titleString(meta), PartOf: partOfString(meta)})
	}
	return rows, nil
}

func (s *BunStore) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	return s.broadcaster.Subscribe(ctx)
}

var _ Store = (*BunStore)(nil)
