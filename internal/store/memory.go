package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

type docState struct {
	snapshot []byte
	updates  []UpdateRecord
}

// MemoryStore is an in-process Update Store implementation, suitable for
// tests and single-process deployments. Modeled directly on
// storageconfig.MemoryRepository's mutex+map shape.
type MemoryStore struct {
	mu          sync.RWMutex
	docs        map[string]*docState
	nextID      uint64
	broadcaster *changeBroadcaster
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory Update Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        make(map[string]*docState),
		broadcaster: newChangeBroadcaster(),
		now:         time.Now,
	}
}

func (s *MemoryStore) AppendUpdate(_ context.Context, doc string, bytes []byte, origin crdt.UpdateOrigin, device string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.docs[doc]
	if !ok {
		state = &docState{}
		s.docs[doc] = state
	}
	s.nextID++
	rec := UpdateRecord{
		ID:        s.nextID,
		Doc:       doc,
		Bytes:     append([]byte(nil), bytes...),
		Origin:    origin,
		Device:    device,
		CreatedAt: s.now(),
	}
	state.updates = append(state.updates, rec)
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeAppended, Doc: doc, Rec: rec})
	return rec.ID, nil
}

func (s *MemoryStore) GetAllUpdates(_ context.Context, doc string) ([]UpdateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.docs[doc]
	if !ok {
		return nil, nil
	}
	out := make([]UpdateRecord, len(state.updates))
	copy(out, state.updates)
	return out, nil
}

func (s *MemoryStore) LoadDoc(_ context.Context, doc string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.docs[doc]
	if !ok || state.snapshot == nil {
		return nil, false, nil
	}
	return append([]byte(nil), state.snapshot...), true, nil
}

func (s *MemoryStore) SaveDoc(_ context.Context, doc string, bytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.docs[doc]
	if !ok {
		state = &docState{}
		s.docs[doc] = state
	}
	state.snapshot = append([]byte(nil), bytes...)
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeSnapshot, Doc: doc})
	return nil
}

func (s *MemoryStore) ListDocs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for name := range s.docs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeleteDoc(_ context.Context, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc]; !ok {
		return diaryxerrors.NotFound(nil, "document not found: "+doc)
	}
	delete(s.docs, doc)
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeDeleted, Doc: doc})
	return nil
}

// Compact merges every update into a fresh snapshot of the raw update
// stream, keeping only the trailing keepLastN update records. It writes the
// new snapshot and swaps it in before truncating the log, so concurrent
// readers never observe a state that is missing both the snapshot and the
// updates it replaced.
func (s *MemoryStore) Compact(_ context.Context, doc string, keepLastN int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.docs[doc]
	if !ok {
		return nil
	}
	if keepLastN < 0 {
		keepLastN = 0
	}
	if len(state.updates) <= keepLastN {
		return nil
	}
	mergeCount := len(state.updates) - keepLastN
	toMerge := state.updates[:mergeCount]
	kept := append([]UpdateRecord(nil), state.updates[mergeCount:]...)

	merged, err := mergeSnapshotAndUpdates(state.snapshot, toMerge)
	if err != nil {
		return err
	}
	state.snapshot = merged
	state.updates = kept
	s.broadcaster.Broadcast(ChangeEvent{Type: ChangeCompacted, Doc: doc})
	return nil
}

func mergeSnapshotAndUpdates(snapshot []byte, updates []UpdateRecord) ([]byte, error) {
	ws := crdt.NewWorkspace("compact", "compact", func() string { return "" })
	if len(snapshot) > 0 {
		if err := ws.ApplyUpdate(snapshot, crdt.OriginSync); err != nil {
			// Not every doc is a workspace; body docs fail this decode and
			// fall back to last-update-wins bytes.
			if len(updates) > 0 {
				return updates[len(updates)-1].Bytes, nil
			}
			return snapshot, nil
		}
	}
	for _, u := range updates {
		if err := ws.ApplyUpdate(u.Bytes, u.Origin); err != nil {
			if len(updates) > 0 {
				return updates[len(updates)-1].Bytes, nil
			}
			return snapshot, err
		}
	}
	return ws.EncodeStateAsUpdate(), nil
}

func (s *MemoryStore) QueryActiveFiles(_ context.Context, workspaceID string) ([]ActiveFileRow, error) {
	doc := crdt.WorkspaceDocName(workspaceID)
	s.mu.RLock()
	state, ok := s.docs[doc]
	var snapshot []byte
	var updates []UpdateRecord
	if ok {
		snapshot = append([]byte(nil), state.snapshot...)
		updates = append([]UpdateRecord(nil), state.updates...)
	}
	s.mu.RUnlock()

	ws, err := loadWorkspaceSnapshot(doc, snapshot, updates)
	if err != nil {
		return nil, err
	}
	active := ws.ListActiveFiles()
	rows := make([]ActiveFileRow, 0, len(active))
	for docID := range active {
		path, ok := ws.GetPath(docID)
		if !ok {
			continue
		}
		meta := active[docID]
		rows = append(rows, ActiveFileRow{Path: path, Title: titleString(meta), PartOf: partOfString(meta)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	return s.broadcaster.Subscribe(ctx)
}

var _ Store = (*MemoryStore)(nil)
