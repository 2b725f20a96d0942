package crdt

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// maxAncestorDepth bounds part_of walks so a CRDT-induced cycle (possible
// only transiently, from concurrent writes on distinct devices) cannot hang
// path resolution; see Workspace.GetPath.
const maxAncestorDepth = 64

// stamp is the last-writer-wins ordering key for a single doc-id row:
// highest ModifiedAt wins, ties broken by DeviceID lexicographically.
type stamp struct {
	ModifiedAt int64  `json:"modified_at"`
	DeviceID   string `json:"device_id"`
}

func (a stamp) after(b stamp) bool {
	if a.ModifiedAt != b.ModifiedAt {
		return a.ModifiedAt > b.ModifiedAt
	}
	return a.DeviceID > b.DeviceID
}

// op is the wire representation of a single row mutation. The Workspace
// CRDT re-serializes the full FileMetadata on every write (no list-level
// CRDT for Contents) rather than tracking field-level deltas.
type op struct {
	DocID    string       `json:"doc_id"`
	Meta     FileMetadata `json:"meta"`
	DeviceID string       `json:"device_id"`
}

type row struct {
	meta  FileMetadata
	stamp stamp
}

// Workspace is the CRDT metadata document: doc-id -> FileMetadata.
type Workspace struct {
	mu       sync.RWMutex
	name     string
	deviceID string
	rows     map[string]row
	nextID   func() string
}

// NewWorkspace builds an empty in-memory workspace CRDT handle for the given
// document name. deviceID is this replica's tiebreak identity; nextID
// generates doc-ids for CreateFile (normally uuid.NewString).
func NewWorkspace(docName, deviceID string, nextID func() string) *Workspace {
	return &Workspace{
		name:     docName,
		deviceID: deviceID,
		rows:     make(map[string]row),
		nextID:   nextID,
	}
}

// Name returns the Update Store document name backing this handle.
func (w *Workspace) Name() string { return w.name }

// CreateFile inserts a new row under a freshly generated doc-id and returns
// it. A zero ModifiedAt is replaced with nowMillis by SetFile.
func (w *Workspace) CreateFile(meta FileMetadata, nowMillis int64) (docID string, err error) {
	if meta.Filename == "" {
		return "", diaryxerrors.Validation(nil, "file metadata requires a non-empty filename")
	}
	docID = w.nextID()
	w.SetFile(docID, meta, nowMillis)
	return docID, nil
}

// SetFile performs a local last-writer-wins write: modified_at is stamped
// with nowMillis if the caller left it zero, then merged against any
// existing row using this replica's device id for tiebreaks.
func (w *Workspace) SetFile(docID string, meta FileMetadata, nowMillis int64) {
	if meta.ModifiedAt == 0 {
		meta.ModifiedAt = nowMillis
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mergeLocked(docID, meta, stamp{ModifiedAt: meta.ModifiedAt, DeviceID: w.deviceID})
}

// mergeLocked applies a candidate write, keeping whichever of the existing
// and candidate stamps is later. Equal stamps are idempotent: the existing
// row is kept, since re-applying the same write produces the same stamp.
// The Deleted tombstone is sticky: once either side has it set, the merged
// row keeps it, whichever stamp wins.
func (w *Workspace) mergeLocked(docID string, meta FileMetadata, st stamp) {
	existing, ok := w.rows[docID]
	if !ok || st.after(existing.stamp) {
		merged := meta.Clone()
		if ok && existing.meta.Deleted {
			merged.Deleted = true
		}
		w.rows[docID] = row{meta: merged, stamp: st}
		return
	}
	if meta.Deleted && !existing.meta.Deleted {
		existing.meta.Deleted = true
		w.rows[docID] = existing
	}
}

// GetFile resolves either a doc-id or a legacy path key to its metadata.
func (w *Workspace) GetFile(key string) (FileMetadata, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rows[key]
	if !ok {
		return FileMetadata{}, false
	}
	return r.meta.Clone(), true
}

// MarkDeleted sets the tombstone bit on a row. Once true it can never be
// cleared by any mutation exposed here.
func (w *Workspace) MarkDeleted(docID string, nowMillis int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	existing, ok := w.rows[docID]
	if !ok {
		return false
	}
	meta := existing.meta.Clone()
	meta.Deleted = true
	meta.ModifiedAt = nowMillis
	w.mergeLocked(docID, meta, stamp{ModifiedAt: nowMillis, DeviceID: w.deviceID})
	return true
}

// ListFiles returns every doc-id row, including tombstones.
func (w *Workspace) ListFiles() map[string]FileMetadata {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]FileMetadata, len(w.rows))
	for id, r := range w.rows {
		out[id] = r.meta.Clone()
	}
	return out
}

// ListActiveFiles returns exactly the non-tombstoned entries.
func (w *Workspace) ListActiveFiles() map[string]FileMetadata {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]FileMetadata, len(w.rows))
	for id, r := range w.rows {
		if !r.meta.Deleted {
			out[id] = r.meta.Clone()
		}
	}
	return out
}

// GetPath resolves a doc-id to its workspace-relative path by walking
// part_of upward. It returns (path, false) if the ancestor chain is
// cyclic, exceeds maxAncestorDepth, or references a missing parent --
// callers report that as an "unresolved path" health concern, not an error.
func (w *Workspace) GetPath(docID string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	visited := make(map[string]bool)
	segments := make([]string, 0, 8)
	current := docID
	for depth := 0; ; depth++ {
		if depth > maxAncestorDepth {
			return "", false
		}
		if visited[current] {
			return "", false
		}
		visited[current] = true

		r, ok := w.rows[current]
		if !ok || r.meta.Filename == "" {
			return "", false
		}
		segments = append(segments, r.meta.Filename)

		if r.meta.PartOf == nil || *r.meta.PartOf == "" {
			break
		}
		current = *r.meta.PartOf
	}

	// segments were collected child-to-root; reverse into root-to-child order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	path := segments[0]
	for _, s := range segments[1:] {
		path += "/" + s
	}
	return path, true
}

// EncodeStateVector summarizes which stamp this replica has observed for
// each doc-id, letting a peer compute a diff against it.
func (w *Workspace) EncodeStateVector() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sv := make(map[string]stamp, len(w.rows))
	for id, r := range w.rows {
		sv[id] = r.stamp
	}
	b, _ := json.Marshal(sv)
	return b
}

// EncodeDiff returns the rows this replica has that are newer than (or
// absent from) the peer's state vector.
func (w *Workspace) EncodeDiff(peerSV []byte) ([]byte, error) {
	var peer map[string]stamp
	if len(peerSV) > 0 {
		if err := json.Unmarshal(peerSV, &peer); err != nil {
			return nil, diaryxerrors.Parse(err, "decode peer state vector")
		}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	ops := make([]op, 0, len(w.rows))
	ids := make([]string, 0, len(w.rows))
	for id := range w.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := w.rows[id]
		if peerStamp, ok := peer[id]; ok && !r.stamp.after(peerStamp) {
			continue
		}
		ops = append(ops, op{DocID: id, Meta: r.meta, DeviceID: r.stamp.DeviceID})
	}
	return json.Marshal(ops)
}

// EncodeStateAsUpdate returns the full workspace contents as a single
// update: applying it to an empty Workspace reproduces this state exactly.
func (w *Workspace) EncodeStateAsUpdate() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ops := make([]op, 0, len(w.rows))
	for id, r := range w.rows {
		ops = append(ops, op{DocID: id, Meta: r.meta, DeviceID: r.stamp.DeviceID})
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].DocID < ops[j].DocID })
	b, _ := json.Marshal(ops)
	return b
}

// ApplyUpdate merges an update produced by EncodeDiff/EncodeStateAsUpdate
// into this replica. Applying the same bytes twice is a no-op the second
// time (idempotent) because the merge keeps whichever stamp is later and
// the two are then equal.
func (w *Workspace) ApplyUpdate(update []byte, origin UpdateOrigin) error {
	if len(update) == 0 {
		return nil
	}
	var ops []op
	if err := json.Unmarshal(update, &ops); err != nil {
		return diaryxerrors.CrdtApply(err, "decode workspace update")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range ops {
		st := stamp{ModifiedAt: o.Meta.ModifiedAt, DeviceID: o.DeviceID}
		w.mergeLocked(o.DocID, o.Meta, st)
	}
	return nil
}
