package crdt

import (
	"encoding/json"
	"sync"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// bodyOp is the wire representation of a whole-text replacement. Diaryx
// bodies are LWW at the whole-document granularity: SetBody always replaces
// the full text rather than splicing a diff, matching the spec's "implementations
// may diff-and-splice" being optional, not required.
type bodyOp struct {
	Text       string `json:"text"`
	ModifiedAt int64  `json:"modified_at"`
	DeviceID   string `json:"device_id"`
}

// Body is the CRDT text document holding one file's markdown body.
type Body struct {
	mu       sync.RWMutex
	name     string
	deviceID string
	text     string
	stamp    stamp
}

// NewBody builds an empty in-memory body CRDT handle for the given document
// name.
func NewBody(docName, deviceID string) *Body {
	return &Body{name: docName, deviceID: deviceID}
}

// Name returns the Update Store document name backing this handle.
func (b *Body) Name() string { return b.name }

// GetBody returns the current text.
func (b *Body) GetBody() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// SetBody replaces the whole text as a local write stamped with nowMillis.
func (b *Body) SetBody(text string, nowMillis int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := stamp{ModifiedAt: nowMillis, DeviceID: b.deviceID}
	if st.after(b.stamp) {
		b.text = text
		b.stamp = st
	}
}

// EncodeStateVector returns this replica's stamp for the document.
func (b *Body) EncodeStateVector() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out, _ := json.Marshal(b.stamp)
	return out
}

// EncodeDiff returns an update carrying the current text if it is newer
// than the peer's stamp, or an empty update (which ApplyUpdate ignores) if
// the peer is already up to date.
func (b *Body) EncodeDiff(peerSV []byte) ([]byte, error) {
	var peerStamp stamp
	if len(peerSV) > 0 {
		if err := json.Unmarshal(peerSV, &peerStamp); err != nil {
			return nil, diaryxerrors.Parse(err, "decode peer body state vector")
		}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.stamp.after(peerStamp) {
		return json.Marshal(bodyOp{})
	}
	return json.Marshal(bodyOp{Text: b.text, ModifiedAt: b.stamp.ModifiedAt, DeviceID: b.stamp.DeviceID})
}

// EncodeStateAsUpdate returns the full body contents as a single update.
func (b *Body) EncodeStateAsUpdate() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out, _ := json.Marshal(bodyOp{Text: b.text, ModifiedAt: b.stamp.ModifiedAt, DeviceID: b.stamp.DeviceID})
	return out
}

// ApplyUpdate merges a whole-text update produced by EncodeDiff or
// EncodeStateAsUpdate. Re-applying the same bytes is idempotent since the
// resulting stamp never regresses.
func (b *Body) ApplyUpdate(update []byte, origin UpdateOrigin) error {
	if len(update) == 0 {
		return nil
	}
	var o bodyOp
	if err := json.Unmarshal(update, &o); err != nil {
		return diaryxerrors.CrdtApply(err, "decode body update")
	}
	if o.DeviceID == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st := stamp{ModifiedAt: o.ModifiedAt, DeviceID: o.DeviceID}
	if st.after(b.stamp) {
		b.text = o.Text
		b.stamp = st
	}
	return nil
}
