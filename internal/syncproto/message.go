// Package syncproto implements the per-document Y-style sync protocol
// (state-vector handshake + incremental updates) and the binary framing
// that multiplexes many documents' messages over one websocket transport.
package syncproto

import (
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// MsgKind is the first framing byte distinguishing sync messages from
// other transport-level message kinds that must be ignored by sync-only
// consumers.
type MsgKind byte

const (
	MsgSync      MsgKind = 0
	MsgAwareness MsgKind = 1
	MsgAuth      MsgKind = 2
)

// SyncKind is the second byte of a sync message, selecting one of the
// three-message handshake/update protocol steps.
type SyncKind byte

const (
	SyncStep1 SyncKind = 0
	SyncStep2 SyncKind = 1
	SyncUpdate SyncKind = 2
)

// Message is a decoded sync-protocol message for a single document.
type Message struct {
	Kind     MsgKind
	SyncKind SyncKind
	Payload  []byte
}

// EncodeSyncStep1 builds a SyncStep1 message carrying a state vector.
func EncodeSyncStep1(stateVector []byte) []byte {
	return encodeSync(SyncStep1, stateVector)
}

// EncodeSyncStep2 builds a SyncStep2 message carrying a diff update.
func EncodeSyncStep2(diff []byte) []byte {
	return encodeSync(SyncStep2, diff)
}

// EncodeUpdate builds an incremental Update message.
func EncodeUpdate(update []byte) []byte {
	return encodeSync(SyncUpdate, update)
}

func encodeSync(kind SyncKind, payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	out[0] = byte(MsgSync)
	out[1] = byte(kind)
	copy(out[2:], payload)
	return out
}

// Decode parses a sync-protocol message's [msg_kind][sub_kind][payload]
// envelope. Non-sync messages (msg_kind != 0) are returned with their kind
// set so callers can ignore them per spec; the payload is everything past
// the second byte regardless of kind.
func Decode(raw []byte) (Message, error) {
	if len(raw) < 2 {
		return Message{}, diaryxerrors.Protocol(nil, "sync message shorter than 2-byte header")
	}
	return Message{
		Kind:     MsgKind(raw[0]),
		SyncKind: SyncKind(raw[1]),
		Payload:  raw[2:],
	}, nil
}

// IsSync reports whether a decoded message belongs to the sync protocol
// (msg_kind == 0); awareness/auth messages must be ignored by handlers that
// only implement document sync.
func (m Message) IsSync() bool { return m.Kind == MsgSync }
