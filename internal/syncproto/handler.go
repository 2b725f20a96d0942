package syncproto

import (
	"github.com/goliatone/diaryx-sync/internal/crdt"
)

// Document is the subset of the Workspace/Body CRDT surface the sync
// protocol drives. Both crdt.Workspace and crdt.Body satisfy it.
type Document interface {
	EncodeStateVector() []byte
	EncodeDiff(peerSV []byte) ([]byte, error)
	EncodeStateAsUpdate() []byte
	ApplyUpdate(update []byte, origin crdt.UpdateOrigin) error
}

// Handle applies the handler semantics of section 4.4 for a message
// received against doc, returning zero or more reply messages (not yet
// framed) the caller should send back to the peer that sent msg.
//
//   - SyncStep1(peer_sv): reply with SyncStep2(diff) followed by our own
//     SyncStep1(our state vector) -- this combined response bootstraps
//     bidirectional sync in one round trip.
//   - SyncStep2(diff): apply with origin=Sync, no reply.
//   - Update(upd): apply with origin=Remote, no reply.
func Handle(doc Document, msg Message) ([][]byte, error) {
	if !msg.IsSync() {
		return nil, nil
	}
	switch msg.SyncKind {
	case SyncStep1:
		diff, err := doc.EncodeDiff(msg.Payload)
		if err != nil {
			return nil, err
		}
		return [][]byte{
			EncodeSyncStep2(diff),
			EncodeSyncStep1(doc.EncodeStateVector()),
		}, nil
	case SyncStep2:
		if err := doc.ApplyUpdate(msg.Payload, crdt.OriginSync); err != nil {
			return nil, err
		}
		return nil, nil
	case SyncUpdate:
		if err := doc.ApplyUpdate(msg.Payload, crdt.OriginRemote); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, nil
	}
}
