package syncproto

import (
	"encoding/binary"
	"errors"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// Frame multiplexes a sync-protocol message for a document over a single
// transport: [doc-name-length: varint][doc-name: UTF-8][message bytes].
// binary.AppendUvarint/binary.Uvarint from the standard library back the
// varint encoding -- no ecosystem varint codec appears anywhere in the
// retrieval pack, so this is the one piece of wire format built directly
// on encoding/binary rather than a third-party dependency (see DESIGN.md).
func Frame(doc string, msg []byte) []byte {
	docBytes := []byte(doc)
	out := binary.AppendUvarint(nil, uint64(len(docBytes)))
	out = append(out, docBytes...)
	out = append(out, msg...)
	return out
}

// Unframe reverses Frame, returning the doc-name and the remaining message
// bytes. It rejects frames whose declared doc-name length exceeds the
// buffer, and frames too short to hold a varint at all.
func Unframe(frame []byte) (doc string, msg []byte, err error) {
	length, n := binary.Uvarint(frame)
	if n <= 0 {
		return "", nil, diaryxerrors.Protocol(errors.New("truncated varint"), "unframe: invalid doc-name length")
	}
	rest := frame[n:]
	if uint64(len(rest)) < length {
		return "", nil, diaryxerrors.Protocol(errors.New("doc-name length exceeds frame"), "unframe: doc-name longer than frame")
	}
	doc = string(rest[:length])
	msg = rest[length:]
	return doc, msg, nil
}
