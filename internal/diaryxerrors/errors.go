// Package diaryxerrors defines the error taxonomy shared by every sync engine
// component, layered on top of goliatone/go-errors the same way the
// repository packages in the wider goliatone ecosystem define their own
// Category constants rather than relying on a handful of library built-ins.
package diaryxerrors

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Category constants cover the taxonomy from the error handling design:
// storage I/O, frame/message parsing, CRDT apply failures, protocol
// violations, auth, not-found, path conflicts, validation, history-store
// failures, and unsupported operations on a given backing store.
const (
	CategoryIO         goerrors.Category = "diaryx.io"
	CategoryParse      goerrors.Category = "diaryx.parse"
	CategoryCrdtApply  goerrors.Category = "diaryx.crdt_apply"
	CategoryProtocol   goerrors.Category = "diaryx.protocol"
	CategoryAuth       goerrors.Category = "diaryx.auth"
	CategoryNotFound   goerrors.Category = "diaryx.not_found"
	CategoryConflict   goerrors.Category = "diaryx.conflict"
	CategoryValidation goerrors.Category = "diaryx.validation"
	CategoryHistory    goerrors.Category = "diaryx.history"
	CategoryUnsupported goerrors.Category = "diaryx.unsupported"
)

// Text codes attached alongside a category so API consumers can switch on a
// stable string instead of the category alone.
const (
	CodeIO          = "DIARYX_IO_ERROR"
	CodeParse       = "DIARYX_PARSE_ERROR"
	CodeCrdtApply   = "DIARYX_CRDT_APPLY_ERROR"
	CodeProtocol    = "DIARYX_PROTOCOL_ERROR"
	CodeAuth        = "DIARYX_AUTH_ERROR"
	CodeNotFound    = "DIARYX_NOT_FOUND"
	CodeConflict    = "DIARYX_CONFLICT"
	CodeValidation  = "DIARYX_VALIDATION_FAILED"
	CodeHistory     = "DIARYX_HISTORY_ERROR"
	CodeUnsupported = "DIARYX_UNSUPPORTED"
)

// Wrap tags err with category and code, unless it is already a wrapped
// go-errors error, in which case it passes through untouched so repeated
// wrapping at layered call sites stays idempotent. A nil err creates a new
// error carrying message, so callers can build a categorised error from
// scratch by passing nil.
func Wrap(err error, category goerrors.Category, code, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, category, message).WithTextCode(code)
}

func IO(err error, message string) error { return Wrap(err, CategoryIO, CodeIO, message) }

func Parse(err error, message string) error { return Wrap(err, CategoryParse, CodeParse, message) }

func CrdtApply(err error, message string) error {
	return Wrap(err, CategoryCrdtApply, CodeCrdtApply, message)
}

func Protocol(err error, message string) error {
	return Wrap(err, CategoryProtocol, CodeProtocol, message)
}

func Auth(err error, message string) error { return Wrap(err, CategoryAuth, CodeAuth, message) }

func NotFound(err error, message string) error {
	return Wrap(err, CategoryNotFound, CodeNotFound, message)
}

func Conflict(err error, message string) error {
	return Wrap(err, CategoryConflict, CodeConflict, message)
}

func Validation(err error, message string) error {
	return Wrap(err, CategoryValidation, CodeValidation, message)
}

func History(err error, message string) error {
	return Wrap(err, CategoryHistory, CodeHistory, message)
}

func Unsupported(err error, message string) error {
	return Wrap(err, CategoryUnsupported, CodeUnsupported, message)
}

// Is reports whether err was tagged with the given category.
func Is(err error, category goerrors.Category) bool {
	return goerrors.IsCategory(err, category)
}
