// Package coreerr defines the error taxonomy shared across the core:
// model errors, I/O errors, protocol errors, and transport signals. The
// core prefers typed, wrapped stdlib errors (errors.Is/As, %w) over a
// third-party errors library.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error without requiring callers to match on message text.
type Kind int

const (
	KindUnknown Kind = iota

	// Model errors
	KindMissingParent
	KindInvalidSequence
	KindMissingVersion
	KindUnexpectedBlocks
	KindSizeMismatch
	KindMalformedURL
	KindFolderNotShared
	KindFolderNotExist
	KindTainted

	// I/O errors
	KindOpenFailed
	KindReadFailed
	KindWriteFailed
	KindPermissionDenied
	KindNotADirectory
	KindDiskFull

	// Protocol errors
	KindDigestMismatch
	KindUnexpectedResponse
	KindMalformedMessage

	// Transport signal
	KindPeerShutdown
)

func (k Kind) String() string {
	switch k {
	case KindMissingParent:
		return "missing_parent"
	case KindInvalidSequence:
		return "invalid_sequence"
	case KindMissingVersion:
		return "missing_version"
	case KindUnexpectedBlocks:
		return "unexpected_blocks"
	case KindSizeMismatch:
		return "size_mismatch"
	case KindMalformedURL:
		return "malformed_url"
	case KindFolderNotShared:
		return "folder_not_shared"
	case KindFolderNotExist:
		return "folder_does_not_exist"
	case KindTainted:
		return "model_tainted"
	case KindOpenFailed:
		return "open_failed"
	case KindReadFailed:
		return "read_failed"
	case KindWriteFailed:
		return "write_failed"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotADirectory:
		return "not_a_directory"
	case KindDiskFull:
		return "disk_full"
	case KindDigestMismatch:
		return "digest_mismatch"
	case KindUnexpectedResponse:
		return "unexpected_response_code"
	case KindMalformedMessage:
		return "malformed_message"
	case KindPeerShutdown:
		return "peer_shutdown"
	default:
		return "unknown"
	}
}

// Error is the core's single wrapped-error type. Op names the failing
// operation (e.g. "cluster.apply", "scanner.walk") for log correlation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, coreerr.New(coreerr.KindDigestMismatch, "", nil)) or,
// more conveniently, use Has below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Has reports whether err is, or wraps, a coreerr.Error of the given kind.
func Has(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
