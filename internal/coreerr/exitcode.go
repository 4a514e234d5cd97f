package coreerr

import (
	"errors"
	"strings"
)

// Exit codes for cmd/syncspiritctl.
const (
	ExitSuccess            = 0
	ExitConfigurationError = 1
	ExitIOError            = 2
	ExitProtocolError      = 3
	ExitInvariantViolation = 4
)

// ExitCode maps err's Kind to one of the process exit codes above. A nil
// err exits 0; an err that isn't a *Error (or wraps one) is treated as an
// internal invariant violation, since every expected failure path in this
// core produces a typed *Error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var e *Error
	if !errors.As(err, &e) {
		return ExitInvariantViolation
	}

	switch e.Kind {
	case KindMissingParent, KindInvalidSequence, KindMissingVersion,
		KindUnexpectedBlocks, KindSizeMismatch, KindMalformedURL,
		KindFolderNotShared, KindFolderNotExist:
		return ExitConfigurationError

	case KindOpenFailed, KindReadFailed, KindWriteFailed,
		KindPermissionDenied, KindNotADirectory, KindDiskFull:
		return ExitIOError

	case KindDigestMismatch, KindUnexpectedResponse, KindMalformedMessage,
		KindPeerShutdown:
		return ExitProtocolError

	default:
		return ExitInvariantViolation
	}
}

// configurationKinds, ioKinds and protocolKinds mirror the groupings in
// ExitCode, duplicated here as Kind slices so ExitCodeFromMessage can
// search Error() text for a kind's String() form.
var (
	configurationKinds = []Kind{
		KindMissingParent, KindInvalidSequence, KindMissingVersion,
		KindUnexpectedBlocks, KindSizeMismatch, KindMalformedURL,
		KindFolderNotShared, KindFolderNotExist,
	}
	ioKinds = []Kind{
		KindOpenFailed, KindReadFailed, KindWriteFailed,
		KindPermissionDenied, KindNotADirectory, KindDiskFull,
	}
	protocolKinds = []Kind{
		KindDigestMismatch, KindUnexpectedResponse, KindMalformedMessage,
		KindPeerShutdown,
	}
)

// ExitCodeFromMessage recovers an exit code from a server-side error's
// message text, for callers on the other side of a transport that
// discards error types — net/rpc's default gob codec turns every server
// error into a plain string (rpc.ServerError), so cmd/syncspiritctl
// cannot errors.As its way back to a *Error the way an in-process caller
// can. Error's Error() method always renders the Kind's String() form
// verbatim, so matching against it recovers the same classification
// ExitCode would have given, at the cost of being a text match instead
// of a type assertion.
func ExitCodeFromMessage(msg string) int {
	if msg == "" {
		return ExitSuccess
	}
	for _, k := range configurationKinds {
		if strings.Contains(msg, k.String()) {
			return ExitConfigurationError
		}
	}
	for _, k := range ioKinds {
		if strings.Contains(msg, k.String()) {
			return ExitIOError
		}
	}
	for _, k := range protocolKinds {
		if strings.Contains(msg, k.String()) {
			return ExitProtocolError
		}
	}
	return ExitInvariantViolation
}
