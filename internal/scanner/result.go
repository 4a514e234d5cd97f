package scanner

import (
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Kind classifies one Result emitted by a scan task, per the seven scan
// result kinds named for the scanner plus the directory-level error
// kind.
type Kind int

const (
	KindUnchangedMeta Kind = iota
	KindChangedMeta
	KindUnknownFile
	KindRemoved
	KindIncomplete
	KindIncompleteRemoved
	KindFileError
	KindScanErrors
)

func (k Kind) String() string {
	switch k {
	case KindUnchangedMeta:
		return "unchanged_meta"
	case KindChangedMeta:
		return "changed_meta"
	case KindUnknownFile:
		return "unknown_file"
	case KindRemoved:
		return "removed"
	case KindIncomplete:
		return "incomplete"
	case KindIncompleteRemoved:
		return "incomplete_removed"
	case KindFileError:
		return "file_error"
	case KindScanErrors:
		return "scan_errors"
	default:
		return "unknown"
	}
}

// Result is one item of the scan task's lazy output sequence.
type Result struct {
	Kind Kind

	// Name is the path relative to the folder root, for every kind
	// except scan_errors.
	Name string

	Type          protocol.FileInfoType
	Size          int64
	ModifiedS     int64
	Permissions   uint32
	SymlinkTarget string

	// Blocks is populated for unknown_file/changed_meta/incomplete once
	// hashing completes.
	Blocks []protocol.BlockInfo

	// Expected is the model's prior record, present for changed_meta,
	// removed, incomplete, and incomplete_removed.
	Expected *model.FileInfo

	// Err carries the failure for file_error.
	Err error
	// Errs carries the directory-level failures for scan_errors.
	Errs []error
}
