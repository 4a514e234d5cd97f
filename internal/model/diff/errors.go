package diff

import "github.com/basiliscos/syncspirit-go/internal/coreerr"

// Small typed-error constructors shared by the applyImpl methods in this
// package, keeping the coreerr.Kind/Op pairing consistent across diffs
// that hit the same failure mode.

func coreerrMissingLocalFolderInfo() error {
	return coreerr.New(coreerr.KindMissingParent, "diff.require_folder_info", nil)
}

func coreerrUnexpectedBlocks() error {
	return coreerr.New(coreerr.KindUnexpectedBlocks, "diff.block_index", nil)
}

func coreerrSizeMismatch() error {
	return coreerr.New(coreerr.KindSizeMismatch, "diff.blocks_availability", nil)
}

func coreerrInvalidSequence() error {
	return coreerr.New(coreerr.KindInvalidSequence, "diff.sequence", nil)
}

func coreerrMissingVersion() error {
	return coreerr.New(coreerr.KindMissingVersion, "diff.version", nil)
}
