// Package resolver implements the conflict-resolution decision table
// (component C7): a pure function, no actor, that maps a remote file
// candidate and optional local counterpart to one advance verdict.
package resolver

import (
	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Input bundles every fact the decision table needs, so Resolve stays a
// pure function of its argument rather than reaching into the cluster
// itself.
type Input struct {
	Remote protocol.FileInfo

	// RemoteUnreachable is true when the peer offering Remote cannot
	// presently be reached (rule 2).
	RemoteUnreachable bool

	// ThirdPartyDominates is true when some other peer's version of
	// this file dominates both Remote and Local (rule 3).
	ThirdPartyDominates bool

	// Local is the local FileInfo, nil if no local record exists yet.
	Local *model.FileInfo

	// IgnoreDelete mirrors the owning folder's ignore_delete flag.
	IgnoreDelete bool

	// LocalIsResolvedConflictSibling is true when Local already is the
	// product of a prior conflict resolution (rule 12).
	LocalIsResolvedConflictSibling bool
}

// Resolve evaluates the twelve-step decision table in order and returns
// the first matching verdict.
func Resolve(in Input) diff.Action {
	// 1: R.invalid
	if in.Remote.Invalid {
		return diff.ActionIgnore
	}
	// 2: R.unreachable
	if in.RemoteUnreachable {
		return diff.ActionIgnore
	}
	// 3: third peer dominates both
	if in.ThirdPartyDominates {
		return diff.ActionIgnore
	}
	// 4: reserved-name violation
	if violatesReservedName(in.Remote) {
		return diff.ActionIgnore
	}
	// 5: L does not exist
	if in.Local == nil {
		return diff.ActionRemoteCopy
	}
	// 6: L exists but has not been scanned yet
	if !in.Local.Local {
		return diff.ActionIgnore
	}
	// 7: both deleted
	if in.Remote.Deleted && in.Local.Deleted {
		return diff.ActionIgnore
	}
	// 8: R deleted, ignore_delete, non-dominating version
	if in.Remote.Deleted && in.IgnoreDelete && !in.Remote.Version.Dominates(in.Local.Version) {
		return diff.ActionIgnore
	}
	// 9: equal versions
	if in.Remote.Version.IsEqual(in.Local.Version) {
		return diff.ActionIgnore
	}
	// 10: R dominates L
	if in.Remote.Version.Dominates(in.Local.Version) {
		return diff.ActionRemoteCopy
	}
	// 11: L dominates R
	if in.Local.Version.Dominates(in.Remote.Version) {
		return diff.ActionIgnore
	}
	// 12: concurrent
	if in.LocalIsResolvedConflictSibling {
		return diff.ActionIgnore
	}
	if in.Remote.ModifiedS > in.Local.ModifiedS {
		return diff.ActionResolveRemoteWin
	}
	return diff.ActionResolveLocalWin
}
