package resolver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

func vec(id uint64, val uint64) protocol.Vector {
	return protocol.Vector{{ID: id, Value: val}}
}

func TestResolveInvalidAlwaysIgnored(t *testing.T) {
	got := Resolve(Input{Remote: protocol.FileInfo{Invalid: true}})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveUnreachableIgnored(t *testing.T) {
	got := Resolve(Input{Remote: protocol.FileInfo{}, RemoteUnreachable: true})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveThirdPartyDominatesIgnored(t *testing.T) {
	got := Resolve(Input{Remote: protocol.FileInfo{}, ThirdPartyDominates: true})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveNoLocalCopiesRemote(t *testing.T) {
	got := Resolve(Input{Remote: protocol.FileInfo{Name: "a.txt", Version: vec(1, 1)}})
	assert.Equal(t, diff.ActionRemoteCopy, got)
}

func TestResolveLocalNotYetScannedIgnored(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: vec(1, 1)},
		Local:  &model.FileInfo{Name: "a.txt", Local: false},
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveBothDeletedIgnored(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Deleted: true, Version: vec(1, 2)},
		Local:  &model.FileInfo{Name: "a.txt", Deleted: true, Local: true, Version: vec(1, 1)},
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveIgnoreDeleteSuppressesNonDominatingDelete(t *testing.T) {
	got := Resolve(Input{
		Remote:       protocol.FileInfo{Name: "a.txt", Deleted: true, Version: vec(2, 1)},
		Local:        &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 1).Merge(vec(2, 1))},
		IgnoreDelete: true,
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveEqualVersionsIgnored(t *testing.T) {
	v := vec(1, 5)
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: v},
		Local:  &model.FileInfo{Name: "a.txt", Local: true, Version: v},
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveRemoteDominatesCopies(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: vec(1, 2)},
		Local:  &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 1)},
	})
	assert.Equal(t, diff.ActionRemoteCopy, got)
}

func TestResolveLocalDominatesIgnored(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: vec(1, 1)},
		Local:  &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 2)},
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestResolveConcurrentRemoteNewerWins(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: vec(2, 1), ModifiedS: 200},
		Local:  &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 1), ModifiedS: 100},
	})
	assert.Equal(t, diff.ActionResolveRemoteWin, got)
}

func TestResolveConcurrentLocalNewerWins(t *testing.T) {
	got := Resolve(Input{
		Remote: protocol.FileInfo{Name: "a.txt", Version: vec(2, 1), ModifiedS: 100},
		Local:  &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 1), ModifiedS: 200},
	})
	assert.Equal(t, diff.ActionResolveLocalWin, got)
}

func TestResolveConcurrentAlreadyResolvedSiblingIgnored(t *testing.T) {
	got := Resolve(Input{
		Remote:                         protocol.FileInfo{Name: "a.txt", Version: vec(2, 1), ModifiedS: 999},
		Local:                          &model.FileInfo{Name: "a.txt", Local: true, Version: vec(1, 1), ModifiedS: 1},
		LocalIsResolvedConflictSibling: true,
	})
	assert.Equal(t, diff.ActionIgnore, got)
}

func TestViolatesReservedNameNulByte(t *testing.T) {
	assert.True(t, violatesReservedName(protocol.FileInfo{Name: "a\x00b"}))
}

func TestConflictNameAppendsSuffix(t *testing.T) {
	dev := protocol.DeviceID{0x01, 0x02, 0x03}
	when := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := ConflictName("notes/report.txt", dev, when)
	assert.Contains(t, got, "notes/report.sync-conflict-20260730-120000-")
	assert.True(t, strings.HasSuffix(got, ".txt"))
}

func TestConflictNameNeverNests(t *testing.T) {
	dev := protocol.DeviceID{0x01}
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := ConflictName("a.txt", dev, when)
	second := ConflictName(first, dev, when.Add(time.Hour))
	assert.Equal(t, 1, strings.Count(second, "sync-conflict-"))
}
