package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

func TestWrapperSetAndGetFolder(t *testing.T) {
	local := protocol.DeviceID{0x01}
	w := Wrap("", New(local))

	w.SetFolder(FolderConfiguration{ID: "docs", Path: "/srv/docs"})
	folders := w.Folders()
	require.Contains(t, folders, "docs")
	assert.Equal(t, "/srv/docs", folders["docs"].Path)

	w.SetFolder(FolderConfiguration{ID: "docs", Path: "/srv/docs2"})
	assert.Equal(t, "/srv/docs2", w.Folders()["docs"].Path)
}

func TestWrapperRemoveFolder(t *testing.T) {
	local := protocol.DeviceID{0x01}
	w := Wrap("", New(local))
	w.SetFolder(FolderConfiguration{ID: "docs", Path: "/srv/docs"})

	assert.True(t, w.RemoveFolder("docs"))
	assert.NotContains(t, w.Folders(), "docs")
	assert.False(t, w.RemoveFolder("docs"))
}

func TestWrapperNotifiesSubscribers(t *testing.T) {
	local := protocol.DeviceID{0x01}
	w := Wrap("", New(local))

	var seen int
	w.Subscribe(HandlerFunc(func(Configuration) { seen++ }))

	w.SetFolder(FolderConfiguration{ID: "docs", Path: "/srv/docs"})
	w.SetOptions(OptionsConfiguration{LogLevel: "debug"})

	assert.Equal(t, 2, seen)
}

func TestWrapperSaveAndLoadRoundTrip(t *testing.T) {
	local := protocol.DeviceID{0x01}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	w := Wrap(path, New(local))
	w.SetFolder(FolderConfiguration{ID: "docs", Path: "/srv/docs"})
	require.NoError(t, w.Save())

	loaded, err := Load(path, local)
	require.NoError(t, err)
	assert.Contains(t, loaded.Folders(), "docs")
}
