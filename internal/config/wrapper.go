package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Handler is notified whenever the wrapped configuration is replaced.
type Handler interface {
	Changed(Configuration)
}

type HandlerFunc func(Configuration)

func (fn HandlerFunc) Changed(cfg Configuration) { fn(cfg) }

// Wrapper guards a Configuration with a mutex and ties it to a file on
// disk, notifying subscribers (the coordinator, primarily) of changes.
type Wrapper struct {
	mu   sync.Mutex
	cfg  Configuration
	path string

	deviceMap map[protocol.DeviceID]DeviceConfiguration
	folderMap map[string]FolderConfiguration

	subMu sync.Mutex
	subs  []Handler
}

func Wrap(path string, cfg Configuration) *Wrapper {
	return &Wrapper{cfg: cfg, path: path}
}

func Load(path string, myID protocol.DeviceID) (*Wrapper, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	cfg, err := ReadXML(fd, myID)
	if err != nil {
		return nil, err
	}
	return Wrap(path, cfg), nil
}

func (w *Wrapper) Subscribe(h Handler) {
	w.subMu.Lock()
	w.subs = append(w.subs, h)
	w.subMu.Unlock()
}

func (w *Wrapper) notify(cfg Configuration) {
	w.subMu.Lock()
	subs := append([]Handler(nil), w.subs...)
	w.subMu.Unlock()
	for _, h := range subs {
		h.Changed(cfg)
	}
}

// Raw returns a copy of the currently wrapped configuration.
func (w *Wrapper) Raw() Configuration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Replace swaps the current configuration object for the given one.
func (w *Wrapper) Replace(cfg Configuration) {
	w.mu.Lock()
	w.cfg = cfg
	w.deviceMap = nil
	w.folderMap = nil
	w.mu.Unlock()
	w.notify(cfg)
}

func (w *Wrapper) Devices() map[protocol.DeviceID]DeviceConfiguration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.deviceMap == nil {
		w.deviceMap = make(map[protocol.DeviceID]DeviceConfiguration, len(w.cfg.Devices))
		for _, d := range w.cfg.Devices {
			w.deviceMap[d.DeviceID] = d
		}
	}
	return w.deviceMap
}

func (w *Wrapper) SetDevice(d DeviceConfiguration) {
	w.mu.Lock()
	w.deviceMap = nil
	for i := range w.cfg.Devices {
		if w.cfg.Devices[i].DeviceID == d.DeviceID {
			w.cfg.Devices[i] = d
			cfg := w.cfg
			w.mu.Unlock()
			w.notify(cfg)
			return
		}
	}
	w.cfg.Devices = append(w.cfg.Devices, d)
	cfg := w.cfg
	w.mu.Unlock()
	w.notify(cfg)
}

func (w *Wrapper) Folders() map[string]FolderConfiguration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.folderMap == nil {
		w.folderMap = make(map[string]FolderConfiguration, len(w.cfg.Folders))
		for _, f := range w.cfg.Folders {
			w.folderMap[f.ID] = f
		}
	}
	return w.folderMap
}

func (w *Wrapper) SetFolder(f FolderConfiguration) {
	w.mu.Lock()
	w.folderMap = nil
	for i := range w.cfg.Folders {
		if w.cfg.Folders[i].ID == f.ID {
			w.cfg.Folders[i] = f
			cfg := w.cfg
			w.mu.Unlock()
			w.notify(cfg)
			return
		}
	}
	w.cfg.Folders = append(w.cfg.Folders, f)
	cfg := w.cfg
	w.mu.Unlock()
	w.notify(cfg)
}

// RemoveFolder drops a folder by ID, reporting whether it was present.
func (w *Wrapper) RemoveFolder(id string) bool {
	w.mu.Lock()
	removed := false
	for i := range w.cfg.Folders {
		if w.cfg.Folders[i].ID == id {
			w.cfg.Folders = append(w.cfg.Folders[:i], w.cfg.Folders[i+1:]...)
			w.folderMap = nil
			removed = true
			break
		}
	}
	cfg := w.cfg
	w.mu.Unlock()
	if removed {
		w.notify(cfg)
	}
	return removed
}

func (w *Wrapper) Options() OptionsConfiguration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.Options
}

func (w *Wrapper) SetOptions(opts OptionsConfiguration) {
	w.mu.Lock()
	w.cfg.Options = opts
	cfg := w.cfg
	w.mu.Unlock()
	w.notify(cfg)
}

// InvalidateFolder marks a folder invalid at runtime, without persisting.
func (w *Wrapper) InvalidateFolder(id, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.folderMap = nil
	for i := range w.cfg.Folders {
		if w.cfg.Folders[i].ID == id {
			w.cfg.Folders[i].Invalid = reason
			return
		}
	}
}

// Save writes the configuration to disk via a temp-file-then-rename,
// matching the rest of this module's durable-write discipline.
func (w *Wrapper) Save() error {
	w.mu.Lock()
	cfg := w.cfg
	path := w.path
	w.mu.Unlock()

	fd, err := os.CreateTemp(filepath.Dir(path), "cfg")
	if err != nil {
		return err
	}
	tmp := fd.Name()
	defer os.Remove(tmp)

	if err := cfg.WriteXML(fd); err != nil {
		fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
