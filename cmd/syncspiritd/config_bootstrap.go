package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/basiliscos/syncspirit-go/internal/config"
	"github.com/basiliscos/syncspirit-go/internal/coordinator"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// loadOrInitConfig loads config.xml under home, writing a fresh default
// configuration (via config.Wrapper.Save) on first run.
func loadOrInitConfig(home string, localID protocol.DeviceID) (*config.Wrapper, error) {
	path := filepath.Join(home, "config.xml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		w := config.Wrap(path, config.New(localID))
		if err := w.Save(); err != nil {
			return nil, err
		}
		return w, nil
	}

	return config.Load(path, localID)
}

// reconcileConfig seeds the cluster with every device and folder named
// in configuration that the store hasn't seen before. It runs once at
// start-up, after EnsureLocalDevice, so ShareFolder's device-exists
// check always succeeds for configured peers.
func reconcileConfig(ctx context.Context, co *coordinator.Coordinator, w *config.Wrapper, localID protocol.DeviceID) error {
	for id, dc := range w.Devices() {
		if id == localID {
			continue
		}
		if err := co.EnsureDevice(ctx, id, dc.Name); err != nil {
			return err
		}
	}

	for id, fc := range w.Folders() {
		deviceIDs := make([]string, 0, len(fc.Devices))
		for _, fdc := range fc.Devices {
			if fdc.DeviceID == localID {
				continue
			}
			deviceIDs = append(deviceIDs, fdc.DeviceID.String())
		}
		if err := co.ReconcileFolder(ctx, id, fc.Label, fc.Path, fc.ReadOnly, deviceIDs); err != nil {
			return err
		}
	}
	return nil
}
