package main

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

const identityFileName = "identity.key"

// loadOrCreateIdentity returns this process's stable DeviceID, generating
// and persisting a fresh random identity seed on first run. Certificate
// management is a transport concern out of scope here, so the seed
// standing in for a certificate is simply 32 random bytes
// hashed the same way NewDeviceID hashes a real one.
func loadOrCreateIdentity(home string) (protocol.DeviceID, error) {
	path := filepath.Join(home, identityFileName)

	seed, err := os.ReadFile(path)
	if err == nil && len(seed) == 32 {
		return protocol.NewDeviceID(seed), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return protocol.DeviceID{}, coreerr.New(coreerr.KindReadFailed, "identity.load", err)
	}

	seed = make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return protocol.DeviceID{}, coreerr.New(coreerr.KindReadFailed, "identity.generate", err)
	}
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return protocol.DeviceID{}, coreerr.New(coreerr.KindWriteFailed, "identity.persist", err)
	}
	return protocol.NewDeviceID(seed), nil
}
