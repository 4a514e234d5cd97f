package storage

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// Prefix is the one-byte entity-type tag every stored key starts with:
// each entity type owns a one-byte prefix in the key layout.
type Prefix byte

const (
	PrefixDevice Prefix = iota + 1
	PrefixFolder
	PrefixFolderInfo
	PrefixFileInfo
	PrefixBlockInfo
	PrefixPendingDevice
	PrefixIgnoredDevice
	PrefixPendingFolder
	PrefixMisc
)

const (
	miscKeySchemaVersion byte = iota
	miscKeyLastSeen
)

func miscVersionKey() []byte { return []byte{byte(PrefixMisc), miscKeySchemaVersion} }

func lastSeenKey() []byte { return []byte{byte(PrefixMisc), miscKeyLastSeen} }

func deviceKey(id protocol.DeviceID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = byte(PrefixDevice)
	copy(k[1:], id[:])
	return k
}

func pendingDeviceKey(id protocol.DeviceID) []byte {
	k := deviceKey(id)
	k[0] = byte(PrefixPendingDevice)
	return k
}

func ignoredDeviceKey(id protocol.DeviceID) []byte {
	k := deviceKey(id)
	k[0] = byte(PrefixIgnoredDevice)
	return k
}

func folderKey(id uuid.UUID) []byte {
	k := make([]byte, 1+16)
	k[0] = byte(PrefixFolder)
	copy(k[1:], id[:])
	return k
}

func pendingFolderKey(id uuid.UUID) []byte {
	k := folderKey(id)
	k[0] = byte(PrefixPendingFolder)
	return k
}

// folderInfoKey is addressed by (folder, device) rather than its own
// arena key, so a prefix scan for one folder's FolderInfo records is a
// single range read.
func folderInfoKey(folderKey uuid.UUID, device protocol.DeviceID) []byte {
	k := make([]byte, 1+16+len(device))
	k[0] = byte(PrefixFolderInfo)
	copy(k[1:17], folderKey[:])
	copy(k[17:], device[:])
	return k
}

func folderInfoPrefix(folderKey uuid.UUID) []byte {
	k := make([]byte, 1+16)
	k[0] = byte(PrefixFolderInfo)
	copy(k[1:], folderKey[:])
	return k
}

// fileInfoKey is addressed by (folder, device, name) so every file
// belonging to one FolderInfo sits in one contiguous range.
func fileInfoKey(folderKey uuid.UUID, device protocol.DeviceID, name string) []byte {
	k := make([]byte, 0, 1+16+len(device)+len(name))
	k = append(k, byte(PrefixFileInfo))
	k = append(k, folderKey[:]...)
	k = append(k, device[:]...)
	k = append(k, name...)
	return k
}

func fileInfoPrefix(folderKey uuid.UUID, device protocol.DeviceID) []byte {
	k := make([]byte, 0, 1+16+len(device))
	k = append(k, byte(PrefixFileInfo))
	k = append(k, folderKey[:]...)
	k = append(k, device[:]...)
	return k
}

func blockInfoKey(hash []byte) []byte {
	k := make([]byte, 1+len(hash))
	k[0] = byte(PrefixBlockInfo)
	copy(k[1:], hash)
	return k
}

func prefixOnly(p Prefix) []byte { return []byte{byte(p)} }

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
