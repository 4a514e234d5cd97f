package storage

import (
	"encoding/gob"
	"io"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
)

// allTopLevelPrefixes enumerates every one-byte key prefix the schema
// uses, in the same order keys.go declares them.
var allTopLevelPrefixes = []Prefix{
	PrefixDevice, PrefixFolder, PrefixFolderInfo, PrefixFileInfo,
	PrefixBlockInfo, PrefixPendingDevice, PrefixIgnoredDevice,
	PrefixPendingFolder, PrefixMisc,
}

// ExportKV streams every stored key/value pair to w as a sequence of
// gob-encoded KeyValue records, for `syncspiritctl db export`. It reads
// outside any transaction: a backup taken while the daemon is live may
// not be perfectly point-in-time consistent, which is acceptable for a
// CLI-triggered backup.
func ExportKV(s *Store, w io.Writer) error {
	enc := gob.NewEncoder(w)
	for _, p := range allTopLevelPrefixes {
		seq, errFn := s.PrefixKV(prefixOnly(p))
		for kv := range seq {
			if err := enc.Encode(kv); err != nil {
				return coreerr.New(coreerr.KindWriteFailed, "storage.export_kv", err)
			}
		}
		if err := errFn(); err != nil {
			return err
		}
	}
	return nil
}

// ImportKV writes every record r holds into the store, restoring a
// backup written by ExportKV. Existing keys are overwritten; keys that
// are absent from the backup are left in place. Callers are expected to
// reconstruct the in-memory cluster from the store afterwards via
// Store.Load.
func ImportKV(s *Store, r io.Reader) error {
	dec := gob.NewDecoder(r)
	for {
		var kv KeyValue
		if err := dec.Decode(&kv); err != nil {
			if err == io.EOF {
				return nil
			}
			return coreerr.New(coreerr.KindReadFailed, "storage.import_kv", err)
		}
		if err := s.PutKV(kv.Key, kv.Value); err != nil {
			return err
		}
	}
}
