// Package storage implements the persistence actor (component C3): an
// ordered key-value store with ACID transactions and prefix range scans,
// backed by modernc.org/sqlite through jmoiron/sqlx, using a single
// prefixed `kv` table rather than one table per entity kind.
//
// Records are gob-encoded rather than protobuf-encoded: gob gives the
// same "opaque length-delimited blob in a BLOB column" shape without a
// code generator or a .proto schema to maintain.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net/url"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
)

const currentSchemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Store is the persistence actor's handle on the on-disk database. All
// access is serialized through updateLock for writes; reads use the
// pool's own connections and need no external locking, mirroring the
// teacher's baseDB.
type Store struct {
	path string
	db   *sqlx.DB

	updateLock sync.Mutex
}

// Open creates or opens the database at path, applying the schema if
// this is a fresh file.
func Open(path string) (*Store, error) {
	pathURL := url.URL{
		Scheme:   "file",
		Opaque:   path,
		RawQuery: "_pragma=foreign_keys(1)&_pragma=synchronous(1)&_txlock=immediate&_pragma=journal_mode(wal)",
	}
	sqlDB, err := sqlx.Open("sqlite", pathURL.String())
	if err != nil {
		return nil, coreerr.New(coreerr.KindOpenFailed, "storage.open", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schemaDDL); err != nil {
		_ = sqlDB.Close()
		return nil, coreerr.New(coreerr.KindOpenFailed, "storage.schema", err)
	}

	s := &Store{path: path, db: sqlDB}
	if err := s.ensureSchemaVersion(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchemaVersion() error {
	raw, err := s.GetKV(miscVersionKey())
	if err != nil {
		return err
	}
	if raw == nil {
		return s.PutKV(miscVersionKey(), encodeUint32(currentSchemaVersion))
	}
	stored := decodeUint32(raw)
	if stored > currentSchemaVersion {
		return coreerr.New(coreerr.KindOpenFailed, "storage.schema_version", fmt.Errorf("database schema v%d is newer than supported v%d", stored, currentSchemaVersion))
	}
	// Forward migrations would run here, keyed by stored version; there
	// is currently exactly one schema version so there is nothing to do.
	return nil
}

// GetKV returns the value for key, or nil if it is absent.
func (s *Store) GetKV(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.Get(&val, `SELECT value FROM kv WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.New(coreerr.KindReadFailed, "storage.get_kv", err)
	}
	return val, nil
}

// PutKV upserts key/value outside of any caller-managed transaction.
func (s *Store) PutKV(key, val []byte) error {
	s.updateLock.Lock()
	defer s.updateLock.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, val)
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.put_kv", err)
	}
	return nil
}

// DeleteKV removes key; deleting an absent key is not an error.
func (s *Store) DeleteKV(key []byte) error {
	s.updateLock.Lock()
	defer s.updateLock.Unlock()
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.delete_kv", err)
	}
	return nil
}

// PrefixKV yields every key/value pair whose key starts with prefix, in
// ascending key order, implementing the range-scan-by-prefix primitive
// the key layout is built around.
func (s *Store) PrefixKV(prefix []byte) (iter.Seq[KeyValue], func() error) {
	end := prefixEnd(prefix)
	rows, err := s.db.Queryx(`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, prefix, end)
	if err != nil {
		return func(func(KeyValue) bool) {}, func() error {
			return coreerr.New(coreerr.KindReadFailed, "storage.prefix_kv", err)
		}
	}

	var iterErr error
	seq := func(yield func(KeyValue) bool) {
		defer rows.Close()
		for rows.Next() {
			var key, val []byte
			if iterErr = rows.Scan(&key, &val); iterErr != nil {
				return
			}
			if !yield(KeyValue{Key: key, Value: val}) {
				return
			}
		}
		iterErr = rows.Err()
	}
	return seq, func() error { return iterErr }
}

// KeyValue is one row of a prefix scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Tx is a single read-write transaction spanning the put/delete
// operations implied by one applied diff (§4.3's "one RW transaction per
// diff, batching by diff boundary is mandatory").
type Tx struct {
	tx *sqlx.Tx
}

// WithTx runs fn inside one RW transaction, committing on success and
// rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	s.updateLock.Lock()
	defer s.updateLock.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.begin_tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.commit_tx", err)
	}
	return nil
}

func (t *Tx) Put(key, val []byte) error {
	_, err := t.tx.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, val)
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.tx_put", err)
	}
	return nil
}

func (t *Tx) Delete(key []byte) error {
	_, err := t.tx.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return coreerr.New(coreerr.KindWriteFailed, "storage.tx_delete", err)
	}
	return nil
}

// prefixEnd returns the lexicographically smallest key greater than
// every key starting with prefix, for a half-open range scan.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// prefix is all 0xff bytes: there is no finite upper bound, so scan
	// to the end of the keyspace.
	return nil
}
