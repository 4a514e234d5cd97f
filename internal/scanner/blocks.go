package scanner

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/hasher"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// sha256OfEmpty is the strong hash of a zero-byte block, the single
// block recorded for an empty file.
var sha256OfEmpty = []byte{
	0xe3, 0xb0, 0xc4, 0x42, 0x98, 0xfc, 0x1c, 0x14, 0x9a, 0xfb, 0xf4, 0xc8,
	0x99, 0x6f, 0xb9, 0x24, 0x27, 0xae, 0x41, 0xe4, 0x64, 0x9b, 0x93, 0x4c,
	0xa4, 0x95, 0x99, 0x1b, 0x78, 0x52, 0xb8, 0x55,
}

// hashLimiter bounds the number of in-flight hash-new jobs a scan actor
// may have outstanding at once, per §4.4's "at most requested_hashes_
// limit hash jobs in flight" rule. It wraps a semaphore.Weighted (the
// teacher's golang.org/x/sync dependency, promoted from indirect to
// direct use here) and remembers its own capacity so callers can wait
// for every outstanding job to drain.
type hashLimiter struct {
	sem *semaphore.Weighted
	cap int64
}

func newHashLimiter(n int) *hashLimiter {
	if n < 1 {
		n = 1
	}
	return &hashLimiter{sem: semaphore.NewWeighted(int64(n)), cap: int64(n)}
}

func (l *hashLimiter) acquire(ctx context.Context) error { return l.sem.Acquire(ctx, 1) }
func (l *hashLimiter) release()                          { l.sem.Release(1) }

// drain blocks until every previously acquired slot has been released,
// by reacquiring the limiter's full capacity.
func (l *hashLimiter) drain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.cap); err != nil {
		return err
	}
	l.sem.Release(l.cap)
	return nil
}

// hashBlocks splits size bytes of the file at path into blockSize-sized
// chunks starting at offset 0 and computes each block's strong+weak
// digest. Blocks are hashed concurrently, bounded by limit, so at most
// limit's capacity hash-new jobs are in flight for this file at once;
// results are written back in block order regardless of completion
// order.
func hashBlocks(ctx context.Context, pool *hasher.Pool, limit *hashLimiter, path string, size int64, blockSize int) ([]protocol.BlockInfo, error) {
	if size == 0 {
		return []protocol.BlockInfo{{Offset: 0, Size: 0, Hash: sha256OfEmpty}}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.New(coreerr.KindOpenFailed, "scanner.hash_blocks", err)
	}
	defer f.Close()

	n := int((size + int64(blockSize) - 1) / int64(blockSize))
	blocks := make([]protocol.BlockInfo, n)
	errs := make([]error, n)

	var offset int64
	for i := 0; i < n; i++ {
		this := int64(blockSize)
		if offset+this > size {
			this = size - offset
		}
		buf := make([]byte, this)
		if _, err := io.ReadFull(io.NewSectionReader(f, offset, this), buf); err != nil {
			return nil, coreerr.New(coreerr.KindReadFailed, "scanner.hash_blocks", err)
		}

		if err := limit.acquire(ctx); err != nil {
			return nil, err
		}

		idx, off, b := i, offset, buf
		go func() {
			defer limit.release()
			d, err := pool.Digest(ctx, b)
			if err != nil {
				errs[idx] = err
				return
			}
			blocks[idx] = protocol.BlockInfo{
				Offset: off,
				Size:   uint32(len(b)),
				Hash:   d.Strong[:],
				Weak:   d.Weak,
			}
		}()

		offset += this
	}

	if err := limit.drain(ctx); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return blocks, nil
}
