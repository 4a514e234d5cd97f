// Package hasher implements the hasher pool actor (component C5): a
// fixed-size pool of worker goroutines plus a dispatching proxy, used by
// the scanner to compute strong+weak digests for new/changed files and
// to validate bytes already on disk against an expected hash.
//
// Dispatch is semaphore-backed and least-loaded across a fixed worker
// pool. The weak (rolling) hash is github.com/chmduquesne/rollinghash's
// Adler-32 variant.
package hasher

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/chmduquesne/rollinghash/adler32"
	"golang.org/x/sync/semaphore"

	"github.com/basiliscos/syncspirit-go/internal/coreerr"
	"github.com/basiliscos/syncspirit-go/internal/metrics"
)

// Digest is the result of hashing one block: its strong (SHA-256) and
// weak (rolling Adler-32) hashes.
type Digest struct {
	Strong [32]byte
	Weak   uint32
}

// Request is one unit of hasher work: digest computes Strong/Weak for
// Data; if Expected is non-nil it is a validation request instead, and
// the result's Valid field reports whether Data's strong hash matches.
type Request struct {
	Data     []byte
	Expected []byte // non-nil: validation request
}

// Result is delivered to Reply once a Request completes.
type Result struct {
	Digest Digest
	Valid  bool
	Err    error
}

type job struct {
	req   Request
	reply chan<- Result
}

// Pool is the hasher proxy: it owns N worker goroutines and dispatches
// incoming requests to the least-loaded one, breaking ties with a
// rotating cursor, per §4.5's dispatch policy.
type Pool struct {
	workers []chan job
	sem     *semaphore.Weighted

	mu     sync.Mutex
	scores []int
	cursor int
}

// New starts a pool of n workers. n must be >= 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		workers: make([]chan job, n),
		sem:     semaphore.NewWeighted(int64(n)),
		scores:  make([]int, n),
	}
	for i := range p.workers {
		p.workers[i] = make(chan job, 1)
		go p.runWorker(p.workers[i])
	}
	return p
}

func (p *Pool) runWorker(ch <-chan job) {
	for j := range ch {
		j.reply <- compute(j.req)
	}
}

// Digest computes the strong+weak hash of data, queuing at the caller
// if every worker's semaphore slot is taken (§4.5's back-pressure rule:
// "no request is dropped").
func (p *Pool) Digest(ctx context.Context, data []byte) (Digest, error) {
	res, err := p.submit(ctx, Request{Data: data})
	if err != nil {
		return Digest{}, err
	}
	return res.Digest, res.Err
}

// Validate reports whether data's strong hash equals expected.
func (p *Pool) Validate(ctx context.Context, data, expected []byte) (bool, error) {
	res, err := p.submit(ctx, Request{Data: data, Expected: expected})
	if err != nil {
		return false, err
	}
	return res.Valid, res.Err
}

func (p *Pool) submit(ctx context.Context, req Request) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{}, coreerr.New(coreerr.KindReadFailed, "hasher.acquire", err)
	}
	defer p.sem.Release(1)
	defer metrics.ObserveHasherJob()()

	idx := p.pickWorker()
	reply := make(chan Result, 1)
	select {
	case p.workers[idx] <- job{req: req, reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	p.bumpScore(idx, 1)
	defer p.bumpScore(idx, -1)

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// pickWorker returns the least-loaded worker index, breaking ties by
// advancing a rotating cursor so no single worker starves under
// sustained tied load.
func (p *Pool) pickWorker() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := -1
	bestScore := int(^uint(0) >> 1)
	n := len(p.scores)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if p.scores[idx] < bestScore {
			bestScore = p.scores[idx]
			best = idx
		}
	}
	p.cursor = (best + 1) % n
	return best
}

func (p *Pool) bumpScore(idx, delta int) {
	p.mu.Lock()
	p.scores[idx] += delta
	p.mu.Unlock()
}

// Close stops every worker goroutine. It must only be called once no
// more requests are in flight.
func (p *Pool) Close() {
	for _, ch := range p.workers {
		close(ch)
	}
}

func compute(req Request) Result {
	strong := sha256.Sum256(req.Data)

	h := adler32.New()
	_, _ = h.Write(req.Data)
	weak := h.Sum32()

	if req.Expected != nil {
		valid := len(req.Expected) == len(strong) && string(req.Expected) == string(strong[:])
		return Result{Digest: Digest{Strong: strong, Weak: weak}, Valid: valid}
	}
	return Result{Digest: Digest{Strong: strong, Weak: weak}}
}
