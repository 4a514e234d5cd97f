package diff

import "github.com/basiliscos/syncspirit-go/internal/model"

// Aggregate groups a run of diffs produced from one source event (e.g.
// every diff translated from a single inbound Index message) under one
// sibling-chain head, purely for logging/persistence batching. It
// performs no mutation itself — Apply's ordinary child recursion applies
// every diff in its child chain in order.
type Aggregate struct {
	Base
	Label string
}

func (d *Aggregate) Kind() Kind { return KindAggregate }

func (d *Aggregate) applyImpl(c *model.Cluster) error { return nil }

// Load wraps one diff replayed from persisted storage during cold
// start. It performs no mutation of its own — the wrapped diff rides as
// its child and is applied exactly like any other diff. storage.Load
// builds the cluster from stored records directly and does not wrap
// anything in Load, and the persistence Controller has no VisitLoad
// override.
type Load struct {
	Base
}

func (d *Load) Kind() Kind { return KindLoad }

func (d *Load) applyImpl(c *model.Cluster) error { return nil }

// Interrupt marks a cold-start replay as stopped early (context
// cancellation, corruption past a recoverable point). Every controller
// in this module, the persistence Controller included, treats it as a
// no-op.
type Interrupt struct {
	Base
	Reason string
}

func (d *Interrupt) Kind() Kind { return KindInterrupt }

func (d *Interrupt) applyImpl(c *model.Cluster) error { return nil }
