package protocol

// Counter is one (device, value) pair in a Vector: entries are ordered
// by ID, a missing entry implies value zero, and Update/Merge/Compare
// operate over that ordering.
type Counter struct {
	ID    uint64
	Value uint64
}

// Vector is a version vector: an ordered-by-ID list of device counters.
// This is the core's Version type from the data model.
type Vector []Counter

// Ordering is the result of comparing two Vectors.
type Ordering int

const (
	Equal Ordering = iota
	Greater
	Lesser
	ConcurrentGreater
	ConcurrentLesser
)

// Update increments the counter for id, inserting it in ID order if absent,
// and returns the updated vector (receiver is not mutated in place when it
// must grow).
func (v Vector) Update(id uint64) Vector {
	for i := range v {
		if v[i].ID == id {
			v[i].Value++
			return v
		}
		if v[i].ID > id {
			n := make(Vector, len(v)+1)
			copy(n, v[:i])
			n[i] = Counter{ID: id, Value: 1}
			copy(n[i+1:], v[i:])
			return n
		}
	}
	return append(v, Counter{ID: id, Value: 1})
}

// Copy returns an independent copy of the vector.
func (v Vector) Copy() Vector {
	n := make(Vector, len(v))
	copy(n, v)
	return n
}

// Counter returns the value stored for id, or zero if absent.
func (v Vector) Counter(id uint64) uint64 {
	for _, c := range v {
		if c.ID == id {
			return c.Value
		}
	}
	return 0
}

// Best returns the counter with the highest value; ties break on the
// lowest device ID for determinism (design note: tie breaking is always
// explicit and deterministic).
func (v Vector) Best() Counter {
	var best Counter
	for i, c := range v {
		if i == 0 || c.Value > best.Value || (c.Value == best.Value && c.ID < best.ID) {
			best = c
		}
	}
	return best
}

// Merge returns the element-wise maximum of the two vectors.
func (v Vector) Merge(other Vector) Vector {
	ids := make(map[uint64]struct{})
	for _, c := range v {
		ids[c.ID] = struct{}{}
	}
	for _, c := range other {
		ids[c.ID] = struct{}{}
	}

	merged := make(Vector, 0, len(ids))
	for id := range ids {
		a, b := v.Counter(id), other.Counter(id)
		val := a
		if b > a {
			val = b
		}
		merged = append(merged, Counter{ID: id, Value: val})
	}
	return sortVector(merged)
}

func sortVector(v Vector) Vector {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1].ID > v[j].ID; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
	return v
}

// Compare implements the three-way-plus-concurrency comparison from the
// data model: equal iff the multisets match; dominates iff pointwise ≥
// and strictly greater somewhere; else concurrent.
func (v Vector) Compare(other Vector) Ordering {
	var gt, lt bool

	ids := make(map[uint64]struct{}, len(v)+len(other))
	for _, c := range v {
		ids[c.ID] = struct{}{}
	}
	for _, c := range other {
		ids[c.ID] = struct{}{}
	}

	for id := range ids {
		a, b := v.Counter(id), other.Counter(id)
		if a > b {
			gt = true
		} else if a < b {
			lt = true
		}
	}

	switch {
	case gt && lt:
		// Concurrent: break the tie on whichever side's best counter has
		// the lower device ID, deterministically, per design note.
		if v.Best().ID <= other.Best().ID {
			return ConcurrentGreater
		}
		return ConcurrentLesser
	case gt:
		return Greater
	case lt:
		return Lesser
	default:
		return Equal
	}
}

// Dominates reports whether v dominates other per the data-model definition.
func (v Vector) Dominates(other Vector) bool {
	return v.Compare(other) == Greater
}

// IsEqual reports whether two vectors carry identical counter multisets.
func (v Vector) IsEqual(other Vector) bool {
	return v.Compare(other) == Equal
}

// IsConcurrent reports whether neither vector dominates the other and they
// are not equal — a genuine conflict requiring resolution.
func (v Vector) IsConcurrent(other Vector) bool {
	o := v.Compare(other)
	return o == ConcurrentGreater || o == ConcurrentLesser
}
