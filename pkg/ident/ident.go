// Package ident implements the record-identifier model: monotone RID
// assignment over a row stream and the PK-to-long mapping, including
// Cantor pairing for the supported n=2 compound-key case.
package ident

import "rsse-builder/pkg/builderr"

// RIDAssigner attaches a monotonically increasing 64-bit id to each
// row of a single table's stream. It is not safe for concurrent use:
// per-row encryption can run in parallel, but counter assignment
// itself is a sequential barrier.
type RIDAssigner struct {
	next uint64
}

// NewRIDAssigner starts a fresh per-table counter at zero.
func NewRIDAssigner() *RIDAssigner {
	return &RIDAssigner{}
}

// Next returns the RID for the next row in the stream.
func (a *RIDAssigner) Next() uint64 {
	rid := a.next
	a.next++
	return rid
}

// KeyArity is the declared shape of a table's primary key.
type KeyArity int

const (
	// Atomic keys are a single column.
	Atomic KeyArity = iota
	// Compound keys are exactly two columns; n>=3 is not supported.
	Compound
)

// CantorPair collapses an ordered pair (a, b) of non-negative integers
// into a single unique long value via π(a,b) = (a+b)(a+b+1)/2 + b.
func CantorPair(a, b int64) int64 {
	s := a + b
	return s*(s+1)/2 + b
}

// PKLong computes the long RID-space value for a table's declared
// primary key. Atomic keys pass the column value through unchanged;
// compound keys (exactly two components) go through CantorPair after
// casting to int64.
func PKLong(arity KeyArity, components ...int64) (int64, error) {
	switch arity {
	case Atomic:
		if len(components) != 1 {
			return 0, builderr.Config("pk_long: atomic key requires exactly one component, got %d", len(components))
		}
		return components[0], nil
	case Compound:
		if len(components) != 2 {
			return 0, builderr.Config("pk_long: compound key arity n=2 is the only supported form, got %d components", len(components))
		}
		return CantorPair(components[0], components[1]), nil
	default:
		return 0, builderr.Config("pk_long: unknown key arity %d", arity)
	}
}
