// Package buildrun tracks one build invocation's correlation id and
// state machine: init -> datagen_scanned -> rid_attached -> variant
// branch -> indices_requested -> analyzed -> done. Any failure after
// init is surfaced and partial state is left in place — the caller
// re-runs with overwrite.
//
// The correlation id is generated with google/uuid. It never
// participates in a deterministic derivation (RID, trapdoor, label,
// value), only in logging and report file naming, so build
// determinism is unaffected.
package buildrun

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"rsse-builder/pkg/builderr"
)

// State is one step of the build state machine.
type State int

const (
	Init State = iota
	DatagenScanned
	RIDAttached
	VariantBranch
	IndicesRequested
	Analyzed
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case DatagenScanned:
		return "datagen_scanned"
	case RIDAttached:
		return "rid_attached"
	case VariantBranch:
		return "variant_branch"
	case IndicesRequested:
		return "indices_requested"
	case Analyzed:
		return "analyzed"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Variant is one of the three EMM construction algorithms.
type Variant string

const (
	SPX  Variant = "spx"
	CORR Variant = "corr"
	PKFK Variant = "pkfk"
)

// Run tracks one build's progress and identity.
type Run struct {
	ID      string
	Variant Variant
	state   State
}

// New starts a run in the Init state with a fresh correlation id.
func New(variant Variant) *Run {
	return &Run{ID: uuid.New().String(), Variant: variant, state: Init}
}

// Advance moves the run to the next state, logging the transition.
// Any failure after Init is fatal and partial state is left in place
// — Advance does not roll back on error, it simply reports where the
// run was when it stopped.
func (r *Run) Advance(next State) {
	log.Printf("[buildrun %s] %s -> %s (variant=%s)", r.ID, r.state, next, r.Variant)
	r.state = next
}

// State reports the run's current state.
func (r *Run) State() State { return r.state }

// Abort wraps err with the run's identity and current state for the
// caller. Any failure after init is surfaced; partial state is not
// cleaned up.
func (r *Run) Abort(err error) error {
	if err == nil {
		return nil
	}
	return builderr.Store(err, "build %s aborted at state %s", r.ID, r.state)
}

// ReportName renders a report/result file name scoped to this run,
// using a stable per-run id so repeated CLI invocations in tests
// don't collide on the wall clock.
func (r *Run) ReportName(kind string) string {
	return fmt.Sprintf("%s_%s_%s.csv", kind, r.Variant, r.ID)
}
