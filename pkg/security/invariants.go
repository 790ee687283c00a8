package security

import "github.com/codeready-toolchain/sentinel/pkg/incident"

// Invariant is a named predicate over incident state: the resolved form of
// an ActionTemplate's ValidationInvariants entries. A struct-tag validator
// can express "field is required"; it cannot express "the incident's state
// after execution still has affected_services", so these are registered Go
// funcs instead, looked up by name at the post-execution health check.
type Invariant func(inc *incident.Incident) bool

var invariants = map[string]Invariant{
	"affected_services_nonempty": func(inc *incident.Incident) bool {
		return len(inc.AffectedServices) > 0
	},
	"not_already_resolved": func(inc *incident.Incident) bool {
		return inc.Phase != incident.PhaseResolved
	},
	"no_corruption_detected": func(inc *incident.Incident) bool {
		return !inc.CorruptionDetected
	},
	"within_consensus_history": func(inc *incident.Incident) bool {
		return len(inc.ConsensusHistory) > 0
	},
}

// Lookup resolves an invariant name to its predicate.
func Lookup(name string) (Invariant, bool) {
	inv, ok := invariants[name]
	return inv, ok
}
