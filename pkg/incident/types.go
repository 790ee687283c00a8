// Package incident defines the core data model shared by every component of
// the incident-response core: the Incident aggregate, its append-only event
// log entries, agent recommendations, consensus decisions, and the action
// whitelist. Nothing in this package talks to storage, agents, or the
// network — it is pure types and the deterministic reducer that folds
// events into an aggregate.
package incident

import "time"

// Severity classifies an incident's business priority.
type Severity string

const (
	SeverityCritical   Severity = "CRITICAL"
	SeverityImportant  Severity = "IMPORTANT"
	SeveritySupporting Severity = "SUPPORTING"
)

// Phase is a state in the incident lifecycle state machine.
type Phase string

const (
	PhaseDetected          Phase = "Detected"
	PhaseDiagnosing        Phase = "Diagnosing"
	PhasePredicting        Phase = "Predicting"
	PhaseAwaitingConsensus Phase = "AwaitingConsensus"
	PhaseResolving         Phase = "Resolving"
	PhaseValidating        Phase = "Validating"
	PhaseRollingBack       Phase = "RollingBack"
	PhaseResolved          Phase = "Resolved"
	PhaseEscalated         Phase = "Escalated"
)

// phaseEdges enumerates the legal transitions of the incident lifecycle
// state machine. Diagnosing and Predicting run in parallel (both reachable
// from Detected); AwaitingConsensus is reached once both branches complete
// or time out. Resolved and Escalated are terminal (no outgoing edges).
var phaseEdges = map[Phase]map[Phase]bool{
	PhaseDetected: {
		PhaseDiagnosing: true,
		PhasePredicting: true,
	},
	PhaseDiagnosing: {
		PhasePredicting:        true,
		PhaseAwaitingConsensus: true,
		PhaseEscalated:         true,
	},
	PhasePredicting: {
		PhaseAwaitingConsensus: true,
		PhaseEscalated:         true,
	},
	PhaseAwaitingConsensus: {
		PhaseResolving: true,
		PhaseEscalated: true,
	},
	PhaseResolving: {
		PhaseValidating:  true,
		PhaseRollingBack: true,
		PhaseEscalated:   true,
	},
	PhaseValidating: {
		PhaseResolved:    true,
		PhaseRollingBack: true,
		PhaseEscalated:   true,
	},
	PhaseRollingBack: {
		PhaseEscalated: true,
	},
	PhaseResolved:  {},
	PhaseEscalated: {},
}

// CanTransition reports whether to is a legal successor of from (invariant I2).
func CanTransition(from, to Phase) bool {
	edges, ok := phaseEdges[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Terminal reports whether phase has no outgoing edges.
func Terminal(phase Phase) bool {
	return phase == PhaseResolved || phase == PhaseEscalated
}

// AgentClass is the closed set of agent roles the core dispatches work to.
// Agent internal reasoning lives outside the core; the core only
// ever sees one of these five tags plus the AgentRecommendation contract.
type AgentClass string

const (
	AgentDetection     AgentClass = "Detection"
	AgentDiagnosis     AgentClass = "Diagnosis"
	AgentPrediction    AgentClass = "Prediction"
	AgentResolution    AgentClass = "Resolution"
	AgentCommunication AgentClass = "Communication"
)

// RiskLevel is the agent-reported risk of a proposed action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Incident is the aggregate root. It is rebuilt exclusively by
// folding an incident's event stream (Replay) — nothing mutates it directly
// outside the reducer.
type Incident struct {
	ID                string
	Version           int
	Phase             Phase
	Severity          Severity
	DetectedAt        time.Time
	ResolvedAt        *time.Time
	ServiceTier       string
	AffectedServices  map[string]struct{}
	AffectedUserCount int

	ConsensusHistory []ConsensusDecision
	AgentOutputs     map[AgentClass]AgentRecommendation

	// CostPerMinute, in the incident's currency unit, drives BusinessImpact.
	CostPerMinute float64

	// Quarantined tracks agents excluded from consensus across the
	// incident's lifetime (surfaced for audit, not just the latest round).
	Quarantined map[AgentClass]string

	// Degraded is set once any approved decision lacked full agent
	// participation (spec glossary: Degraded).
	Degraded bool

	// CorruptionDetected is set when a CorruptionDetected event is folded;
	// the event store appends one when VerifyChain finds a broken chain.
	CorruptionDetected bool

	// EscalationReason is set when Phase == Escalated.
	EscalationReason string
}

// BusinessImpact computes cost/min × elapsed, doubled during business hours
// (Mon-Fri 09:00-18:00 in the incident's local reference, taken as UTC here
// since the core has no tenant timezone concept), plus a flat per-affected-
// user additive term.
func (inc *Incident) BusinessImpact(now time.Time) float64 {
	end := now
	if inc.ResolvedAt != nil {
		end = *inc.ResolvedAt
	}
	elapsedMinutes := end.Sub(inc.DetectedAt).Minutes()
	if elapsedMinutes < 0 {
		elapsedMinutes = 0
	}

	multiplier := 1.0
	if isBusinessHours(inc.DetectedAt) {
		multiplier = 2.0
	}

	const perUserImpact = 5.0 // flat additive cost per affected user
	return inc.CostPerMinute*elapsedMinutes*multiplier + float64(inc.AffectedUserCount)*perUserImpact
}

func isBusinessHours(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hour := t.Hour()
	return hour >= 9 && hour < 18
}

// Clone returns a deep-enough copy suitable for handing out as a read-only
// snapshot: other components receive read-only snapshots, never the
// orchestrator's live aggregate.
func (inc *Incident) Clone() *Incident {
	if inc == nil {
		return nil
	}
	out := *inc

	out.AffectedServices = make(map[string]struct{}, len(inc.AffectedServices))
	for k := range inc.AffectedServices {
		out.AffectedServices[k] = struct{}{}
	}

	out.AgentOutputs = make(map[AgentClass]AgentRecommendation, len(inc.AgentOutputs))
	for k, v := range inc.AgentOutputs {
		out.AgentOutputs[k] = v
	}

	out.Quarantined = make(map[AgentClass]string, len(inc.Quarantined))
	for k, v := range inc.Quarantined {
		out.Quarantined[k] = v
	}

	out.ConsensusHistory = append([]ConsensusDecision(nil), inc.ConsensusHistory...)

	if inc.ResolvedAt != nil {
		t := *inc.ResolvedAt
		out.ResolvedAt = &t
	}

	return &out
}
