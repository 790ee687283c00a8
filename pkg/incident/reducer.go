package incident

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
)

// Replay folds an ordered, already-verified event slice into an Incident
// aggregate. It is pure: the same events in the same order always produce
// the same aggregate, and it never talks to storage — callers
// (pkg/eventstore, pkg/orchestrator) own fetching and chain verification
// before calling this.
func Replay(events []IncidentEvent) (*Incident, error) {
	if len(events) == 0 {
		return nil, apperrors.ErrNotFound
	}

	inc := &Incident{
		AffectedServices: make(map[string]struct{}),
		AgentOutputs:     make(map[AgentClass]AgentRecommendation),
		Quarantined:      make(map[AgentClass]string),
	}

	for _, ev := range events {
		if !IsKnownKind(ev.Kind) {
			return nil, fmt.Errorf("incident %s seq %d: %w (%s)", ev.IncidentID, ev.SequenceNumber, apperrors.ErrUnknownEventKind, ev.Kind)
		}
		if inc.ID == "" {
			inc.ID = ev.IncidentID
		} else if inc.ID != ev.IncidentID {
			return nil, fmt.Errorf("replay: event for incident %s mixed into stream for %s", ev.IncidentID, inc.ID)
		}
		if ev.SequenceNumber != inc.Version+1 {
			return nil, fmt.Errorf("incident %s: %w (expected %d, got %d)", ev.IncidentID, apperrors.ErrNonDenseSequence, inc.Version+1, ev.SequenceNumber)
		}

		if err := apply(inc, ev); err != nil {
			return nil, err
		}
		inc.Version = ev.SequenceNumber
	}

	return inc, nil
}

func apply(inc *Incident, ev IncidentEvent) error {
	switch ev.Kind {
	case KindDetected:
		inc.Phase = PhaseDetected
		inc.DetectedAt = ev.RecordedAt
		if sev, ok := str(ev.Payload, "severity"); ok {
			inc.Severity = Severity(sev)
		}
		if tier, ok := str(ev.Payload, "service_tier"); ok {
			inc.ServiceTier = tier
		}
		for _, s := range strSlice(ev.Payload, "affected_services") {
			inc.AffectedServices[s] = struct{}{}
		}
		if n, ok := num(ev.Payload, "affected_user_count"); ok {
			inc.AffectedUserCount = int(n)
		}
		if c, ok := num(ev.Payload, "cost_per_minute"); ok {
			inc.CostPerMinute = c
		}
		if rec, ok := decodeRecommendation(ev.Payload, "detection_recommendation"); ok {
			inc.AgentOutputs[AgentDetection] = rec
		}
		inc.Phase = PhaseDiagnosing

	case KindDiagnosed:
		if err := requirePhase(inc, PhaseDiagnosing, PhasePredicting); err != nil {
			return err
		}
		if rec, ok := decodeRecommendation(ev.Payload, "recommendation"); ok {
			inc.AgentOutputs[AgentDiagnosis] = rec
		}

	case KindResolutionProposed:
		if err := requirePhase(inc, PhaseDiagnosing, PhasePredicting); err != nil {
			return err
		}
		if rec, ok := decodeRecommendation(ev.Payload, "recommendation"); ok {
			inc.AgentOutputs[AgentResolution] = rec
		}

	case KindPredicted:
		if err := requirePhase(inc, PhaseDiagnosing, PhasePredicting); err != nil {
			return err
		}
		if rec, ok := decodeRecommendation(ev.Payload, "recommendation"); ok {
			inc.AgentOutputs[AgentPrediction] = rec
		}

	case KindAgentTimedOut:
		// Recorded for audit; phase unaffected directly, the orchestrator
		// decides degrade-vs-escalate and emits the following event.

	case KindAgentQuarantined:
		if class, ok := str(ev.Payload, "agent_class"); ok {
			reason, _ := str(ev.Payload, "reason")
			inc.Quarantined[AgentClass(class)] = reason
		}

	case KindConsensusRequested:
		if err := transition(inc, PhaseAwaitingConsensus); err != nil {
			return err
		}

	case KindConsensusReached:
		if err := transition(inc, PhaseResolving); err != nil {
			return err
		}
		if cd, ok := decodeConsensusDecision(ev.Payload, "decision"); ok {
			inc.ConsensusHistory = append(inc.ConsensusHistory, cd)
			if cd.Degraded {
				inc.Degraded = true
			}
		}

	case KindConsensusDeadlocked:
		if cd, ok := decodeConsensusDecision(ev.Payload, "decision"); ok {
			inc.ConsensusHistory = append(inc.ConsensusHistory, cd)
		}
		if err := transition(inc, PhaseResolving); err != nil {
			return err
		}
		inc.Degraded = true

	case KindActionProposed:
		// audit-only marker; carries the action's integrity_hash that
		// KindActionValidated's security-gate check must match.

	case KindSandboxTestPassed:
		// audit-only marker; satisfies the security gate's sandbox-test
		// requirement
		// precondition for this (incident_id, action_id) pair.

	case KindActionValidated:
		// audit-only marker; no phase change.

	case KindValidationFailed:
		if err := transition(inc, PhaseEscalated); err != nil {
			return err
		}
		inc.EscalationReason, _ = str(ev.Payload, "reason")

	case KindActionExecuted:
		if err := transition(inc, PhaseValidating); err != nil {
			return err
		}

	case KindActionFailed:
		if err := transition(inc, PhaseRollingBack); err != nil {
			return err
		}

	case KindRolledBack:
		if err := transition(inc, PhaseEscalated); err != nil {
			return err
		}
		inc.EscalationReason, _ = str(ev.Payload, "reason")

	case KindCorruptionDetected:
		inc.CorruptionDetected = true
		inc.Phase = PhaseEscalated
		inc.EscalationReason, _ = str(ev.Payload, "reason")

	case KindEscalated:
		if err := transition(inc, PhaseEscalated); err != nil {
			return err
		}
		inc.EscalationReason, _ = str(ev.Payload, "reason")

	case KindResolved:
		if err := transition(inc, PhaseResolved); err != nil {
			return err
		}
		t := ev.RecordedAt
		inc.ResolvedAt = &t
	}

	return nil
}

// transition validates and applies a phase change (invariant I2).
func transition(inc *Incident, to Phase) error {
	if Terminal(inc.Phase) {
		return fmt.Errorf("incident %s: %w (already terminal at %s)", inc.ID, apperrors.ErrInvariantBreach, inc.Phase)
	}
	if !CanTransition(inc.Phase, to) {
		return fmt.Errorf("incident %s: %w (%s -> %s)", inc.ID, apperrors.ErrInvariantBreach, inc.Phase, to)
	}
	inc.Phase = to
	return nil
}

// requirePhase checks the aggregate is in one of the given phases without
// changing it (Diagnosing/Predicting run in parallel and either may report
// first).
func requirePhase(inc *Incident, allowed ...Phase) error {
	for _, p := range allowed {
		if inc.Phase == p {
			return nil
		}
	}
	return fmt.Errorf("incident %s: %w (in %s, expected one of %v)", inc.ID, apperrors.ErrInvariantBreach, inc.Phase, allowed)
}

func str(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

func num(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func strSlice(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// decodeRecommendation reads payload[key] into an AgentRecommendation
// regardless of whether it arrived as an in-process Go value (the Memory
// store, which never serializes) or as a generic map decoded from JSON
// (the Postgres store, after a round trip through the database). Routing
// both representations through one json.Marshal/Unmarshal pass keeps the
// reducer store-agnostic.
func decodeRecommendation(payload map[string]any, key string) (AgentRecommendation, bool) {
	var out AgentRecommendation
	raw, ok := payload[key]
	if !ok {
		return out, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}

// decodeConsensusDecision is decodeRecommendation's counterpart for
// ConsensusDecision payloads.
func decodeConsensusDecision(payload map[string]any, key string) (ConsensusDecision, bool) {
	var out ConsensusDecision
	raw, ok := payload[key]
	if !ok {
		return out, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}
