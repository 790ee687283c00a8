package orchestrator

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/sentinel/pkg/agentiface"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Roster resolves an agent class to the live agentiface.Agent the
// orchestrator dispatches work to. A class with no registered agent is
// simply skipped: the consensus engine already treats a missing
// recommendation the same as a quarantined one, not as a hard failure.
type Roster map[incident.AgentClass]agentiface.Agent

// DispatchOutcome classifies how one agent dispatch resolved.
type DispatchOutcome int

const (
	OutcomeOK DispatchOutcome = iota
	OutcomePartial
	OutcomeTimedOut
	OutcomeError
	OutcomeSkipped
)

// Dispatch runs the class's agent within its hard per-class timeout. On
// timeout, fallback (if non-nil) is consulted for a partial result the
// agent may have published on its own interrupt channel before ctx expired;
// a nil fallback or a fallback reporting nothing yields OutcomeTimedOut.
func (r Roster) Dispatch(ctx context.Context, class incident.AgentClass, snap *incident.Incident, fallback func() (incident.AgentRecommendation, bool)) (incident.AgentRecommendation, DispatchOutcome) {
	agent, ok := r[class]
	if !ok {
		return incident.AgentRecommendation{}, OutcomeSkipped
	}

	callCtx, cancel := context.WithTimeout(ctx, AgentTimeouts[class])
	defer cancel()

	type result struct {
		rec incident.AgentRecommendation
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := agent.Run(callCtx, snap)
		done <- result{rec, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			slog.Warn("agent run failed", "agent_class", class, "incident_id", snap.ID, "error", res.err)
			return incident.AgentRecommendation{}, OutcomeError
		}
		return res.rec, OutcomeOK
	case <-callCtx.Done():
		agent.Cancel()
		if fallback != nil {
			if partial, ok := fallback(); ok {
				return partial, OutcomePartial
			}
		}
		return incident.AgentRecommendation{}, OutcomeTimedOut
	}
}
