package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/consensus"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// parallelInvestigators are the agent classes dispatched concurrently once
// an incident is durable, in order of the event kind their recommendation
// is recorded under.
var parallelInvestigators = []incident.AgentClass{
	incident.AgentDiagnosis,
	incident.AgentPrediction,
	incident.AgentResolution,
}

// runDiagnosisAndPrediction dispatches the Diagnosis, Prediction, and
// Resolution agents concurrently (Detection already contributed its
// recommendation, if any, in the seed passed to Submit), records whatever
// each produced, and always moves the incident on to AwaitingConsensus
// afterward — a timed-out or skipped agent simply leaves a gap in
// AgentOutputs for the consensus engine to treat as one fewer trusted
// input, never a reason to block the phase machine.
func (o *Orchestrator) runDiagnosisAndPrediction(ctx context.Context, inc *incident.Incident) error {
	deadline := inc.DetectedAt.Add(GlobalPhaseTimeout)
	if time.Now().After(deadline) {
		return o.escalate(ctx, inc.ID, "global phase timeout exceeded before consensus")
	}

	phaseCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	type outcome struct {
		class incident.AgentClass
		rec   incident.AgentRecommendation
		out   DispatchOutcome
	}
	results := make(chan outcome, len(parallelInvestigators))

	dispatchOne := func(class incident.AgentClass) {
		rec, out := o.roster.Dispatch(phaseCtx, class, inc, nil)
		results <- outcome{class, rec, out}
	}

	pending := 0
	for _, class := range parallelInvestigators {
		if _, ok := inc.AgentOutputs[class]; ok {
			continue
		}
		pending++
		go dispatchOne(class)
	}

	for i := 0; i < pending; i++ {
		res := <-results
		if err := o.recordDispatch(ctx, inc.ID, res.class, res.rec, res.out); err != nil {
			return err
		}
	}

	_, err := o.store.Append(ctx, inc.ID, incident.KindConsensusRequested, nil)
	return err
}

// recordDispatch appends the event corresponding to one agent dispatch
// outcome: its class's recommendation event on success or a recovered
// partial result, AgentTimedOut on timeout, AgentQuarantined on a hard
// error (the agent itself is untrustworthy for this round, not merely
// slow).
func (o *Orchestrator) recordDispatch(ctx context.Context, incidentID string, class incident.AgentClass, rec incident.AgentRecommendation, out DispatchOutcome) error {
	kind, ok := investigatorEventKind(class)
	if !ok {
		return fmt.Errorf("%w: unexpected agent class %s in investigation phase", apperrors.ErrInvariantBreach, class)
	}

	switch out {
	case OutcomeOK, OutcomePartial:
		_, err := o.store.Append(ctx, incidentID, kind, map[string]any{"recommendation": rec})
		return err
	case OutcomeTimedOut:
		_, err := o.store.Append(ctx, incidentID, incident.KindAgentTimedOut, map[string]any{"agent_class": string(class)})
		return err
	case OutcomeError:
		_, err := o.store.Append(ctx, incidentID, incident.KindAgentQuarantined, map[string]any{
			"agent_class": string(class),
			"reason":      "agent run returned an error",
		})
		return err
	default: // OutcomeSkipped
		return nil
	}
}

func investigatorEventKind(class incident.AgentClass) (incident.EventKind, bool) {
	switch class {
	case incident.AgentDiagnosis:
		return incident.KindDiagnosed, true
	case incident.AgentPrediction:
		return incident.KindPredicted, true
	case incident.AgentResolution:
		return incident.KindResolutionProposed, true
	default:
		return "", false
	}
}

// runConsensus gathers the agent recommendations recorded so far, runs one
// consensus round, and records the outcome: ConsensusReached for a clean
// majority, ConsensusDeadlocked for the best-single fallback, or an
// Escalated event when neither threshold clears.
func (o *Orchestrator) runConsensus(ctx context.Context, inc *incident.Incident) error {
	recs := make([]incident.AgentRecommendation, 0, len(inc.AgentOutputs))
	for _, r := range inc.AgentOutputs {
		recs = append(recs, r)
	}

	round := len(inc.ConsensusHistory) + 1
	startedAt, err := o.consensusRoundStartedAt(ctx, inc)
	if err != nil {
		return err
	}
	elapsed := time.Since(startedAt)

	decision, quarantined, err := consensus.Evaluate(inc.ID, round, inc.Severity, recs, o.consensusCfg, elapsed)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, apperrors.ErrInsufficientTrustedAgents) {
			for _, class := range quarantined {
				if _, aerr := o.store.Append(ctx, inc.ID, incident.KindAgentQuarantined, map[string]any{
					"agent_class": string(class),
					"reason":      "quarantined by behavioral or integrity screen",
				}); aerr != nil {
					return aerr
				}
			}
		}
		return o.escalate(ctx, inc.ID, reason)
	}

	kind := incident.KindConsensusReached
	if decision.Method == incident.MethodDeadlockBestSingle {
		kind = incident.KindConsensusDeadlocked
	}
	_, err = o.store.Append(ctx, inc.ID, kind, map[string]any{"decision": decision})
	return err
}

// consensusRoundStartedAt finds when the current consensus round opened
// (the most recent ConsensusRequested event), for the deadline Evaluate's
// DeadlockBudget measures against.
func (o *Orchestrator) consensusRoundStartedAt(ctx context.Context, inc *incident.Incident) (time.Time, error) {
	events, err := o.store.Read(ctx, inc.ID, 0, 0)
	if err != nil {
		return time.Time{}, err
	}
	started := inc.DetectedAt
	for _, ev := range events {
		if ev.Kind == incident.KindConsensusRequested {
			started = ev.RecordedAt
		}
	}
	return started, nil
}

// latestDecision returns the most recently recorded ConsensusDecision.
func latestDecision(inc *incident.Incident) (incident.ConsensusDecision, bool) {
	if len(inc.ConsensusHistory) == 0 {
		return incident.ConsensusDecision{}, false
	}
	return inc.ConsensusHistory[len(inc.ConsensusHistory)-1], true
}

// runResolving executes the winning action through the configured
// ActionExecutor, checkpointing periodically while it runs since Resolving
// can take up to its full 300s phase timeout.
func (o *Orchestrator) runResolving(ctx context.Context, inc *incident.Incident) error {
	decision, ok := latestDecision(inc)
	if !ok {
		return fmt.Errorf("%w: resolving phase with no consensus decision on record", apperrors.ErrInvariantBreach)
	}

	if _, err := o.store.Append(ctx, inc.ID, incident.KindActionProposed, map[string]any{
		"action_id":      decision.ActionID,
		"round":          decision.Round,
		"integrity_hash": decision.IntegrityHash(),
	}); err != nil {
		return err
	}

	if o.executor == nil {
		_, err := o.store.Append(ctx, inc.ID, incident.KindActionExecuted, map[string]any{"action_id": decision.ActionID})
		return err
	}

	stop := o.periodicCheckpoint(ctx, inc.ID, inc.Version)
	execErr := o.executor.Execute(ctx, inc, decision)
	stop()

	if execErr != nil {
		_, err := o.store.Append(ctx, inc.ID, incident.KindActionFailed, map[string]any{
			"action_id": decision.ActionID,
			"error":     execErr.Error(),
		})
		return err
	}

	_, err := o.store.Append(ctx, inc.ID, incident.KindActionExecuted, map[string]any{"action_id": decision.ActionID})
	return err
}

// runValidating checks the action's post-execution health through the
// ActionExecutor; failure escalates directly rather than attempting a
// rollback, mirroring the reducer's ValidationFailed handling.
func (o *Orchestrator) runValidating(ctx context.Context, inc *incident.Incident) error {
	decision, ok := latestDecision(inc)
	if !ok {
		return fmt.Errorf("%w: validating phase with no consensus decision on record", apperrors.ErrInvariantBreach)
	}

	if o.executor != nil {
		if err := o.executor.Validate(ctx, inc, decision); err != nil {
			_, aerr := o.store.Append(ctx, inc.ID, incident.KindValidationFailed, map[string]any{
				"action_id": decision.ActionID,
				"reason":    err.Error(),
			})
			return aerr
		}
	}

	if _, err := o.store.Append(ctx, inc.ID, incident.KindActionValidated, map[string]any{"action_id": decision.ActionID}); err != nil {
		return err
	}
	_, err := o.store.Append(ctx, inc.ID, incident.KindResolved, nil)
	return err
}

// runRollingBack attempts to undo the executed action via the ActionExecutor
// and always terminates to Escalated afterward, successful rollback or not,
// since a rolled-back incident still needs human review.
func (o *Orchestrator) runRollingBack(ctx context.Context, inc *incident.Incident) error {
	decision, ok := latestDecision(inc)
	if !ok {
		return fmt.Errorf("%w: rolling-back phase with no consensus decision on record", apperrors.ErrInvariantBreach)
	}

	reason := fmt.Sprintf("action %s failed and was rolled back", decision.ActionID)
	if o.executor != nil {
		if err := o.executor.Rollback(ctx, inc, decision); err != nil {
			reason = fmt.Sprintf("action %s failed, rollback also failed: %v", decision.ActionID, err)
		}
	}

	if _, err := o.store.Append(ctx, inc.ID, incident.KindRolledBack, map[string]any{"reason": reason}); err != nil {
		return err
	}
	return nil
}

// escalate appends an Escalated event carrying reason.
func (o *Orchestrator) escalate(ctx context.Context, incidentID, reason string) error {
	_, err := o.store.Append(ctx, incidentID, incident.KindEscalated, map[string]any{"reason": reason})
	return err
}

// periodicCheckpoint writes a checkpoint every CheckpointInterval until the
// returned stop func is called, for phases that may run long (Resolving).
func (o *Orchestrator) periodicCheckpoint(ctx context.Context, incidentID string, version int) (stop func()) {
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(CheckpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = o.leases.SaveCheckpoint(ctx, Checkpoint{
					IncidentID: incidentID,
					Phase:      incident.PhaseResolving,
					Version:    version,
					UpdatedAt:  time.Now(),
				}, o.cpTTL)
			}
		}
	}()
	return func() { close(stopCh) }
}
