// Package security implements the action validation gate: the four checks
// required before any ActionExecuted event is emitted (whitelist lookup,
// permission check, sandbox-test precondition, integrity-hash match) plus
// the post-execution health check the validation invariants describe, and
// the JIT credential handle those checks are issued against.
package security

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/config"
	"github.com/codeready-toolchain/sentinel/pkg/eventstore"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Gate runs the action validation gate ahead of execution and the
// validation-invariant health check after it. It implements
// pkg/orchestrator.ActionExecutor structurally (Execute/Validate/Rollback
// match that interface's signatures) so it can be wired in directly as an
// orchestrator's Executor without either package importing the other.
type Gate struct {
	Whitelist *config.ActionWhitelistRegistry
	Store     eventstore.Store
	Broker    CredentialBroker
	Actuator  Actuator
}

// Execute runs the four pre-execution checks — whitelisted action_id,
// sufficient permissions, a prior sandbox test if required, and an
// untampered integrity hash — then, only once every check clears, calls
// through to the configured Actuator with a freshly issued credential
// handle. A rejection at any step never reaches the actuator.
func (g *Gate) Execute(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error {
	tmpl, err := g.Whitelist.Get(decision.ActionID)
	if err != nil {
		return fmt.Errorf("security: %w: %v", apperrors.ErrUnknownActionID, err)
	}

	agent := decisionAgent(decision)
	handle, err := g.Broker.Issue(ctx, agent, decision.ActionID, tmpl.RequiredPermissions)
	if err != nil {
		return fmt.Errorf("security: issuing credential handle for %s: %w", decision.ActionID, err)
	}
	if !handle.Holds(tmpl.RequiredPermissions) {
		return fmt.Errorf("security: %w: credential handle for %s lacks a required permission", apperrors.ErrInvariantBreach, decision.ActionID)
	}

	if tmpl.SandboxTested {
		passed, err := g.sandboxTestPassed(ctx, inc.ID, decision.ActionID)
		if err != nil {
			return err
		}
		if !passed {
			return fmt.Errorf("security: action %s requires a prior sandbox test, none on record for incident %s", decision.ActionID, inc.ID)
		}
	}

	if err := g.integrityMatches(ctx, inc.ID, decision); err != nil {
		return err
	}

	if g.Actuator == nil {
		return nil
	}
	return g.Actuator.Execute(ctx, decision.ActionID, actionPayload(inc, decision), handle)
}

// Validate runs the action template's validation_invariants against the
// incident's post-execution state — the health check the Validating phase
// performs before an incident is allowed to reach Resolved.
func (g *Gate) Validate(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error {
	tmpl, err := g.Whitelist.Get(decision.ActionID)
	if err != nil {
		return fmt.Errorf("security: %w: %v", apperrors.ErrUnknownActionID, err)
	}
	for _, name := range tmpl.ValidationInvariants {
		inv, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("security: %w: unregistered validation invariant %q", apperrors.ErrInvariantBreach, name)
		}
		if !inv(inc) {
			return fmt.Errorf("security: validation invariant %q failed for action %s", name, decision.ActionID)
		}
	}
	return nil
}

// Rollback forwards to the actuator when it supports one. Rollback
// mechanics are the actuator's concern, same as Execute's, so Gate only
// forwards the call when the actuator can handle it and otherwise treats
// rollback as a no-op.
func (g *Gate) Rollback(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error {
	rb, ok := g.Actuator.(RollbackActuator)
	if !ok {
		return nil
	}
	return rb.Rollback(ctx, decision.ActionID)
}

func (g *Gate) sandboxTestPassed(ctx context.Context, incidentID, actionID string) (bool, error) {
	events, err := g.Store.Read(ctx, incidentID, 0, 0)
	if err != nil {
		return false, fmt.Errorf("security: reading events for %s: %w", incidentID, err)
	}
	for _, ev := range events {
		if ev.Kind != incident.KindSandboxTestPassed {
			continue
		}
		if id, ok := ev.Payload["action_id"].(string); ok && id == actionID {
			return true, nil
		}
	}
	return false, nil
}

// integrityMatches requires the most recent ActionProposed event for
// actionID to carry the same integrity hash decision.IntegrityHash()
// recomputes now, catching tampering between approval and execution.
func (g *Gate) integrityMatches(ctx context.Context, incidentID string, decision incident.ConsensusDecision) error {
	events, err := g.Store.Read(ctx, incidentID, 0, 0)
	if err != nil {
		return fmt.Errorf("security: reading events for %s: %w", incidentID, err)
	}

	var proposedHash string
	var found bool
	for _, ev := range events {
		if ev.Kind != incident.KindActionProposed {
			continue
		}
		id, _ := ev.Payload["action_id"].(string)
		if id != decision.ActionID {
			continue
		}
		proposedHash, _ = ev.Payload["integrity_hash"].(string)
		found = true
	}
	if !found {
		return fmt.Errorf("security: %w: no ActionProposed event on record for action %s", apperrors.ErrInvariantBreach, decision.ActionID)
	}
	if proposedHash != decision.IntegrityHash() {
		return fmt.Errorf("security: %w: integrity hash mismatch for action %s", apperrors.ErrChainBroken, decision.ActionID)
	}
	return nil
}

// decisionAgent reports the highest-priority contributor to decision, used
// to attribute the credential request to an agent class.
func decisionAgent(decision incident.ConsensusDecision) incident.AgentClass {
	if len(decision.Contributors) == 0 {
		return incident.AgentResolution
	}
	return decision.Contributors[0]
}

func actionPayload(inc *incident.Incident, decision incident.ConsensusDecision) map[string]any {
	return map[string]any{
		"incident_id":     inc.ID,
		"action_id":       decision.ActionID,
		"round":           decision.Round,
		"aggregate_score": decision.AggregateScore,
		"severity":        string(inc.Severity),
	}
}
