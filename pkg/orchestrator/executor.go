package orchestrator

import (
	"context"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// ActionExecutor runs the action a consensus decision selected, validates
// the incident's health afterward, and rolls back if validation fails.
// pkg/security implements this for the production binary (sandboxing and
// whitelist checks happen before Execute is ever called); orchestrator
// unit tests supply a fake.
type ActionExecutor interface {
	Execute(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error
	Validate(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error
	Rollback(ctx context.Context, inc *incident.Incident, decision incident.ConsensusDecision) error
}

// Notifier reports phase-terminal outcomes. A nil Notifier is valid and
// silently skipped, the same way the Communication agent class is optional
// in the roster.
type Notifier interface {
	NotifyResolved(ctx context.Context, inc *incident.Incident)
	NotifyEscalated(ctx context.Context, inc *incident.Incident, reason string)
}
