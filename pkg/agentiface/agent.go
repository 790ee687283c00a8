// Package agentiface is the thin boundary between the incident core and
// the agents that actually investigate and remediate: an Agent interface
// narrow enough that the core never depends on how an agent reasons, plus
// an in-process message bus carrying recommendations between the
// orchestrator and the consensus engine with at-least-once delivery.
package agentiface

import (
	"context"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Agent is the entire surface the incident core depends on. Detection,
// Diagnosis, Prediction, Resolution, and Communication agents all satisfy
// it; everything about how an agent reaches its recommendation — LLM
// calls, tool use, internal state — lives outside this package.
type Agent interface {
	// Identity reports the agent's class, used for weighting and routing.
	Identity() incident.AgentClass

	// Run investigates snap (a read-only incident snapshot) and returns a
	// recommendation. ctx carries the round's deadline; Run must return
	// promptly once ctx is done rather than leave the caller blocked.
	Run(ctx context.Context, snap *incident.Incident) (incident.AgentRecommendation, error)

	// Cancel requests that an in-flight Run abandon its work. It is safe
	// to call Cancel before Run returns and safe to call more than once.
	Cancel()
}
