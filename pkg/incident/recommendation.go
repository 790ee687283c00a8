package incident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
)

// AgentRecommendation is what a Resolution agent (or a Diagnosis/Prediction
// agent proposing a next step) hands to the consensus engine. The engine
// (pkg/consensus) checks each one with the hand-written Validate below;
// the validate struct tags are declarative only, and no struct-tag
// validator runs over them.
type AgentRecommendation struct {
	AgentName  AgentClass `json:"agent_name" validate:"required"`
	ActionID   string     `json:"action_id" validate:"required"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
	RiskLevel  RiskLevel  `json:"risk_level" validate:"required,oneof=LOW MEDIUM HIGH"`
	Reasoning  string     `json:"reasoning" validate:"required"`
	Evidence   []string   `json:"evidence,omitempty"`

	EstimatedDuration time.Duration `json:"estimated_duration"`
	RollbackPlan      string        `json:"rollback_plan,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`

	// IntegrityHash binds this recommendation to a specific payload so the
	// security gate can detect tampering between proposal and execution.
	IntegrityHash string `json:"integrity_hash,omitempty"`
}

// Validate enforces invariant I4 (confidence within [0,1]) plus the
// required-field checks that a struct tag alone can express. Predicates
// that need access to other state (e.g. the whitelist) live in pkg/security.
func (r AgentRecommendation) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return apperrors.NewValidationError("confidence", "must be within [0, 1]")
	}
	if r.AgentName == "" {
		return apperrors.NewValidationError("agent_name", "required")
	}
	if r.ActionID == "" {
		return apperrors.NewValidationError("action_id", "required")
	}
	switch r.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return apperrors.NewValidationError("risk_level", "must be one of LOW, MEDIUM, HIGH")
	}
	return nil
}

// ConsensusMethod records which path produced a ConsensusDecision.
type ConsensusMethod string

const (
	MethodWeightedAggregation ConsensusMethod = "weighted_aggregation"
	MethodDeadlockBestSingle  ConsensusMethod = "deadlock_best_single"
)

// ConsensusDecision is the engine's output for one consensus round: the
// chosen action plus the audit trail needed to explain why.
type ConsensusDecision struct {
	IncidentID string          `json:"incident_id"`
	Round      int             `json:"round"`
	Method     ConsensusMethod `json:"method"`

	ActionID          string       `json:"action_id"`
	AggregateScore    float64      `json:"aggregate_score"`
	Risk              RiskLevel    `json:"risk"`
	Contributors      []AgentClass `json:"contributors,omitempty"`
	QuarantinedAgents []AgentClass `json:"quarantined_agents,omitempty"`

	// Degraded is true when fewer than the full agent roster contributed
	// (min_trusted still satisfied, but not every class responded).
	Degraded bool `json:"degraded"`

	// EscalatedToHuman is set on the deadlock path: consensus still picks
	// a best-effort action, but a human must sign off.
	EscalatedToHuman bool `json:"escalated_to_human"`

	DecidedAt time.Time `json:"decided_at"`
}

// IntegrityHash binds a decision to its action_id, round, and outcome.
// The security gate recomputes it at execution time and compares against
// what an ActionProposed event recorded, catching tampering between
// proposal and execution.
func (d ConsensusDecision) IntegrityHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%.6f", d.IncidentID, d.Round, d.Method, d.ActionID, d.AggregateScore)
	return hex.EncodeToString(h.Sum(nil))
}
