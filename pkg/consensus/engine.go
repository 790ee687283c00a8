// Package consensus implements the Byzantine-tolerant weighted-aggregation
// voting algorithm: screen recommendations for behavioral and
// identity anomalies, quarantine the outliers, aggregate what remains by
// agent-class weight, and gate the result against the approval thresholds.
// A round that cannot reach a majority within its time budget falls back to
// the single highest-confidence recommendation and escalates to a human.
package consensus

import (
	"sort"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

const (
	// MinTrusted is the floor on surviving (non-quarantined) agents below
	// which a round cannot proceed.
	MinTrusted = 3

	// DeadlockBudget is how long a round may spend searching for a
	// weighted-aggregation majority before falling back to best-single.
	DeadlockBudget = 120 * time.Second

	// ApprovalThreshold is the aggregate score at or above which a decision
	// is approved outright.
	ApprovalThreshold = 0.70

	// DegradedThreshold is the lower aggregate score at or above which a
	// non-CRITICAL incident is still approved, flagged degraded.
	DegradedThreshold = 0.60
)

// ReputationView is the read side of Reputation the engine needs for the
// behavioral screen. Satisfied by *Reputation; an interface so tests can
// substitute a fixed-table fake.
type ReputationView interface {
	MeanConfidence(agent incident.AgentClass) (float64, bool)
	StdDevConfidence(agent incident.AgentClass) (float64, bool)
}

// IdentityVerifier checks a recommendation's integrity hash against its
// claimed payload, catching a tampered or replayed submission. A nil
// Config.Verify skips this step (used by tests that build recommendations
// without signing them).
type IdentityVerifier func(incident.AgentRecommendation) bool

// Config parameterizes one call to Evaluate. Zero value runs the screen
// disabled (ZThreshold 0) and skips identity verification, which is enough
// for tests that only want to exercise aggregation and the threshold gate.
type Config struct {
	// ZThreshold is the behavioral-screen cutoff; see behavioralScreen.
	ZThreshold float64
	// Verify, if set, rejects any recommendation it returns false for.
	Verify IdentityVerifier
	// Reputation supplies historical confidence stats to the screen.
	Reputation ReputationView
	// Now returns the current time; defaults to time.Now when nil.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Evaluate runs one consensus round over recs and returns the resulting
// decision. elapsed is how long this round has been open; once it reaches
// DeadlockBudget, Evaluate stops trying for a weighted majority and returns
// the best single recommendation instead (Method = MethodDeadlockBestSingle,
// EscalatedToHuman = true). Outright approval at ApprovalThreshold also
// requires the winning action's risk not be RiskHigh; a HIGH-risk winner
// falls through to the degraded branch (or escalates) even at a high score.
// The returned quarantine list names every class whose recommendation
// failed Validate or Verify, followed by those the behavioral screen
// flagged. Returns a zero decision, the quarantine list and
// apperrors.ErrConsensusEscalate when the aggregate score clears neither
// threshold — the caller is expected to emit an Escalated event rather
// than ActionProposed.
func Evaluate(incidentID string, round int, severity incident.Severity, recs []incident.AgentRecommendation, cfg Config, elapsed time.Duration) (incident.ConsensusDecision, []incident.AgentClass, error) {
	var zero incident.ConsensusDecision

	valid := make([]incident.AgentRecommendation, 0, len(recs))
	var rejected []incident.AgentClass
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			rejected = append(rejected, r.AgentName)
			continue
		}
		if cfg.Verify != nil && !cfg.Verify(r) {
			rejected = append(rejected, r.AgentName)
			continue
		}
		valid = append(valid, r)
	}

	trusted, quarantined := behavioralScreen(valid, cfg)
	quarantined = append(rejected, quarantined...)

	if len(trusted) < MinTrusted {
		return zero, quarantined, apperrors.ErrInsufficientTrustedAgents
	}

	if elapsed >= DeadlockBudget {
		decision := deadlockBestSingle(incidentID, round, trusted, cfg.now())
		return decision, quarantined, nil
	}

	decision, ok := weightedAggregate(incidentID, round, trusted, cfg.now())
	if !ok {
		return zero, quarantined, apperrors.ErrInsufficientTrustedAgents
	}

	// scoreEpsilon absorbs float rounding in the weighted sum, so a score
	// that is exactly at a threshold (four agents at 0.70 sum to
	// 0.6999999999999997) still counts as reaching it.
	const scoreEpsilon = 1e-9
	switch {
	case decision.AggregateScore >= ApprovalThreshold-scoreEpsilon && decision.Risk != incident.RiskHigh:
		decision.Degraded = len(trusted) < len(Weights)
	case decision.AggregateScore >= DegradedThreshold-scoreEpsilon && severity != incident.SeverityCritical:
		decision.Degraded = true
	default:
		return zero, quarantined, apperrors.ErrConsensusEscalate
	}

	return decision, quarantined, nil
}

// weightedAggregate groups trusted recommendations by action_id, scores
// each group by the normalized weight of its supporters, and returns the
// winning group under the tie-break order: higher aggregate
// score first, then lower aggregate risk, then agent-class priority
// (Detection > Diagnosis > Prediction > Resolution), then lexicographic
// action_id.
func weightedAggregate(incidentID string, round int, trusted []incident.AgentRecommendation, now time.Time) (incident.ConsensusDecision, bool) {
	if len(trusted) == 0 {
		return incident.ConsensusDecision{}, false
	}

	classes := make([]incident.AgentClass, len(trusted))
	for i, r := range trusted {
		classes[i] = r.AgentName
	}
	normalized := Normalize(classes)

	type group struct {
		actionID     string
		score        float64
		risk         incident.RiskLevel
		riskRank     int
		bestPriority int
		contributors []incident.AgentClass
	}
	groups := make(map[string]*group)
	for _, r := range trusted {
		g, ok := groups[r.ActionID]
		if !ok {
			g = &group{actionID: r.ActionID, riskRank: -1, bestPriority: 99}
			groups[r.ActionID] = g
		}
		g.score += normalized[r.AgentName] * r.Confidence
		if rr := riskRank(r.RiskLevel); rr > g.riskRank {
			g.riskRank = rr
			g.risk = r.RiskLevel
		}
		if p := classPriority(r.AgentName); p < g.bestPriority {
			g.bestPriority = p
		}
		g.contributors = append(g.contributors, r.AgentName)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.riskRank != b.riskRank {
			return a.riskRank < b.riskRank
		}
		if a.bestPriority != b.bestPriority {
			return a.bestPriority < b.bestPriority
		}
		return a.actionID < b.actionID
	})

	winner := ordered[0]
	sort.Slice(winner.contributors, func(i, j int) bool {
		return classPriority(winner.contributors[i]) < classPriority(winner.contributors[j])
	})

	return incident.ConsensusDecision{
		IncidentID:     incidentID,
		Round:          round,
		Method:         incident.MethodWeightedAggregation,
		ActionID:       winner.actionID,
		AggregateScore: winner.score,
		Risk:           winner.risk,
		Contributors:   winner.contributors,
		DecidedAt:      now,
	}, true
}

// deadlockBestSingle picks the single highest-confidence recommendation,
// breaking ties deterministically by agent-class priority then action_id,
// when the round has exhausted its time budget without a clear winner.
func deadlockBestSingle(incidentID string, round int, trusted []incident.AgentRecommendation, now time.Time) incident.ConsensusDecision {
	best := trusted[0]
	for _, r := range trusted[1:] {
		if r.Confidence > best.Confidence {
			best = r
			continue
		}
		if r.Confidence == best.Confidence {
			if classPriority(r.AgentName) < classPriority(best.AgentName) {
				best = r
			} else if classPriority(r.AgentName) == classPriority(best.AgentName) && r.ActionID < best.ActionID {
				best = r
			}
		}
	}

	return incident.ConsensusDecision{
		IncidentID:       incidentID,
		Round:            round,
		Method:           incident.MethodDeadlockBestSingle,
		ActionID:         best.ActionID,
		AggregateScore:   best.Confidence,
		Risk:             best.RiskLevel,
		Contributors:     []incident.AgentClass{best.AgentName},
		Degraded:         true,
		EscalatedToHuman: true,
		DecidedAt:        now,
	}
}

// riskRank orders RiskLevel for the tie-break comparator; lower is safer.
func riskRank(r incident.RiskLevel) int {
	switch r {
	case incident.RiskLow:
		return 0
	case incident.RiskMedium:
		return 1
	case incident.RiskHigh:
		return 2
	default:
		return 3
	}
}

// classPriority orders AgentClass for the tie-break comparator: Detection
// first, then Diagnosis, Prediction, Resolution.
func classPriority(c incident.AgentClass) int {
	switch c {
	case incident.AgentDetection:
		return 0
	case incident.AgentDiagnosis:
		return 1
	case incident.AgentPrediction:
		return 2
	case incident.AgentResolution:
		return 3
	default:
		return 99
	}
}
