package consensus

import (
	"testing"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

func cfgNoScreen() Config {
	return Config{Now: fixedNow}
}

func rec(class incident.AgentClass, actionID string, confidence float64, risk incident.RiskLevel) incident.AgentRecommendation {
	return incident.AgentRecommendation{
		AgentName:  class,
		ActionID:   actionID,
		Confidence: confidence,
		RiskLevel:  risk,
		Reasoning:  "test fixture",
		SubmittedAt: fixedNow(),
	}
}

// P4: normalized weights over any subset of classes sum to 1.
func TestNormalize_SumsToOne(t *testing.T) {
	norm := Normalize([]incident.AgentClass{incident.AgentDetection, incident.AgentDiagnosis, incident.AgentPrediction})
	total := 0.0
	for _, w := range norm {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

// S1: unanimous, four classes agree on one action, weighted aggregate ~0.911.
func TestEvaluate_S1_UnanimousApproval(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "restart-pod", 0.88, incident.RiskLow),
		rec(incident.AgentDiagnosis, "restart-pod", 0.95, incident.RiskLow),
		rec(incident.AgentPrediction, "restart-pod", 0.90, incident.RiskLow),
		rec(incident.AgentResolution, "restart-pod", 0.85, incident.RiskLow),
	}

	decision, quarantined, err := Evaluate("inc-1", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	require.NoError(t, err)
	assert.Empty(t, quarantined)
	assert.Equal(t, "restart-pod", decision.ActionID)
	assert.InDelta(t, 0.911, decision.AggregateScore, 1e-9)
	assert.False(t, decision.Degraded)
	assert.Equal(t, incident.MethodWeightedAggregation, decision.Method)
}

// S2: an invalid recommendation (confidence outside [0,1]) is dropped before
// aggregation, and the surviving classes' weights renormalize over just
// themselves (Detection 0.2, Prediction 0.3 -> 0.4/0.6 of the remaining mass).
func TestWeightedAggregate_S2_RenormalizesAfterDrop(t *testing.T) {
	trusted := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "failover", 0.8, incident.RiskLow),
		rec(incident.AgentPrediction, "failover", 0.6, incident.RiskLow),
	}
	norm := Normalize([]incident.AgentClass{incident.AgentDetection, incident.AgentPrediction})
	assert.InDelta(t, 0.4, norm[incident.AgentDetection], 1e-9)
	assert.InDelta(t, 0.6, norm[incident.AgentPrediction], 1e-9)

	decision, ok := weightedAggregate("inc-2", 1, trusted, fixedNow())
	require.True(t, ok)
	assert.Equal(t, "failover", decision.ActionID)
	assert.InDelta(t, 0.4*0.8+0.6*0.6, decision.AggregateScore, 1e-9)
}

func TestEvaluate_S2_InvalidRecommendationQuarantinedByValidation(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "failover", 0.8, incident.RiskLow),
		{AgentName: incident.AgentDiagnosis, ActionID: "failover", Confidence: 1.5, RiskLevel: incident.RiskLow, Reasoning: "bad"},
		rec(incident.AgentPrediction, "failover", 0.6, incident.RiskLow),
	}

	_, _, err := Evaluate("inc-2b", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientTrustedAgents)
}

// S3: three classes propose three distinct actions at identical confidence;
// once the round's time budget is exhausted, the engine falls back to the
// single best recommendation rather than refusing to decide.
func TestEvaluate_S3_Deadlock(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "action-a", 0.55, incident.RiskMedium),
		rec(incident.AgentDiagnosis, "action-b", 0.55, incident.RiskMedium),
		rec(incident.AgentPrediction, "action-c", 0.55, incident.RiskMedium),
	}

	decision, _, err := Evaluate("inc-3", 1, incident.SeverityCritical, recs, cfgNoScreen(), DeadlockBudget)
	require.NoError(t, err)
	assert.Equal(t, incident.MethodDeadlockBestSingle, decision.Method)
	assert.True(t, decision.EscalatedToHuman)
	assert.True(t, decision.Degraded)
	// Detection has tie-break priority over Diagnosis/Prediction at equal confidence.
	assert.Equal(t, "action-a", decision.ActionID)
	assert.Equal(t, []incident.AgentClass{incident.AgentDetection}, decision.Contributors)
}

func TestEvaluate_ApprovalBoundary_ExactlyPointSeven(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "scale-up", 0.70, incident.RiskLow),
		rec(incident.AgentDiagnosis, "scale-up", 0.70, incident.RiskLow),
		rec(incident.AgentPrediction, "scale-up", 0.70, incident.RiskLow),
		rec(incident.AgentResolution, "scale-up", 0.70, incident.RiskLow),
	}
	decision, _, err := Evaluate("inc-4", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.70, decision.AggregateScore, 1e-9)
	assert.False(t, decision.Degraded)
}

// A single trusted group clears the 0.70 outright-approval score but
// proposes a HIGH-risk action: the score alone isn't enough, so it falls
// through to the degraded branch instead of approving outright.
func TestEvaluate_HighRisk_FallsThroughToDegraded(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "drop-table", 0.90, incident.RiskHigh),
		rec(incident.AgentDiagnosis, "drop-table", 0.90, incident.RiskHigh),
		rec(incident.AgentPrediction, "drop-table", 0.90, incident.RiskHigh),
	}
	decision, _, err := Evaluate("inc-10", 1, incident.SeverityImportant, recs, cfgNoScreen(), 0)
	require.NoError(t, err)
	assert.Equal(t, incident.RiskHigh, decision.Risk)
	assert.True(t, decision.Degraded)
}

// The same HIGH-risk, high-score decision against a CRITICAL incident has
// no degraded branch to fall into, so it escalates instead of approving.
func TestEvaluate_HighRisk_EscalatesOnCritical(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "drop-table", 0.90, incident.RiskHigh),
		rec(incident.AgentDiagnosis, "drop-table", 0.90, incident.RiskHigh),
		rec(incident.AgentPrediction, "drop-table", 0.90, incident.RiskHigh),
	}
	_, _, err := Evaluate("inc-11", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	assert.ErrorIs(t, err, apperrors.ErrConsensusEscalate)
}

func TestEvaluate_EscalationBoundary_ExactlyPointSixNine(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "scale-up", 0.69, incident.RiskLow),
		rec(incident.AgentDiagnosis, "scale-up", 0.69, incident.RiskLow),
		rec(incident.AgentPrediction, "scale-up", 0.69, incident.RiskLow),
		rec(incident.AgentResolution, "scale-up", 0.69, incident.RiskLow),
	}
	_, _, err := Evaluate("inc-5", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	assert.ErrorIs(t, err, apperrors.ErrConsensusEscalate)
}

func TestEvaluate_DegradedApproval_NonCriticalAtPointSixFive(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentDiagnosis, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentPrediction, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentResolution, "scale-up", 0.65, incident.RiskLow),
	}
	decision, _, err := Evaluate("inc-6", 1, incident.SeverityImportant, recs, cfgNoScreen(), 0)
	require.NoError(t, err)
	assert.True(t, decision.Degraded)
}

func TestEvaluate_DegradedApproval_DoesNotApplyToCritical(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentDiagnosis, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentPrediction, "scale-up", 0.65, incident.RiskLow),
		rec(incident.AgentResolution, "scale-up", 0.65, incident.RiskLow),
	}
	_, _, err := Evaluate("inc-7", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	assert.ErrorIs(t, err, apperrors.ErrConsensusEscalate)
}

func TestEvaluate_MinTrustedBoundary(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "scale-up", 0.8, incident.RiskLow),
		rec(incident.AgentDiagnosis, "scale-up", 0.8, incident.RiskLow),
	}
	_, _, err := Evaluate("inc-8", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientTrustedAgents)
}

// P5: identical inputs against an identical reputation snapshot produce an
// identical decision.
func TestEvaluate_P5_Idempotent(t *testing.T) {
	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "restart-pod", 0.8, incident.RiskLow),
		rec(incident.AgentDiagnosis, "restart-pod", 0.85, incident.RiskLow),
		rec(incident.AgentPrediction, "restart-pod", 0.75, incident.RiskLow),
		rec(incident.AgentResolution, "restart-pod", 0.8, incident.RiskLow),
	}

	a, _, errA := Evaluate("inc-9", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	require.NoError(t, errA)
	b, _, errB := Evaluate("inc-9", 1, incident.SeverityCritical, recs, cfgNoScreen(), 0)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestBehavioralScreen_FlagsConfidenceOutlier(t *testing.T) {
	rep := NewReputation()
	for i := 0; i < 10; i++ {
		rep.Observe(incident.AgentDiagnosis, 0.5)
	}

	recs := []incident.AgentRecommendation{
		rec(incident.AgentDetection, "restart-pod", 0.7, incident.RiskLow),
		rec(incident.AgentDiagnosis, "restart-pod", 0.99, incident.RiskLow),
		rec(incident.AgentPrediction, "restart-pod", 0.7, incident.RiskLow),
	}
	cfg := Config{ZThreshold: 0.3, Reputation: rep, Now: fixedNow}
	trusted, suspect := behavioralScreen(recs, cfg)
	assert.Contains(t, suspect, incident.AgentDiagnosis)
	assert.Len(t, trusted, 2)
}
