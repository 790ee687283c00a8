package consensus

import (
	"math"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// behavioralScreen computes a deviation score per recommendation from three
// signals: distance of its confidence from the
// agent's historical mean (z-scored when a stddev is available), how much
// it disagrees with the rest of the batch on action_id, and how little its
// evidence overlaps the others'. A recommendation whose deviation exceeds
// cfg.ZThreshold is suspect. ZThreshold <= 0 disables the screen (useful
// for tests that only want to exercise aggregation).
func behavioralScreen(recs []incident.AgentRecommendation, cfg Config) (trusted []incident.AgentRecommendation, suspect []incident.AgentClass) {
	if cfg.ZThreshold <= 0 || len(recs) == 0 {
		return recs, nil
	}

	actionCounts := make(map[string]int, len(recs))
	for _, r := range recs {
		actionCounts[r.ActionID]++
	}

	for _, r := range recs {
		deviation := confidenceDeviation(r, cfg.Reputation)
		deviation += 1 - float64(actionCounts[r.ActionID])/float64(len(recs))
		deviation += (1 - evidenceOverlap(r, recs)) * 0.5

		if deviation > cfg.ZThreshold {
			suspect = append(suspect, r.AgentName)
			continue
		}
		trusted = append(trusted, r)
	}
	return trusted, suspect
}

func confidenceDeviation(r incident.AgentRecommendation, rep ReputationView) float64 {
	if rep == nil {
		return 0
	}
	mean, ok := rep.MeanConfidence(r.AgentName)
	if !ok {
		return 0
	}
	if stddev, ok := rep.StdDevConfidence(r.AgentName); ok && stddev > 0 {
		return math.Abs(r.Confidence-mean) / stddev
	}
	return math.Abs(r.Confidence - mean)
}

// evidenceOverlap returns the Jaccard similarity of r's evidence set against
// the union of every other recommendation's evidence. 1 means full overlap
// (or nobody submitted evidence, which is treated as neutral agreement).
func evidenceOverlap(r incident.AgentRecommendation, all []incident.AgentRecommendation) float64 {
	others := make(map[string]struct{})
	for _, o := range all {
		if o.AgentName == r.AgentName {
			continue
		}
		for _, e := range o.Evidence {
			others[e] = struct{}{}
		}
	}
	if len(others) == 0 && len(r.Evidence) == 0 {
		return 1
	}

	mine := make(map[string]struct{}, len(r.Evidence))
	for _, e := range r.Evidence {
		mine[e] = struct{}{}
	}

	union := make(map[string]struct{}, len(mine)+len(others))
	intersection := 0
	for e := range mine {
		union[e] = struct{}{}
		if _, ok := others[e]; ok {
			intersection++
		}
	}
	for e := range others {
		union[e] = struct{}{}
	}
	if len(union) == 0 {
		return 1
	}
	return float64(intersection) / float64(len(union))
}
