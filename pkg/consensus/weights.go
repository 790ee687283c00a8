package consensus

import "github.com/codeready-toolchain/sentinel/pkg/incident"

// Weights are the canonical per-agent-class contribution to weighted
// aggregation. Centralized here as the single shared-constants source —
// every caller that needs a weight imports this map rather than
// hardcoding the literal.
var Weights = map[incident.AgentClass]float64{
	incident.AgentDetection:  0.2,
	incident.AgentDiagnosis:  0.4,
	incident.AgentPrediction: 0.3,
	incident.AgentResolution: 0.1,
}

// Normalize rescales Weights restricted to classes so they sum to 1 over
// the trusted subset. Classes with no entry in Weights (e.g.
// Communication, which never votes) still get an entry, with weight zero.
func Normalize(classes []incident.AgentClass) map[incident.AgentClass]float64 {
	total := 0.0
	for _, c := range classes {
		total += Weights[c]
	}
	out := make(map[incident.AgentClass]float64, len(classes))
	if total == 0 {
		return out
	}
	for _, c := range classes {
		out[c] = Weights[c] / total
	}
	return out
}
