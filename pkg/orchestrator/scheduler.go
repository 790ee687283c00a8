package orchestrator

import (
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// AgentTimeouts is the shared-constants record of the hard per-class
// timeout every orchestrator instance enforces identically. Like
// pkg/consensus's weight table, it lives as one package-level value rather
// than being re-derived at each call site.
var AgentTimeouts = map[incident.AgentClass]time.Duration{
	incident.AgentDetection:     60 * time.Second,
	incident.AgentDiagnosis:     180 * time.Second,
	incident.AgentPrediction:    90 * time.Second,
	incident.AgentResolution:    300 * time.Second,
	incident.AgentCommunication: 30 * time.Second,
}

// GlobalPhaseTimeout bounds the whole span from Detected to
// AwaitingConsensus, regardless of how many individual agent timeouts it
// absorbs along the way.
const GlobalPhaseTimeout = 600 * time.Second

// CheckpointInterval is the periodic cadence at which a long-running phase
// writes a fresh checkpoint even without a phase transition.
const CheckpointInterval = 30 * time.Second

// forcedResolutionOrder ranks agent classes for the fallback used when the
// consensus engine cannot be reached at all (as distinct from the
// deadlock path inside Evaluate, which the engine itself resolves):
// Detection outranks Diagnosis, which outranks Prediction, which outranks
// Resolution.
var forcedResolutionOrder = map[incident.AgentClass]int{
	incident.AgentDetection:  0,
	incident.AgentDiagnosis:  1,
	incident.AgentPrediction: 2,
	incident.AgentResolution: 3,
}

// ForcedBestRecommendation picks the highest-priority recommendation from
// outputs for use when the consensus engine itself is unreachable.
func ForcedBestRecommendation(outputs map[incident.AgentClass]incident.AgentRecommendation) (incident.AgentRecommendation, bool) {
	best := -1
	var rec incident.AgentRecommendation
	found := false
	for class, r := range outputs {
		rank, ok := forcedResolutionOrder[class]
		if !ok {
			continue
		}
		if !found || rank < best {
			best = rank
			rec = r
			found = true
		}
	}
	return rec, found
}
