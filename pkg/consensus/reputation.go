package consensus

import (
	"math"
	"sync"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Reputation tracks each agent class's rolling confidence distribution
// using Welford's online algorithm, so the behavioral screen can flag an
// outlier without replaying an agent's full history. It holds only the
// samples its owner passes to Observe; the orchestrator does not call
// Observe, and the sentinel binary wires no Reputation into the engine.
type Reputation struct {
	mu      sync.RWMutex
	samples map[incident.AgentClass]*rollingStat
}

type rollingStat struct {
	count int
	mean  float64
	m2    float64
}

// NewReputation returns an empty tracker.
func NewReputation() *Reputation {
	return &Reputation{samples: make(map[incident.AgentClass]*rollingStat)}
}

// Observe folds one more confidence sample for agent into its rolling stat.
func (r *Reputation) Observe(agent incident.AgentClass, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.samples[agent]
	if !ok {
		s = &rollingStat{}
		r.samples[agent] = s
	}
	s.count++
	delta := confidence - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (confidence - s.mean)
}

// MeanConfidence reports agent's rolling mean confidence. ok is false if no
// sample has been observed yet.
func (r *Reputation) MeanConfidence(agent incident.AgentClass) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.samples[agent]
	if !ok || s.count == 0 {
		return 0, false
	}
	return s.mean, true
}

// StdDevConfidence reports agent's rolling sample standard deviation. ok is
// false with fewer than two samples (variance undefined).
func (r *Reputation) StdDevConfidence(agent incident.AgentClass) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.samples[agent]
	if !ok || s.count < 2 {
		return 0, false
	}
	return math.Sqrt(s.m2 / float64(s.count-1)), true
}
