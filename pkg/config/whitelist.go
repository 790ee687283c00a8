package config

import (
	"fmt"
	"sync"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// ActionWhitelistRegistry holds the action templates the security gate
// checks proposals against. Built once at load time from YAML
// and the built-in catalog; read-only after that, like AgentRegistry in
// the reference config loader.
type ActionWhitelistRegistry struct {
	mu      sync.RWMutex
	actions map[string]incident.ActionTemplate
}

// NewActionWhitelistRegistry builds a registry from a defensive copy of actions.
func NewActionWhitelistRegistry(actions map[string]incident.ActionTemplate) *ActionWhitelistRegistry {
	copied := make(map[string]incident.ActionTemplate, len(actions))
	for k, v := range actions {
		copied[k] = v
	}
	return &ActionWhitelistRegistry{actions: copied}
}

// Get retrieves an action template by action_id.
func (r *ActionWhitelistRegistry) Get(actionID string) (*incident.ActionTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.actions[actionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotWhitelisted, actionID)
	}
	return &tmpl, nil
}

// Has reports whether actionID is whitelisted.
func (r *ActionWhitelistRegistry) Has(actionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[actionID]
	return ok
}

// GetAll returns a copy of every whitelisted action template.
func (r *ActionWhitelistRegistry) GetAll() map[string]incident.ActionTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]incident.ActionTemplate, len(r.actions))
	for k, v := range r.actions {
		out[k] = v
	}
	return out
}

// Len reports how many actions are whitelisted.
func (r *ActionWhitelistRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// PhaseTimeoutRegistry holds the per-phase deadline the orchestrator
// enforces before a phase is treated as timed out.
type PhaseTimeoutRegistry struct {
	mu       sync.RWMutex
	timeouts map[incident.Phase]DurationYAML
}

// NewPhaseTimeoutRegistry builds a registry from a defensive copy of timeouts.
func NewPhaseTimeoutRegistry(timeouts map[incident.Phase]DurationYAML) *PhaseTimeoutRegistry {
	copied := make(map[incident.Phase]DurationYAML, len(timeouts))
	for k, v := range timeouts {
		copied[k] = v
	}
	return &PhaseTimeoutRegistry{timeouts: copied}
}

// Get retrieves the configured timeout for phase, false if unset.
func (r *PhaseTimeoutRegistry) Get(phase incident.Phase) (DurationYAML, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.timeouts[phase]
	return d, ok
}

// Len reports how many phases have a configured timeout.
func (r *PhaseTimeoutRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timeouts)
}
