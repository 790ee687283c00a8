package orchestrator

import (
	"sync"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
)

// Admission bounds the number of incidents open at once and rejects a
// Submit whose idempotency key already maps to a live incident.
type Admission struct {
	mu          sync.Mutex
	maxInFlight int
	active      map[string]string // incident_id -> idempotency_key
	byKey       map[string]string // idempotency_key -> incident_id
}

// NewAdmission builds an Admission gate with the given in-flight cap.
func NewAdmission(maxInFlight int) *Admission {
	return &Admission{
		maxInFlight: maxInFlight,
		active:      make(map[string]string),
		byKey:       make(map[string]string),
	}
}

// TryAdmit admits incidentID under idempotencyKey. Returns
// apperrors.ErrDuplicateIncident (with the existing incident id) if the key
// is already live, or apperrors.ErrAdmissionRejected if the in-flight cap
// is reached.
func (a *Admission) TryAdmit(incidentID, idempotencyKey string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.byKey[idempotencyKey]; ok {
		return existing, apperrors.ErrDuplicateIncident
	}
	if len(a.active) >= a.maxInFlight {
		return "", apperrors.ErrAdmissionRejected
	}
	a.active[incidentID] = idempotencyKey
	a.byKey[idempotencyKey] = incidentID
	return incidentID, nil
}

// Release frees incidentID's admission slot and idempotency key, called
// once the incident reaches a terminal phase.
func (a *Admission) Release(incidentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if key, ok := a.active[incidentID]; ok {
		delete(a.active, incidentID)
		delete(a.byKey, key)
	}
}

// InFlight reports the current number of admitted, non-terminal incidents.
func (a *Admission) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}
