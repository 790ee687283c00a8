package security

import (
	"context"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// CredentialTTL is how long a JIT credential handle is valid for once
// issued, matching the egress contract Resolution execution expects.
const CredentialTTL = 15 * time.Minute

// CredentialHandle is an opaque-by-value capability a Gate passes to an
// Actuator: the core never holds or inspects the underlying secret, only
// the permission list and expiry the broker attached to it.
type CredentialHandle struct {
	ActionID    string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the handle is no longer usable at now.
func (h CredentialHandle) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Holds reports whether h carries every permission in required.
func (h CredentialHandle) Holds(required []string) bool {
	have := make(map[string]struct{}, len(h.Permissions))
	for _, p := range h.Permissions {
		have[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// CredentialBroker issues JIT credential handles for a Resolution action.
// A production broker talking to a real secrets system is an external
// dependency; Gate depends only on this interface.
type CredentialBroker interface {
	Issue(ctx context.Context, agent incident.AgentClass, actionID string, permissions []string) (CredentialHandle, error)
}

// StaticBroker issues a handle carrying exactly the permissions requested,
// the in-process stand-in used when the orchestrator and the actuator run
// in the same trust boundary and no external broker is configured.
type StaticBroker struct {
	// Now overrides time.Now for tests; nil uses the real clock.
	Now func() time.Time
}

func (b StaticBroker) Issue(ctx context.Context, agent incident.AgentClass, actionID string, permissions []string) (CredentialHandle, error) {
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	return CredentialHandle{
		ActionID:    actionID,
		Permissions: append([]string(nil), permissions...),
		IssuedAt:    now,
		ExpiresAt:   now.Add(CredentialTTL),
	}, nil
}
