// Package eventstore provides the ordered, hash-chained, durable append log
// for incidents: Append assigns a dense sequence number and integrity hash,
// Read/Replay reconstruct an incident's history, and VerifyChain detects
// tampering or corruption between what was written and what is now stored.
package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Store is the ordered event log contract. Implementations: Postgres (the
// production store, pkg/eventstore/postgres.go) and an in-memory store used
// by orchestrator/consensus unit tests that don't need a real database.
type Store interface {
	// Append assigns the next dense sequence number and integrity hash for
	// kind/payload and durably records it. Returns the fully-populated
	// event (including SequenceNumber, IntegrityHash, RecordedAt).
	Append(ctx context.Context, incidentID string, kind incident.EventKind, payload map[string]any) (incident.IncidentEvent, error)

	// Read returns events for incidentID with sequence_number > afterSeq,
	// in order, up to limit (0 means unlimited).
	Read(ctx context.Context, incidentID string, afterSeq, limit int) ([]incident.IncidentEvent, error)

	// Replay verifies the stored hash chain for incidentID, reads the full
	// event stream, and folds it into an Incident aggregate via
	// incident.Replay. A broken chain is recorded as a CorruptionDetected
	// event before folding, so the returned aggregate comes back Escalated
	// with CorruptionDetected set rather than replaying as if intact.
	Replay(ctx context.Context, incidentID string) (*incident.Incident, error)

	// VerifyChain walks the stored hash chain for incidentID and confirms
	// every event's IntegrityHash matches ComputeHash(prev, event). Returns
	// an error wrapping apperrors.ErrChainBroken at the first mismatch.
	VerifyChain(ctx context.Context, incidentID string) error
}

// replayWithVerification is the shared body behind every Store's Replay: it
// runs VerifyChain first, and on a broken chain records a
// CorruptionDetected event (which the reducer folds into an Escalated,
// CorruptionDetected=true aggregate) before folding the stream, so a
// tampered mid-stream payload never replays as if nothing happened.
func replayWithVerification(ctx context.Context, s Store, incidentID string) (*incident.Incident, error) {
	if err := s.VerifyChain(ctx, incidentID); err != nil {
		if !errors.Is(err, apperrors.ErrChainBroken) {
			return nil, err
		}
		if _, appendErr := s.Append(ctx, incidentID, incident.KindCorruptionDetected, map[string]any{
			"reason": err.Error(),
		}); appendErr != nil {
			return nil, fmt.Errorf("eventstore: recording corruption for %s: %w", incidentID, appendErr)
		}
	}

	events, err := s.Read(ctx, incidentID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return incident.Replay(events)
}
