package eventstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Memory is an in-process Store backed by a map, guarded by a single mutex
// so concurrent Append calls for the same incident serialize the same way
// a real row-lock would: no two events for one incident ever share a
// sequence number, even under concurrent appenders. Used by
// consensus/orchestrator unit tests that want a real Store without a
// database.
type Memory struct {
	mu     sync.Mutex
	events map[string][]incident.IncidentEvent
	now    func() time.Time
}

// NewMemory builds an empty Memory store. now defaults to time.Now; tests
// that need deterministic timestamps can override it.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{events: make(map[string][]incident.IncidentEvent), now: now}
}

func (m *Memory) Append(_ context.Context, incidentID string, kind incident.EventKind, payload map[string]any) (incident.IncidentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.events[incidentID]
	prevHash := ZeroHash
	seq := 1
	if len(existing) > 0 {
		last := existing[len(existing)-1]
		prevHash = last.IntegrityHash
		seq = last.SequenceNumber + 1
	}

	ev := incident.IncidentEvent{
		IncidentID:     incidentID,
		SequenceNumber: seq,
		Kind:           kind,
		Payload:        payload,
		RecordedAt:     m.now(),
		PrevHash:       prevHash,
	}
	ev.IntegrityHash = ComputeHash(prevHash, ev)

	m.events[incidentID] = append(existing, ev)
	return ev, nil
}

func (m *Memory) Read(_ context.Context, incidentID string, afterSeq, limit int) ([]incident.IncidentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[incidentID]
	out := make([]incident.IncidentEvent, 0, len(all))
	for _, ev := range all {
		if ev.SequenceNumber > afterSeq {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Replay(ctx context.Context, incidentID string) (*incident.Incident, error) {
	return replayWithVerification(ctx, m, incidentID)
}

func (m *Memory) VerifyChain(ctx context.Context, incidentID string) error {
	events, err := m.Read(ctx, incidentID, 0, 0)
	if err != nil {
		return err
	}
	prevHash := ZeroHash
	for _, ev := range events {
		want := ComputeHash(prevHash, ev)
		if want != ev.IntegrityHash {
			return fmt.Errorf("incident %s seq %d: %w", incidentID, ev.SequenceNumber, apperrors.ErrChainBroken)
		}
		prevHash = ev.IntegrityHash
	}
	return nil
}
