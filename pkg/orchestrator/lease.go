// Package orchestrator drives each incident's phase machine: it schedules
// agent work through the roster, submits the resulting recommendations to
// the consensus engine, executes and validates the winning action through
// a pluggable executor, and records every step in the event store. A
// per-incident lease in Redis keeps exactly one process driving a given
// incident at a time across a pool of orchestrator instances. A checkpoint
// of each incident's phase and version is saved at every step and
// periodically while Resolving; the orchestrator does not read checkpoints
// back, and an instance that takes over an incident replays its whole
// event stream.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// ErrLeaseNotHeld is returned by Acquire when another owner holds an
// unexpired lease, and by Renew when the caller's ownerID no longer matches
// the lease on record (it expired and another instance claimed it, or it
// was never acquired). Release treats a mismatch as a no-op.
var ErrLeaseNotHeld = errors.New("orchestrator: lease not held by this owner")

// Checkpoint is the phase and version an orchestrator instance records for
// an incident as it drives it. The event store remains the source of
// truth; the orchestrator never loads a checkpoint, so takeover still
// replays the full event stream.
type Checkpoint struct {
	IncidentID string         `json:"incident_id"`
	Phase      incident.Phase `json:"phase"`
	Version    int            `json:"version"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// LeaseStore grants exclusive ownership of an incident to one orchestrator
// instance at a time and persists its checkpoints. RedisLeaseStore is the
// production implementation; tests substitute a store backed by
// miniredis rather than a separate in-memory fake, so the same Lua scripts
// and key layout are exercised.
type LeaseStore interface {
	// Acquire claims incidentID for ownerID for ttl. Returns
	// ErrLeaseNotHeld if another owner already holds an unexpired lease.
	Acquire(ctx context.Context, incidentID, ownerID string, ttl time.Duration) error

	// Renew extends an already-held lease. Returns ErrLeaseNotHeld if
	// ownerID no longer holds it (it expired and was reclaimed).
	Renew(ctx context.Context, incidentID, ownerID string, ttl time.Duration) error

	// Release relinquishes the lease if ownerID still holds it; a no-op,
	// not an error, if it already expired.
	Release(ctx context.Context, incidentID, ownerID string) error

	// SaveCheckpoint persists cp and indexes incidentID as active.
	SaveCheckpoint(ctx context.Context, cp Checkpoint, ttl time.Duration) error

	// LoadCheckpoint returns the last checkpoint for incidentID, if any.
	LoadCheckpoint(ctx context.Context, incidentID string) (Checkpoint, bool, error)

	// ActiveIncidents lists every incident with a live checkpoint index
	// entry. The orchestrator does not call it; no startup sweep exists.
	ActiveIncidents(ctx context.Context) ([]string, error)

	// ForgetCheckpoint removes incidentID from the active index once it
	// reaches a terminal phase.
	ForgetCheckpoint(ctx context.Context, incidentID string) error

	Close() error
}

// renewScript extends the lease's TTL only if value still matches the
// caller's ownerID, so a lease that already expired and was reclaimed by
// someone else is never silently stolen back.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
else
	return 0
end
`)

// releaseScript deletes the lease key only if value still matches the
// caller's ownerID.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisLeaseStore is the Redis-backed LeaseStore. Lease keys carry their
// own TTL (SET NX PX on acquire); checkpoints are a separate key plus a Set
// index of incident IDs with a live checkpoint, mirroring the pending-set
// index pattern of a Redis-backed checkpoint store in the wider agent
// orchestration ecosystem, retargeted from human-in-the-loop checkpoints to
// incident phase checkpoints.
type RedisLeaseStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLeaseStore builds a RedisLeaseStore over an already-constructed
// client (tests pass a miniredis-backed client; production passes one
// built from config.RedisConfig).
func NewRedisLeaseStore(client *redis.Client, keyPrefix string) *RedisLeaseStore {
	if keyPrefix == "" {
		keyPrefix = "sentinel"
	}
	return &RedisLeaseStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisLeaseStore) leaseKey(incidentID string) string {
	return fmt.Sprintf("%s:lease:%s", s.keyPrefix, incidentID)
}

func (s *RedisLeaseStore) checkpointKey(incidentID string) string {
	return fmt.Sprintf("%s:checkpoint:%s", s.keyPrefix, incidentID)
}

func (s *RedisLeaseStore) activeSetKey() string {
	return fmt.Sprintf("%s:active", s.keyPrefix)
}

func (s *RedisLeaseStore) Acquire(ctx context.Context, incidentID, ownerID string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.leaseKey(incidentID), ownerID, ttl).Result()
	if err != nil {
		return fmt.Errorf("orchestrator: acquiring lease for %s: %w", incidentID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLeaseNotHeld, incidentID)
	}
	return nil
}

func (s *RedisLeaseStore) Renew(ctx context.Context, incidentID, ownerID string, ttl time.Duration) error {
	res, err := renewScript.Run(ctx, s.client, []string{s.leaseKey(incidentID)}, ownerID, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("orchestrator: renewing lease for %s: %w", incidentID, err)
	}
	if res == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseNotHeld, incidentID)
	}
	return nil
}

func (s *RedisLeaseStore) Release(ctx context.Context, incidentID, ownerID string) error {
	_, err := releaseScript.Run(ctx, s.client, []string{s.leaseKey(incidentID)}, ownerID).Int()
	if err != nil {
		return fmt.Errorf("orchestrator: releasing lease for %s: %w", incidentID, err)
	}
	return nil
}

func (s *RedisLeaseStore) SaveCheckpoint(ctx context.Context, cp Checkpoint, ttl time.Duration) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling checkpoint for %s: %w", cp.IncidentID, err)
	}
	if err := s.client.Set(ctx, s.checkpointKey(cp.IncidentID), data, ttl).Err(); err != nil {
		return fmt.Errorf("orchestrator: saving checkpoint for %s: %w", cp.IncidentID, err)
	}
	if err := s.client.SAdd(ctx, s.activeSetKey(), cp.IncidentID).Err(); err != nil {
		return fmt.Errorf("orchestrator: indexing checkpoint for %s: %w", cp.IncidentID, err)
	}
	return nil
}

func (s *RedisLeaseStore) LoadCheckpoint(ctx context.Context, incidentID string) (Checkpoint, bool, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(incidentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("orchestrator: loading checkpoint for %s: %w", incidentID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("orchestrator: decoding checkpoint for %s: %w", incidentID, err)
	}
	return cp, true, nil
}

func (s *RedisLeaseStore) ActiveIncidents(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.activeSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: listing active incidents: %w", err)
	}
	return ids, nil
}

func (s *RedisLeaseStore) ForgetCheckpoint(ctx context.Context, incidentID string) error {
	if err := s.client.Del(ctx, s.checkpointKey(incidentID)).Err(); err != nil {
		return fmt.Errorf("orchestrator: deleting checkpoint for %s: %w", incidentID, err)
	}
	if err := s.client.SRem(ctx, s.activeSetKey(), incidentID).Err(); err != nil {
		return fmt.Errorf("orchestrator: unindexing checkpoint for %s: %w", incidentID, err)
	}
	return nil
}

func (s *RedisLeaseStore) Close() error {
	return s.client.Close()
}
