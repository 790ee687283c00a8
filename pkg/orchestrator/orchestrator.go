package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/sentinel/pkg/apperrors"
	"github.com/codeready-toolchain/sentinel/pkg/consensus"
	"github.com/codeready-toolchain/sentinel/pkg/eventstore"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// IncidentSeed is what Submit accepts: the detection event that starts an
// incident's life. AffectedServices is a plain slice at the boundary;
// the aggregate stores it as a set once replayed.
type IncidentSeed struct {
	IdempotencyKey    string
	Severity          incident.Severity
	ServiceTier       string
	AffectedServices  []string
	AffectedUserCount int
	CostPerMinute     float64

	// DetectionRecommendation is the Detection agent's own recommendation,
	// carried in the detection event itself since that agent has already
	// run by the time Submit is called.
	DetectionRecommendation *incident.AgentRecommendation
}

// Config parameterizes a new Orchestrator.
type Config struct {
	// OwnerID identifies this orchestrator instance for lease ownership.
	// Defaults to a generated UUID when empty.
	OwnerID string

	Store    eventstore.Store
	Leases   LeaseStore
	Roster   Roster
	Executor ActionExecutor
	Notifier Notifier

	Consensus consensus.Config

	MaxInFlight int
	QueueSize   int

	LeaseTTL      time.Duration
	CheckpointTTL time.Duration
}

// Orchestrator drives every admitted incident's phase machine to a
// terminal state, one worker per incident at a time (see Pool).
type Orchestrator struct {
	ownerID  string
	store    eventstore.Store
	leases   LeaseStore
	roster   Roster
	executor ActionExecutor
	notifier Notifier

	consensusCfg consensus.Config

	admission *Admission
	leaseTTL  time.Duration
	cpTTL     time.Duration

	incidents chan string

	mu         sync.RWMutex
	projection map[string]*incident.Incident
}

// New builds an Orchestrator from cfg. The caller is responsible for
// starting a Pool against it to actually drive submitted incidents.
func New(cfg Config) *Orchestrator {
	owner := cfg.OwnerID
	if owner == "" {
		owner = uuid.NewString()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = 45 * time.Second
	}
	cpTTL := cfg.CheckpointTTL
	if cpTTL <= 0 {
		cpTTL = 24 * time.Hour
	}

	return &Orchestrator{
		ownerID:      owner,
		store:        cfg.Store,
		leases:       cfg.Leases,
		roster:       cfg.Roster,
		executor:     cfg.Executor,
		notifier:     cfg.Notifier,
		consensusCfg: cfg.Consensus,
		admission:    NewAdmission(cfg.MaxInFlight),
		leaseTTL:     leaseTTL,
		cpTTL:        cpTTL,
		incidents:    make(chan string, queueSize),
		projection:   make(map[string]*incident.Incident),
	}
}

// Submit accepts a detection event, persists it as the incident's first
// event, admits it against the in-flight cap, and schedules it for a
// worker. Fails with apperrors.ErrAdmissionRejected if the cap is reached
// or apperrors.ErrDuplicateIncident if seed's idempotency key already maps
// to a live incident.
func (o *Orchestrator) Submit(ctx context.Context, seed IncidentSeed) (string, error) {
	id := uuid.NewString()
	if existing, err := o.admission.TryAdmit(id, seed.IdempotencyKey); err != nil {
		if existing != "" {
			return existing, err
		}
		return "", err
	}

	payload := map[string]any{
		"severity":            string(seed.Severity),
		"service_tier":        seed.ServiceTier,
		"affected_services":   seed.AffectedServices,
		"affected_user_count": seed.AffectedUserCount,
		"cost_per_minute":     seed.CostPerMinute,
	}
	if seed.DetectionRecommendation != nil {
		payload["detection_recommendation"] = *seed.DetectionRecommendation
	}
	if _, err := o.store.Append(ctx, id, incident.KindDetected, payload); err != nil {
		o.admission.Release(id)
		return "", fmt.Errorf("orchestrator: recording detection for %s: %w", id, err)
	}

	o.invalidateProjection(id)

	select {
	case o.incidents <- id:
	case <-ctx.Done():
		return id, ctx.Err()
	}

	return id, nil
}

// Status returns the incident's current phase and snapshot: O(1) from the
// in-memory projection cache when present, else a full replay.
func (o *Orchestrator) Status(ctx context.Context, incidentID string) (*incident.Incident, error) {
	o.mu.RLock()
	cached, ok := o.projection[incidentID]
	o.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	inc, err := o.store.Replay(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	o.cacheProjection(inc)
	return inc.Clone(), nil
}

// Escalate force-terminates incidentID to Escalated regardless of its
// current phase, for operator-triggered intervention.
func (o *Orchestrator) Escalate(ctx context.Context, incidentID, reason string) error {
	if _, err := o.store.Append(ctx, incidentID, incident.KindEscalated, map[string]any{"reason": reason}); err != nil {
		return fmt.Errorf("orchestrator: escalating %s: %w", incidentID, err)
	}

	inc, err := o.store.Replay(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("orchestrator: replaying %s after escalate: %w", incidentID, err)
	}
	o.cacheProjection(inc)
	o.finish(ctx, inc)
	return nil
}

func (o *Orchestrator) cacheProjection(inc *incident.Incident) {
	o.mu.Lock()
	o.projection[inc.ID] = inc
	o.mu.Unlock()
}

func (o *Orchestrator) invalidateProjection(incidentID string) {
	o.mu.Lock()
	delete(o.projection, incidentID)
	o.mu.Unlock()
}

// process drives incidentID through its phase machine until it reaches a
// terminal phase, checkpointing at every transition. It is the body of one
// Pool worker's claim of one incident.
func (o *Orchestrator) process(ctx context.Context, incidentID string) error {
	if err := o.leases.Acquire(ctx, incidentID, o.ownerID, o.leaseTTL); err != nil {
		return fmt.Errorf("orchestrator: claiming %s: %w", incidentID, err)
	}
	defer func() {
		if err := o.leases.Release(context.Background(), incidentID, o.ownerID); err != nil {
			slog.Warn("releasing lease failed", "incident_id", incidentID, "error", err)
		}
	}()

	renewStop := o.startLeaseRenewal(ctx, incidentID)
	defer renewStop()

	for {
		inc, err := o.store.Replay(ctx, incidentID)
		if err != nil {
			return fmt.Errorf("orchestrator: replaying %s: %w", incidentID, err)
		}
		o.cacheProjection(inc)

		if incident.Terminal(inc.Phase) {
			o.finish(ctx, inc)
			return nil
		}

		if err := o.checkpoint(ctx, inc); err != nil {
			slog.Warn("checkpoint failed", "incident_id", incidentID, "error", err)
		}

		if err := o.step(ctx, inc); err != nil {
			return fmt.Errorf("orchestrator: stepping %s in phase %s: %w", incidentID, inc.Phase, err)
		}
	}
}

// step advances inc by exactly one phase's worth of work: running the
// agents, consensus, or action-execution call appropriate to its current
// phase, and appending the event(s) that record the outcome.
func (o *Orchestrator) step(ctx context.Context, inc *incident.Incident) error {
	switch inc.Phase {
	case incident.PhaseDetected:
		// The reducer advances Detected straight to Diagnosing on
		// apply; this branch only exists so a replay caught between
		// Append and the next read sees a legal phase to switch on.
		return nil

	case incident.PhaseDiagnosing, incident.PhasePredicting:
		return o.runDiagnosisAndPrediction(ctx, inc)

	case incident.PhaseAwaitingConsensus:
		return o.runConsensus(ctx, inc)

	case incident.PhaseResolving:
		return o.runResolving(ctx, inc)

	case incident.PhaseValidating:
		return o.runValidating(ctx, inc)

	case incident.PhaseRollingBack:
		return o.runRollingBack(ctx, inc)

	default:
		return fmt.Errorf("%w: no step defined for phase %s", apperrors.ErrInvariantBreach, inc.Phase)
	}
}

// finish releases the incident's admission slot, forgets its checkpoint,
// and notifies on the terminal outcome.
func (o *Orchestrator) finish(ctx context.Context, inc *incident.Incident) {
	o.admission.Release(inc.ID)
	if err := o.leases.ForgetCheckpoint(ctx, inc.ID); err != nil {
		slog.Warn("forgetting checkpoint failed", "incident_id", inc.ID, "error", err)
	}
	if o.notifier == nil {
		return
	}
	switch inc.Phase {
	case incident.PhaseResolved:
		o.notifier.NotifyResolved(ctx, inc)
	case incident.PhaseEscalated:
		o.notifier.NotifyEscalated(ctx, inc, inc.EscalationReason)
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, inc *incident.Incident) error {
	return o.leases.SaveCheckpoint(ctx, Checkpoint{
		IncidentID: inc.ID,
		Phase:      inc.Phase,
		Version:    inc.Version,
		UpdatedAt:  time.Now(),
	}, o.cpTTL)
}

// startLeaseRenewal runs a background renewal loop at half the lease TTL
// so a slow phase step doesn't let another instance reclaim the incident
// out from under it; the same session-heartbeat shape used elsewhere in
// this codebase, renewing a Redis lease instead of touching a
// last_interaction_at column.
func (o *Orchestrator) startLeaseRenewal(ctx context.Context, incidentID string) (stop func()) {
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.leaseTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := o.leases.Renew(ctx, incidentID, o.ownerID, o.leaseTTL); err != nil {
					slog.Warn("lease renewal failed", "incident_id", incidentID, "error", err)
				}
			}
		}
	}()
	return func() { close(stopCh) }
}
