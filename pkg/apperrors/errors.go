// Package apperrors centralizes the error taxonomy shared across the
// incident core. Components classify failures with errors.Is against the
// sentinel values here rather than inventing ad-hoc error strings, so a
// caller several layers up (the orchestrator, the CLI) can decide whether
// to retry, degrade, or escalate without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

// Transient upstream: retry through the fabric with backoff.
var (
	ErrThrottled       = errors.New("upstream throttled the request")
	ErrUpstreamTimeout = errors.New("upstream call timed out")
	ErrNetwork         = errors.New("network error calling upstream")
)

// Persistent upstream: fail fast, open the breaker, degrade the agent.
var (
	ErrUpstreamAuth   = errors.New("upstream rejected credentials")
	ErrUpstreamSchema = errors.New("upstream response violated the expected schema")
	ErrUpstreamClient = errors.New("upstream rejected the request (4xx)")
)

// Integrity violation: never retried silently; quarantine or escalate.
var (
	ErrChainBroken        = errors.New("event chain integrity check failed")
	ErrSignatureInvalid   = errors.New("agent identity signature invalid")
	ErrCorruptionDetected = errors.New("incident marked corrupted after replica disagreement")
)

// Logic violation: bug-equivalent; caller should escalate with full context.
var (
	ErrInvariantBreach  = errors.New("invariant breach")
	ErrUnknownActionID  = errors.New("action_id not present in whitelist")
	ErrUnknownEventKind = errors.New("event kind not recognized")
)

// Resource exhaustion: reject ingress with a backpressure signal.
var (
	ErrAdmissionCapExceeded = errors.New("admission cap exceeded")
	ErrMemoryPressure       = errors.New("memory pressure backpressure")
)

// Ordering / coordination errors raised by the event store and consensus engine.
var (
	ErrOrderingConflict          = errors.New("ordering conflict: sequence number already assigned")
	ErrNonDenseSequence          = errors.New("sequence number is not dense")
	ErrDuplicateIncident         = errors.New("duplicate incident for idempotency key")
	ErrAdmissionRejected         = errors.New("admission rejected: in-flight cap reached")
	ErrInsufficientTrustedAgents = errors.New("fewer than min_trusted agents remain after quarantine")
	ErrNotFound                  = errors.New("entity not found")
	ErrLeaseHeldByOther          = errors.New("incident lease held by another owner")
	ErrConsensusEscalate         = errors.New("consensus aggregate score below approval threshold")
)

// ValidationError wraps a field-specific validation failure. Components that
// need to name the offending field (config loader, security gate) return
// this instead of a bare sentinel.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError builds a *ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Kind classifies an error into a small taxonomy, independent of the
// exact sentinel value. Used by the orchestrator to decide retry vs degrade
// vs escalate without a long errors.Is chain at every call site.
type Kind string

const (
	KindTransientUpstream  Kind = "transient_upstream"
	KindPersistentUpstream Kind = "persistent_upstream"
	KindIntegrityViolation Kind = "integrity_violation"
	KindLogicViolation     Kind = "logic_violation"
	KindResourceExhaustion Kind = "resource_exhaustion"
	KindUnknown            Kind = "unknown"
)

// Classify maps err to its taxonomy Kind by walking the error chain.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrThrottled), errors.Is(err, ErrUpstreamTimeout), errors.Is(err, ErrNetwork):
		return KindTransientUpstream
	case errors.Is(err, ErrUpstreamAuth), errors.Is(err, ErrUpstreamSchema), errors.Is(err, ErrUpstreamClient):
		return KindPersistentUpstream
	case errors.Is(err, ErrChainBroken), errors.Is(err, ErrSignatureInvalid), errors.Is(err, ErrCorruptionDetected):
		return KindIntegrityViolation
	case errors.Is(err, ErrInvariantBreach), errors.Is(err, ErrUnknownActionID), errors.Is(err, ErrUnknownEventKind):
		return KindLogicViolation
	case errors.Is(err, ErrAdmissionCapExceeded), errors.Is(err, ErrMemoryPressure), errors.Is(err, ErrAdmissionRejected):
		return KindResourceExhaustion
	default:
		return KindUnknown
	}
}
