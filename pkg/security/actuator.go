package security

import "context"

// Actuator performs a validated action once the Gate has cleared it. A
// production actuator and its credential broker are external dependencies:
// the core only ever holds a CredentialHandle by value and calls through
// this interface, never touching the underlying secret or execution
// mechanics.
type Actuator interface {
	Execute(ctx context.Context, actionID string, payload map[string]any, handle CredentialHandle) error
}

// RollbackActuator is the optional extension an Actuator implements when it
// can also undo a previously executed action.
type RollbackActuator interface {
	Actuator
	Rollback(ctx context.Context, actionID string) error
}
