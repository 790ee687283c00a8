package notify

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/config"
	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Service delivers terminal-incident notifications to Slack. Nil-safe:
// every method is a no-op when the receiver is nil, so the orchestrator
// never has to special-case "notifications disabled".
type Service struct {
	client *Client
}

// NewService builds a Service from cfg, returning nil when Slack is
// disabled or its token environment variable is unset, so construction
// itself carries the nil-safety callers rely on.
func NewService(cfg *config.SlackConfig) *Service {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	token := os.Getenv(cfg.TokenEnv)
	if token == "" || cfg.Channel == "" {
		slog.Warn("slack notifications enabled but token or channel missing, disabling", "token_env", cfg.TokenEnv)
		return nil
	}
	return &Service{client: NewClient(token, cfg.Channel)}
}

// NewServiceWithClient builds a Service backed by a pre-built Client, for
// testing against a mock Slack server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{client: client}
}

// NotifyResolved posts a Resolved terminal notification. Fail-open: errors
// are logged, never returned, since a notification failure must never
// block or retry the incident that already reached a terminal phase.
func (s *Service) NotifyResolved(ctx context.Context, inc *incident.Incident) {
	if s == nil {
		return
	}
	blocks := BuildResolvedMessage(inc)
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		slog.Error("failed to send Slack resolved notification", "incident_id", inc.ID, "error", err)
	}
}

// NotifyEscalated posts an Escalated terminal notification. Fail-open, same
// as NotifyResolved.
func (s *Service) NotifyEscalated(ctx context.Context, inc *incident.Incident, reason string) {
	if s == nil {
		return
	}
	blocks := BuildEscalatedMessage(inc, reason)
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		slog.Error("failed to send Slack escalated notification", "incident_id", inc.ID, "error", err)
	}
}
