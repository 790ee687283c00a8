package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

const maxBlockTextLength = 2900

func truncate(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}

func section(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

// BuildResolvedMessage renders the Block Kit payload for a Resolved
// terminal notification.
func BuildResolvedMessage(inc *incident.Incident) []goslack.Block {
	header := fmt.Sprintf("%s *Incident %s resolved* (%s)", ":white_check_mark:", inc.ID, inc.Severity)
	blocks := []goslack.Block{section(header)}

	if decision, ok := latestDecisionOf(inc); ok {
		detail := fmt.Sprintf("Action `%s` applied via %s (score %.2f)%s",
			decision.ActionID, decision.Method, decision.AggregateScore, degradedSuffix(decision.Degraded))
		blocks = append(blocks, section(truncate(detail)))
	}

	return blocks
}

// BuildEscalatedMessage renders the Block Kit payload for an Escalated
// terminal notification.
func BuildEscalatedMessage(inc *incident.Incident, reason string) []goslack.Block {
	header := fmt.Sprintf("%s *Incident %s escalated to a human operator* (%s)", ":rotating_light:", inc.ID, inc.Severity)
	blocks := []goslack.Block{section(header)}

	if reason != "" {
		blocks = append(blocks, section(fmt.Sprintf("*Reason:*\n%s", truncate(reason))))
	}
	return blocks
}

func latestDecisionOf(inc *incident.Incident) (incident.ConsensusDecision, bool) {
	if len(inc.ConsensusHistory) == 0 {
		return incident.ConsensusDecision{}, false
	}
	return inc.ConsensusHistory[len(inc.ConsensusHistory)-1], true
}

func degradedSuffix(degraded bool) string {
	if degraded {
		return " — degraded (partial agent participation)"
	}
	return ""
}
