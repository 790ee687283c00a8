// Package notify delivers terminal-incident notifications to Slack. It
// implements pkg/orchestrator.Notifier structurally; Service is nil-safe
// throughout so a deployment with Slack disabled never has to special-case
// a nil notifier at every call site.
package notify

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api       *goslack.Client
	channelID string
}

// NewClient builds a Client posting to channelID with token.
func NewClient(token, channelID string) *Client {
	return &Client{api: goslack.New(token), channelID: channelID}
}

// NewClientWithAPIURL builds a Client targeting a custom API URL, for
// testing against a mock server.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return &Client{api: goslack.New(token, goslack.OptionAPIURL(apiURL)), channelID: channelID}
}

// PostMessage sends blocks to the configured channel within timeout.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
