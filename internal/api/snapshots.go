package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quantdegen/swarm-stream/internal/model"
)

// SnapshotPath maps a stream channel name to its REST snapshot path.
// Channel names use underscores on the wire, paths use hyphens.
func SnapshotPath(channel string) string {
	return "/api/" + strings.ReplaceAll(channel, "_", "-")
}

// ChannelSnapshot fetches the current snapshot for any channel as raw JSON.
// The poller uses this to refresh the mirror without knowing payload shapes.
func (c *Client) ChannelSnapshot(ctx context.Context, channel string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, SnapshotPath(channel), nil, &raw); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", channel, err)
	}
	return raw, nil
}

// PortfolioStatus fetches the portfolio overview snapshot.
func (c *Client) PortfolioStatus(ctx context.Context) (*model.PortfolioStatus, error) {
	var resp model.PortfolioStatus
	if err := c.get(ctx, "/api/portfolio-status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get portfolio status: %w", err)
	}
	return &resp, nil
}

// ActivePositions fetches the open-positions snapshot.
func (c *Client) ActivePositions(ctx context.Context) (*model.ActivePositions, error) {
	var resp model.ActivePositions
	if err := c.get(ctx, "/api/active-positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("get active positions: %w", err)
	}
	return &resp, nil
}

// SignalFeed fetches the trading-signal snapshot.
func (c *Client) SignalFeed(ctx context.Context) (*model.SignalFeed, error) {
	var resp model.SignalFeed
	if err := c.get(ctx, "/api/signal-feed", nil, &resp); err != nil {
		return nil, fmt.Errorf("get signal feed: %w", err)
	}
	return &resp, nil
}

// WhaleActivity fetches the whale-tracking snapshot.
func (c *Client) WhaleActivity(ctx context.Context) (*model.WhaleActivity, error) {
	var resp model.WhaleActivity
	if err := c.get(ctx, "/api/whale-activity", nil, &resp); err != nil {
		return nil, fmt.Errorf("get whale activity: %w", err)
	}
	return &resp, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return &resp, nil
}
