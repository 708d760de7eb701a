package api

import (
	"context"
	"fmt"
)

// ExecuteTrade submits a new trade. A nil error means the backend accepted
// the trade; rejections surface as *ActionError.
func (c *Client) ExecuteTrade(ctx context.Context, req TradeRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.post(ctx, "/api/execute-trade", req, &resp); err != nil {
		return nil, fmt.Errorf("execute trade %s: %w", req.Token, err)
	}
	if err := resp.Err(); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// UpdatePosition modifies an existing position.
func (c *Client) UpdatePosition(ctx context.Context, req PositionUpdateRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.post(ctx, "/api/update-position", req, &resp); err != nil {
		return nil, fmt.Errorf("update position %s: %w", req.PositionID, err)
	}
	if err := resp.Err(); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// EmergencyExit closes all open positions. The endpoint takes no payload.
func (c *Client) EmergencyExit(ctx context.Context) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.post(ctx, "/api/emergency-exit", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("emergency exit: %w", err)
	}
	if err := resp.Err(); err != nil {
		return &resp, err
	}
	return &resp, nil
}
