package api

// ActionResponse is the envelope every state-changing endpoint returns.
// Exactly one of Message or ErrMessage is set depending on Success.
type ActionResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	ErrMessage string `json:"error,omitempty"`
}

// Err returns a non-nil error when the backend rejected the action.
func (r *ActionResponse) Err() error {
	if r.Success {
		return nil
	}
	if r.ErrMessage != "" {
		return &ActionError{Reason: r.ErrMessage}
	}
	return &ActionError{Reason: "action failed"}
}

// ActionError is a backend-level rejection (HTTP 200 with success=false).
type ActionError struct {
	Reason string
}

func (e *ActionError) Error() string {
	return "action rejected: " + e.Reason
}

// TradeRequest asks the backend to open a position.
type TradeRequest struct {
	Token        string  `json:"token"`
	EntryPrice   float64 `json:"entry_price"`
	Size         float64 `json:"size"`
	MarketCap    string  `json:"market_cap,omitempty"`
	Holders      int     `json:"holders,omitempty"`
	Liquidity    float64 `json:"liquidity,omitempty"`
	BuySellRatio float64 `json:"buy_sell_ratio,omitempty"`
}

// PositionUpdateRequest modifies an existing position.
type PositionUpdateRequest struct {
	PositionID string  `json:"position_id"`
	Action     string  `json:"action,omitempty"` // e.g. "TAKE_PROFIT", "STOP_LOSS"
	Size       float64 `json:"size,omitempty"`
}

// HealthResponse from GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}
