package model

import "encoding/json"

// -----------------------------------------------------------------------------
// Portfolio
// -----------------------------------------------------------------------------

// PortfolioStatus is the portfolio_status channel payload.
type PortfolioStatus struct {
	Overview         PortfolioOverview `json:"overview"`
	TradingStats     TradingStats      `json:"trading_stats"`
	PerformanceChart []float64         `json:"performance_chart"`
	RiskMetrics      RiskMetrics       `json:"risk_metrics"`
	LastUpdate       string            `json:"last_update"` // ISO 8601
}

// PortfolioOverview carries the display-formatted headline numbers.
type PortfolioOverview struct {
	TotalValue         string `json:"total_value"`         // "$1234.56"
	TotalPnL           string `json:"total_pnl"`           // "+$234.56"
	TotalPnLPercent    string `json:"total_pnl_percent"`   // "+23.5%"
	DailyPnL           string `json:"daily_pnl"`           // "+$12.34"
	MonthlyPerformance string `json:"monthly_performance"` // "+8.1%"
}

// TradingStats summarizes closed-trade outcomes.
type TradingStats struct {
	WinRate       string `json:"win_rate"` // "67.5%"
	TotalTrades   int    `json:"total_trades"`
	WinningTrades int    `json:"winning_trades"`
	LosingTrades  int    `json:"losing_trades"`
	BestTrade     string `json:"best_trade"`
	WorstTrade    string `json:"worst_trade"`
}

// RiskMetrics carries portfolio risk figures.
type RiskMetrics struct {
	SharpeRatio string `json:"sharpe_ratio"`
	MaxDrawdown string `json:"max_drawdown"`
	Volatility  string `json:"volatility"`
}

// -----------------------------------------------------------------------------
// Positions
// -----------------------------------------------------------------------------

// ActivePositions is the active_positions channel payload.
type ActivePositions struct {
	Positions        []Position `json:"positions"`
	ActiveCount      string     `json:"active_count"` // "3/5"
	TotalPL          float64    `json:"total_pl"`
	WinningPositions int        `json:"winning_positions"`
	LosingPositions  int        `json:"losing_positions"`
	LastUpdate       string     `json:"last_update"`
}

// Position is one open position as the backend renders it.
type Position struct {
	ID           string  `json:"id"`
	Token        string  `json:"token"`
	MarketCap    string  `json:"market_cap"`   // "$100K"
	EntryPrice   string  `json:"entry_price"`  // "$0.00001234"
	Size         string  `json:"size"`         // "$5.00"
	PLPercent    string  `json:"pl_percent"`   // "+30%"
	PLDollar     string  `json:"pl_dollar"`    // "+$1.50"
	TimeElapsed  string  `json:"time_elapsed"` // "12m"
	ActionButton string  `json:"action_button"`
	Status       string  `json:"status"`
	CurrentPrice float64 `json:"current_price"`
	ProfitClass  string  `json:"profit_class"` // "profit" or "loss"
}

// -----------------------------------------------------------------------------
// Signals
// -----------------------------------------------------------------------------

// SignalFeed is the signal_feed channel payload.
type SignalFeed struct {
	LiveSignals []Signal        `json:"live_signals"`
	SignalStats json.RawMessage `json:"signal_stats,omitempty"`
	LastUpdate  string          `json:"last_update"`
}

// Signal is one trading signal.
type Signal struct {
	Type       string  `json:"type"`
	Token      string  `json:"token"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"` // 0-100
	Priority   string  `json:"priority"`   // HIGH, MEDIUM, LOW
	Reasoning  string  `json:"reasoning"`
	TimeAgo    string  `json:"time_ago"`
	CreatedAt  string  `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Whale tracking
// -----------------------------------------------------------------------------

// WhaleActivity is the whale_activity channel payload.
type WhaleActivity struct {
	LiveTracking      WhaleTracking   `json:"live_tracking"`
	RecentActivity    []WhaleEvent    `json:"recent_activity"`
	TopPerformers     json.RawMessage `json:"top_performers,omitempty"`
	VolumeAnalysis    VolumeAnalysis  `json:"volume_analysis"`
	Alerts            json.RawMessage `json:"alerts,omitempty"`
	SmartMoneySignals json.RawMessage `json:"smart_money_signals,omitempty"`
	LastScan          string          `json:"last_scan"`
}

// WhaleTracking carries the headline tracking counters.
type WhaleTracking struct {
	WhalesActive    int    `json:"whales_active"`
	TotalTracked    int    `json:"total_tracked"`
	SmartMoneyCount int    `json:"smart_money_count"`
	SuccessRate     string `json:"success_rate"` // "85.0%"
}

// WhaleEvent is one observed large-wallet transaction.
type WhaleEvent struct {
	Action     string  `json:"action"`
	Token      string  `json:"token"`
	Amount     string  `json:"amount"`
	USDValue   string  `json:"usd_value"`
	TimeAgo    string  `json:"time_ago"`
	WalletType string  `json:"wallet_type"` // WHALE, SMART_MONEY
	WinRate    float64 `json:"win_rate"`
	PnL        string  `json:"pnl"`
	Contract   string  `json:"contract"`
}

// VolumeAnalysis summarizes aggregate whale flow.
type VolumeAnalysis struct {
	TotalVolume24h string `json:"total_volume_24h"` // "$2,400,000"
	BuySellRatio   string `json:"buy_sell_ratio"`   // "3.2:1"
	NetFlow        string `json:"net_flow"`         // "+$2.4M"
	DominantAction string `json:"dominant_action"`  // ACCUMULATION, DISTRIBUTION
}
