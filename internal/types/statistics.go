package types

import "time"

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL. Sum of every closing fill's pnl minus opening fees.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Unrealized PnL of the open position at the last observed price.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// Total PnL. By adding RealizedPnL and UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// Maximum loss. Find all realized pnl's minimum value.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Maximum profit. Find all realized pnl's maximum value.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	// Count of all fills.
	NumberOfTrades int `yaml:"number_of_trades" json:"number_of_trades"`
	// Count of closing fills with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	// Count of closing fills with negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	// Win rate over closing fills.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Maximum drawdown of realized pnl.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

type TradeStats struct {
	// Result of all trades.
	TradeResult TradeResult `yaml:"trade_result" json:"trade_result"`
	// Total fees.
	TotalFees float64 `yaml:"total_fees" json:"total_fees"`
	// Holding time of all closing trades.
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
	// PnL of all trades.
	TradePnl TradePnl `yaml:"trade_pnl" json:"trade_pnl"`
	// BarsProcessed is the number of default-interval closes observed.
	BarsProcessed int `yaml:"bars_processed" json:"bars_processed"`
	// Exposure is the fraction of processed bars with an open position.
	Exposure float64 `yaml:"exposure" json:"exposure"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"time"`
	Equity float64   `yaml:"equity" json:"equity"`
}

// Report is the accumulated state a report sink persists.
type Report struct {
	// ID is the unique identifier for this report.
	ID string `yaml:"id" json:"id"`
	// Name is the display name of the strategy that produced it.
	Name string `yaml:"name" json:"name"`
	// Timestamp is when the report was produced.
	Timestamp time.Time     `yaml:"timestamp" json:"timestamp"`
	Stats     TradeStats    `yaml:"stats" json:"stats"`
	Fitness   float64       `yaml:"fitness" json:"fitness"`
	Trades    []Trade       `yaml:"-" json:"-"`
	Equity    []EquityPoint `yaml:"-" json:"-"`
}
