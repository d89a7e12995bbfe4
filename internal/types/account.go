package types

// AccountInfo represents the current account state including balance, equity, and P&L information.
type AccountInfo struct {
	// Balance is the current cash balance (excluding unrealized P&L)
	Balance float64 `json:"balance" yaml:"balance"`
	// Equity is the total account value (balance + unrealized P&L)
	Equity float64 `json:"equity" yaml:"equity"`
	// BuyingPower is the available amount for new purchases
	BuyingPower float64 `json:"buying_power" yaml:"buying_power"`
	// RealizedPnL is the total realized profit/loss from closed positions
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// UnrealizedPnL is the total unrealized profit/loss from open positions
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// TotalFees is the total fees paid
	TotalFees float64 `json:"total_fees" yaml:"total_fees"`
}
