package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a fill observed by the order manager.
type Trade struct {
	Intent        OrderIntent `yaml:"intent" json:"intent"`
	Handle        Handle      `yaml:"handle" json:"handle"`
	ExecutedAt    time.Time   `yaml:"executed_at" json:"executed_at"`
	ExecutedQty   float64     `yaml:"executed_qty" json:"executed_qty"`
	ExecutedPrice float64     `yaml:"executed_price" json:"executed_price"`
	// Fee is the fee for this trade
	Fee float64 `yaml:"fee" json:"fee"`
	// ClosedQty is the signed position quantity this fill closed (positive when a long
	// was reduced, negative when a short was reduced). Zero for opening fills.
	ClosedQty float64 `yaml:"closed_qty" json:"closed_qty"`
	// EntryPrice is the average entry price of the position the fill reduced.
	EntryPrice float64 `yaml:"entry_price" json:"entry_price"`
	// PnL is the realized profit and loss of the fill, fee included.
	// For example, you hold 300 shares at $100.00 average entry price
	// and sell 100 shares at $110.00 with a $1 fee.
	// Then the PnL is (110.00-100.00)*100 - 1 = $999.
	// Opening fills carry only the negative fee.
	PnL float64 `yaml:"pnl" json:"pnl"`
	// OpenedAt is when the reduced position was opened. Zero for opening fills.
	OpenedAt time.Time `yaml:"opened_at" json:"opened_at"`
}

// IsClosing reports whether the fill reduced an open position.
func (t Trade) IsClosing() bool {
	return t.ClosedQty != 0
}

// Position represents current holdings of a symbol. Quantity is signed:
// positive for long, negative for short.
type Position struct {
	Symbol            string    `yaml:"symbol" json:"symbol"`
	Quantity          float64   `yaml:"quantity" json:"quantity"`
	AverageEntryPrice float64   `yaml:"average_entry_price" json:"average_entry_price"`
	OpenedAt          time.Time `yaml:"opened_at" json:"opened_at"`
	// HighWaterMark and LowWaterMark are the extreme prices seen while the position is open.
	HighWaterMark float64 `yaml:"high_water_mark" json:"high_water_mark"`
	LowWaterMark  float64 `yaml:"low_water_mark" json:"low_water_mark"`
}

func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

func (p Position) IsLong() bool {
	return p.Quantity > 0
}

func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// UnrealizedPnL returns the open profit at the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.IsFlat() || price <= 0 {
		return 0
	}

	qty := decimal.NewFromFloat(p.Quantity)
	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(p.AverageEntryPrice))
	result, _ := qty.Mul(diff).Float64()

	return result
}

// Apply returns the position after a signed fill and the quantity of the previous
// position that the fill closed.
func (p Position) Apply(signedQty float64, price float64, at time.Time) (Position, float64) {
	if signedQty == 0 {
		return p, 0
	}

	current := decimal.NewFromFloat(p.Quantity)
	fill := decimal.NewFromFloat(signedQty)
	next := current.Add(fill)

	// Same direction (or opening from flat): blend the average entry price.
	if p.IsFlat() || current.Sign() == fill.Sign() {
		cost := current.Mul(decimal.NewFromFloat(p.AverageEntryPrice)).Add(fill.Mul(decimal.NewFromFloat(price)))
		avg, _ := cost.Div(next).Float64()
		qty, _ := next.Float64()

		result := p
		result.Quantity = qty
		result.AverageEntryPrice = avg

		if p.IsFlat() {
			result.OpenedAt = at
			result.HighWaterMark = price
			result.LowWaterMark = price
		}

		return result, 0
	}

	// Opposite direction: reduce, close or flip.
	var closed decimal.Decimal
	if fill.Abs().GreaterThanOrEqual(current.Abs()) {
		closed = current
	} else {
		closed = fill.Neg()
	}

	closedQty, _ := closed.Float64()
	qty, _ := next.Float64()

	result := p
	result.Quantity = qty

	switch {
	case next.IsZero():
		result = Position{Symbol: p.Symbol}
	case next.Sign() != current.Sign():
		// flipped: the remainder opens a new position at the fill price
		result.AverageEntryPrice = price
		result.OpenedAt = at
		result.HighWaterMark = price
		result.LowWaterMark = price
	}

	return result, closedQty
}

// Mark updates the water marks with a new bar.
func (p Position) Mark(bar MarketData) Position {
	if p.IsFlat() {
		return p
	}

	if bar.High > p.HighWaterMark {
		p.HighWaterMark = bar.High
	}

	if p.LowWaterMark == 0 || (bar.Low > 0 && bar.Low < p.LowWaterMark) {
		p.LowWaterMark = bar.Low
	}

	return p
}
