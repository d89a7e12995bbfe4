package types

import "time"

// Handle identifies an order accepted by a broker.
type Handle string

type FillStatus string

const (
	FillStatusPending   FillStatus = "PENDING"
	FillStatusFilled    FillStatus = "FILLED"
	FillStatusCancelled FillStatus = "CANCELLED"
	FillStatusRejected  FillStatus = "REJECTED"
)

// FillState is the broker's view of a submitted order.
type FillState struct {
	Handle       Handle     `yaml:"handle" json:"handle"`
	Status       FillStatus `yaml:"status" json:"status"`
	FilledQty    float64    `yaml:"filled_qty" json:"filled_qty"`
	AveragePrice float64    `yaml:"average_price" json:"average_price"`
	Fee          float64    `yaml:"fee" json:"fee"`
	FilledAt     time.Time  `yaml:"filled_at" json:"filled_at"`
	// Message carries the broker's rejection reason, if any.
	Message string `yaml:"message" json:"message"`
}

// IsTerminal reports whether the state will not change any more.
func (f FillState) IsTerminal() bool {
	return f.Status == FillStatusFilled || f.Status == FillStatusCancelled || f.Status == FillStatusRejected
}
