package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
)

type PurchaseType string

type OrderType string

// Direction is whether an intent opens or closes exposure.
type Direction string

// Timing is whether an intent is eligible in the current interval or the next one.
type Timing string

type TriggerDirection string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	DirectionEnter Direction = "ENTER"
	DirectionExit  Direction = "EXIT"
)

const (
	TimingNow  Timing = "NOW"
	TimingNext Timing = "NEXT"
)

const (
	// TriggerAbove fires once the bar trades at or above the price.
	TriggerAbove TriggerDirection = "ABOVE"
	// TriggerBelow fires once the bar trades at or below the price.
	TriggerBelow TriggerDirection = "BELOW"
)

const (
	OrderReasonStopLoss     string = "stop_loss"
	OrderReasonTakeProfit   string = "take_profit"
	OrderReasonTrailingStop string = "trailing_stop"
	OrderReasonStrategy     string = "strategy"
	OrderReasonGoFlat       string = "go_flat"
)

type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// Trigger is a price condition that must be met before an intent is submitted.
type Trigger struct {
	Direction TriggerDirection `yaml:"direction" json:"direction" validate:"required,oneof=ABOVE BELOW"`
	Price     float64          `yaml:"price" json:"price" validate:"gt=0"`
}

// Hit reports whether the bar satisfies the trigger.
func (t Trigger) Hit(bar MarketData) bool {
	switch t.Direction {
	case TriggerAbove:
		return bar.High >= t.Price
	case TriggerBelow:
		return bar.Low > 0 && bar.Low <= t.Price
	default:
		return false
	}
}

// OrderIntent is a trading decision waiting for execution.
type OrderIntent struct {
	ID     string       `yaml:"id" json:"id" csv:"id" validate:"required,uuid"`
	Symbol string       `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side   PurchaseType `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	// Quantity of zero means the current position size decides.
	Quantity  float64   `yaml:"quantity" json:"quantity" csv:"quantity" validate:"gte=0"`
	OrderType OrderType `yaml:"order_type" json:"order_type" csv:"order_type" validate:"required,oneof=MARKET LIMIT"`
	// Price is the limit price. Ignored for market orders.
	Price     float64   `yaml:"price" json:"price" csv:"price" validate:"gte=0"`
	Direction Direction `yaml:"direction" json:"direction" csv:"direction" validate:"required,oneof=ENTER EXIT"`
	Reason    Reason    `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	// Trigger is the optional price condition. None means submit unconditionally.
	Trigger   optional.Option[Trigger] `yaml:"trigger" json:"trigger" csv:"-"`
	CreatedAt time.Time                `yaml:"created_at" json:"created_at" csv:"created_at"`
}

// Validate validates the OrderIntent struct.
func (o *OrderIntent) Validate() error {
	validate := validator.New()

	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidIntent, "invalid order intent", err)
	}

	if o.OrderType == OrderTypeLimit && o.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidIntent, "limit intent %s requires a positive price", o.ID)
	}

	if o.Trigger.IsSome() {
		trigger := o.Trigger.Unwrap()
		if err := validate.Struct(trigger); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidIntent, "invalid trigger", err)
		}
	}

	return nil
}

// Triggered reports whether the intent may be submitted against the bar.
func (o *OrderIntent) Triggered(bar MarketData) bool {
	if o.Trigger.IsNone() {
		return true
	}

	return o.Trigger.Unwrap().Hit(bar)
}
