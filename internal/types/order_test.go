package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func validIntent() OrderIntent {
	return OrderIntent{
		ID:        uuid.New().String(),
		Symbol:    "BTCUSDT",
		Side:      PurchaseTypeBuy,
		Quantity:  1,
		OrderType: OrderTypeMarket,
		Direction: DirectionEnter,
		Reason:    Reason{Reason: OrderReasonStrategy, Message: "test"},
		Trigger:   optional.None[Trigger](),
		CreatedAt: time.Now(),
	}
}

func TestOrderIntentValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(o *OrderIntent)
		shouldError bool
	}{
		{
			name:        "valid market intent",
			mutate:      func(o *OrderIntent) {},
			shouldError: false,
		},
		{
			name:        "zero quantity defers to position size",
			mutate:      func(o *OrderIntent) { o.Quantity = 0 },
			shouldError: false,
		},
		{
			name:        "negative quantity",
			mutate:      func(o *OrderIntent) { o.Quantity = -1 },
			shouldError: true,
		},
		{
			name:        "missing symbol",
			mutate:      func(o *OrderIntent) { o.Symbol = "" },
			shouldError: true,
		},
		{
			name:        "invalid side",
			mutate:      func(o *OrderIntent) { o.Side = "HOLD" },
			shouldError: true,
		},
		{
			name:        "id is not a uuid",
			mutate:      func(o *OrderIntent) { o.ID = "abc" },
			shouldError: true,
		},
		{
			name: "limit without price",
			mutate: func(o *OrderIntent) {
				o.OrderType = OrderTypeLimit
				o.Price = 0
			},
			shouldError: true,
		},
		{
			name: "limit with price",
			mutate: func(o *OrderIntent) {
				o.OrderType = OrderTypeLimit
				o.Price = 100
			},
			shouldError: false,
		},
		{
			name: "valid trigger",
			mutate: func(o *OrderIntent) {
				o.Trigger = optional.Some(Trigger{Direction: TriggerAbove, Price: 101})
			},
			shouldError: false,
		},
		{
			name: "trigger without price",
			mutate: func(o *OrderIntent) {
				o.Trigger = optional.Some(Trigger{Direction: TriggerBelow, Price: 0})
			},
			shouldError: true,
		},
		{
			name: "trigger with unknown direction",
			mutate: func(o *OrderIntent) {
				o.Trigger = optional.Some(Trigger{Direction: "SIDEWAYS", Price: 10})
			},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := validIntent()
			tt.mutate(&intent)

			err := intent.Validate()
			if tt.shouldError {
				assert.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidIntent))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderIntentTriggered(t *testing.T) {
	bar := MarketData{Open: 100, High: 105, Low: 95, Close: 102}

	intent := validIntent()
	assert.True(t, intent.Triggered(bar), "intents without a trigger always fire")

	intent.Trigger = optional.Some(Trigger{Direction: TriggerAbove, Price: 105})
	assert.True(t, intent.Triggered(bar))

	intent.Trigger = optional.Some(Trigger{Direction: TriggerAbove, Price: 106})
	assert.False(t, intent.Triggered(bar))

	intent.Trigger = optional.Some(Trigger{Direction: TriggerBelow, Price: 95})
	assert.True(t, intent.Triggered(bar))

	intent.Trigger = optional.Some(Trigger{Direction: TriggerBelow, Price: 94})
	assert.False(t, intent.Triggered(bar))

	assert.False(t, intent.Triggered(MarketData{}), "an empty bar never satisfies a below trigger")
}

func TestIntervalDefault(t *testing.T) {
	assert.True(t, Interval{}.IsDefault())
	assert.False(t, Interval{Timeframe: "1m"}.IsDefault())
	assert.Equal(t, "1d", Interval{}.WithDefault("1d").Timeframe)
	assert.Equal(t, "1m", Interval{Timeframe: "1m"}.WithDefault("1d").Timeframe)
}

func TestFillStateIsTerminal(t *testing.T) {
	assert.False(t, FillState{Status: FillStatusPending}.IsTerminal())
	assert.True(t, FillState{Status: FillStatusFilled}.IsTerminal())
	assert.True(t, FillState{Status: FillStatusCancelled}.IsTerminal())
	assert.True(t, FillState{Status: FillStatusRejected}.IsTerminal())
}
