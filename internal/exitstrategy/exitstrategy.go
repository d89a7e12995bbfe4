// Package exitstrategy closes positions that hit a protective level.
package exitstrategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/orders"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"go.uber.org/zap"
)

const StageName = "ExitStrategy"

// PositionSource lists the open positions. The order manager implements it.
type PositionSource interface {
	Positions() []types.Position
}

// Config holds the protective levels in percent. Zero disables a level.
type Config struct {
	StopLossPercent     float64 `yaml:"stop_loss_percent" json:"stop_loss_percent" validate:"gte=0,lt=100" jsonschema:"title=Stop Loss,description=Loss from the average entry price in percent that closes the position,minimum=0"`
	TakeProfitPercent   float64 `yaml:"take_profit_percent" json:"take_profit_percent" validate:"gte=0" jsonschema:"title=Take Profit,description=Gain from the average entry price in percent that closes the position,minimum=0"`
	TrailingStopPercent float64 `yaml:"trailing_stop_percent" json:"trailing_stop_percent" validate:"gte=0,lt=100" jsonschema:"title=Trailing Stop,description=Retracement from the best price in percent that closes the position,minimum=0"`
}

// Enabled reports whether any level is set.
func (c Config) Enabled() bool {
	return c.StopLossPercent > 0 || c.TakeProfitPercent > 0 || c.TrailingStopPercent > 0
}

// ExitStrategy is the stage that queues exit-now intents for positions whose bar
// crossed the stop loss, trailing stop or take profit level.
type ExitStrategy struct {
	stage  *chain.Stage
	config Config

	mu        sync.Mutex
	positions PositionSource
	orders    *orders.Orders
}

// New creates the exit strategy stage.
func New(config Config, log *logger.Logger) *ExitStrategy {
	e := &ExitStrategy{config: config}
	e.stage = chain.NewStage(StageName, e, log)

	return e
}

func (e *ExitStrategy) Stage() *chain.Stage {
	return e.stage
}

func (e *ExitStrategy) Config() Config {
	return e.config
}

// Bind sets the position source and the intent set the exits are queued in.
func (e *ExitStrategy) Bind(positions PositionSource, o *orders.Orders) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.positions = positions
	e.orders = o
}

func (e *ExitStrategy) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	return true, nil
}

// OnBeforeIntervalClose checks every open position of the bar's symbol.
func (e *ExitStrategy) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	e.mu.Lock()
	positions, o := e.positions, e.orders
	e.mu.Unlock()

	if positions == nil || o == nil || !e.config.Enabled() {
		return true, nil
	}

	bar := interval.Bar

	for _, position := range positions.Positions() {
		if position.Symbol != bar.Symbol {
			continue
		}

		reason, level := e.check(position.Mark(bar), bar.Close)
		if reason == "" {
			continue
		}

		message := fmt.Sprintf("%s at %.4f crossed %.4f", reason, bar.Close, level)
		if _, err := o.Exit().Now().Flatten(position.Symbol, reason, message); err != nil {
			return false, err
		}

		e.stage.Log().Debug("Exit queued",
			zap.String("symbol", position.Symbol),
			zap.String("reason", reason),
			zap.Float64("price", bar.Close),
			zap.Float64("level", level),
		)
	}

	return true, nil
}

// check returns the reason and the level crossed by price, or an empty reason.
// Stop loss wins over the trailing stop which wins over take profit.
func (e *ExitStrategy) check(position types.Position, price float64) (string, float64) {
	if position.IsFlat() || price <= 0 {
		return "", 0
	}

	entry := position.AverageEntryPrice

	if position.IsLong() {
		if e.config.StopLossPercent > 0 {
			if level := entry * (1 - e.config.StopLossPercent/100); price <= level {
				return types.OrderReasonStopLoss, level
			}
		}

		if e.config.TrailingStopPercent > 0 && position.HighWaterMark > 0 {
			if level := position.HighWaterMark * (1 - e.config.TrailingStopPercent/100); price <= level {
				return types.OrderReasonTrailingStop, level
			}
		}

		if e.config.TakeProfitPercent > 0 {
			if level := entry * (1 + e.config.TakeProfitPercent/100); price >= level {
				return types.OrderReasonTakeProfit, level
			}
		}

		return "", 0
	}

	if e.config.StopLossPercent > 0 {
		if level := entry * (1 + e.config.StopLossPercent/100); price >= level {
			return types.OrderReasonStopLoss, level
		}
	}

	if e.config.TrailingStopPercent > 0 && position.LowWaterMark > 0 {
		if level := position.LowWaterMark * (1 + e.config.TrailingStopPercent/100); price >= level {
			return types.OrderReasonTrailingStop, level
		}
	}

	if e.config.TakeProfitPercent > 0 {
		if level := entry * (1 - e.config.TakeProfitPercent/100); price <= level {
			return types.OrderReasonTakeProfit, level
		}
	}

	return "", 0
}
