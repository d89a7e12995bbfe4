package orders

import (
	"context"
	"math"

	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

const (
	StageExitNow      = "ExitNow"
	StageEnterNow     = "EnterNow"
	StageExitNextBar  = "ExitNextBar"
	StageEnterNextBar = "EnterNextBar"
)

// Router submits intents and reports positions. The order manager implements it.
type Router interface {
	Submit(ctx context.Context, intent types.OrderIntent) (types.Handle, error)
	Position(symbol string) types.Position
}

// EvaluatorDeps are the collaborators of an evaluator stage.
type EvaluatorDeps struct {
	Router Router
	// Size returns the current default position size. Used for intents with a zero quantity.
	Size func() float64
}

// Evaluator is the stage that processes one intent bucket.
type Evaluator struct {
	stage     *chain.Stage
	direction types.Direction
	timing    types.Timing
	deps      EvaluatorDeps

	orders *Orders
	bucket *Bucket
}

// NewEvaluator creates the evaluator stage for the (direction, timing) bucket.
func NewEvaluator(direction types.Direction, timing types.Timing, deps EvaluatorDeps, log *logger.Logger) *Evaluator {
	e := &Evaluator{
		direction: direction,
		timing:    timing,
		deps:      deps,
	}
	e.stage = chain.NewStage(evaluatorName(direction, timing), e, log)

	return e
}

func evaluatorName(direction types.Direction, timing types.Timing) string {
	switch {
	case direction == types.DirectionExit && timing == types.TimingNow:
		return StageExitNow
	case direction == types.DirectionEnter && timing == types.TimingNow:
		return StageEnterNow
	case direction == types.DirectionExit:
		return StageExitNextBar
	default:
		return StageEnterNextBar
	}
}

func (e *Evaluator) Stage() *chain.Stage {
	return e.stage
}

func (e *Evaluator) Direction() types.Direction {
	return e.direction
}

func (e *Evaluator) Timing() types.Timing {
	return e.timing
}

func (e *Evaluator) bind(o *Orders, bucket *Bucket) error {
	if bucket.direction != e.direction || bucket.timing != e.timing {
		return errors.Newf(errors.ErrCodeDependencyViolation,
			"evaluator %s cannot serve the %s/%s bucket", e.stage.Name(), bucket.direction, bucket.timing)
	}

	e.orders = o
	e.bucket = bucket

	return nil
}

// OnBeforeIntervalOpen validates the queued intents.
func (e *Evaluator) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	e.validate()

	return true, nil
}

// OnBeforeIntervalClose submits the triggered now intents for the bar's symbol and
// expires the rest of them. Intents for other symbols wait for their own bar.
// Next-interval evaluators only validate.
func (e *Evaluator) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if e.timing == types.TimingNext {
		e.validate()
		return true, nil
	}

	if e.bucket == nil {
		return true, nil
	}

	if e.deps.Router == nil {
		return false, errors.Newf(errors.ErrCodeDependencyViolation, "evaluator %s has no order router", e.stage.Name())
	}

	symbol := interval.Bar.Symbol
	defer e.bucket.retain(func(intent types.OrderIntent) bool {
		return intent.Symbol != symbol
	})

	for _, intent := range e.bucket.Intents() {
		if intent.Symbol != symbol {
			continue
		}

		if err := e.submit(ctx, intent, interval.Bar); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (e *Evaluator) submit(ctx context.Context, intent types.OrderIntent, bar types.MarketData) error {
	log := e.stage.Log()

	if err := intent.Validate(); err != nil {
		log.Warn("Dropping invalid intent", zap.String("intent_id", intent.ID), zap.Error(err))
		return nil
	}

	if !intent.Triggered(bar) {
		log.Debug("Intent not triggered, expiring", zap.String("intent_id", intent.ID), zap.String("symbol", intent.Symbol))
		return nil
	}

	switch e.direction {
	case types.DirectionExit:
		position := e.deps.Router.Position(intent.Symbol)
		if position.IsFlat() {
			log.Debug("No position to exit", zap.String("intent_id", intent.ID), zap.String("symbol", intent.Symbol))
			return nil
		}

		open := math.Abs(position.Quantity) - e.orders.exitingQuantity(intent.Symbol)
		if open <= 0 {
			log.Debug("Position already exiting", zap.String("intent_id", intent.ID), zap.String("symbol", intent.Symbol))
			return nil
		}

		if intent.Quantity == 0 || intent.Quantity > open {
			intent.Quantity = open
		}

		if position.IsLong() {
			intent.Side = types.PurchaseTypeSell
		} else {
			intent.Side = types.PurchaseTypeBuy
		}

		e.orders.markExiting(intent.Symbol, intent.Quantity)
	case types.DirectionEnter:
		if e.orders.exitingQuantity(intent.Symbol) > 0 {
			log.Debug("Exit pending, skipping enter", zap.String("intent_id", intent.ID), zap.String("symbol", intent.Symbol))
			return nil
		}

		if intent.Quantity == 0 && e.deps.Size != nil {
			intent.Quantity = e.deps.Size()
		}

		if intent.Quantity <= 0 {
			log.Warn("Position size is zero, dropping enter intent", zap.String("intent_id", intent.ID))
			return nil
		}
	}

	handle, err := e.deps.Router.Submit(ctx, intent)
	if err != nil {
		return err
	}

	log.Debug("Submitted intent",
		zap.String("intent_id", intent.ID),
		zap.String("handle", string(handle)),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
	)

	return nil
}

func (e *Evaluator) validate() {
	if e.bucket == nil {
		return
	}

	log := e.stage.Log()

	e.bucket.retain(func(intent types.OrderIntent) bool {
		if err := intent.Validate(); err != nil {
			log.Warn("Dropping invalid intent", zap.String("intent_id", intent.ID), zap.Error(err))
			return false
		}

		return true
	})
}
