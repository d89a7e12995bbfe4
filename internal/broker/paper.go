package broker

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-chain/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/internal/utils"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaperBrokerConfig configures a PaperBroker.
type PaperBrokerConfig struct {
	InitialBalance   float64
	Commission       commission_fee.CommissionFee
	DecimalPrecision int
	// AllowShort lets sells exceed the holding. When false, sells are capped to the holding.
	AllowShort bool
}

type paperOrder struct {
	intent types.OrderIntent
	state  types.FillState
	// bars is the number of bars seen for the symbol when the order was submitted.
	bars int
}

// PaperBroker is an in-memory broker for backtests.
//
// Market orders fill at the open of the next bar of their symbol. Limit buys fill once
// the bar trades at or below the limit (at the open if it gapped through), limit sells
// once it trades at or above the limit. Cash is checked when the order fills; an order
// the account cannot pay for is rejected.
type PaperBroker struct {
	mu     sync.Mutex
	config PaperBrokerConfig
	log    *logger.Logger

	balance  decimal.Decimal
	fees     decimal.Decimal
	holdings map[string]float64
	costs    map[string]decimal.Decimal
	realized decimal.Decimal

	bars     map[string]types.MarketData
	barCount map[string]int

	orders  map[types.Handle]*paperOrder
	pending []types.Handle
}

// NewPaperBroker creates a paper broker.
func NewPaperBroker(config PaperBrokerConfig, log *logger.Logger) *PaperBroker {
	if config.Commission == nil {
		config.Commission = commission_fee.NewZeroCommissionFee()
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PaperBroker{
		config:   config,
		log:      log,
		balance:  decimal.NewFromFloat(config.InitialBalance),
		fees:     decimal.Zero,
		holdings: map[string]float64{},
		costs:    map[string]decimal.Decimal{},
		realized: decimal.Zero,
		bars:     map[string]types.MarketData{},
		barCount: map[string]int{},
		orders:   map[types.Handle]*paperOrder{},
	}
}

// Submit implements Broker.
func (b *PaperBroker) Submit(ctx context.Context, intent types.OrderIntent) (types.Handle, error) {
	if err := intent.Validate(); err != nil {
		return "", err
	}

	quantity := utils.RoundToDecimalPrecision(intent.Quantity, b.config.DecimalPrecision)
	if quantity <= 0 {
		return "", errors.Newf(errors.ErrCodeOrderFailed,
			"order quantity %f is zero after rounding to %d decimals", intent.Quantity, b.config.DecimalPrecision)
	}

	intent.Quantity = quantity

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.bars[intent.Symbol]; !ok {
		return "", errors.Newf(errors.ErrCodeMarketDataMissing, "no market data for %s", intent.Symbol)
	}

	handle := types.Handle(uuid.New().String())
	b.orders[handle] = &paperOrder{
		intent: intent,
		state: types.FillState{
			Handle: handle,
			Status: types.FillStatusPending,
		},
		bars: b.barCount[intent.Symbol],
	}
	b.pending = append(b.pending, handle)

	b.log.Debug("Order accepted",
		zap.String("handle", string(handle)),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("type", string(intent.OrderType)),
		zap.Float64("quantity", intent.Quantity),
	)

	return handle, nil
}

// Cancel implements Broker.
func (b *PaperBroker) Cancel(ctx context.Context, handle types.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[handle]
	if !ok {
		return errors.Newf(errors.ErrCodeHandleNotFound, "order %s not found", handle)
	}

	if order.state.IsTerminal() {
		return nil
	}

	order.state.Status = types.FillStatusCancelled
	b.removePending(handle)

	return nil
}

// FillState implements Broker.
func (b *PaperBroker) FillState(ctx context.Context, handle types.Handle) (types.FillState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[handle]
	if !ok {
		return types.FillState{}, errors.Newf(errors.ErrCodeHandleNotFound, "order %s not found", handle)
	}

	return order.state, nil
}

// UpdateMarketData records a new bar and fills the pending orders it reaches.
func (b *PaperBroker) UpdateMarketData(bar types.MarketData) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bars[bar.Symbol] = bar
	b.barCount[bar.Symbol]++

	var remaining []types.Handle

	for _, handle := range b.pending {
		order := b.orders[handle]
		if order.intent.Symbol != bar.Symbol || order.bars >= b.barCount[bar.Symbol] {
			remaining = append(remaining, handle)
			continue
		}

		price, ok := fillPrice(order.intent, bar)
		if !ok {
			remaining = append(remaining, handle)
			continue
		}

		b.fill(order, price, bar)
	}

	b.pending = remaining
}

// AccountInfo implements AccountReader.
func (b *PaperBroker) AccountInfo() types.AccountInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.balance
	unrealized := decimal.Zero

	for symbol, qty := range b.holdings {
		bar, ok := b.bars[symbol]
		if !ok || qty == 0 {
			continue
		}

		value := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(bar.Close))
		equity = equity.Add(value)
		unrealized = unrealized.Add(value.Sub(b.costs[symbol]))
	}

	info := types.AccountInfo{}
	info.Balance, _ = b.balance.Float64()
	info.Equity, _ = equity.Float64()
	info.BuyingPower = math.Max(info.Balance, 0)
	info.RealizedPnL, _ = b.realized.Float64()
	info.UnrealizedPnL, _ = unrealized.Float64()
	info.TotalFees, _ = b.fees.Float64()

	return info
}

// Holding returns the quantity held in symbol. Negative when short.
func (b *PaperBroker) Holding(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.holdings[symbol]
}

func fillPrice(intent types.OrderIntent, bar types.MarketData) (float64, bool) {
	switch intent.OrderType {
	case types.OrderTypeMarket:
		return bar.Open, bar.Open > 0
	case types.OrderTypeLimit:
		if intent.Side == types.PurchaseTypeBuy {
			if bar.Open > 0 && bar.Open <= intent.Price {
				return bar.Open, true
			}

			return intent.Price, bar.Low > 0 && bar.Low <= intent.Price
		}

		if bar.Open >= intent.Price {
			return bar.Open, true
		}

		return intent.Price, bar.High >= intent.Price
	default:
		return 0, false
	}
}

func (b *PaperBroker) fill(order *paperOrder, price float64, bar types.MarketData) {
	intent := order.intent
	quantity := intent.Quantity
	held := b.holdings[intent.Symbol]

	if intent.Side == types.PurchaseTypeSell && !b.config.AllowShort {
		available := utils.RoundToDecimalPrecision(math.Max(held, 0), b.config.DecimalPrecision)
		if available <= 0 {
			b.reject(order, "no holding to sell")
			return
		}

		quantity = math.Min(quantity, available)
	}

	fee := decimal.NewFromFloat(b.config.Commission.Calculate(quantity, price))
	notional := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price))

	if intent.Side == types.PurchaseTypeBuy {
		cost := notional.Add(fee)
		if cost.GreaterThan(b.balance) {
			b.reject(order, "insufficient balance")
			return
		}

		b.balance = b.balance.Sub(cost)
		b.applyHolding(intent.Symbol, quantity, price)
	} else {
		b.balance = b.balance.Add(notional).Sub(fee)
		b.applyHolding(intent.Symbol, -quantity, price)
	}

	b.fees = b.fees.Add(fee)

	order.state.Status = types.FillStatusFilled
	order.state.FilledQty = quantity
	order.state.AveragePrice = price
	order.state.Fee, _ = fee.Float64()
	order.state.FilledAt = bar.Time

	b.log.Debug("Order filled",
		zap.String("handle", string(order.state.Handle)),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
	)
}

// applyHolding updates the holding and its cost basis. Realized pnl excludes fees.
func (b *PaperBroker) applyHolding(symbol string, signedQty float64, price float64) {
	held := decimal.NewFromFloat(b.holdings[symbol])
	fill := decimal.NewFromFloat(signedQty)
	cost := b.costs[symbol]
	next := held.Add(fill)

	if held.IsZero() || held.Sign() == fill.Sign() {
		b.costs[symbol] = cost.Add(fill.Mul(decimal.NewFromFloat(price)))
	} else {
		closing := decimal.Min(held.Abs(), fill.Abs())
		avg := cost.Div(held)
		// realized = closed quantity * (exit - entry) in the direction of the holding
		realized := closing.Mul(decimal.NewFromFloat(price).Sub(avg)).Mul(decimal.NewFromInt(int64(held.Sign())))
		b.realized = b.realized.Add(realized)

		switch {
		case next.IsZero():
			b.costs[symbol] = decimal.Zero
		case next.Sign() != held.Sign():
			b.costs[symbol] = next.Mul(decimal.NewFromFloat(price))
		default:
			b.costs[symbol] = avg.Mul(next)
		}
	}

	b.holdings[symbol], _ = next.Float64()
}

func (b *PaperBroker) reject(order *paperOrder, message string) {
	order.state.Status = types.FillStatusRejected
	order.state.Message = message

	b.log.Debug("Order rejected", zap.String("handle", string(order.state.Handle)), zap.String("reason", message))
}

func (b *PaperBroker) removePending(handle types.Handle) {
	for i, h := range b.pending {
		if h == handle {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return
		}
	}
}
