// Package ordermanager turns order intents into broker actions and tracks the
// resulting position.
package ordermanager

import (
	"context"
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const StageName = "OrderManager"

// TradeHook is called with the fill that opened or closed a position.
type TradeHook func(trade types.Trade)

type outstandingOrder struct {
	handle types.Handle
	intent types.OrderIntent
}

// OrderManager is the stage between the intent buckets and the broker. It never
// waits for a fill: submitted orders are reconciled on later events.
type OrderManager struct {
	stage  *chain.Stage
	broker broker.Broker

	mu          sync.Mutex
	outstanding []outstandingOrder
	positions   map[string]types.Position
	trades      []types.Trade

	onEnterTrade TradeHook
	onExitTrade  TradeHook
}

// New creates the order manager stage over a broker.
func New(b broker.Broker, log *logger.Logger) *OrderManager {
	om := &OrderManager{
		broker:    b,
		positions: map[string]types.Position{},
	}
	om.stage = chain.NewStage(StageName, om, log)

	return om
}

func (m *OrderManager) Stage() *chain.Stage {
	return m.stage
}

// SetHooks sets the callbacks fired when a position opens from flat or returns to flat.
func (m *OrderManager) SetHooks(onEnter TradeHook, onExit TradeHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onEnterTrade = onEnter
	m.onExitTrade = onExit
}

// Submit sends the intent to the broker and tracks the returned handle.
func (m *OrderManager) Submit(ctx context.Context, intent types.OrderIntent) (types.Handle, error) {
	if m.broker == nil {
		return "", errors.New(errors.ErrCodeOrderFailed, "order manager has no broker")
	}

	handle, err := m.broker.Submit(ctx, intent)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to submit intent %s", intent.ID)
	}

	m.mu.Lock()
	m.outstanding = append(m.outstanding, outstandingOrder{handle: handle, intent: intent})
	m.mu.Unlock()

	return handle, nil
}

// Cancel cancels an outstanding order.
func (m *OrderManager) Cancel(ctx context.Context, handle types.Handle) error {
	if m.broker == nil {
		return errors.New(errors.ErrCodeOrderFailed, "order manager has no broker")
	}

	if err := m.broker.Cancel(ctx, handle); err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to cancel order %s", handle)
	}

	m.mu.Lock()
	m.removeOutstanding(handle)
	m.mu.Unlock()

	return nil
}

// FillState asks the broker for the state of an order.
func (m *OrderManager) FillState(ctx context.Context, handle types.Handle) (types.FillState, error) {
	if m.broker == nil {
		return types.FillState{}, errors.New(errors.ErrCodeOrderFailed, "order manager has no broker")
	}

	return m.broker.FillState(ctx, handle)
}

// OnBeforeIntervalOpen reconciles fills and marks positions with the bar.
func (m *OrderManager) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	return m.onEvent(ctx, interval)
}

// OnBeforeIntervalClose reconciles fills and marks positions with the bar.
func (m *OrderManager) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	return m.onEvent(ctx, interval)
}

func (m *OrderManager) onEvent(ctx context.Context, interval types.Interval) (bool, error) {
	if err := m.Reconcile(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	if position, ok := m.positions[interval.Bar.Symbol]; ok {
		m.positions[interval.Bar.Symbol] = position.Mark(interval.Bar)
	}
	m.mu.Unlock()

	return true, nil
}

// Reconcile polls the broker for every outstanding order and applies terminal states.
func (m *OrderManager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	pending := append([]outstandingOrder(nil), m.outstanding...)
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	log := m.stage.Log()

	for _, order := range pending {
		state, err := m.broker.FillState(ctx, order.handle)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to read fill state of %s", order.handle)
		}

		switch state.Status {
		case types.FillStatusFilled:
			m.applyFill(order, state)
		case types.FillStatusCancelled, types.FillStatusRejected:
			log.Warn("Order did not fill",
				zap.String("handle", string(order.handle)),
				zap.String("status", string(state.Status)),
				zap.String("message", state.Message),
			)

			m.mu.Lock()
			m.removeOutstanding(order.handle)
			m.mu.Unlock()
		default:
			continue
		}
	}

	return nil
}

func (m *OrderManager) applyFill(order outstandingOrder, state types.FillState) {
	m.mu.Lock()

	signed := state.FilledQty
	if order.intent.Side == types.PurchaseTypeSell {
		signed = -signed
	}

	symbol := order.intent.Symbol
	previous, ok := m.positions[symbol]
	if !ok {
		previous = types.Position{Symbol: symbol}
	}

	next, closed := previous.Apply(signed, state.AveragePrice, state.FilledAt)
	m.positions[symbol] = next

	trade := types.Trade{
		Intent:        order.intent,
		Handle:        order.handle,
		ExecutedAt:    state.FilledAt,
		ExecutedQty:   state.FilledQty,
		ExecutedPrice: state.AveragePrice,
		Fee:           state.Fee,
		ClosedQty:     closed,
	}

	pnl := decimal.NewFromFloat(state.Fee).Neg()
	if closed != 0 {
		trade.EntryPrice = previous.AverageEntryPrice
		trade.OpenedAt = previous.OpenedAt
		pnl = pnl.Add(decimal.NewFromFloat(closed).Mul(
			decimal.NewFromFloat(state.AveragePrice).Sub(decimal.NewFromFloat(previous.AverageEntryPrice)),
		))
	}

	trade.PnL, _ = pnl.Float64()

	m.trades = append(m.trades, trade)
	m.removeOutstanding(order.handle)

	onEnter, onExit := m.onEnterTrade, m.onExitTrade
	m.mu.Unlock()

	m.stage.Log().Debug("Order filled",
		zap.String("handle", string(order.handle)),
		zap.String("symbol", symbol),
		zap.Float64("quantity", signed),
		zap.Float64("price", state.AveragePrice),
		zap.Float64("pnl", trade.PnL),
	)

	if !previous.IsFlat() && (next.IsFlat() || next.Quantity*previous.Quantity < 0) && onExit != nil {
		onExit(trade)
	}

	if !next.IsFlat() && (previous.IsFlat() || next.Quantity*previous.Quantity < 0) && onEnter != nil {
		onEnter(trade)
	}
}

func (m *OrderManager) removeOutstanding(handle types.Handle) {
	for i, o := range m.outstanding {
		if o.handle == handle {
			m.outstanding = append(m.outstanding[:i], m.outstanding[i+1:]...)
			return
		}
	}
}

// Position returns the net position in symbol.
func (m *OrderManager) Position(symbol string) types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	if position, ok := m.positions[symbol]; ok {
		return position
	}

	return types.Position{Symbol: symbol}
}

// Positions returns every open position ordered by symbol.
func (m *OrderManager) Positions() []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := make([]types.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if !p.IsFlat() {
			positions = append(positions, p)
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions
}

// Outstanding returns the handles of orders that have not reached a terminal state.
func (m *OrderManager) Outstanding() []types.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]types.Handle, 0, len(m.outstanding))
	for _, o := range m.outstanding {
		handles = append(handles, o.handle)
	}

	return handles
}

// DrainTrades returns the fills observed since the last call and forgets them.
func (m *OrderManager) DrainTrades() []types.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	trades := m.trades
	m.trades = nil

	return trades
}
