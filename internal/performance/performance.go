// Package performance accounts for the realized results of a strategy.
package performance

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/report"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const StageName = "Performance"

// TradeSource provides the fills and open positions of the strategy.
// The order manager implements it.
type TradeSource interface {
	DrainTrades() []types.Trade
	Positions() []types.Position
}

// ProfitLossFunc overrides the profit and loss attributed to a fill.
type ProfitLossFunc func(trade types.Trade) float64

// FitnessFunc scores a run for optimization.
type FitnessFunc func(stats types.TradeStats) float64

type Option func(p *Performance)

// WithSink sets the report sink used by WriteReport.
func WithSink(sink report.Sink) Option {
	return func(p *Performance) {
		p.sink = sink
	}
}

// WithProfitLoss overrides how the profit and loss of a fill is computed.
func WithProfitLoss(fn ProfitLossFunc) Option {
	return func(p *Performance) {
		p.profitLoss = fn
	}
}

// WithFitness overrides the fitness score. The default is the total pnl.
func WithFitness(fn FitnessFunc) Option {
	return func(p *Performance) {
		p.fitness = fn
	}
}

// WithInitialCapital sets the capital the equity curve starts from.
func WithInitialCapital(capital float64) Option {
	return func(p *Performance) {
		p.initialCapital = capital
	}
}

// Performance is the stage that accumulates trade statistics. It owns a set of child
// metric stages which it dispatches itself after accounting for new fills; the
// children are not nodes of the strategy chain.
type Performance struct {
	stage *chain.Stage
	log   *logger.Logger

	mu             sync.Mutex
	source         TradeSource
	sink           report.Sink
	profitLoss     ProfitLossFunc
	fitness        FitnessFunc
	initialCapital float64

	acc        *accumulator
	trades     []types.Trade
	lastPrices map[string]float64
	equity     []types.EquityPoint
	bars       int
	exposed    int

	children []*chain.Stage
}

// New creates the performance stage with the equity curve and exposure children.
func New(log *logger.Logger, opts ...Option) *Performance {
	if log == nil {
		log = logger.NewNopLogger()
	}

	p := &Performance{
		log:        log,
		acc:        newAccumulator(),
		lastPrices: map[string]float64{},
	}
	p.stage = chain.NewStage(StageName, p, log)

	for _, opt := range opts {
		opt(p)
	}

	p.children = []*chain.Stage{
		chain.NewStage(EquityCurveName, &equityCurve{perf: p}, log),
		chain.NewStage(ExposureName, &exposure{perf: p}, log),
	}

	return p
}

func (p *Performance) Stage() *chain.Stage {
	return p.stage
}

// Bind sets the source of fills and positions.
func (p *Performance) Bind(source TradeSource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = source
}

// SetSink replaces the report sink.
func (p *Performance) SetSink(sink report.Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sink = sink
}

// AddChild adds a metric stage dispatched after the built-in accounting.
func (p *Performance) AddChild(stage *chain.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stage.SetOwner(p.stage.Owner())
	p.children = append(p.children, stage)
}

// Children returns the owned child stages.
func (p *Performance) Children() []*chain.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*chain.Stage(nil), p.children...)
}

// RemoveChildren detaches every child stage: owners are cleared and children that
// implement io.Closer are closed.
func (p *Performance) RemoveChildren() error {
	p.mu.Lock()
	children := p.children
	p.children = nil
	p.mu.Unlock()

	var firstErr error

	for _, child := range children {
		child.SetOwner("")

		closer, ok := child.Handler().(io.Closer)
		if !ok {
			continue
		}

		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// SetOwner names the stage and its children after the owning strategy.
func (p *Performance) SetOwner(owner string) {
	p.stage.SetOwner(owner)

	for _, child := range p.Children() {
		child.SetOwner(owner)
	}
}

// OnBeforeIntervalOpen collects new fills and runs the children.
func (p *Performance) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	p.collect()
	p.mark(interval.Bar.Symbol, interval.Bar.Open)

	return p.dispatchChildren(ctx, chain.EventIntervalOpen, interval)
}

// OnBeforeIntervalClose collects new fills and runs the children.
func (p *Performance) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	p.collect()
	p.mark(interval.Bar.Symbol, interval.Bar.Close)

	return p.dispatchChildren(ctx, chain.EventIntervalClose, interval)
}

func (p *Performance) dispatchChildren(ctx context.Context, event chain.Event, interval types.Interval) (bool, error) {
	for _, child := range p.Children() {
		handler := child.Handler()
		if handler == nil {
			continue
		}

		var (
			proceed bool
			err     error
		)

		if event == chain.EventIntervalOpen {
			proceed, err = handler.OnBeforeIntervalOpen(ctx, interval)
		} else {
			proceed, err = handler.OnBeforeIntervalClose(ctx, interval)
		}

		if err != nil {
			return false, errors.Wrapf(errors.ErrCodeDispatch, err, "performance child %s failed", child.FullName())
		}

		if !proceed {
			return false, nil
		}
	}

	return true, nil
}

func (p *Performance) mark(symbol string, price float64) {
	if symbol == "" || price <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastPrices[symbol] = price
}

// collect drains new fills from the source into the accumulator.
func (p *Performance) collect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		return
	}

	for _, trade := range p.source.DrainTrades() {
		pnl := trade.PnL
		if p.profitLoss != nil {
			pnl = p.profitLoss(trade)
			trade.PnL = pnl
		}

		p.acc.record(trade, pnl)
		p.trades = append(p.trades, trade)

		p.log.Debug("Trade recorded",
			zap.String("handle", string(trade.Handle)),
			zap.Float64("pnl", pnl),
			zap.Int("total_trades", p.acc.totalTrades),
		)
	}
}

func (p *Performance) unrealizedLocked() float64 {
	if p.source == nil {
		return 0
	}

	total := decimal.Zero
	for _, position := range p.source.Positions() {
		total = total.Add(decimal.NewFromFloat(position.UnrealizedPnL(p.lastPrices[position.Symbol])))
	}

	result, _ := total.Float64()

	return result
}

func (p *Performance) statsLocked() types.TradeStats {
	stats := p.acc.stats(p.unrealizedLocked())
	stats.BarsProcessed = p.bars

	if p.bars > 0 {
		stats.Exposure = float64(p.exposed) / float64(p.bars)
	}

	return stats
}

// Stats returns the statistics accumulated so far.
func (p *Performance) Stats() types.TradeStats {
	p.collect()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.statsLocked()
}

// Fitness scores the run.
func (p *Performance) Fitness() float64 {
	stats := p.Stats()

	p.mu.Lock()
	fitness := p.fitness
	p.mu.Unlock()

	if fitness != nil {
		return fitness(stats)
	}

	return stats.TradePnl.TotalPnL
}

// Trades returns every recorded fill.
func (p *Performance) Trades() []types.Trade {
	p.collect()

	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]types.Trade(nil), p.trades...)
}

// EquityCurve returns the equity samples taken at each default-interval close.
func (p *Performance) EquityCurve() []types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]types.EquityPoint(nil), p.equity...)
}

// WriteReport writes the report of the strategy named name into folder.
// It returns false without error when no sink is configured.
func (p *Performance) WriteReport(name string, folder string) (bool, error) {
	fitness := p.Fitness()

	p.mu.Lock()
	sink := p.sink
	rep := types.Report{
		ID:        uuid.New().String(),
		Name:      name,
		Timestamp: time.Now(),
		Stats:     p.statsLocked(),
		Fitness:   fitness,
		Trades:    append([]types.Trade(nil), p.trades...),
		Equity:    append([]types.EquityPoint(nil), p.equity...),
	}
	p.mu.Unlock()

	if sink == nil {
		p.log.Debug("No report sink configured", zap.String("name", name))
		return false, nil
	}

	if err := sink.Write(folder, rep); err != nil {
		return false, errors.Wrapf(errors.ErrCodeReportFailed, err, "failed to write report %s", name)
	}

	p.log.Info("Report written",
		zap.String("name", name),
		zap.String("folder", folder),
		zap.Int("trades", len(rep.Trades)),
	)

	return true, nil
}

func (p *Performance) recordEquity(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity, _ := decimal.NewFromFloat(p.initialCapital).
		Add(p.acc.realizedPnL).
		Add(decimal.NewFromFloat(p.unrealizedLocked())).
		Float64()

	p.equity = append(p.equity, types.EquityPoint{Time: at, Equity: equity})
}

func (p *Performance) recordExposure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bars++

	if p.source != nil && len(p.source.Positions()) > 0 {
		p.exposed++
	}
}
