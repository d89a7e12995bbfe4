// Package strategy assembles the stage pipeline of a trading strategy and drives it
// with interval events.
//
// The pipeline built by New is
//
//	Performance -> PositionSize -> ExitStrategy -> Signal -> OrderManager -> {ExitNow, EnterNow, ExitNextBar, EnterNextBar}
//
// where each arrow is a dependency edge. ExitStrategy, PositionSize and Performance
// can be swapped at runtime; the swap keeps the position of the stage in the graph.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/broker/commission_fee"
	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/exitstrategy"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/ordermanager"
	"github.com/rxtech-lab/argo-chain/internal/orders"
	"github.com/rxtech-lab/argo-chain/internal/performance"
	"github.com/rxtech-lab/argo-chain/internal/positionsize"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

// SignalStageName is the short name of the root stage running the signal handler.
const SignalStageName = "Signal"

// Attacher is implemented by signal handlers that need the coordinator, usually to
// queue intents through Orders. Attach is called once the pipeline is assembled.
type Attacher interface {
	Attach(s *Strategy)
}

// Dependencies are the collaborators of a strategy. Only Broker is required;
// missing pluggable stages get defaults.
type Dependencies struct {
	Broker broker.Broker
	// Account is read by percent-of-equity position sizing.
	Account    broker.AccountReader
	Commission commission_fee.CommissionFee

	ExitStrategy *exitstrategy.ExitStrategy
	PositionSize *positionsize.PositionSize
	Performance  *performance.Performance

	Log *logger.Logger
}

type Option func(s *Strategy)

// WithDefaultTimeframe sets the timeframe treated as the default interval in addition
// to the empty timeframe.
func WithDefaultTimeframe(timeframe string) Option {
	return func(s *Strategy) {
		s.defaultTimeframe = timeframe
	}
}

// OnEnterTrade sets the hook fired when a position opens from flat.
func OnEnterTrade(hook ordermanager.TradeHook) Option {
	return func(s *Strategy) {
		s.onEnterTrade = hook
	}
}

// OnExitTrade sets the hook fired when a position returns to flat.
func OnExitTrade(hook ordermanager.TradeHook) Option {
	return func(s *Strategy) {
		s.onExitTrade = hook
	}
}

// Strategy is the coordinator of one strategy instance. Instances share no state.
type Strategy struct {
	mu   sync.RWMutex
	name string
	log  *logger.Logger

	defaultTimeframe string
	onEnterTrade     ordermanager.TradeHook
	onExitTrade      ordermanager.TradeHook

	account    broker.AccountReader
	commission commission_fee.CommissionFee

	chain      *chain.Chain
	root       *chain.Stage
	om         *ordermanager.OrderManager
	evaluators []*orders.Evaluator
	orders     *orders.Orders
	exit       *exitstrategy.ExitStrategy
	size       *positionsize.PositionSize
	perf       *performance.Performance
}

// New assembles the pipeline around the signal handler.
func New(name string, signal chain.Handler, deps Dependencies, opts ...Option) (*Strategy, error) {
	if signal == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "signal handler is required")
	}

	if deps.Broker == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "broker is required")
	}

	log := deps.Log
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Strategy{
		name:       name,
		log:        log,
		account:    deps.Account,
		commission: deps.Commission,
		exit:       deps.ExitStrategy,
		size:       deps.PositionSize,
		perf:       deps.Performance,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.exit == nil {
		s.exit = exitstrategy.New(exitstrategy.Config{}, log)
	}

	if s.size == nil {
		size, err := positionsize.New(positionsize.Config{}, log)
		if err != nil {
			return nil, err
		}

		s.size = size
	}

	if s.perf == nil {
		s.perf = performance.New(log)
	}

	if err := s.assemble(signal, deps.Broker); err != nil {
		return nil, err
	}

	s.om.SetHooks(s.onEnterTrade, s.onExitTrade)
	s.exit.Bind(s.om, s.orders)
	s.size.Bind(s.account, s.commission)
	s.perf.Bind(s.om)

	s.PropagateName()

	if attacher, ok := signal.(Attacher); ok {
		attacher.Attach(s)
	}

	return s, nil
}

func (s *Strategy) assemble(signal chain.Handler, b broker.Broker) error {
	s.root = chain.NewStage(SignalStageName, signal, s.log)

	c, err := chain.New(s.root, s.log)
	if err != nil {
		return err
	}

	s.chain = c

	s.om = ordermanager.New(b, s.log)
	if err := s.insertAfter(s.om.Stage(), s.root); err != nil {
		return err
	}

	deps := orders.EvaluatorDeps{Router: s.om, Size: s.currentSize}
	s.evaluators = []*orders.Evaluator{
		orders.NewEvaluator(types.DirectionExit, types.TimingNow, deps, s.log),
		orders.NewEvaluator(types.DirectionEnter, types.TimingNow, deps, s.log),
		orders.NewEvaluator(types.DirectionExit, types.TimingNext, deps, s.log),
		orders.NewEvaluator(types.DirectionEnter, types.TimingNext, deps, s.log),
	}

	anchor := s.om.Stage()
	for _, evaluator := range s.evaluators {
		if _, err := c.InsertAfter(evaluator.Stage().Node(), anchor.Node()); err != nil {
			return err
		}

		if err := c.AddDependency(evaluator.Stage().Node(), s.om.Stage().Node()); err != nil {
			return err
		}

		anchor = evaluator.Stage()
	}

	s.orders, err = orders.New(s.evaluators[0], s.evaluators[1], s.evaluators[2], s.evaluators[3])
	if err != nil {
		return err
	}

	if err := s.insertBefore(s.exit.Stage(), s.root); err != nil {
		return err
	}

	if err := s.insertBefore(s.size.Stage(), s.exit.Stage()); err != nil {
		return err
	}

	return s.insertBefore(s.perf.Stage(), s.size.Stage())
}

// insertAfter places stage after producer and makes it depend on producer.
func (s *Strategy) insertAfter(stage *chain.Stage, producer *chain.Stage) error {
	if _, err := s.chain.InsertAfter(stage.Node(), producer.Node()); err != nil {
		return err
	}

	return s.chain.AddDependency(stage.Node(), producer.Node())
}

// insertBefore places stage before consumer and makes consumer depend on it.
func (s *Strategy) insertBefore(stage *chain.Stage, consumer *chain.Stage) error {
	if _, err := s.chain.InsertBefore(stage.Node(), consumer.Node()); err != nil {
		return err
	}

	return s.chain.AddDependency(consumer.Node(), stage.Node())
}

func (s *Strategy) currentSize() float64 {
	return s.PositionSize().Size()
}

// OnBeforeIntervalOpen rolls the next-interval intents over on a default interval and
// dispatches the open event.
func (s *Strategy) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	interval = s.normalize(interval)

	return s.dispatch(ctx, chain.EventIntervalOpen, interval, interval.IsDefault())
}

// OnBeforeIntervalClose dispatches the close event.
func (s *Strategy) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	return s.dispatch(ctx, chain.EventIntervalClose, s.normalize(interval), false)
}

// normalize maps the configured default timeframe to the empty timeframe.
func (s *Strategy) normalize(interval types.Interval) types.Interval {
	if s.defaultTimeframe != "" && interval.Timeframe == s.defaultTimeframe {
		interval.Timeframe = ""
	}

	return interval
}

// dispatch runs the event through the chain. The intents are only touched once the
// chain has accepted the event, so a rejected re-entrant call leaves them as they are.
func (s *Strategy) dispatch(ctx context.Context, event chain.Event, interval types.Interval, rollover bool) (bool, error) {
	proceed, err := s.chain.DispatchWith(ctx, event, interval, func() {
		if rollover {
			s.orders.Rollover()
		}
		s.orders.Begin()
	})
	if err == nil {
		return proceed, nil
	}

	var dispatchErr *chain.DispatchError
	if !errors.As(err, &dispatchErr) {
		return false, err
	}

	s.orders.Rollback()

	s.Log().Error("Interval dispatch failed",
		zap.String("stage", dispatchErr.Stage),
		zap.String("event", event.String()),
		zap.Int("interval", interval.Index),
		zap.Error(dispatchErr.Err),
	)

	return false, err
}

// Name returns the display name of the strategy.
func (s *Strategy) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.name
}

// FullName is the display name; the coordinator has no owner.
func (s *Strategy) FullName() string {
	return s.Name()
}

// SetName renames the strategy and every stage it owns.
func (s *Strategy) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()

	s.PropagateName()
}

// PropagateName pushes the display name onto every owned stage.
func (s *Strategy) PropagateName() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.root.SetOwner(s.name)
	s.om.Stage().SetOwner(s.name)

	for _, evaluator := range s.evaluators {
		evaluator.Stage().SetOwner(s.name)
	}

	s.exit.Stage().SetOwner(s.name)
	s.size.Stage().SetOwner(s.name)
	s.perf.SetOwner(s.name)
}

// SetExitStrategy swaps the exit strategy stage.
func (s *Strategy) SetExitStrategy(exit *exitstrategy.ExitStrategy) error {
	if exit == nil {
		return errors.New(errors.ErrCodeInvalidConfiguration, "exit strategy is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.chain.Replace(s.exit.Stage().Node(), exit.Stage().Node()); err != nil {
		return err
	}

	exit.Bind(s.om, s.orders)
	exit.Stage().SetOwner(s.name)
	s.exit = exit

	return nil
}

// SetPositionSize swaps the position size stage.
func (s *Strategy) SetPositionSize(size *positionsize.PositionSize) error {
	if size == nil {
		return errors.New(errors.ErrCodeInvalidConfiguration, "position size is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.chain.Replace(s.size.Stage().Node(), size.Stage().Node()); err != nil {
		return err
	}

	size.Bind(s.account, s.commission)
	size.Stage().SetOwner(s.name)
	s.size = size

	return nil
}

// SetPerformance swaps the performance stage. The children of the old stage are
// removed once the swap is known to be valid.
func (s *Strategy) SetPerformance(perf *performance.Performance) error {
	if perf == nil {
		return errors.New(errors.ErrCodeInvalidConfiguration, "performance is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.perf.Stage().Node()
	if err := s.chain.ValidateReplace(old, perf.Stage().Node()); err != nil {
		return err
	}

	if err := s.perf.RemoveChildren(); err != nil {
		s.log.Warn("Failed to close performance children", zap.Error(err))
	}

	if _, err := s.chain.Replace(old, perf.Stage().Node()); err != nil {
		return err
	}

	perf.Bind(s.om)
	perf.SetOwner(s.name)
	s.perf = perf

	return nil
}

func (s *Strategy) ExitStrategy() *exitstrategy.ExitStrategy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.exit
}

func (s *Strategy) PositionSize() *positionsize.PositionSize {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.size
}

func (s *Strategy) Performance() *performance.Performance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.perf
}

func (s *Strategy) OrderManager() *ordermanager.OrderManager {
	return s.om
}

func (s *Strategy) Orders() *orders.Orders {
	return s.orders
}

func (s *Strategy) Chain() *chain.Chain {
	return s.chain
}

// Signal returns the root stage.
func (s *Strategy) Signal() *chain.Stage {
	return s.root
}

// Log returns the logger of the root stage, tagged with the strategy name.
func (s *Strategy) Log() *logger.Logger {
	return s.root.Log()
}

func (s *Strategy) IsDebug() bool {
	return s.root.IsDebug()
}

// OnWriteReport writes the performance report of the strategy into folder.
func (s *Strategy) OnWriteReport(folder string) (bool, error) {
	return s.Performance().WriteReport(s.Name(), folder)
}

// OnGetFitness returns the fitness score of the run.
func (s *Strategy) OnGetFitness() float64 {
	return s.Performance().Fitness()
}

// OnGetOptimizeResult formats the fitness and the optimized parameter values as
// "Fitness,<fitness>,<key>,<value>,..." with keys in sorted order.
func (s *Strategy) OnGetOptimizeResult(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	b.WriteString("Fitness,")
	b.WriteString(strconv.FormatFloat(s.OnGetFitness(), 'f', -1, 64))

	for _, k := range keys {
		fmt.Fprintf(&b, ",%s,%v", k, values[k])
	}

	return b.String()
}

// Close releases the performance children.
func (s *Strategy) Close() error {
	return s.Performance().RemoveChildren()
}

// ExitNow is retained for migration.
//
// Deprecated: use Orders().Exit().Now() instead.
func (s *Strategy) ExitNow() (*orders.ExitBucket, error) {
	return nil, errors.Unsupported("ExitNow", "Orders().Exit().Now()")
}

// EnterNow is retained for migration.
//
// Deprecated: use Orders().Enter().Now() instead.
func (s *Strategy) EnterNow() (*orders.Bucket, error) {
	return nil, errors.Unsupported("EnterNow", "Orders().Enter().Now()")
}

// ToStatistics is retained for migration.
//
// Deprecated: use Performance().Stats() instead.
func (s *Strategy) ToStatistics() (types.TradeStats, error) {
	return types.TradeStats{}, errors.Unsupported("ToStatistics", "Performance().Stats()")
}

// Fitness is retained for migration.
//
// Deprecated: use OnGetFitness() instead.
func (s *Strategy) Fitness() (float64, error) {
	return 0, errors.Unsupported("Fitness", "OnGetFitness()")
}
