package strategy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/chain"
	"github.com/rxtech-lab/argo-chain/internal/exitstrategy"
	"github.com/rxtech-lab/argo-chain/internal/performance"
	"github.com/rxtech-lab/argo-chain/internal/positionsize"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/mocks"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

// scriptedSignal runs test callbacks as the root stage.
type scriptedSignal struct {
	strategy *Strategy
	open     func(s *Strategy, interval types.Interval) (bool, error)
	close    func(s *Strategy, interval types.Interval) (bool, error)
}

func (f *scriptedSignal) Attach(s *Strategy) {
	f.strategy = s
}

func (f *scriptedSignal) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	if f.open == nil {
		return true, nil
	}

	return f.open(f.strategy, interval)
}

func (f *scriptedSignal) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if f.close == nil {
		return true, nil
	}

	return f.close(f.strategy, interval)
}

type StrategyTestSuite struct {
	suite.Suite
	ctx    context.Context
	broker *broker.PaperBroker
	signal *scriptedSignal
	start  time.Time
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.broker = broker.NewPaperBroker(broker.PaperBrokerConfig{InitialBalance: 100000}, nil)
	suite.signal = &scriptedSignal{}
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *StrategyTestSuite) newStrategy(quantity float64, opts ...Option) *Strategy {
	size, err := positionsize.New(positionsize.Config{Quantity: quantity}, nil)
	suite.Require().NoError(err)

	s, err := New("Alpha", suite.signal, Dependencies{
		Broker:       suite.broker,
		Account:      suite.broker,
		PositionSize: size,
	}, opts...)
	suite.Require().NoError(err)

	return s
}

func (suite *StrategyTestSuite) bar(open, close float64, i int) types.MarketData {
	return types.MarketData{
		Symbol: "AAPL",
		Time:   suite.start.Add(time.Duration(i) * 24 * time.Hour),
		Open:   open,
		High:   max(open, close),
		Low:    min(open, close),
		Close:  close,
	}
}

// step feeds one bar through the broker and the strategy.
func (suite *StrategyTestSuite) step(s *Strategy, timeframe string, i int, bar types.MarketData) {
	suite.broker.UpdateMarketData(bar)

	interval := types.Interval{Timeframe: timeframe, Index: i, Bar: bar}

	ok, err := s.OnBeforeIntervalOpen(suite.ctx, interval)
	suite.Require().NoError(err)
	suite.Require().True(ok)

	ok, err = s.OnBeforeIntervalClose(suite.ctx, interval)
	suite.Require().NoError(err)
	suite.Require().True(ok)
}

func stageNames(nodes []*chain.Node) []string {
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		names = append(names, node.Stage().Name())
	}

	return names
}

var pipeline = []string{
	performance.StageName,
	positionsize.StageName,
	exitstrategy.StageName,
	SignalStageName,
	"OrderManager",
	"ExitNow",
	"EnterNow",
	"ExitNextBar",
	"EnterNextBar",
}

func (suite *StrategyTestSuite) TestNewRequiresSignalAndBroker() {
	_, err := New("Alpha", nil, Dependencies{Broker: suite.broker})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = New("Alpha", suite.signal, Dependencies{})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestPipelineShape() {
	s := suite.newStrategy(10)

	suite.Equal(pipeline, stageNames(s.Chain().Nodes()))
	suite.Equal(pipeline, stageNames(s.Chain().Order()))
	suite.Equal(s.Signal().Node(), s.Chain().Root())
	suite.Len(s.Chain().Edges(), 8)

	for _, evaluator := range s.Chain().Order()[5:] {
		suite.Equal([]*chain.Node{s.OrderManager().Stage().Node()}, evaluator.DependsOn())
	}

	suite.Same(s, suite.signal.strategy)
}

func (suite *StrategyTestSuite) TestPropagateName() {
	s := suite.newStrategy(10)

	assertNamed := func(name string) {
		for _, node := range s.Chain().Nodes() {
			suite.Equal(name+"."+node.Stage().Name(), node.Stage().FullName())
		}

		for _, child := range s.Performance().Children() {
			suite.Equal(name, child.Owner())
		}
	}

	assertNamed("Alpha")
	suite.Equal("Alpha", s.FullName())

	s.PropagateName()
	assertNamed("Alpha")

	suite.Require().NoError(s.SetExitStrategy(exitstrategy.New(exitstrategy.Config{StopLossPercent: 5}, nil)))
	suite.Require().NoError(s.SetPerformance(performance.New(nil)))
	assertNamed("Alpha")

	s.SetName("Beta")
	suite.Equal("Beta", s.Name())
	assertNamed("Beta")
}

func (suite *StrategyTestSuite) TestSetExitStrategyKeepsPosition() {
	s := suite.newStrategy(10)
	old := s.ExitStrategy()
	edges := len(s.Chain().Edges())

	replacement := exitstrategy.New(exitstrategy.Config{TakeProfitPercent: 10}, nil)
	suite.Require().NoError(s.SetExitStrategy(replacement))

	suite.Same(replacement, s.ExitStrategy())
	suite.Equal(pipeline, stageNames(s.Chain().Order()))
	suite.Equal(replacement.Stage().Node(), s.Chain().Order()[2])
	suite.Len(s.Chain().Edges(), edges)
	suite.False(s.Chain().Contains(old.Stage().Node()))
	suite.Nil(old.Stage().Node().Chain())

	// A stage already in a chain cannot be swapped in.
	err := s.SetExitStrategy(replacement)
	suite.True(errors.HasCode(err, errors.ErrCodeDependencyViolation))

	suite.True(errors.HasCode(s.SetExitStrategy(nil), errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestSetPositionSize() {
	s := suite.newStrategy(10)

	replacement, err := positionsize.New(positionsize.Config{Quantity: 3}, nil)
	suite.Require().NoError(err)
	suite.Require().NoError(s.SetPositionSize(replacement))

	suite.Same(replacement, s.PositionSize())
	suite.Equal(pipeline, stageNames(s.Chain().Order()))

	// New enter intents are sized by the new stage.
	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		if interval.Index == 0 {
			_, err := s.Orders().Enter().Now().BuyMarket("AAPL", 0, "enter")
			return err == nil, err
		}

		return true, nil
	}

	suite.step(s, "", 0, suite.bar(100, 100, 0))
	suite.step(s, "", 1, suite.bar(101, 101, 1))

	suite.InDelta(3.0, s.OrderManager().Position("AAPL").Quantity, 1e-9)
}

func (suite *StrategyTestSuite) TestSetPerformanceRemovesOldChildren() {
	s := suite.newStrategy(10)
	old := s.Performance()
	children := old.Children()
	suite.Require().NotEmpty(children)

	replacement := performance.New(nil)
	suite.Require().NoError(s.SetPerformance(replacement))

	suite.Same(replacement, s.Performance())
	suite.Empty(old.Children())

	for _, child := range children {
		suite.Equal("", child.Owner())
	}

	for _, child := range replacement.Children() {
		suite.Equal("Alpha", child.Owner())
	}

	suite.Equal(pipeline, stageNames(s.Chain().Order()))
}

func (suite *StrategyTestSuite) TestSetPerformanceInvalidKeepsChildren() {
	s := suite.newStrategy(10)
	other := suite.newStrategy(10)

	// The other strategy's performance stage already belongs to a chain.
	err := s.SetPerformance(other.Performance())
	suite.True(errors.HasCode(err, errors.ErrCodeDependencyViolation))
	suite.NotEmpty(s.Performance().Children())
}

func (suite *StrategyTestSuite) TestSetterDuringDispatchIsRejected() {
	s := suite.newStrategy(10)

	var setErr error

	suite.signal.open = func(s *Strategy, interval types.Interval) (bool, error) {
		setErr = s.SetExitStrategy(exitstrategy.New(exitstrategy.Config{}, nil))
		return true, nil
	}

	suite.step(s, "", 0, suite.bar(100, 100, 0))
	suite.True(errors.IsConcurrentMutationError(setErr))
}

func (suite *StrategyTestSuite) TestRoundTrip() {
	var entered, exited []types.Trade

	s := suite.newStrategy(10,
		OnEnterTrade(func(trade types.Trade) { entered = append(entered, trade) }),
		OnExitTrade(func(trade types.Trade) { exited = append(exited, trade) }),
	)

	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		var err error

		switch interval.Index {
		case 0:
			_, err = s.Orders().Enter().Now().BuyMarket("AAPL", 0, "enter")
		case 2:
			_, err = s.Orders().Exit().Now().GoFlat("AAPL", "exit")
		}

		return err == nil, err
	}

	bars := []types.MarketData{
		suite.bar(100, 100, 0),
		suite.bar(101, 104, 1),
		suite.bar(104, 105, 2),
		suite.bar(106, 107, 3),
	}

	for i, bar := range bars {
		suite.step(s, "", i, bar)
	}

	suite.True(s.OrderManager().Position("AAPL").IsFlat())
	suite.Empty(s.OrderManager().Outstanding())
	suite.Zero(suite.broker.Holding("AAPL"))
	suite.InDelta(100050.0, suite.broker.AccountInfo().Balance, 1e-9)

	suite.Require().Len(entered, 1)
	suite.InDelta(101.0, entered[0].ExecutedPrice, 1e-9)
	suite.Require().Len(exited, 1)
	suite.InDelta(106.0, exited[0].ExecutedPrice, 1e-9)

	stats := s.Performance().Stats()
	suite.Equal(2, stats.TradeResult.NumberOfTrades)
	suite.Equal(1, stats.TradeResult.NumberOfWinningTrades)
	suite.InDelta(50.0, stats.TradePnl.RealizedPnL, 1e-9)
	suite.InDelta(50.0, s.OnGetFitness(), 1e-9)
	suite.Equal(4, stats.BarsProcessed)
}

func (suite *StrategyTestSuite) TestExitNextRolloverAcrossIntervals() {
	s := suite.newStrategy(100, WithDefaultTimeframe("1d"))

	var nowAtOpen6 []types.OrderIntent

	suite.signal.open = func(s *Strategy, interval types.Interval) (bool, error) {
		if interval.Index == 6 && interval.IsDefault() {
			nowAtOpen6 = s.Orders().Exit().Now().Intents()
			suite.Zero(s.Orders().Exit().NextInterval().Len())
		}

		return true, nil
	}
	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		var err error

		switch interval.Index {
		case 0:
			_, err = s.Orders().Enter().Now().BuyMarket("AAPL", 0, "enter")
		case 5:
			_, err = s.Orders().Exit().NextInterval().SellMarket("AAPL", 100, "exit next bar")
		}

		return err == nil, err
	}

	for i := 0; i <= 5; i++ {
		suite.step(s, "1d", i, suite.bar(100, 100, i))
	}

	suite.InDelta(100.0, s.OrderManager().Position("AAPL").Quantity, 1e-9)
	suite.Equal(1, s.Orders().Exit().NextInterval().Len())
	suite.Zero(s.Orders().Exit().Now().Len())

	// A non-default interval does not roll the intents over.
	ok, err := s.OnBeforeIntervalOpen(suite.ctx, types.Interval{Timeframe: "1h", Index: 6, Bar: suite.bar(100, 100, 6)})
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal(1, s.Orders().Exit().NextInterval().Len())
	suite.Nil(nowAtOpen6)

	suite.step(s, "1d", 6, suite.bar(100, 100, 6))

	suite.Require().Len(nowAtOpen6, 1)
	suite.InDelta(100.0, nowAtOpen6[0].Quantity, 1e-9)
	suite.Equal(types.DirectionExit, nowAtOpen6[0].Direction)

	// Submitted at the close of interval 6 and filled with the next bar.
	suite.Len(s.OrderManager().Outstanding(), 1)
	suite.Zero(s.Orders().Len())

	suite.step(s, "1d", 7, suite.bar(102, 102, 7))
	suite.True(s.OrderManager().Position("AAPL").IsFlat())
}

func (suite *StrategyTestSuite) TestDispatchErrorIsContained() {
	s := suite.newStrategy(10)

	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		if interval.Index != 1 {
			return true, nil
		}

		_, err := s.Orders().Enter().Now().BuyMarket("AAPL", 0, "doomed")
		suite.Require().NoError(err)
		_, err = s.Orders().Enter().NextInterval().BuyMarket("AAPL", 0, "doomed")
		suite.Require().NoError(err)

		return false, fmt.Errorf("signal broke")
	}

	suite.step(s, "", 0, suite.bar(100, 100, 0))

	interval := types.Interval{Index: 1, Bar: suite.bar(101, 101, 1)}
	suite.broker.UpdateMarketData(interval.Bar)

	ok, err := s.OnBeforeIntervalOpen(suite.ctx, interval)
	suite.Require().NoError(err)
	suite.True(ok)

	ok, err = s.OnBeforeIntervalClose(suite.ctx, interval)
	suite.False(ok)
	suite.True(errors.IsDispatchError(err))

	var dispatchErr *chain.DispatchError
	suite.Require().True(errors.As(err, &dispatchErr))
	suite.Equal("Alpha.Signal", dispatchErr.Stage)
	suite.Equal(chain.EventIntervalClose, dispatchErr.Event)
	suite.Contains(err.Error(), "signal broke")

	// Intents queued by the failed interval are discarded.
	suite.Zero(s.Orders().Len())
	suite.Empty(s.OrderManager().Outstanding())

	// The pipeline keeps working.
	suite.step(s, "", 2, suite.bar(102, 102, 2))
	suite.True(s.OrderManager().Position("AAPL").IsFlat())
}

func (suite *StrategyTestSuite) TestInterleavedSymbolsKeepTheirIntents() {
	s := suite.newStrategy(10)

	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		if interval.Index != 0 {
			return true, nil
		}

		_, err := s.Orders().Enter().NextInterval().BuyStop("AAPL", 10, 150, "breakout")
		return err == nil, err
	}

	suite.step(s, "", 0, suite.bar(100, 100, 0))

	msft := types.MarketData{
		Symbol: "MSFT",
		Time:   suite.start.Add(24 * time.Hour),
		Open:   300,
		High:   300,
		Low:    300,
		Close:  300,
	}
	suite.step(s, "", 1, msft)

	// The MSFT bar is above the AAPL stop but must not trigger it.
	suite.Empty(s.OrderManager().Outstanding())
	pending := s.Orders().Enter().Now().Intents()
	suite.Require().Len(pending, 1)
	suite.Equal("AAPL", pending[0].Symbol)

	// The next AAPL bar stays below the stop, so the intent expires.
	suite.step(s, "", 2, suite.bar(100, 100, 2))
	suite.Empty(s.OrderManager().Outstanding())
	suite.Zero(s.Orders().Len())
}

func (suite *StrategyTestSuite) TestReentrantOpenLeavesIntentsAlone() {
	s := suite.newStrategy(10)

	var innerErr error

	suite.signal.open = func(s *Strategy, interval types.Interval) (bool, error) {
		_, err := s.Orders().Enter().NextInterval().BuyMarket("AAPL", 5, "queued")
		suite.Require().NoError(err)

		_, innerErr = s.OnBeforeIntervalOpen(suite.ctx, interval)
		return true, nil
	}

	interval := types.Interval{Bar: suite.bar(100, 100, 0)}
	suite.broker.UpdateMarketData(interval.Bar)

	ok, err := s.OnBeforeIntervalOpen(suite.ctx, interval)
	suite.Require().NoError(err)
	suite.True(ok)

	suite.True(errors.IsConcurrentMutationError(innerErr), "got %v", innerErr)
	suite.Equal(1, s.Orders().Enter().NextInterval().Len())
	suite.Zero(s.Orders().Enter().Now().Len())
}

func (suite *StrategyTestSuite) TestPanicIsContained() {
	s := suite.newStrategy(10)

	suite.signal.open = func(s *Strategy, interval types.Interval) (bool, error) {
		panic("boom")
	}

	ok, err := s.OnBeforeIntervalOpen(suite.ctx, types.Interval{Bar: suite.bar(100, 100, 0)})
	suite.False(ok)
	suite.True(errors.IsDispatchError(err))
	suite.True(errors.HasCodeInChain(err, errors.ErrCodeStagePanicked))
}

func (suite *StrategyTestSuite) TestStopPropagation() {
	s := suite.newStrategy(10)

	suite.signal.close = func(s *Strategy, interval types.Interval) (bool, error) {
		_, err := s.Orders().Enter().Now().BuyMarket("AAPL", 0, "never submitted")
		suite.Require().NoError(err)

		return false, nil
	}

	suite.broker.UpdateMarketData(suite.bar(100, 100, 0))

	ok, err := s.OnBeforeIntervalClose(suite.ctx, types.Interval{Bar: suite.bar(100, 100, 0)})
	suite.NoError(err)
	suite.False(ok)

	// The evaluators did not run, so nothing reached the broker.
	suite.Empty(s.OrderManager().Outstanding())
}

func (suite *StrategyTestSuite) TestWriteReport() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().
		Write("out", gomock.Any()).
		DoAndReturn(func(folder string, report types.Report) error {
			suite.Equal("Alpha", report.Name)
			return nil
		})

	s, err := New("Alpha", suite.signal, Dependencies{
		Broker:      suite.broker,
		Performance: performance.New(nil, performance.WithSink(sink)),
	})
	suite.Require().NoError(err)

	ok, err := s.OnWriteReport("out")
	suite.NoError(err)
	suite.True(ok)
}

func (suite *StrategyTestSuite) TestWriteReportWithoutSink() {
	s := suite.newStrategy(10)

	ok, err := s.OnWriteReport("out")
	suite.NoError(err)
	suite.False(ok)
}

func (suite *StrategyTestSuite) TestOnGetOptimizeResult() {
	s := suite.newStrategy(10)

	result := s.OnGetOptimizeResult(map[string]any{"slow": 20, "fast": 5, "mode": "sma"})
	suite.Equal("Fitness,0,fast,5,mode,sma,slow,20", result)
	suite.Equal("Fitness,0", s.OnGetOptimizeResult(nil))
}

func (suite *StrategyTestSuite) TestDeprecatedMembers() {
	s := suite.newStrategy(10)

	_, err := s.ExitNow()
	suite.True(errors.IsUnsupported(err))
	suite.Contains(err.Error(), "Orders().Exit().Now()")

	_, err = s.EnterNow()
	suite.True(errors.IsUnsupported(err))

	_, err = s.ToStatistics()
	suite.True(errors.IsUnsupported(err))

	_, err = s.Fitness()
	suite.True(errors.IsUnsupported(err))
}

func (suite *StrategyTestSuite) TestClose() {
	s := suite.newStrategy(10)
	children := s.Performance().Children()

	suite.NoError(s.Close())
	suite.Empty(s.Performance().Children())

	for _, child := range children {
		suite.Equal("", child.Owner())
	}
}

func (suite *StrategyTestSuite) TestInstancesAreIndependent() {
	first := suite.newStrategy(10)
	second := suite.newStrategy(10)

	first.SetName("First")
	second.SetName("Second")

	_, err := first.Orders().Enter().Now().BuyMarket("AAPL", 1, "only first")
	suite.Require().NoError(err)

	suite.Equal(1, first.Orders().Len())
	suite.Zero(second.Orders().Len())
	suite.Equal("First.OrderManager", first.OrderManager().Stage().FullName())
	suite.Equal("Second.OrderManager", second.OrderManager().Stage().FullName())
}
