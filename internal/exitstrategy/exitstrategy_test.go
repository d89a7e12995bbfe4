package exitstrategy

import (
	"context"
	"testing"

	"github.com/rxtech-lab/argo-chain/internal/orders"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/stretchr/testify/suite"
)

type staticPositions []types.Position

func (s staticPositions) Positions() []types.Position {
	return s
}

type ExitStrategyTestSuite struct {
	suite.Suite
	orders *orders.Orders
}

func TestExitStrategySuite(t *testing.T) {
	suite.Run(t, new(ExitStrategyTestSuite))
}

func (suite *ExitStrategyTestSuite) SetupTest() {
	o, err := orders.New(nil, nil, nil, nil)
	suite.Require().NoError(err)
	suite.orders = o
}

func closeAt(symbol string, high, low, close float64) types.Interval {
	return types.Interval{Bar: types.MarketData{Symbol: symbol, Open: close, High: high, Low: low, Close: close}}
}

func (suite *ExitStrategyTestSuite) run(config Config, positions staticPositions, interval types.Interval) []types.OrderIntent {
	exit := New(config, nil)
	exit.Bind(positions, suite.orders)

	ok, err := exit.OnBeforeIntervalClose(context.Background(), interval)
	suite.Require().NoError(err)
	suite.True(ok)

	return suite.orders.Exit().Now().Intents()
}

func (suite *ExitStrategyTestSuite) TestLevels() {
	tests := []struct {
		name     string
		config   Config
		position types.Position
		interval types.Interval
		reason   string
	}{
		{
			name:     "long stop loss",
			config:   Config{StopLossPercent: 5},
			position: types.Position{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100, HighWaterMark: 100, LowWaterMark: 100},
			interval: closeAt("AAPL", 96, 93, 94),
			reason:   types.OrderReasonStopLoss,
		},
		{
			name:     "long trailing stop",
			config:   Config{StopLossPercent: 5, TrailingStopPercent: 10},
			position: types.Position{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100, HighWaterMark: 120, LowWaterMark: 100},
			interval: closeAt("AAPL", 110, 106, 107),
			reason:   types.OrderReasonTrailingStop,
		},
		{
			name:     "long take profit",
			config:   Config{TakeProfitPercent: 10},
			position: types.Position{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100, HighWaterMark: 105, LowWaterMark: 100},
			interval: closeAt("AAPL", 112, 108, 111),
			reason:   types.OrderReasonTakeProfit,
		},
		{
			name:     "short stop loss",
			config:   Config{StopLossPercent: 5},
			position: types.Position{Symbol: "AAPL", Quantity: -10, AverageEntryPrice: 100, HighWaterMark: 100, LowWaterMark: 100},
			interval: closeAt("AAPL", 107, 104, 106),
			reason:   types.OrderReasonStopLoss,
		},
		{
			name:     "short trailing stop",
			config:   Config{StopLossPercent: 5, TrailingStopPercent: 10},
			position: types.Position{Symbol: "AAPL", Quantity: -10, AverageEntryPrice: 100, HighWaterMark: 100, LowWaterMark: 80},
			interval: closeAt("AAPL", 91, 89, 90),
			reason:   types.OrderReasonTrailingStop,
		},
		{
			name:     "short take profit",
			config:   Config{TakeProfitPercent: 10},
			position: types.Position{Symbol: "AAPL", Quantity: -10, AverageEntryPrice: 100, HighWaterMark: 100, LowWaterMark: 95},
			interval: closeAt("AAPL", 91, 88, 89),
			reason:   types.OrderReasonTakeProfit,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.orders.Exit().Now().Clear()

			intents := suite.run(tt.config, staticPositions{tt.position}, tt.interval)
			suite.Require().Len(intents, 1)
			suite.Equal(tt.reason, intents[0].Reason.Reason)
			suite.Equal("AAPL", intents[0].Symbol)
			suite.Equal(types.OrderTypeMarket, intents[0].OrderType)
			suite.Equal(types.DirectionExit, intents[0].Direction)
			suite.Zero(intents[0].Quantity)
		})
	}
}

func (suite *ExitStrategyTestSuite) TestWithinLevelsQueuesNothing() {
	config := Config{StopLossPercent: 5, TakeProfitPercent: 10, TrailingStopPercent: 10}
	position := types.Position{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100, HighWaterMark: 104, LowWaterMark: 99}

	intents := suite.run(config, staticPositions{position}, closeAt("AAPL", 104, 100, 102))
	suite.Empty(intents)
}

func (suite *ExitStrategyTestSuite) TestOtherSymbolsAreIgnored() {
	position := types.Position{Symbol: "MSFT", Quantity: 10, AverageEntryPrice: 100}

	intents := suite.run(Config{StopLossPercent: 5}, staticPositions{position}, closeAt("AAPL", 50, 40, 45))
	suite.Empty(intents)
}

func (suite *ExitStrategyTestSuite) TestDisabledAndUnbound() {
	position := types.Position{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100}
	suite.Empty(suite.run(Config{}, staticPositions{position}, closeAt("AAPL", 50, 40, 45)))

	exit := New(Config{StopLossPercent: 5}, nil)
	ok, err := exit.OnBeforeIntervalClose(context.Background(), closeAt("AAPL", 50, 40, 45))
	suite.NoError(err)
	suite.True(ok)
}

func (suite *ExitStrategyTestSuite) TestOpenDoesNothing() {
	exit := New(Config{StopLossPercent: 5}, nil)
	exit.Bind(staticPositions{{Symbol: "AAPL", Quantity: 10, AverageEntryPrice: 100}}, suite.orders)

	ok, err := exit.OnBeforeIntervalOpen(context.Background(), closeAt("AAPL", 50, 40, 45))
	suite.NoError(err)
	suite.True(ok)
	suite.Zero(suite.orders.Len())
}

func (suite *ExitStrategyTestSuite) TestStageName() {
	exit := New(Config{}, nil)
	exit.Stage().SetOwner("Alpha")
	suite.Equal("Alpha.ExitStrategy", exit.Stage().FullName())
}
