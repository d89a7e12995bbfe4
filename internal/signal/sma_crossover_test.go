package signal

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/positionsize"
	"github.com/rxtech-lab/argo-chain/internal/strategy"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SMACrossoverTestSuite struct {
	suite.Suite
}

func TestSMACrossoverSuite(t *testing.T) {
	suite.Run(t, new(SMACrossoverTestSuite))
}

func (suite *SMACrossoverTestSuite) TestNewSMACrossover() {
	sma, err := NewSMACrossover(SMACrossoverConfig{Symbol: "AAPL"})
	suite.Require().NoError(err)
	suite.Equal("SMA_Cross_5_20", sma.Name())

	_, err = NewSMACrossover(SMACrossoverConfig{})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = NewSMACrossover(SMACrossoverConfig{Symbol: "AAPL", ShortPeriod: 20, LongPeriod: 5})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *SMACrossoverTestSuite) TestCalculateSMA() {
	suite.InDelta(2.5, calculateSMA([]float64{1, 2, 3}, 2), 1e-9)
	suite.InDelta(2.0, calculateSMA([]float64{1, 2, 3}, 3), 1e-9)
	suite.Zero(calculateSMA([]float64{1}, 2))
}

func (suite *SMACrossoverTestSuite) TestCrossoverTrades() {
	paper := broker.NewPaperBroker(broker.PaperBrokerConfig{InitialBalance: 1000}, nil)

	sma, err := NewSMACrossover(SMACrossoverConfig{Symbol: "AAPL", ShortPeriod: 2, LongPeriod: 3})
	suite.Require().NoError(err)

	size, err := positionsize.New(positionsize.Config{Quantity: 1}, nil)
	suite.Require().NoError(err)

	st, err := strategy.New(sma.Name(), sma, strategy.Dependencies{Broker: paper, PositionSize: size})
	suite.Require().NoError(err)

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{10, 10, 10, 10, 13, 14, 8, 5}

	for i, price := range closes {
		bar := types.MarketData{Symbol: "AAPL", Time: start.Add(time.Duration(i) * time.Hour), Open: price, High: price, Low: price, Close: price}
		paper.UpdateMarketData(bar)

		interval := types.Interval{Index: i, Bar: bar}

		_, err := st.OnBeforeIntervalOpen(ctx, interval)
		suite.Require().NoError(err)

		if i == 5 {
			suite.InDelta(1.0, st.OrderManager().Position("AAPL").Quantity, 1e-9)
		}

		_, err = st.OnBeforeIntervalClose(ctx, interval)
		suite.Require().NoError(err)
	}

	suite.True(st.OrderManager().Position("AAPL").IsFlat())

	trades := st.Performance().Trades()
	suite.Require().Len(trades, 2)
	suite.Equal(types.PurchaseTypeBuy, trades[0].Intent.Side)
	suite.InDelta(14.0, trades[0].ExecutedPrice, 1e-9)
	suite.Equal(types.OrderReasonGoFlat, trades[1].Intent.Reason.Reason)
	suite.InDelta(5.0, trades[1].ExecutedPrice, 1e-9)
	suite.InDelta(-9.0, trades[1].PnL, 1e-9)
}

func (suite *SMACrossoverTestSuite) TestIgnoresOtherSymbolsAndTimeframes() {
	sma, err := NewSMACrossover(SMACrossoverConfig{Symbol: "AAPL", ShortPeriod: 2, LongPeriod: 3})
	suite.Require().NoError(err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ok, err := sma.OnBeforeIntervalClose(ctx, types.Interval{Bar: types.MarketData{Symbol: "MSFT", Close: float64(i)}})
		suite.NoError(err)
		suite.True(ok)

		ok, err = sma.OnBeforeIntervalClose(ctx, types.Interval{Timeframe: "1h", Bar: types.MarketData{Symbol: "AAPL", Close: float64(i)}})
		suite.NoError(err)
		suite.True(ok)
	}

	suite.Empty(sma.closes)
}
