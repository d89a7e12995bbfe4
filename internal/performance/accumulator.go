package performance

import (
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/shopspring/decimal"
)

// accumulator holds running statistics for fills.
type accumulator struct {
	totalTrades   int
	winningTrades int
	losingTrades  int
	closingTrades int
	realizedPnL   decimal.Decimal
	totalFees     decimal.Decimal
	maxProfit     decimal.Decimal
	maxLoss       decimal.Decimal
	maxDrawdown   decimal.Decimal
	peakPnL       decimal.Decimal
	holdingTimes  []int // in seconds
}

func newAccumulator() *accumulator {
	return &accumulator{
		realizedPnL:  decimal.Zero,
		totalFees:    decimal.Zero,
		maxProfit:    decimal.Zero,
		maxLoss:      decimal.Zero,
		maxDrawdown:  decimal.Zero,
		peakPnL:      decimal.Zero,
		holdingTimes: make([]int, 0),
	}
}

// record adds a fill whose profit and loss is pnl.
func (a *accumulator) record(trade types.Trade, pnl float64) {
	value := decimal.NewFromFloat(pnl)

	a.totalTrades++
	a.totalFees = a.totalFees.Add(decimal.NewFromFloat(trade.Fee))
	a.realizedPnL = a.realizedPnL.Add(value)

	if trade.IsClosing() {
		a.closingTrades++

		if value.IsPositive() {
			a.winningTrades++
		} else if value.IsNegative() {
			a.losingTrades++
		}

		if value.GreaterThan(a.maxProfit) {
			a.maxProfit = value
		}

		if value.LessThan(a.maxLoss) {
			a.maxLoss = value
		}

		if !trade.OpenedAt.IsZero() && !trade.ExecutedAt.IsZero() {
			holdingTime := int(trade.ExecutedAt.Sub(trade.OpenedAt).Seconds())
			if holdingTime >= 0 {
				a.holdingTimes = append(a.holdingTimes, holdingTime)
			}
		}
	}

	if a.realizedPnL.GreaterThan(a.peakPnL) {
		a.peakPnL = a.realizedPnL
	}

	drawdown := a.peakPnL.Sub(a.realizedPnL)
	if drawdown.GreaterThan(a.maxDrawdown) {
		a.maxDrawdown = drawdown
	}
}

func (a *accumulator) stats(unrealized float64) types.TradeStats {
	winRate := 0.0
	if a.closingTrades > 0 {
		winRate = float64(a.winningTrades) / float64(a.closingTrades)
	}

	holdingTime := types.TradeHoldingTime{}

	if len(a.holdingTimes) > 0 {
		minTime := a.holdingTimes[0]
		maxTime := a.holdingTimes[0]
		totalTime := 0

		for _, t := range a.holdingTimes {
			totalTime += t
			if t < minTime {
				minTime = t
			}

			if t > maxTime {
				maxTime = t
			}
		}

		holdingTime.Min = minTime
		holdingTime.Max = maxTime
		holdingTime.Avg = totalTime / len(a.holdingTimes)
	}

	realized, _ := a.realizedPnL.Float64()
	fees, _ := a.totalFees.Float64()
	maxProfit, _ := a.maxProfit.Float64()
	maxLoss, _ := a.maxLoss.Float64()
	maxDrawdown, _ := a.maxDrawdown.Float64()
	total, _ := a.realizedPnL.Add(decimal.NewFromFloat(unrealized)).Float64()

	return types.TradeStats{
		TradeResult: types.TradeResult{
			NumberOfTrades:        a.totalTrades,
			NumberOfWinningTrades: a.winningTrades,
			NumberOfLosingTrades:  a.losingTrades,
			WinRate:               winRate,
			MaxDrawdown:           maxDrawdown,
		},
		TotalFees:        fees,
		TradeHoldingTime: holdingTime,
		TradePnl: types.TradePnl{
			RealizedPnL:   realized,
			UnrealizedPnL: unrealized,
			TotalPnL:      total,
			MaximumLoss:   maxLoss,
			MaximumProfit: maxProfit,
		},
	}
}
