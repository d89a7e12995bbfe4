// Package signal holds sample signal handlers used as the root stage of a strategy.
package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/strategy"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
)

type SMACrossoverConfig struct {
	Symbol      string `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=The symbol to trade,default=AAPL"`
	ShortPeriod int    `yaml:"short_period" json:"short_period" validate:"gt=0" jsonschema:"title=Short Period,description=Bars in the fast moving average,default=5"`
	LongPeriod  int    `yaml:"long_period" json:"long_period" validate:"gtfield=ShortPeriod" jsonschema:"title=Long Period,description=Bars in the slow moving average,default=20"`
}

// SMACrossover enters when the short moving average crosses above the long one and
// goes flat when it crosses below.
type SMACrossover struct {
	config SMACrossoverConfig

	mu       sync.Mutex
	strategy *strategy.Strategy
	closes   []float64
}

// NewSMACrossover creates the handler. Zero periods default to 5 and 20.
func NewSMACrossover(config SMACrossoverConfig) (*SMACrossover, error) {
	if config.ShortPeriod == 0 {
		config.ShortPeriod = 5
	}

	if config.LongPeriod == 0 {
		config.LongPeriod = 20
	}

	if config.Symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if config.ShortPeriod >= config.LongPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"short period %d must be less than long period %d", config.ShortPeriod, config.LongPeriod)
	}

	return &SMACrossover{config: config}, nil
}

// Name returns the name of the strategy
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("SMA_Cross_%d_%d", s.config.ShortPeriod, s.config.LongPeriod)
}

// Attach implements strategy.Attacher.
func (s *SMACrossover) Attach(st *strategy.Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategy = st
}

func (s *SMACrossover) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	return true, nil
}

// OnBeforeIntervalClose records the close and queues intents on a crossover.
func (s *SMACrossover) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if !interval.IsDefault() || interval.Bar.Symbol != s.config.Symbol {
		return true, nil
	}

	s.mu.Lock()
	st := s.strategy

	s.closes = append(s.closes, interval.Bar.Close)
	if len(s.closes) > s.config.LongPeriod+1 {
		s.closes = s.closes[len(s.closes)-s.config.LongPeriod-1:]
	}

	// Need the previous values of both averages
	if len(s.closes) <= s.config.LongPeriod {
		s.mu.Unlock()
		return true, nil
	}

	previous := s.closes[:len(s.closes)-1]
	shortMA := calculateSMA(s.closes, s.config.ShortPeriod)
	longMA := calculateSMA(s.closes, s.config.LongPeriod)
	prevShortMA := calculateSMA(previous, s.config.ShortPeriod)
	prevLongMA := calculateSMA(previous, s.config.LongPeriod)
	s.mu.Unlock()

	if st == nil {
		return true, nil
	}

	position := st.OrderManager().Position(s.config.Symbol)

	switch {
	case shortMA > longMA && prevShortMA <= prevLongMA && position.IsFlat():
		message := fmt.Sprintf("short MA %.4f crossed above long MA %.4f", shortMA, longMA)
		if _, err := st.Orders().Enter().Now().BuyMarket(s.config.Symbol, 0, message); err != nil {
			return false, err
		}

		st.Log().Debug("Buy signal", zap.Float64("short_ma", shortMA), zap.Float64("long_ma", longMA))
	case shortMA < longMA && prevShortMA >= prevLongMA && position.IsLong():
		message := fmt.Sprintf("short MA %.4f crossed below long MA %.4f", shortMA, longMA)
		if _, err := st.Orders().Exit().Now().GoFlat(s.config.Symbol, message); err != nil {
			return false, err
		}

		st.Log().Debug("Sell signal", zap.Float64("short_ma", shortMA), zap.Float64("long_ma", longMA))
	}

	return true, nil
}

// calculateSMA calculates the simple moving average for the given period
func calculateSMA(data []float64, period int) float64 {
	if len(data) < period {
		return 0
	}

	sum := 0.0
	for i := len(data) - period; i < len(data); i++ {
		sum += data[i]
	}

	return sum / float64(period)
}
