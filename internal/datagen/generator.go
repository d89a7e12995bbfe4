// Package datagen produces synthetic bars for demos and benchmarks.
package datagen

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/internal/utils"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
)

// Config controls the random walk.
type Config struct {
	Symbols   []string      `yaml:"symbols" json:"symbols" validate:"required,min=1,dive,required"`
	StartTime time.Time     `yaml:"start_time" json:"start_time"`
	Interval  time.Duration `yaml:"interval" json:"interval" validate:"gt=0"`
	// Count is the number of bars per symbol.
	Count        int     `yaml:"count" json:"count" validate:"gt=0"`
	InitialPrice float64 `yaml:"initial_price" json:"initial_price" validate:"gt=0"`
	// Volatility is the standard deviation of the per-bar return, 0.01 is 1%.
	Volatility float64 `yaml:"volatility" json:"volatility" validate:"gte=0"`
	// Trend is the total drift over the series, spread evenly across bars.
	Trend          float64 `yaml:"trend" json:"trend"`
	VolumeBase     float64 `yaml:"volume_base" json:"volume_base" validate:"gte=0"`
	VolumeVariance float64 `yaml:"volume_variance" json:"volume_variance" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		Symbols:        []string{"TEST"},
		StartTime:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          10000,
		InitialPrice:   100.0,
		Volatility:     0.002,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generator draws geometric Brownian motion bars. The same seed gives the same bars.
type Generator struct {
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Generate returns the bars of every symbol ordered by time, then symbol. Symbols
// after the first start from a price and volatility within 20% of the configured ones.
func (g *Generator) Generate(config Config) ([]types.MarketData, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid generator config", err)
	}

	bars := make([]types.MarketData, 0, config.Count*len(config.Symbols))

	for i, symbol := range config.Symbols {
		price := config.InitialPrice
		volatility := config.Volatility

		if i > 0 {
			price *= 0.8 + g.rng.Float64()*0.4
			volatility *= 0.8 + g.rng.Float64()*0.4
		}

		bars = append(bars, g.walk(symbol, price, volatility, config)...)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].Time.Equal(bars[j].Time) {
			return bars[i].Time.Before(bars[j].Time)
		}

		return bars[i].Symbol < bars[j].Symbol
	})

	return bars, nil
}

func (g *Generator) walk(symbol string, price float64, volatility float64, config Config) []types.MarketData {
	bars := make([]types.MarketData, config.Count)
	at := config.StartTime
	drift := config.Trend / float64(config.Count)

	for i := range bars {
		open := price

		// Box-Muller
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		close := open * (1 + volatility*z + drift)
		if close <= 0 {
			close = open * 0.99
		}

		high := math.Max(open, close) + g.rng.Float64()*volatility*open*0.5
		low := math.Min(open, close) - g.rng.Float64()*volatility*open*0.5

		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volume := config.VolumeBase * (1 + (g.rng.Float64()*2-1)*config.VolumeVariance)

		bars[i] = types.MarketData{
			Symbol: symbol,
			Time:   at,
			Open:   utils.RoundToDecimalPrecision(open, 4),
			High:   utils.RoundToDecimalPrecision(high, 4),
			Low:    utils.RoundToDecimalPrecision(low, 4),
			Close:  utils.RoundToDecimalPrecision(close, 4),
			Volume: utils.RoundToDecimalPrecision(volume, 2),
		}

		price = close
		at = at.Add(config.Interval)
	}

	return bars
}
