// Package datasource reads bars for the backtest engine.
package datasource

import (
	"iter"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-chain/internal/types"
)

type DataSource interface {
	// Initialize loads the bars of a parquet or CSV file
	Initialize(path string) error
	// ReadAll yields the bars between start and end in time order
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.MarketData, error]
	// ReadLastData reads the last bar of a symbol
	ReadLastData(symbol string) (types.MarketData, error)
	// Count returns the number of bars between start and end
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources
	Close() error
}
