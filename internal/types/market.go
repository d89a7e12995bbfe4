package types

import "time"

// DefaultTimeframe is the timeframe the coordinator treats as its primary interval
// when no other default is configured.
const DefaultTimeframe = "primary"

// MarketData is a single bar.
type MarketData struct {
	Id     string    `csv:"id" json:"id"`
	Symbol string    `csv:"symbol" json:"symbol"`
	Time   time.Time `csv:"time" json:"time"`
	Open   float64   `csv:"open" json:"open"`
	High   float64   `csv:"high" json:"high"`
	Low    float64   `csv:"low" json:"low"`
	Close  float64   `csv:"close" json:"close"`
	Volume float64   `csv:"volume" json:"volume"`
}

// Interval identifies the interval an event refers to. An empty Timeframe means the
// receiver's default interval.
type Interval struct {
	// Timeframe is the bar size, e.g. "1m" or "1d".
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	// Index is the zero-based bar number within the run.
	Index int `json:"index" yaml:"index"`
	// Bar is the bar the event refers to. At open only Open and Time are guaranteed.
	Bar MarketData `json:"bar" yaml:"bar"`
}

// IsDefault reports whether the interval carries no explicit timeframe.
func (i Interval) IsDefault() bool {
	return i.Timeframe == ""
}

// WithDefault returns the interval with an empty timeframe replaced by timeframe.
func (i Interval) WithDefault(timeframe string) Interval {
	if i.Timeframe == "" {
		i.Timeframe = timeframe
	}

	return i
}
