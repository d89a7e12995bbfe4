package performance

import (
	"context"
	"sync/atomic"

	"github.com/rxtech-lab/argo-chain/internal/types"
)

const (
	EquityCurveName = "EquityCurve"
	ExposureName    = "Exposure"
)

// equityCurve samples equity at every default-interval close.
type equityCurve struct {
	perf   *Performance
	closed atomic.Bool
}

func (e *equityCurve) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	return true, nil
}

func (e *equityCurve) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if e.closed.Load() || !interval.IsDefault() {
		return true, nil
	}

	e.perf.recordEquity(interval.Bar.Time)

	return true, nil
}

func (e *equityCurve) Close() error {
	e.closed.Store(true)
	return nil
}

// exposure counts default-interval closes and those with an open position.
type exposure struct {
	perf   *Performance
	closed atomic.Bool
}

func (e *exposure) OnBeforeIntervalOpen(ctx context.Context, interval types.Interval) (bool, error) {
	return true, nil
}

func (e *exposure) OnBeforeIntervalClose(ctx context.Context, interval types.Interval) (bool, error) {
	if e.closed.Load() || !interval.IsDefault() {
		return true, nil
	}

	e.perf.recordExposure()

	return true, nil
}

func (e *exposure) Close() error {
	e.closed.Store(true)
	return nil
}
