// Package engine runs backtests: it reads bars from a data source and drives one
// strategy coordinator per configured instance.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rxtech-lab/argo-chain/internal/broker"
	"github.com/rxtech-lab/argo-chain/internal/datasource"
	"github.com/rxtech-lab/argo-chain/internal/exitstrategy"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/performance"
	"github.com/rxtech-lab/argo-chain/internal/positionsize"
	"github.com/rxtech-lab/argo-chain/internal/report"
	"github.com/rxtech-lab/argo-chain/internal/signal"
	"github.com/rxtech-lab/argo-chain/internal/strategy"
	"github.com/rxtech-lab/argo-chain/internal/types"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DataSourceFactory opens a data source. Every instance gets its own.
type DataSourceFactory func(log *logger.Logger) (datasource.DataSource, error)

// OnProcessDataCallback is called after each bar an instance processes.
type OnProcessDataCallback func(strategyName string, current int, total int)

// OnRunStartCallback is called once the instance knows how many bars it will process.
type OnRunStartCallback func(strategyName string, total int)

// Callbacks may be called from several goroutines at once.
type Callbacks struct {
	OnRunStart    OnRunStartCallback
	OnProcessData OnProcessDataCallback
}

type Option func(e *Engine)

// WithDataSourceFactory replaces the DuckDB data source.
func WithDataSourceFactory(factory DataSourceFactory) Option {
	return func(e *Engine) {
		e.newDataSource = factory
	}
}

// WithSink replaces the report sink of every instance.
func WithSink(sink report.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// Result is the outcome of one instance.
type Result struct {
	Name           string           `yaml:"name" json:"name"`
	Folder         string           `yaml:"folder" json:"folder"`
	Bars           int              `yaml:"bars" json:"bars"`
	DispatchErrors int              `yaml:"dispatch_errors" json:"dispatch_errors"`
	Fitness        float64          `yaml:"fitness" json:"fitness"`
	Stats          types.TradeStats `yaml:"stats" json:"stats"`
	Written        bool             `yaml:"written" json:"written"`
}

type Engine struct {
	config        Config
	log           *logger.Logger
	newDataSource DataSourceFactory
	sink          report.Sink
}

// New creates an engine for a validated config.
func New(config Config, log *logger.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	e := &Engine{
		config: config,
		log:    log,
		newDataSource: func(log *logger.Logger) (datasource.DataSource, error) {
			return datasource.NewDataSource(log)
		},
		sink: report.MultiSink{report.NewYAMLSink(), report.NewParquetSink()},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func (e *Engine) Config() Config {
	return e.config
}

// Run backtests every instance against the data file, concurrently, and writes each
// report into resultsFolder/<name>. The first failing instance cancels the others.
func (e *Engine) Run(ctx context.Context, dataPath string, resultsFolder string, callbacks Callbacks) ([]Result, error) {
	if dataPath == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "data path is required")
	}

	if resultsFolder == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "results folder is required")
	}

	if _, err := os.Stat(dataPath); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "data file %s", dataPath)
	}

	if err := os.MkdirAll(resultsFolder, 0755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeReportFailed, err, "failed to create results folder %s", resultsFolder)
	}

	e.log.Info("Backtest started",
		zap.String("data", dataPath),
		zap.String("results", resultsFolder),
		zap.Int("strategies", len(e.config.Strategies)),
	)

	results := make([]Result, len(e.config.Strategies))
	group, groupCtx := errgroup.WithContext(ctx)

	var callbackMu sync.Mutex

	safe := Callbacks{}
	if callbacks.OnRunStart != nil {
		safe.OnRunStart = func(name string, total int) {
			callbackMu.Lock()
			defer callbackMu.Unlock()

			callbacks.OnRunStart(name, total)
		}
	}

	if callbacks.OnProcessData != nil {
		safe.OnProcessData = func(name string, current int, total int) {
			callbackMu.Lock()
			defer callbackMu.Unlock()

			callbacks.OnProcessData(name, current, total)
		}
	}

	for i, instance := range e.config.Strategies {
		group.Go(func() error {
			result, err := e.runInstance(groupCtx, instance, dataPath, resultsFolder, safe)
			if err != nil {
				return fmt.Errorf("strategy %s failed: %w", instance.Name, err)
			}

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		e.log.Error("Backtest failed", zap.Error(err))
		return nil, err
	}

	e.log.Info("Backtest finished", zap.Int("strategies", len(results)))

	return results, nil
}

func (e *Engine) runInstance(ctx context.Context, instance StrategyConfig, dataPath string, resultsFolder string, callbacks Callbacks) (Result, error) {
	log := &logger.Logger{Logger: e.log.With(zap.String("strategy", instance.Name))}
	result := Result{Name: instance.Name, Folder: filepath.Join(resultsFolder, instance.Name)}

	source, err := e.newDataSource(log)
	if err != nil {
		return result, err
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return result, err
	}

	total, err := source.Count(e.config.StartTime, e.config.EndTime)
	if err != nil {
		return result, err
	}

	if callbacks.OnRunStart != nil {
		callbacks.OnRunStart(instance.Name, total)
	}

	st, paper, err := e.newStrategy(instance, log)
	if err != nil {
		return result, err
	}
	defer closeStrategy(st, log)

	for bar, err := range source.ReadAll(e.config.StartTime, e.config.EndTime) {
		if err != nil {
			return result, err
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		paper.UpdateMarketData(bar)

		interval := types.Interval{Timeframe: e.config.Timeframe, Index: result.Bars, Bar: bar}

		if _, err := st.OnBeforeIntervalOpen(ctx, interval); err != nil {
			result.DispatchErrors++
		}

		if _, err := st.OnBeforeIntervalClose(ctx, interval); err != nil {
			result.DispatchErrors++
		}

		result.Bars++

		if callbacks.OnProcessData != nil {
			callbacks.OnProcessData(instance.Name, result.Bars, total)
		}
	}

	written, err := st.OnWriteReport(result.Folder)
	if err != nil {
		return result, err
	}

	result.Written = written
	result.Fitness = st.OnGetFitness()
	result.Stats = st.Performance().Stats()

	log.Info("Strategy finished",
		zap.Int("bars", result.Bars),
		zap.Int("dispatch_errors", result.DispatchErrors),
		zap.Int("trades", result.Stats.TradeResult.NumberOfTrades),
		zap.Float64("fitness", result.Fitness),
	)

	return result, nil
}

// closeStrategy releases the strategy's metric stages and logs a failure.
func closeStrategy(st io.Closer, log *logger.Logger) {
	if err := st.Close(); err != nil {
		log.Warn("Failed to close strategy", zap.Error(err))
	}
}

func (e *Engine) newStrategy(instance StrategyConfig, log *logger.Logger) (*strategy.Strategy, *broker.PaperBroker, error) {
	commission := e.config.CommissionFor(instance)

	paper := broker.NewPaperBroker(broker.PaperBrokerConfig{
		InitialBalance:   e.config.InitialCapital,
		Commission:       commission,
		DecimalPrecision: e.config.DecimalPrecision,
		AllowShort:       e.config.AllowShort,
	}, log)

	handler, err := signal.NewSMACrossover(instance.Signal)
	if err != nil {
		return nil, nil, err
	}

	size, err := positionsize.New(instance.PositionSize, log)
	if err != nil {
		return nil, nil, err
	}

	perf := performance.New(log,
		performance.WithSink(e.sink),
		performance.WithInitialCapital(e.config.InitialCapital),
	)

	st, err := strategy.New(instance.Name, handler, strategy.Dependencies{
		Broker:       paper,
		Account:      paper,
		Commission:   commission,
		ExitStrategy: exitstrategy.New(instance.ExitStrategy, log),
		PositionSize: size,
		Performance:  perf,
		Log:          log,
	}, strategy.WithDefaultTimeframe(e.config.Timeframe))
	if err != nil {
		return nil, nil, err
	}

	return st, paper, nil
}
