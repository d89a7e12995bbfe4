package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/argo-chain/internal/datagen"
	"github.com/rxtech-lab/argo-chain/internal/engine"
	"github.com/rxtech-lab/argo-chain/internal/logger"
	"github.com/rxtech-lab/argo-chain/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"
)

// runAction loads the config, runs every strategy instance and prints a summary.
func runAction(ctx context.Context, cmd *cli.Command) error {
	level := zapcore.WarnLevel
	if cmd.Bool("debug") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	config, err := engine.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	e, err := engine.New(config, log)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Backtesting"),
		progressbar.OptionShowCount(),
	)
	total := 0

	results, err := e.Run(ctx, cmd.String("data"), cmd.String("results"), engine.Callbacks{
		OnRunStart: func(strategyName string, count int) {
			total += count
			bar.ChangeMax(total)
		},
		OnProcessData: func(strategyName string, current int, count int) {
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()

	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Println()

	for _, result := range results {
		fmt.Printf("%-20s bars=%-8d trades=%-6d pnl=%-12.2f fitness=%-12.4f errors=%d\n",
			result.Name,
			result.Bars,
			result.Stats.TradeResult.NumberOfTrades,
			result.Stats.TradePnl.TotalPnL,
			result.Fitness,
			result.DispatchErrors,
		)
	}

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := engine.EmptyConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	output := cmd.String("output")
	if output == "" {
		fmt.Println(schema)
		return nil
	}

	if err := os.WriteFile(output, []byte(schema), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	log.Printf("Schema written to %s", output)

	return nil
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	config := datagen.DefaultConfig()
	config.Symbols = cmd.StringSlice("symbol")
	config.Count = int(cmd.Int("count"))
	config.Interval = cmd.Duration("interval")
	config.StartTime = cmd.Timestamp("start")
	config.Volatility = cmd.Float("volatility")
	config.Trend = cmd.Float("trend")

	bars, err := datagen.New(int64(cmd.Int("seed"))).Generate(config)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := datagen.Write(output, bars); err != nil {
		return err
	}

	log.Printf("Wrote %d bars to %s", len(bars), output)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "argo-chain",
		Usage:   "Backtest dependency-ordered strategy pipelines",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the backtest config YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the parquet or CSV bar file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Folder the reports are written to",
						Value:   "results",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the backtest config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema to a file instead of stdout",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "generate",
				Usage: "Generate synthetic bars",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, .parquet or .csv",
						Value:   "data/bars.parquet",
					},
					&cli.StringSliceFlag{
						Name:    "symbol",
						Aliases: []string{"s"},
						Usage:   "Symbol to generate, repeatable",
						Value:   []string{"TEST"},
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Bars per symbol",
						Value: 10000,
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "Random seed",
						Value: 42,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Time between bars",
						Value: time.Minute,
					},
					&cli.TimestampFlag{
						Name:  "start",
						Usage: "Time of the first bar in `YYYY-MM-DD` format",
						Value: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.FloatFlag{
						Name:  "volatility",
						Usage: "Standard deviation of the per-bar return",
						Value: 0.002,
					},
					&cli.FloatFlag{
						Name:  "trend",
						Usage: "Total drift over the series",
					},
				},
				Action: generateAction,
			},
			{
				Name:  "version",
				Usage: "Print the engine version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Println(version.GetVersion())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
