package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	engine "github.com/marelab/backsim/internal/backtest/engine/engine_v1"
	"github.com/marelab/backsim/internal/backtest/engine/engine_v1/datasource"
	"github.com/marelab/backsim/internal/logger"
	"github.com/marelab/backsim/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// runAction replays a signal file over a bar file and writes the results.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	barsPath := cmd.String("bars")
	signalsPath := cmd.String("signals")
	outputPath := cmd.String("out")

	logInstance, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logInstance.Sync()

	configContent, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config, err := engine.ParseConfig(string(configContent))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	source, err := datasource.NewDataSource(logInstance)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer source.Close()

	if err := source.Initialize(barsPath); err != nil {
		return fmt.Errorf("failed to load bars: %w", err)
	}

	signals, err := loadSignals(signalsPath)
	if err != nil {
		return fmt.Errorf("failed to load signals: %w", err)
	}

	backtester, err := engine.NewBacktestEngineV1(config, logInstance)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer backtester.Close()

	total, err := source.Count(config.StartTime, config.EndTime)
	if err != nil {
		return fmt.Errorf("failed to count bars: %w", err)
	}

	progress := progressbar.Default(int64(total), "replaying bars")

	if err := replay(backtester, source, config, signals, progress); err != nil {
		return err
	}

	if err := writeResults(backtester, outputPath); err != nil {
		return err
	}

	metrics := backtester.ComputeMetrics()
	logInstance.Info("backtest complete",
		zap.Float64("final_equity", metrics.FinalEquity),
		zap.Float64("net_profit", metrics.NetProfit),
		zap.Int("total_trades", metrics.TotalTrades),
		zap.Float64("win_rate", metrics.WinRate),
	)

	return nil
}

// replay feeds bars to the engine one timestamp at a time. Bars sharing a
// timestamp form one step; signals are submitted before the step that covers
// their time.
func replay(backtester *engine.BacktestEngineV1, source datasource.DataSource, config engine.Config, signals []types.Signal, progress *progressbar.ProgressBar) error {
	var (
		stepTime time.Time
		pending  = make(map[string]types.Bar)
		next     int
		replayErr error
	)

	step := func() error {
		if len(pending) == 0 {
			return nil
		}

		for next < len(signals) && !signals[next].Time.After(stepTime) {
			backtester.SubmitSignal(signals[next])
			next++
		}

		if err := backtester.StepTo(stepTime, pending); err != nil {
			return fmt.Errorf("run halted at %s: %w", stepTime.Format(time.RFC3339), err)
		}

		pending = make(map[string]types.Bar)

		return nil
	}

	source.ReadAll(config.StartTime, config.EndTime)(func(bar types.Bar, err error) bool {
		if err != nil {
			replayErr = err

			return false
		}

		if len(pending) > 0 && !bar.Time.Equal(stepTime) {
			if err := step(); err != nil {
				replayErr = err

				return false
			}
		}

		stepTime = bar.Time
		pending[bar.Symbol] = bar

		progress.Add(1)

		return true
	})

	if replayErr != nil {
		return replayErr
	}

	return step()
}

func writeResults(backtester *engine.BacktestEngineV1, outputPath string) error {
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := backtester.ExportTrades(filepath.Join(outputPath, "trades.csv")); err != nil {
		return fmt.Errorf("failed to export trades: %w", err)
	}

	if err := types.WriteMetrics(filepath.Join(outputPath, "stats.yaml"), backtester.ComputeMetrics()); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	if err := backtester.WriteLedger(filepath.Join(outputPath, "ledger")); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	return nil
}

// schemaAction prints the JSON schema for the engine configuration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := engine.EmptyConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backsim",
		Usage: "Deterministic backtest execution engine",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Replay a signal file over a bar file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine configuration YAML",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "bars",
						Aliases:  []string{"b"},
						Usage:    "Path to the bar data file (.csv or .parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signals",
						Aliases:  []string{"s"},
						Usage:    "Path to the signal replay CSV",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Path to the results output directory",
						Value:   "results",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the engine configuration",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
