package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/confluence/internal/alertengine"
	"github.com/sawpanic/confluence/internal/backtest"
	"github.com/sawpanic/confluence/internal/config"
	"github.com/sawpanic/confluence/internal/confluence"
	"github.com/sawpanic/confluence/internal/domain"
	"github.com/sawpanic/confluence/internal/httpapi"
	"github.com/sawpanic/confluence/internal/metrics"
	"github.com/sawpanic/confluence/internal/producer"
	"github.com/sawpanic/confluence/internal/scheduler"
	"github.com/sawpanic/confluence/internal/store"
	"github.com/sawpanic/confluence/internal/store/postgres"
)

const version = "v0.1.0"

var cfgPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:     "confluence",
		Short:   "Signal fusion engine: seven-layer confluence scoring, alerting, and backtesting",
		Version: version,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config/confluence.yaml", "path to the YAML configuration file")

	root.AddCommand(
		serveCmd(),
		schedulerCmd(),
		scanCmd(),
		backtestCmd(),
		healthCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func openStore() (store.Store, config.Resolved, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, config.Resolved{}, fmt.Errorf("load config: %w", err)
	}
	s, err := postgres.Open(cfg.Database)
	if err != nil {
		return nil, config.Resolved{}, fmt.Errorf("open store: %w", err)
	}
	return s, cfg, nil
}

// buildProducers constructs the closed set of seven layer producers, per
// SPEC_FULL.md's static producer registration (the scheduler never
// discovers producers dynamically).
func buildProducers(s store.Store, universe config.UniverseSection) []producer.Producer {
	return []producer.Producer{
		producer.NewTA(s),
		producer.NewOnChain(s),
		producer.NewCelestial(s),
		producer.NewNumerology(s, domain.SymbolId(universe.BenchmarkSymbol), domain.Timeframe(universe.BenchmarkTimeframe), universe.NumerologyWatchedNumber),
		producer.NewSentiment(s),
		producer.NewPolitical(s),
		producer.NewMacro(s),
	}
}

func symbols(universe config.UniverseSection) []domain.SymbolId {
	out := make([]domain.SymbolId, len(universe.Symbols))
	for i, sym := range universe.Symbols {
		out[i] = domain.SymbolId(sym)
	}
	return out
}

func timeframes(universe config.UniverseSection) []domain.Timeframe {
	out := make([]domain.Timeframe, len(universe.Timeframes))
	for i, tf := range universe.Timeframes {
		out[i] = domain.Timeframe(tf)
	}
	return out
}

// schedulerCmd runs the production job loop: one job per producer (iterating
// every symbol/timeframe the producer is scoped to), a confluence evaluation
// job offset after them, and a periodic/sentiment alert-evaluation job.
func schedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the production job scheduler",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the scheduler daemon (blocks until interrupted)",
		RunE:  runScheduler,
	})
	return cmd
}

func runScheduler(cmd *cobra.Command, args []string) error {
	s, cfg, err := openStore()
	if err != nil {
		return err
	}
	reg := metrics.New()

	producers := buildProducers(s, cfg.Universe)
	engine := confluence.NewEngine(s)
	alerts := alertengine.NewEngine(s)

	syms := symbols(cfg.Universe)
	tfs := timeframes(cfg.Universe)

	ownerID := fmt.Sprintf("confluence-scheduler-%d", os.Getpid())
	sched := scheduler.New(s.Leases(), ownerID, cfg.Scheduler)

	for _, p := range producers {
		p := p
		sched.AddJob(scheduler.Job{
			Name:     "produce." + string(p.Layer()),
			Cadence:  p.Cadence(),
			LeaseTTL: 2 * p.Cadence(),
			Run: func(ctx context.Context, at time.Time) error {
				return runProducerTick(ctx, p, syms, tfs, reg, at)
			},
		})
	}

	sched.AddJob(scheduler.Job{
		Name:     "confluence.eval",
		Cadence:  time.Hour,
		Offset:   cfg.Scheduler.ConfluenceOffset,
		LeaseTTL: 2 * time.Hour,
		Run: func(ctx context.Context, at time.Time) error {
			return runConfluenceTick(ctx, engine, alerts, syms, tfs, at)
		},
	})

	sched.AddJob(scheduler.Job{
		Name:     "alerts.periodic",
		Cadence:  time.Hour,
		Offset:   2 * cfg.Scheduler.ConfluenceOffset,
		LeaseTTL: time.Hour,
		Run: func(ctx context.Context, at time.Time) error {
			return runPeriodicAlertsTick(ctx, alerts, syms, at)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return sched.Run(ctx)
}

func runProducerTick(ctx context.Context, p producer.Producer, syms []domain.SymbolId, tfs []domain.Timeframe, reg *metrics.Registry, at time.Time) error {
	timer := reg.StartJob("produce." + string(p.Layer()))
	var lastErr error
	symList := syms
	if !p.Layer().RequiresSymbol() {
		symList = []domain.SymbolId{""}
	}
	tfList := tfs
	if !p.Layer().RequiresTimeframe() {
		tfList = []domain.Timeframe{""}
	}
	for _, sym := range symList {
		for _, tf := range tfList {
			if _, err := p.Produce(ctx, sym, tf, at); err != nil {
				log.Warn().Err(err).Str("layer", string(p.Layer())).Str("symbol", string(sym)).Msg("producer tick failed")
				lastErr = err
			}
		}
	}
	timer.Stop(lastErr == nil)
	return lastErr
}

func runConfluenceTick(ctx context.Context, engine *confluence.Engine, alerts *alertengine.Engine, syms []domain.SymbolId, tfs []domain.Timeframe, at time.Time) error {
	var lastErr error
	for _, sym := range syms {
		for _, tf := range tfs {
			composite, err := engine.ComputeComposite(ctx, sym, tf, at)
			if err != nil {
				log.Warn().Err(err).Str("symbol", string(sym)).Str("timeframe", string(tf)).Msg("confluence computation failed")
				lastErr = err
				continue
			}
			if _, err := alerts.ProcessComposite(ctx, composite); err != nil {
				log.Warn().Err(err).Msg("alert evaluation failed")
				lastErr = err
			}
		}
	}
	return lastErr
}

func runPeriodicAlertsTick(ctx context.Context, alerts *alertengine.Engine, syms []domain.SymbolId, at time.Time) error {
	var lastErr error
	if _, err := alerts.EvaluateGlobal(ctx, at); err != nil {
		lastErr = err
	}
	for _, sym := range syms {
		if _, err := alerts.EvaluateSentiment(ctx, sym, at); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// serveCmd starts the read-only HTTP surface over whatever the scheduler has
// already written; it never runs producers itself, so it can scale
// independently from the job daemon.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WebSocket API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			registry := httpapi.NewBacktestRegistry()
			srv, err := httpapi.NewServer(s, registry, cfg.HTTP)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

// scanCmd runs every producer and the confluence engine once for a single
// symbol/timeframe and prints the resulting composite, for operational
// smoke-testing without waiting on the scheduler's cadence.
func scanCmd() *cobra.Command {
	var symbol, timeframe string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run producers and compute one composite on demand",
	}
	once := &cobra.Command{
		Use:   "once",
		Short: "Run one scan pass and print the composite",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			sym := domain.SymbolId(symbol)
			tf := domain.Timeframe(timeframe)
			if !tf.Valid() {
				return fmt.Errorf("invalid timeframe %q", timeframe)
			}
			now := time.Now().UTC()

			for _, p := range buildProducers(s, cfg.Universe) {
				runSym, runTF := sym, tf
				if !p.Layer().RequiresSymbol() {
					runSym = ""
				}
				if !p.Layer().RequiresTimeframe() {
					runTF = ""
				}
				if _, err := p.Produce(cmd.Context(), runSym, runTF, now); err != nil {
					log.Warn().Err(err).Str("layer", string(p.Layer())).Msg("producer failed during scan once")
				}
			}

			composite, err := confluence.NewEngine(s).ComputeComposite(cmd.Context(), sym, tf, now)
			if err != nil {
				return err
			}
			return printJSON(composite)
		},
	}
	once.Flags().StringVar(&symbol, "symbol", "BTC/USDT", "symbol to scan")
	once.Flags().StringVar(&timeframe, "timeframe", "1h", "timeframe to scan")
	cmd.AddCommand(once)
	return cmd
}

func backtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run offline backtests",
	}
	cmd.AddCommand(backtestSignalsCmd(), backtestCycleCmd())
	return cmd
}

func backtestSignalsCmd() *cobra.Command {
	var symbol, timeframe, from, to, step, maxHold string
	var enterAt, exitAt float64
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Walk-forward backtest the composite-threshold entry/exit rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			fromT, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			stepD, err := time.ParseDuration(step)
			if err != nil {
				return fmt.Errorf("--step: %w", err)
			}
			holdD, err := time.ParseDuration(maxHold)
			if err != nil {
				return fmt.Errorf("--max-hold: %w", err)
			}
			report, err := backtest.RunSignalBacktest(cmd.Context(), s, backtest.SignalBacktestConfig{
				Symbol: domain.SymbolId(symbol), Timeframe: domain.Timeframe(timeframe),
				From: fromT, To: toT, Step: stepD, EnterAt: enterAt, ExitAt: exitAt, MaxHold: holdD,
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "BTC/USDT", "symbol to backtest")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1h", "timeframe to backtest")
	cmd.Flags().StringVar(&from, "from", "", "RFC3339 start instant (required)")
	cmd.Flags().StringVar(&to, "to", "", "RFC3339 end instant (required)")
	cmd.Flags().StringVar(&step, "step", "1h", "walker step duration")
	cmd.Flags().StringVar(&maxHold, "max-hold", "72h", "maximum holding period")
	cmd.Flags().Float64Var(&enterAt, "enter-at", 0.5, "composite threshold to enter a position")
	cmd.Flags().Float64Var(&exitAt, "exit-at", 0.1, "absolute composite threshold to exit a position")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func backtestCycleCmd() *cobra.Command {
	var symbol, timeframe, from, to string
	var periodDays, toleranceDays int
	var drawdownPct float64
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Test whether drawdown events cluster near a candidate period",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			fromT, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			report, err := backtest.RunCycleBacktest(cmd.Context(), s, domain.SymbolId(symbol), domain.Timeframe(timeframe),
				fromT, toT, periodDays, toleranceDays, drawdownPct, backtest.DefaultDrawdownWindow)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "BTC/USDT", "symbol whose candles feed the drawdown detector")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1d", "timeframe for the drawdown series")
	cmd.Flags().StringVar(&from, "from", "", "RFC3339 start instant (required)")
	cmd.Flags().StringVar(&to, "to", "", "RFC3339 end instant (required)")
	cmd.Flags().IntVar(&periodDays, "period-days", 47, "candidate period to test intervals against")
	cmd.Flags().IntVar(&toleranceDays, "tolerance-days", 2, "tolerance in days around k*period")
	cmd.Flags().Float64Var(&drawdownPct, "drawdown-pct", backtest.DefaultDrawdownPct, "drawdown threshold defining a significant event")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and print status as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openStore()
			if err != nil {
				return printJSON(map[string]interface{}{"status": "down", "error": err.Error()})
			}
			_, err = s.WeightProfiles().Active(cmd.Context())
			if err != nil {
				return printJSON(map[string]interface{}{"status": "degraded", "error": err.Error()})
			}
			return printJSON(map[string]interface{}{"status": "ok", "time": time.Now().UTC()})
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
