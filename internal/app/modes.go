package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cwilliams712/polysim/internal/backtest"
	"github.com/cwilliams712/polysim/internal/book"
	"github.com/cwilliams712/polysim/internal/config"
	"github.com/cwilliams712/polysim/internal/domain"
	"github.com/cwilliams712/polysim/internal/report"
	"github.com/cwilliams712/polysim/internal/risk"
	"github.com/cwilliams712/polysim/internal/strategy"
)

// importChunkSize bounds the per-batch row count during archive imports.
const importChunkSize = 500

// newRegistry builds the strategy registry with parameters taken from
// configuration rather than the built-in defaults.
func newRegistry(cfg *config.Config) *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register("complement", strategy.Complement(strategy.ComplementParams{
		MinEdgeCents: cfg.Strategy.Complement.MinEdgeCents,
		MaxEdgeCents: cfg.Strategy.Complement.MaxEdgeCents,
		TargetPct:    cfg.Strategy.Complement.TargetPct,
	}))
	r.Register("anchoring", strategy.Anchoring(strategy.AnchoringParams{
		MinHistory:      cfg.Strategy.Anchoring.MinHistory,
		MinDeviation:    cfg.Strategy.Anchoring.MinDeviation,
		MaxDeviation:    cfg.Strategy.Anchoring.MaxDeviation,
		VolumeSpikeMult: cfg.Strategy.Anchoring.VolumeSpikeMult,
	}))
	r.Register("low_attention", strategy.LowAttention(strategy.LowAttentionParams{
		MaxVolume24h: cfg.Strategy.LowAttention.MaxVolume24h,
		MinGap:       cfg.Strategy.LowAttention.MinGap,
		MaxGap:       cfg.Strategy.LowAttention.MaxGap,
	}))
	r.Register("deadline", strategy.Deadline(strategy.DeadlineParams{
		MaxHoursToResolution: cfg.Strategy.Deadline.MaxHoursToResolution,
		MinPrice:             cfg.Strategy.Deadline.MinPrice,
		TargetPrice:          cfg.Strategy.Deadline.TargetPrice,
	}))
	return r
}

// engineConfig maps the file configuration onto the replay engine's knobs.
func engineConfig(cfg *config.Config) backtest.Config {
	return backtest.Config{
		PositionSizeUSD:      cfg.Backtest.PositionSizeUSD,
		MaxConcurrent:        cfg.Backtest.MaxConcurrent,
		FeePct:               cfg.Backtest.FeePct,
		SpreadMultiplier:     cfg.Backtest.SpreadMultiplier,
		DefaultMaxHoldHours:  cfg.Backtest.DefaultMaxHoldHours,
		ExitOnResolution:     cfg.Backtest.ExitOnResolution,
		MinLiquidityUSD:      cfg.Backtest.MinLiquidityUSD,
		MinVolume24hUSD:      cfg.Backtest.MinVolume24hUSD,
		LookbackHours:        cfg.Backtest.LookbackHours,
		LookbackMaxSnapshots: cfg.Backtest.LookbackMaxSnapshots,
		RequireTradable:      cfg.Backtest.RequireTradable,
		Tradability:          bookThresholds(cfg),
		RiskEnabled:          cfg.Risk.Enabled,
		Risk:                 riskLimits(cfg),
	}
}

func bookThresholds(cfg *config.Config) book.Thresholds {
	return book.Thresholds{
		MaxSpreadPct:     cfg.Tradability.MaxSpreadPct,
		MinDepthUSD:      cfg.Tradability.MinDepthUSD,
		MaxSlippageCents: cfg.Tradability.MaxSlippageCents,
		ProbeOrderUSD:    cfg.Tradability.ProbeOrderUSD,
		DepthRangePct:    cfg.Tradability.DepthRangePct,
	}
}

func riskLimits(cfg *config.Config) risk.Limits {
	return risk.Limits{
		BankrollUSD:            cfg.Risk.BankrollUSD,
		BlacklistTerms:         cfg.Risk.BlacklistTerms,
		MinLiquidityUSD:        cfg.Risk.MinLiquidityUSD,
		MinHoursToResolution:   cfg.Risk.MinHoursToResolution,
		DailyLossLimitPct:      cfg.Risk.DailyLossLimitPct,
		MaxConsecutiveLosses:   cfg.Risk.MaxConsecutiveLosses,
		MaxTotalExposureUSD:    cfg.Risk.MaxTotalExposureUSD,
		MaxPositionPctBankroll: cfg.Risk.MaxPositionPctBankroll,
		MaxPositionUSD:         cfg.Risk.MaxPositionUSD,
		MaxPctOfLiquidity:      cfg.Risk.MaxPctOfLiquidity,
		MinTradeUSD:            cfg.Risk.MinTradeUSD,
	}
}

// loadReplayInputs fetches the snapshot sequence and market metadata the
// replay modes consume.
func (a *App) loadReplayInputs(ctx context.Context, deps *Dependencies) ([]domain.Snapshot, map[string]domain.Market, error) {
	if deps.SnapshotSource == nil || deps.MarketSource == nil {
		return nil, nil, fmt.Errorf("app: no snapshot source wired for backtest.source=%q", a.cfg.Backtest.Source)
	}

	filter := domain.SnapshotFilter{MarketIDs: a.cfg.Backtest.MarketIDs}
	if !a.cfg.Backtest.Since.IsZero() {
		since := a.cfg.Backtest.Since.Time
		filter.Since = &since
	}
	if !a.cfg.Backtest.Until.IsZero() {
		until := a.cfg.Backtest.Until.Time
		filter.Until = &until
	}

	snaps, err := deps.SnapshotSource.ListSnapshots(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("app: load snapshots: %w", err)
	}

	marketList, err := deps.MarketSource.ListMarkets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("app: load markets: %w", err)
	}
	markets := make(map[string]domain.Market, len(marketList))
	for _, m := range marketList {
		markets[m.ID] = m
	}

	a.logger.InfoContext(ctx, "loaded replay inputs",
		slog.Int("snapshots", len(snaps)),
		slog.Int("markets", len(markets)),
		slog.String("source", a.cfg.Backtest.Source),
	)
	return snaps, markets, nil
}

// runOne executes one strategy over the loaded inputs and persists,
// archives, and notifies per configuration.
func (a *App) runOne(ctx context.Context, deps *Dependencies, name string, snaps []domain.Snapshot, markets map[string]domain.Market) (domain.RunRecord, []domain.SimulatedTrade, error) {
	reg := newRegistry(a.cfg)
	fn, err := reg.Get(name)
	if err != nil {
		return domain.RunRecord{}, nil, err
	}

	engine := backtest.NewEngine(engineConfig(a.cfg), a.logger)
	runID := uuid.New().String()[:8]
	startedAt := time.Now().UTC()

	result, err := engine.Run(ctx, runID, fn, snaps, markets)
	if err != nil {
		if nerr := deps.Notifier.NotifyRunFailed(ctx, runID, name, err); nerr != nil {
			a.logger.WarnContext(ctx, "failure notification not delivered", slog.String("error", nerr.Error()))
		}
		return domain.RunRecord{}, nil, fmt.Errorf("app: run %s (%s): %w", runID, name, err)
	}

	for i := range result.Trades {
		result.Trades[i].Strategy = name
	}

	run := domain.RunRecord{
		ID:         runID,
		Strategy:   name,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Snapshots:  result.Snapshots,
		Metrics:    result.Metrics,
	}

	if a.cfg.Backtest.SaveResults && deps.RunStore != nil {
		if err := deps.RunStore.SaveRun(ctx, run, result.Trades, result.EquityCurve); err != nil {
			return domain.RunRecord{}, nil, fmt.Errorf("app: save run %s: %w", runID, err)
		}
	}

	if a.cfg.Backtest.ArchiveResults && deps.RunArchiver != nil {
		if err := deps.RunArchiver.ArchiveRun(ctx, run, result.Trades, result.EquityCurve); err != nil {
			return domain.RunRecord{}, nil, fmt.Errorf("app: archive run %s: %w", runID, err)
		}
	}

	if err := deps.Notifier.NotifyRunCompleted(ctx, run); err != nil {
		a.logger.WarnContext(ctx, "completion notification not delivered", slog.String("error", err.Error()))
	}

	return run, result.Trades, nil
}

// BacktestMode replays the configured strategy over historical snapshots
// and prints the run report.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	snaps, markets, err := a.loadReplayInputs(ctx, deps)
	if err != nil {
		return err
	}

	run, trades, err := a.runOne(ctx, deps, a.cfg.Strategy.Name, snaps, markets)
	if err != nil {
		return err
	}

	report.NewPrinter(os.Stdout).PrintRun(run, trades)
	return nil
}

// SweepMode replays every strategy in the sweep list over the same snapshot
// sequence concurrently and prints a comparison table.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	snaps, markets, err := a.loadReplayInputs(ctx, deps)
	if err != nil {
		return err
	}

	names := a.cfg.Strategy.Sweep
	runs := make([]domain.RunRecord, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			run, _, err := a.runOne(ctx, deps, name, snaps, markets)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report.NewPrinter(os.Stdout).PrintRunList(runs)
	return nil
}

// CheckMode evaluates the live cached book of each configured market
// against the tradability thresholds and the risk gate.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	if len(a.cfg.Backtest.MarketIDs) == 0 {
		return fmt.Errorf("app: check mode requires backtest.market_ids")
	}

	printer := report.NewPrinter(os.Stdout)
	thresholds := bookThresholds(a.cfg)
	limits := riskLimits(a.cfg)

	fn, err := newRegistry(a.cfg).Get(a.cfg.Strategy.Name)
	if err != nil {
		return err
	}

	for _, marketID := range a.cfg.Backtest.MarketIDs {
		snap, err := deps.BookCache.GetLatest(ctx, marketID)
		if err != nil {
			return fmt.Errorf("app: check %s: %w", marketID, err)
		}

		tr := book.ComputeTradability(snap.BookYes, snap.BookNo, thresholds)
		printer.PrintTradability(marketID, report.TradabilityView{
			SpreadPct:     tr.SpreadPct,
			SpreadScore:   tr.SpreadScore,
			DepthUSD:      tr.DepthUSD,
			DepthScore:    tr.DepthScore,
			SlippageCents: tr.SlippageCents,
			SlippageScore: tr.SlippageScore,
			Score:         tr.Score,
			Tradable:      tr.Tradable,
			Reasons:       tr.FailureReasons,
		})

		res := risk.CheckTradeRisk(risk.Proposal{
			MarketID:          marketID,
			EntryPrice:        snap.PriceYes,
			SizeUSD:           a.cfg.Backtest.PositionSizeUSD,
			LiquidityUSD:      snap.BookDepthUSD,
			HoursToResolution: limits.MinHoursToResolution,
		}, risk.PortfolioState{}, limits)
		if res.Approved {
			fmt.Fprintf(os.Stdout, "risk gate: approved $%.2f\n", res.ApprovedUSD)
		} else {
			fmt.Fprintf(os.Stdout, "risk gate: rejected (%s)\n", res.Reason)
		}

		// Run the configured strategy against the live snapshot and, when it
		// signals, print a Kelly-sized position suggestion. Confidence is
		// used as a crude win-probability proxy; the target and stop bound
		// the win/loss amounts, with a total loss assumed absent a stop.
		decision := fn(snap, nil, domain.Market{ID: marketID})
		if decision.Action == domain.ActionNone {
			fmt.Fprintf(os.Stdout, "strategy %s: no signal\n", a.cfg.Strategy.Name)
			continue
		}
		fmt.Fprintf(os.Stdout, "strategy %s: %s (confidence %.2f) %s\n",
			a.cfg.Strategy.Name, decision.Action, decision.Confidence, decision.Reason)

		if outcome, ok := decision.Action.Outcome(); ok && decision.TargetPrice != nil {
			entry := snap.PriceFor(outcome)
			dir, _ := decision.Action.Direction()

			var winAmount, lossAmount float64
			if dir == domain.DirectionBuy {
				winAmount = *decision.TargetPrice - entry
				lossAmount = entry
				if decision.StopPrice != nil {
					lossAmount = entry - *decision.StopPrice
				}
			} else {
				winAmount = entry - *decision.TargetPrice
				lossAmount = 1 - entry
				if decision.StopPrice != nil {
					lossAmount = *decision.StopPrice - entry
				}
			}
			suggested := risk.KellySize(decision.Confidence, winAmount, lossAmount,
				limits.BankrollUSD, a.cfg.Risk.KellyFactor)
			fmt.Fprintf(os.Stdout, "kelly suggestion: $%.2f\n", suggested)
		}
	}
	return nil
}

// ReportMode renders persisted run results: one run's full detail when
// report.run_id is set, a recent-run index otherwise.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	printer := report.NewPrinter(os.Stdout)

	if a.cfg.Report.RunID != "" {
		run, err := deps.RunStore.GetRun(ctx, a.cfg.Report.RunID)
		if err != nil {
			return fmt.Errorf("app: report run %s: %w", a.cfg.Report.RunID, err)
		}
		trades, err := deps.RunStore.ListTrades(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("app: report trades %s: %w", run.ID, err)
		}
		printer.PrintRun(run, trades)
		return nil
	}

	runs, err := deps.RunStore.ListRuns(ctx, a.cfg.Report.Limit)
	if err != nil {
		return fmt.Errorf("app: report runs: %w", err)
	}
	printer.PrintRunList(runs)
	return nil
}

// ImportMode loads market metadata and snapshots from the S3 archive and
// inserts them into Postgres in bounded batches.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	markets, err := deps.SnapshotArchive.ListMarkets(ctx)
	if err != nil {
		return fmt.Errorf("app: import markets: %w", err)
	}
	for start := 0; start < len(markets); start += importChunkSize {
		end := min(start+importChunkSize, len(markets))
		if err := deps.MarketStore.UpsertBatch(ctx, markets[start:end]); err != nil {
			return fmt.Errorf("app: import markets batch: %w", err)
		}
	}

	filter := domain.SnapshotFilter{MarketIDs: a.cfg.Backtest.MarketIDs}
	snaps, err := deps.SnapshotArchive.ListSnapshots(ctx, filter)
	if err != nil {
		return fmt.Errorf("app: import snapshots: %w", err)
	}
	for start := 0; start < len(snaps); start += importChunkSize {
		end := min(start+importChunkSize, len(snaps))
		if err := deps.SnapshotStore.InsertBatch(ctx, snaps[start:end]); err != nil {
			return fmt.Errorf("app: import snapshots batch: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "import complete",
		slog.Int("markets", len(markets)),
		slog.Int("snapshots", len(snaps)),
	)
	return nil
}
