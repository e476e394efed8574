// Package backtest implements the deterministic replay engine: it drives a
// strategy function over a historical snapshot sequence, owns the trade
// lifecycle from open to close, and aggregates the closed trades into
// performance metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cwilliams712/polysim/internal/book"
	"github.com/cwilliams712/polysim/internal/domain"
	"github.com/cwilliams712/polysim/internal/risk"
	"github.com/cwilliams712/polysim/internal/strategy"
)

// Config holds every knob the engine recognizes. Validate is called at run
// start; an invalid configuration fails before any simulation work.
type Config struct {
	PositionSizeUSD     float64
	MaxConcurrent       int
	FeePct              float64 // round-trip fee as a fraction of notional
	SpreadMultiplier    float64 // pessimism knob for the fallback fill path
	DefaultMaxHoldHours float64
	ExitOnResolution    bool

	// Static per-snapshot floors; zero disables the floor.
	MinLiquidityUSD float64
	MinVolume24hUSD float64

	// Lookback window handed to the strategy: time-bounded and size-capped.
	LookbackHours        float64
	LookbackMaxSnapshots int

	// RequireTradable gates entries through the book tradability check
	// when the snapshot carries full books.
	RequireTradable bool
	Tradability     book.Thresholds

	// RiskEnabled gates entries through the pre-trade risk checks.
	RiskEnabled bool
	Risk        risk.Limits
}

// DefaultConfig returns the engine defaults: $100 positions, five
// concurrent slots, 2% round-trip fee, 24h lookback.
func DefaultConfig() Config {
	return Config{
		PositionSizeUSD:      100,
		MaxConcurrent:        5,
		FeePct:               0.02,
		SpreadMultiplier:     1.0,
		DefaultMaxHoldHours:  48,
		ExitOnResolution:     true,
		LookbackHours:        24,
		LookbackMaxSnapshots: 100,
		Tradability:          book.DefaultThresholds(),
		Risk:                 risk.DefaultLimits(),
	}
}

// Validate collects every problem with the configuration rather than
// stopping at the first.
func (c Config) Validate() error {
	var errs []error
	if c.PositionSizeUSD <= 0 {
		errs = append(errs, fmt.Errorf("position_size_usd must be positive, got %.2f", c.PositionSizeUSD))
	}
	if c.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent))
	}
	if c.FeePct < 0 || c.FeePct >= 1 {
		errs = append(errs, fmt.Errorf("fee_pct must be in [0,1), got %.4f", c.FeePct))
	}
	if c.SpreadMultiplier < 0 {
		errs = append(errs, fmt.Errorf("spread_multiplier must be non-negative, got %.2f", c.SpreadMultiplier))
	}
	if c.LookbackHours <= 0 {
		errs = append(errs, fmt.Errorf("lookback_hours must be positive, got %.1f", c.LookbackHours))
	}
	if c.LookbackMaxSnapshots <= 0 {
		errs = append(errs, fmt.Errorf("lookback_max_snapshots must be positive, got %d", c.LookbackMaxSnapshots))
	}
	if c.MinLiquidityUSD < 0 || c.MinVolume24hUSD < 0 {
		errs = append(errs, errors.New("liquidity and volume floors must be non-negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("backtest: %w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Result is the complete output of one run. Either all fields are populated
// or Run returned an error; partial results are never produced.
type Result struct {
	Trades      []domain.SimulatedTrade
	Metrics     domain.Metrics
	EquityCurve []domain.EquityPoint
	Snapshots   int
}

// Engine replays snapshots through a strategy. One Engine may serve many
// runs; each Run owns its own simulation state, so independent runs are
// safe concurrently.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "backtest")),
	}
}

// simState is the per-run mutable state threaded through the replay loop.
// It is never shared between runs.
type simState struct {
	open     map[string]*domain.SimulatedTrade
	history  map[string][]domain.Snapshot // newest-first per market
	lastSeen map[string]domain.Snapshot
	closed   []domain.SimulatedTrade

	openNotional      float64
	consecutiveLosses int
	day               string
	dayPnLUSD         float64
	seq               int
}

// Run replays the snapshot sequence through the strategy and returns the
// closed trades, metrics, and equity curve. The input slice is not
// modified. Determinism: given identical inputs, repeated runs produce
// identical results; nothing in the loop reads the wall clock or any
// random source.
func (e *Engine) Run(ctx context.Context, runID string, fn strategy.Func, snaps []domain.Snapshot, markets map[string]domain.Market) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("backtest: %w", domain.ErrNoSnapshots)
	}

	ordered := make([]domain.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	st := &simState{
		open:     make(map[string]*domain.SimulatedTrade),
		history:  make(map[string][]domain.Snapshot),
		lastSeen: make(map[string]domain.Snapshot),
	}

	for _, snap := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest: run cancelled: %w", err)
		}

		day := snap.Timestamp.UTC().Format("2006-01-02")
		if day != st.day {
			st.day = day
			st.dayPnLUSD = 0
		}

		if e.cfg.MinLiquidityUSD > 0 && snap.BookDepthUSD < e.cfg.MinLiquidityUSD {
			continue
		}
		if e.cfg.MinVolume24hUSD > 0 && snap.Volume24h < e.cfg.MinVolume24hUSD {
			continue
		}

		market := markets[snap.MarketID]
		st.lastSeen[snap.MarketID] = snap

		if t, isOpen := st.open[snap.MarketID]; isOpen {
			if price, reason, fired := evaluateExit(t, snap, market, e.cfg); fired {
				e.settle(st, t, snap, price, reason)
			}
		}

		if _, isOpen := st.open[snap.MarketID]; !isOpen && len(st.open) < e.cfg.MaxConcurrent {
			e.tryOpen(st, runID, fn, snap, market)
		}

		st.pushHistory(snap, e.cfg)
	}

	e.forceCloseRemaining(st, markets)

	startingEquity := e.cfg.PositionSizeUSD * float64(e.cfg.MaxConcurrent)
	metrics, equity := CalculateMetrics(st.closed, startingEquity)

	e.logger.Info("run complete",
		slog.String("run_id", runID),
		slog.Int("snapshots", len(ordered)),
		slog.Int("trades", metrics.TotalTrades),
		slog.Float64("total_pnl_usd", metrics.TotalPnLUSD),
	)

	return &Result{
		Trades:      st.closed,
		Metrics:     metrics,
		EquityCurve: equity,
		Snapshots:   len(ordered),
	}, nil
}

// tryOpen invokes the strategy for a market with no open position and, if
// it signals, routes the proposal through the tradability and risk gates
// before opening. Data-quality rejections are silent by design; only the
// decision path is logged at debug.
func (e *Engine) tryOpen(st *simState, runID string, fn strategy.Func, snap domain.Snapshot, market domain.Market) {
	if e.cfg.ExitOnResolution && market.ResolvedAt(snap.Timestamp) {
		// Nothing left to trade once the market has paid out.
		return
	}

	window := st.window(snap, e.cfg)
	decision := fn(snap, window, market)
	if decision.Action == domain.ActionNone || decision.Confidence <= 0 {
		return
	}

	outcome, ok := decision.Action.Outcome()
	if !ok {
		return
	}
	dir, _ := decision.Action.Direction()

	entry := entryFill(snap, outcome, dir, e.cfg.SpreadMultiplier)
	if entry <= 0 || entry >= 1 {
		// Degenerate price: skip the signal, keep replaying.
		return
	}

	if e.cfg.RequireTradable && snap.BookYes != nil && snap.BookNo != nil {
		tr := book.ComputeTradability(snap.BookYes, snap.BookNo, e.cfg.Tradability)
		if !tr.Tradable {
			e.logger.Debug("signal rejected by tradability gate",
				slog.String("market_id", snap.MarketID),
				slog.Any("reasons", tr.FailureReasons),
			)
			return
		}
	}

	size := e.cfg.PositionSizeUSD
	if e.cfg.RiskEnabled {
		byMarket := make(map[string]float64, len(st.open))
		for id, t := range st.open {
			byMarket[id] = t.SizeUSD
		}
		res := risk.CheckTradeRisk(risk.Proposal{
			MarketID:          snap.MarketID,
			Question:          market.Question,
			EntryPrice:        entry,
			SizeUSD:           size,
			LiquidityUSD:      snap.BookDepthUSD,
			HoursToResolution: market.HoursToResolution(snap.Timestamp),
		}, risk.PortfolioState{
			DailyPnLPct:       st.dayPnLUSD / e.cfg.Risk.BankrollUSD,
			ConsecutiveLosses: st.consecutiveLosses,
			OpenExposureUSD:   st.openNotional,
			OpenByMarketUSD:   byMarket,
		}, e.cfg.Risk)
		if !res.Approved {
			e.logger.Debug("signal rejected by risk gate",
				slog.String("market_id", snap.MarketID),
				slog.String("reason", res.Reason),
			)
			return
		}
		size = res.ApprovedUSD
	}

	maxHold := e.cfg.DefaultMaxHoldHours
	if decision.MaxHoldHours != nil {
		maxHold = *decision.MaxHoldHours
	}

	if _, exists := st.open[snap.MarketID]; exists {
		// Unreachable by construction; a second open for the same market
		// is a programming error and must never be silently overwritten.
		panic(domain.ErrPositionExists)
	}

	st.seq++
	t := &domain.SimulatedTrade{
		ID:           fmt.Sprintf("%s-%04d", runID, st.seq),
		RunID:        runID,
		MarketID:     snap.MarketID,
		Question:     market.Question,
		Outcome:      outcome,
		Direction:    dir,
		EntryTime:    snap.Timestamp,
		EntryPrice:   entry,
		SizeUSD:      size,
		Shares:       size / entry,
		TargetPrice:  decision.TargetPrice,
		StopPrice:    decision.StopPrice,
		MaxHoldHours: maxHold,
		Status:       domain.TradeStatusOpen,
		Reason:       decision.Reason,
	}
	st.open[snap.MarketID] = t
	st.openNotional += size

	e.logger.Debug("opened position",
		slog.String("trade_id", t.ID),
		slog.String("market_id", t.MarketID),
		slog.String("action", string(decision.Action)),
		slog.Float64("entry", entry),
		slog.Float64("size_usd", size),
	)
}

// settle closes an open trade and rolls its P&L into the run accumulators.
func (e *Engine) settle(st *simState, t *domain.SimulatedTrade, snap domain.Snapshot, price float64, reason domain.ExitReason) {
	closeTrade(t, snap, price, reason, e.cfg.FeePct)

	delete(st.open, t.MarketID)
	st.openNotional -= t.SizeUSD
	st.dayPnLUSD += t.PnLUSD
	if t.PnLUSD < 0 {
		st.consecutiveLosses++
	} else if t.PnLUSD > 0 {
		st.consecutiveLosses = 0
	}
	st.closed = append(st.closed, *t)

	e.logger.Debug("closed position",
		slog.String("trade_id", t.ID),
		slog.String("exit_reason", string(reason)),
		slog.Float64("exit", price),
		slog.Float64("pnl_usd", t.PnLUSD),
	)
}

// forceCloseRemaining guarantees every opened trade is accounted for in the
// metrics: any position still open after the final snapshot is closed at
// the market's last seen snapshot, with the resolution payout when the
// market resolved and a time-style exit otherwise.
func (e *Engine) forceCloseRemaining(st *simState, markets map[string]domain.Market) {
	// Deterministic ordering over the map.
	ids := make([]string, 0, len(st.open))
	for id := range st.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		t := st.open[id]
		snap, ok := st.lastSeen[id]
		if !ok {
			snap = domain.Snapshot{MarketID: id, Timestamp: t.EntryTime}
		}

		market := markets[id]
		price := exitFill(snap, t, e.cfg.SpreadMultiplier)
		reason := domain.ExitReasonTime
		if e.cfg.ExitOnResolution && market.ResolvedAt(snap.Timestamp) {
			if payout, resolved := market.PayoutFor(t.Outcome); resolved {
				price, reason = payout, domain.ExitReasonResolution
			}
		}

		// Reusing the last snapshot price can understate risk for markets
		// that went quiet long before the run ended, so it is surfaced.
		e.logger.Warn("force-closing trade still open at end of replay",
			slog.String("trade_id", t.ID),
			slog.String("market_id", id),
			slog.String("exit_reason", string(reason)),
		)
		e.settle(st, t, snap, price, reason)
	}
}

// window returns the strategy's view of a market's prior snapshots:
// newest-first, bounded by the lookback horizon relative to the current
// snapshot, and size-capped.
func (st *simState) window(snap domain.Snapshot, cfg Config) []domain.Snapshot {
	hist := st.history[snap.MarketID]
	cutoff := snap.Timestamp.Add(-time.Duration(cfg.LookbackHours * float64(time.Hour)))

	out := hist
	for i, s := range out {
		if s.Timestamp.Before(cutoff) {
			out = out[:i]
			break
		}
	}
	if len(out) > cfg.LookbackMaxSnapshots {
		out = out[:cfg.LookbackMaxSnapshots]
	}
	return out
}

// pushHistory prepends the processed snapshot to its market's window and
// prunes the tail past the cap.
func (st *simState) pushHistory(snap domain.Snapshot, cfg Config) {
	hist := st.history[snap.MarketID]
	hist = append([]domain.Snapshot{snap}, hist...)
	if len(hist) > cfg.LookbackMaxSnapshots {
		hist = hist[:cfg.LookbackMaxSnapshots]
	}
	st.history[snap.MarketID] = hist
}
