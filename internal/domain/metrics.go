package domain

import (
	"context"
	"time"
)

// Metrics summarizes the risk-adjusted performance of a set of closed
// trades. All ratio fields fall back to well-defined values (0, or +Inf
// for ProfitFactor) instead of dividing by zero; see the aggregator for
// the exact rules.
type Metrics struct {
	TotalTrades int
	Wins        int
	Losses      int
	BreakEven   int
	WinRate     float64 // 0..1

	GrossWinsUSD   float64
	GrossLossesUSD float64 // absolute value
	TotalPnLUSD    float64
	AvgPnLUSD      float64
	AvgPnLPct      float64
	ProfitFactor   float64 // +Inf when wins exist and losses are zero

	StartingEquity float64
	FinalEquity    float64
	MaxDrawdownPct float64
	MaxDrawdownUSD float64

	AvgHoldHours float64
	Sharpe       float64
	Sortino      float64
}

// RunRecord is the persisted header of one completed backtest run.
type RunRecord struct {
	ID         string
	Strategy   string
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshots  int
	Metrics    Metrics
}

// RunStore persists completed backtest runs with their trades and equity
// curve. Partial writes are not exposed: a run is saved in full or not at
// all.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord, trades []SimulatedTrade, equity []EquityPoint) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListTrades(ctx context.Context, runID string) ([]SimulatedTrade, error)
	ListEquity(ctx context.Context, runID string) ([]EquityPoint, error)
}
