package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwilliams712/polysim/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL. Metrics are stored
// as individual columns rather than JSONB because ProfitFactor can be +Inf,
// which float8 accepts and JSON does not.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runCols = `id, strategy, started_at, finished_at, snapshots,
	total_trades, wins, losses, break_even, win_rate,
	gross_wins_usd, gross_losses_usd, total_pnl_usd, avg_pnl_usd, avg_pnl_pct,
	profit_factor, starting_equity, final_equity,
	max_drawdown_pct, max_drawdown_usd, avg_hold_hours, sharpe, sortino`

const tradeCols = `id, run_id, market_id, question, strategy,
	outcome, direction, entry_time, entry_price, size_usd, shares,
	target_price, stop_price, max_hold_hours, status,
	exit_time, exit_price, exit_reason,
	gross_pnl_usd, pnl_usd, pnl_pct, reason`

// SaveRun persists a completed run together with its trades and equity
// curve in a single transaction.
func (s *RunStore) SaveRun(ctx context.Context, run domain.RunRecord, trades []domain.SimulatedTrade, equity []domain.EquityPoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save run %s: %w", run.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m := run.Metrics
	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (`+runCols+`)
		VALUES ($1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23)`,
		run.ID, run.Strategy, run.StartedAt, run.FinishedAt, run.Snapshots,
		m.TotalTrades, m.Wins, m.Losses, m.BreakEven, m.WinRate,
		m.GrossWinsUSD, m.GrossLossesUSD, m.TotalPnLUSD, m.AvgPnLUSD, m.AvgPnLPct,
		m.ProfitFactor, m.StartingEquity, m.FinalEquity,
		m.MaxDrawdownPct, m.MaxDrawdownUSD, m.AvgHoldHours, m.Sharpe, m.Sortino,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}

	if len(trades) > 0 {
		batch := &pgx.Batch{}
		const tradeInsert = `
			INSERT INTO backtest_trades (` + tradeCols + `)
			VALUES ($1, $2, $3, $4, $5,
				$6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15,
				$16, $17, $18,
				$19, $20, $21, $22)`
		for _, t := range trades {
			batch.Queue(tradeInsert,
				t.ID, run.ID, t.MarketID, t.Question, t.Strategy,
				string(t.Outcome), string(t.Direction), t.EntryTime, t.EntryPrice, t.SizeUSD, t.Shares,
				t.TargetPrice, t.StopPrice, t.MaxHoldHours, string(t.Status),
				t.ExitTime, t.ExitPrice, string(t.ExitReason),
				t.GrossPnLUSD, t.PnLUSD, t.PnLPct, t.Reason,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range trades {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close trade batch: %w", err)
		}
	}

	if len(equity) > 0 {
		batch := &pgx.Batch{}
		const equityInsert = `
			INSERT INTO backtest_equity (run_id, trade_id, ts, equity, peak, drawdown_pct)
			VALUES ($1, $2, $3, $4, $5, $6)`
		for _, p := range equity {
			batch.Queue(equityInsert,
				run.ID, p.TradeID, p.Time, p.Equity, p.Peak, p.DrawdownPct,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range equity {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: insert equity batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close equity batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save run %s: %w", run.ID, err)
	}
	return nil
}

// scanRun scans a single run row into a domain.RunRecord.
func scanRun(row pgx.Row) (domain.RunRecord, error) {
	var r domain.RunRecord
	m := &r.Metrics
	err := row.Scan(
		&r.ID, &r.Strategy, &r.StartedAt, &r.FinishedAt, &r.Snapshots,
		&m.TotalTrades, &m.Wins, &m.Losses, &m.BreakEven, &m.WinRate,
		&m.GrossWinsUSD, &m.GrossLossesUSD, &m.TotalPnLUSD, &m.AvgPnLUSD, &m.AvgPnLPct,
		&m.ProfitFactor, &m.StartingEquity, &m.FinalEquity,
		&m.MaxDrawdownPct, &m.MaxDrawdownUSD, &m.AvgHoldHours, &m.Sharpe, &m.Sortino,
	)
	if err != nil {
		return domain.RunRecord{}, err
	}
	return r, nil
}

// GetRun retrieves a run header by its ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runCols+` FROM backtest_runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RunRecord{}, domain.ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	query := `SELECT ` + runCols + ` FROM backtest_runs ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return runs, nil
}

// ListTrades returns the trades of a run ordered by exit time.
func (s *RunStore) ListTrades(ctx context.Context, runID string) ([]domain.SimulatedTrade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM backtest_trades WHERE run_id = $1 ORDER BY exit_time, id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.SimulatedTrade
	for rows.Next() {
		var t domain.SimulatedTrade
		var outcome, direction, status, exitReason string
		if err := rows.Scan(
			&t.ID, &t.RunID, &t.MarketID, &t.Question, &t.Strategy,
			&outcome, &direction, &t.EntryTime, &t.EntryPrice, &t.SizeUSD, &t.Shares,
			&t.TargetPrice, &t.StopPrice, &t.MaxHoldHours, &status,
			&t.ExitTime, &t.ExitPrice, &exitReason,
			&t.GrossPnLUSD, &t.PnLUSD, &t.PnLPct, &t.Reason,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Outcome = domain.Outcome(outcome)
		t.Direction = domain.Direction(direction)
		t.Status = domain.TradeStatus(status)
		t.ExitReason = domain.ExitReason(exitReason)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return trades, nil
}

// ListEquity returns the equity curve of a run ordered by time.
func (s *RunStore) ListEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT trade_id, ts, equity, peak, drawdown_pct
		 FROM backtest_equity WHERE run_id = $1 ORDER BY ts, trade_id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list equity for run %s: %w", runID, err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.TradeID, &p.Time, &p.Equity, &p.Peak, &p.DrawdownPct); err != nil {
			return nil, fmt.Errorf("postgres: scan equity point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list equity rows: %w", err)
	}
	return points, nil
}
