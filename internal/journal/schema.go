package journal

// Monetary columns are TEXT holding decimal strings. SQLite REAL would
// silently round past 15 significant digits.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	symbols TEXT NOT NULL,
	interval TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	initial_equity TEXT NOT NULL,
	final_equity TEXT NOT NULL,
	total_return TEXT NOT NULL,
	max_drawdown TEXT NOT NULL,
	sharpe_ratio TEXT NOT NULL,
	win_rate TEXT NOT NULL,
	total_trades INTEGER NOT NULL,
	total_fees TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	leverage TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	entry_price TEXT NOT NULL,
	exit_time DATETIME NOT NULL,
	exit_price TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	fees TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
