package journal

// Dates are stored as YYYY-MM-DD text and created times as RFC3339. Notes
// and next actions are JSON string arrays.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	dataset TEXT NOT NULL,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	params TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	initial_cash REAL NOT NULL,
	final_value REAL NOT NULL,
	net_profit REAL NOT NULL,
	total_return_pct REAL NOT NULL,
	annualized_return_pct REAL NOT NULL,
	win_rate_pct REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	risk_reward REAL NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '[]',
	next_actions TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	price REAL NOT NULL,
	shares INTEGER NOT NULL,
	cash_after REAL NOT NULL,
	return_pct REAL,
	profit REAL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	equity REAL NOT NULL,
	peak REAL NOT NULL,
	drawdown REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
`
