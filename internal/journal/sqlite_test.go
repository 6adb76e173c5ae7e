package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/internal/engine"
	"backsim/types"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func sampleRun(runID string, created time.Time) RunRecord {
	return RunRecord{
		RunID:         runID,
		Strategy:      "momentum",
		Symbols:       "AAPL,MSFT",
		Interval:      "60",
		Start:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC),
		InitialEquity: decimal.NewFromInt(100_000),
		FinalEquity:   decimal.NewFromFloat(104_500.25),
		TotalReturn:   decimal.NewFromFloat(0.045),
		MaxDrawdown:   decimal.NewFromFloat(0.021),
		SharpeRatio:   decimal.NewFromFloat(1.32),
		WinRate:       decimal.NewFromFloat(0.55),
		TotalTrades:   20,
		TotalFees:     decimal.NewFromFloat(120.5),
		CreatedAt:     created,
	}
}

func sampleTrade(tradeID, runID string, exit time.Time) TradeRecord {
	return TradeRecord{
		TradeID:     tradeID,
		RunID:       runID,
		Symbol:      "AAPL",
		Side:        types.SideLong,
		Quantity:    10,
		Leverage:    decimal.NewFromInt(2),
		EntryTime:   exit.Add(-6 * time.Hour),
		EntryPrice:  decimal.NewFromFloat(100.05),
		ExitTime:    exit,
		ExitPrice:   decimal.NewFromFloat(109.945),
		ExitReason:  types.ExitTakeProfit,
		RealizedPnl: decimal.NewFromFloat(98.95),
		Fees:        decimal.NewFromFloat(1.25),
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('runs','trades')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["runs"])
	assert.True(t, found["trades"])
}

func TestSQLiteRecordRunRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	run := sampleRun("run-1", time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC))
	trades := []TradeRecord{
		sampleTrade("t-1", run.RunID, run.Start.Add(24*time.Hour)),
		sampleTrade("t-2", run.RunID, run.Start.Add(48*time.Hour)),
	}

	require.NoError(t, j.RecordRun(run, trades))

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.Equal(t, run.Symbols, got.Symbols)
	assert.True(t, got.FinalEquity.Equal(run.FinalEquity), "final equity %s", got.FinalEquity)
	assert.True(t, got.SharpeRatio.Equal(run.SharpeRatio))
	assert.Equal(t, run.TotalTrades, got.TotalTrades)
	assert.True(t, got.Start.Equal(run.Start))
	assert.True(t, got.End.Equal(run.End))

	gotTrades, err := j.ListTrades(run.RunID)
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)

	// Ordered by exit time.
	assert.Equal(t, "t-1", gotTrades[0].TradeID)
	assert.Equal(t, "t-2", gotTrades[1].TradeID)
	assert.Equal(t, types.SideLong, gotTrades[0].Side)
	assert.Equal(t, types.ExitTakeProfit, gotTrades[0].ExitReason)
	assert.True(t, gotTrades[0].RealizedPnl.Equal(decimal.NewFromFloat(98.95)))
	assert.True(t, gotTrades[0].EntryPrice.Equal(decimal.NewFromFloat(100.05)))
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	older := sampleRun("run-old", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	newer := sampleRun("run-new", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, j.RecordRun(older, nil))
	require.NoError(t, j.RecordRun(newer, nil))

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
}

func TestSQLiteListTradesUnknownRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	trades, err := j.ListTrades("nope")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestNewRunRecordFromReport(t *testing.T) {
	t.Parallel()

	cfg := engine.DefaultRunConfig()
	cfg.Symbols = []string{"AAPL", "MSFT"}
	cfg.Interval = types.Hour

	report := &engine.Report{
		Strategy:      "momentum",
		StartDate:     time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC),
		InitialEquity: decimal.NewFromInt(100_000),
		FinalEquity:   decimal.NewFromInt(105_000),
		TotalReturn:   decimal.NewFromFloat(0.05),
		TotalTrades:   7,
	}

	run := NewRunRecord(cfg, report)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "momentum", run.Strategy)
	assert.Equal(t, "AAPL,MSFT", run.Symbols)
	assert.Equal(t, "60", run.Interval)
	assert.Equal(t, 7, run.TotalTrades)
	assert.True(t, run.TotalReturn.Equal(report.TotalReturn))
	assert.False(t, run.CreatedAt.IsZero())
}

func TestTradesFromPositions(t *testing.T) {
	t.Parallel()

	entry := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	pos := types.Position{
		ID:             "01ABC",
		Symbol:         "AAPL",
		Side:           types.SideShort,
		Quantity:       25,
		Leverage:       decimal.NewFromInt(3),
		EntryTime:      entry,
		EntryFillPrice: decimal.NewFromInt(100),
		EntryFee:       decimal.NewFromFloat(0.5),
		ExitTime:       entry.Add(4 * time.Hour),
		ExitFillPrice:  decimal.NewFromInt(96),
		ExitFee:        decimal.NewFromFloat(0.6),
		ExitReason:     types.ExitTakeProfit,
		RealizedPnl:    decimal.NewFromInt(298),
	}

	trades := TradesFromPositions("run-1", []types.Position{pos})
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, "01ABC", got.TradeID)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, types.SideShort, got.Side)
	assert.True(t, got.Fees.Equal(decimal.NewFromFloat(1.1)), "fees %s", got.Fees)
	assert.True(t, got.RealizedPnl.Equal(pos.RealizedPnl))
}
