package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backsim/types"

	"github.com/jackc/pgx/v5"
)

var bucketToInterval = map[types.Interval]string{
	types.OneMinute:      "1 minute",
	types.FiveMinutes:    "5 minutes",
	types.FifteenMinutes: "15 minutes",
	types.ThirtyMinutes:  "30 minutes",
	types.Hour:           "1 hour",
	types.FourHours:      "4 hours",
	types.Day:            "1 day",
}

// GetBars returns the symbol's bars aggregated to the requested
// interval, ordered by timestamp. An empty result is reported as
// ErrNoBars, never as a silent empty series.
func (db *Database) GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, ErrIntervalNotSupported
	}

	rows, err := db.bars.GetAggregates(ctx, symbol, bucket, start, end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	return convertRows(rows, symbol, interval), nil
}

func convertRows(rows []barRow, symbol string, interval types.Interval) []types.Bar {
	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Open:      row.Open,
			Close:     row.Close,
			High:      row.High,
			Low:       row.Low,
			Volume:    row.Volume,
			Interval:  interval,
			Timestamp: row.Bucket,
		})
	}
	return bars
}
