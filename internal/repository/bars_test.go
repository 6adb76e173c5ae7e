package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"backsim/internal/engine"
	"backsim/types"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var testInterval = types.Hour
var startTime = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
var endTime = startTime.Add(5 * time.Hour)

type mockBarStore struct {
	sqlError error
	empty    bool
}

func (m mockBarStore) GetAggregates(_ context.Context, symbol, bucket string, start, end time.Time) ([]barRow, error) {
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	if m.empty {
		return nil, nil
	}
	var rows []barRow
	for ts := start; ts.Before(end); ts = ts.Add(types.IntervalToTime[testInterval]) {
		price := decimal.NewFromInt(ts.Unix())
		rows = append(rows, barRow{
			Bucket: ts,
			Open:   price,
			High:   price.Add(decimal.NewFromInt(1)),
			Low:    price.Sub(decimal.NewFromInt(1)),
			Close:  price,
			Volume: decimal.NewFromInt(100),
		})
	}
	return rows, nil
}

func TestDatabase_GetBars(t *testing.T) {
	tests := []struct {
		name     string
		interval types.Interval
		store    mockBarStore
		wantErr  error
		wantLen  int
	}{
		{"unsupported interval", types.Interval("W"), mockBarStore{}, ErrIntervalNotSupported, 0},
		{"empty result maps to ErrNoBars", testInterval, mockBarStore{empty: true}, ErrNoBars, 0},
		{"pgx no-rows maps to ErrNoBars", testInterval, mockBarStore{sqlError: pgx.ErrNoRows}, ErrNoBars, 0},
		{"query error passes through", testInterval, mockBarStore{sqlError: errors.New("boom")}, nil, 0},
		{"returns converted bars", testInterval, mockBarStore{}, nil, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{bars: tt.store}
			got, err := db.GetBars(context.Background(), "AAPL", tt.interval, startTime, endTime)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetBars() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.wantLen == 0 {
				if err == nil {
					t.Fatal("GetBars() expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("GetBars() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("GetBars() len = %d, want %d", len(got), tt.wantLen)
			}
			for i, bar := range got {
				if bar.Symbol != "AAPL" {
					t.Errorf("bar %d symbol = %s, want AAPL", i, bar.Symbol)
				}
				if bar.Interval != tt.interval {
					t.Errorf("bar %d interval = %s, want %s", i, bar.Interval, tt.interval)
				}
				if i > 0 && !got[i].Timestamp.After(got[i-1].Timestamp) {
					t.Errorf("bars out of order at %d", i)
				}
			}
		})
	}
}

func TestErrNoBarsSignalsDataUnavailable(t *testing.T) {
	// The orchestrator excludes symbols on DataUnavailable; the mapping
	// must survive wrapping.
	db := &Database{bars: mockBarStore{empty: true}}
	_, err := db.GetBars(context.Background(), "AAPL", testInterval, startTime, endTime)
	if !errors.Is(err, engine.ErrDataUnavailable) {
		t.Fatalf("err = %v, want to wrap engine.ErrDataUnavailable", err)
	}
}
