// Package marketdata is the Alpaca-backed bar source, used when no
// local Postgres bar store is available.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"backsim/internal/engine"
	"backsim/types"
)

var _ engine.BarSource = (*BarSource)(nil)

// BarSource fetches historical bars from the Alpaca market-data API.
type BarSource struct {
	client *alpacadata.Client
	feed   string
	log    *slog.Logger
}

// NewBarSource creates a BarSource with the given Alpaca credentials.
// An empty baseURL uses the production data endpoint; feed defaults to
// "iex" (the free tier) when empty.
func NewBarSource(apiKey, apiSecret, baseURL, feed string, logger *slog.Logger) *BarSource {
	opts := alpacadata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	if feed == "" {
		feed = "iex"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BarSource{
		client: alpacadata.NewClient(opts),
		feed:   feed,
		log:    logger.With("source", "alpaca"),
	}
}

// GetBars fetches the symbol's bars at the requested interval. An empty
// response is reported as a DataUnavailable error, never as a silent
// empty series.
func (s *BarSource) GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeFrame, err := timeFrameFor(interval)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.GetBars(symbol, alpacadata.GetBarsRequest{
		TimeFrame: timeFrame,
		Start:     start,
		End:       end,
		Feed:      alpacadata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, engine.ErrDataUnavailable)
	}

	s.log.Debug("fetched bars", "symbol", symbol, "interval", interval, "count", len(raw))
	return convertBars(raw, symbol, interval), nil
}

func timeFrameFor(interval types.Interval) (alpacadata.TimeFrame, error) {
	switch interval {
	case types.OneMinute:
		return alpacadata.OneMin, nil
	case types.FiveMinutes:
		return alpacadata.NewTimeFrame(5, alpacadata.Min), nil
	case types.FifteenMinutes:
		return alpacadata.NewTimeFrame(15, alpacadata.Min), nil
	case types.ThirtyMinutes:
		return alpacadata.NewTimeFrame(30, alpacadata.Min), nil
	case types.Hour:
		return alpacadata.OneHour, nil
	case types.FourHours:
		return alpacadata.NewTimeFrame(4, alpacadata.Hour), nil
	case types.Day:
		return alpacadata.OneDay, nil
	}
	return alpacadata.TimeFrame{}, fmt.Errorf("interval %s not supported by alpaca source", interval)
}

func convertBars(raw []alpacadata.Bar, symbol string, interval types.Interval) []types.Bar {
	bars := make([]types.Bar, 0, len(raw))
	for _, bar := range raw {
		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Open:      decimal.NewFromFloat(bar.Open),
			Close:     decimal.NewFromFloat(bar.Close),
			High:      decimal.NewFromFloat(bar.High),
			Low:       decimal.NewFromFloat(bar.Low),
			Volume:    decimal.NewFromInt(int64(bar.Volume)),
			Interval:  interval,
			Timestamp: bar.Timestamp,
		})
	}
	return bars
}
