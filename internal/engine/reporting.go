package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

// periodsPerYear is the daily-resampled annualization base for the
// risk-adjusted ratios.
const periodsPerYear = 252.0

// Report is the read-only performance summary of one finished run.
// Never mutated after construction.
type Report struct {
	Strategy    string
	StartDate   time.Time
	EndDate     time.Time
	TotalPeriod time.Duration

	InitialEquity    decimal.Decimal
	FinalEquity      decimal.Decimal
	TotalReturn      decimal.Decimal
	AnnualizedReturn decimal.Decimal

	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              decimal.Decimal
	AvgTradePnl          decimal.Decimal
	AvgWin               decimal.Decimal
	AvgLoss              decimal.Decimal
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AvgHoldTime          time.Duration
	TradesPerDay         decimal.Decimal

	MaxDrawdown  decimal.Decimal
	SharpeRatio  decimal.Decimal
	SortinoRatio decimal.Decimal
	// ProfitFactor is nil when there are no losing trades: gross wins
	// over zero losses has no finite value.
	ProfitFactor *decimal.Decimal

	BestDayPct  decimal.Decimal
	WorstDayPct decimal.Decimal
	TotalFees   decimal.Decimal

	// Diagnostics recorded by the orchestrator.
	StrategyEvalErrors int
	Rejections         map[RejectReason]int

	// Trades is the closed-position record the summary was computed
	// from, in close order. Consumers use it for CSV export and
	// journaling; Summarize itself leaves it nil.
	Trades []types.Position
}

// Summarize computes the performance report from the archived trade log
// and the equity curve. It reads its inputs only, so running it twice
// on the same inputs yields identical reports.
func Summarize(strategy string, trades []types.Position, curve []types.EquityCurveSample, riskFreeRate decimal.Decimal) *Report {
	report := &Report{Strategy: strategy, TotalTrades: len(trades)}
	if len(curve) == 0 {
		return report
	}

	report.StartDate = curve[0].Timestamp
	report.EndDate = curve[len(curve)-1].Timestamp
	report.TotalPeriod = report.EndDate.Sub(report.StartDate)
	report.InitialEquity = curve[0].Equity
	report.FinalEquity = curve[len(curve)-1].Equity

	// Sort a copy by close time once; every trade-level metric walks
	// trades chronologically.
	byClose := make([]types.Position, len(trades))
	copy(byClose, trades)
	sort.Slice(byClose, func(i, j int) bool { return byClose[i].ExitTime.Before(byClose[j].ExitTime) })

	daily := resampleDaily(curve)
	dailyReturns := periodReturns(daily)

	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		report.TotalReturn, report.AnnualizedReturn = calcReturns(report.InitialEquity, report.FinalEquity, report.TotalPeriod)
	}()
	go func() {
		defer wg.Done()
		calcTradeStats(report, byClose)
	}()
	go func() {
		defer wg.Done()
		report.MaxConsecutiveWins, report.MaxConsecutiveLosses = calcStreaks(byClose)
	}()
	go func() {
		defer wg.Done()
		report.MaxDrawdown = calcMaxDrawdown(curve)
	}()
	go func() {
		defer wg.Done()
		report.SharpeRatio, report.SortinoRatio = calcRiskAdjusted(dailyReturns, riskFreeRate)
	}()
	go func() {
		defer wg.Done()
		report.BestDayPct, report.WorstDayPct = calcBestWorstDay(dailyReturns)
	}()
	wg.Wait()

	if days := report.TotalPeriod.Hours() / 24; days > 0 {
		report.TradesPerDay = decimal.NewFromInt(int64(len(trades))).
			Div(decimal.NewFromFloat(days)).Round(4)
	}
	return report
}

func calcReturns(initial, final decimal.Decimal, period time.Duration) (decimal.Decimal, decimal.Decimal) {
	if !initial.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	totalReturn := final.Div(initial).Sub(decimal.NewFromInt(1))

	days := period.Hours() / 24
	if days <= 0 {
		return totalReturn, decimal.Zero
	}
	base := 1 + totalReturn.InexactFloat64()
	if base <= 0 {
		// Equity wiped out; the compounding formula has no real answer.
		return totalReturn, decimal.NewFromInt(-1)
	}
	annualized := math.Pow(base, 365.0/days) - 1
	return totalReturn, decimal.NewFromFloat(annualized)
}

func calcTradeStats(report *Report, byClose []types.Position) {
	wins, losses := 0, 0
	sumPnl := decimal.Zero
	sumWins := decimal.Zero
	sumLosses := decimal.Zero
	fees := decimal.Zero
	var holdTotal time.Duration

	for _, tr := range byClose {
		sumPnl = sumPnl.Add(tr.RealizedPnl)
		fees = fees.Add(tr.EntryFee).Add(tr.ExitFee)
		holdTotal += tr.ExitTime.Sub(tr.EntryTime)
		switch {
		case tr.RealizedPnl.IsPositive():
			wins++
			sumWins = sumWins.Add(tr.RealizedPnl)
		case tr.RealizedPnl.IsNegative():
			losses++
			sumLosses = sumLosses.Add(tr.RealizedPnl.Abs())
		}
	}

	report.WinningTrades = wins
	report.LosingTrades = losses
	report.TotalFees = fees

	n := len(byClose)
	if n == 0 {
		report.WinRate = decimal.Zero
		return
	}
	report.WinRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(n)))
	report.AvgTradePnl = sumPnl.Div(decimal.NewFromInt(int64(n)))
	report.AvgHoldTime = holdTotal / time.Duration(n)
	if wins > 0 {
		report.AvgWin = sumWins.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		report.AvgLoss = sumLosses.Div(decimal.NewFromInt(int64(losses)))
		pf := sumWins.Div(sumLosses)
		report.ProfitFactor = &pf
	}
}

func calcStreaks(byClose []types.Position) (maxWins, maxLosses int) {
	curWins, curLosses := 0, 0
	for _, tr := range byClose {
		switch {
		case tr.RealizedPnl.IsPositive():
			curWins++
			curLosses = 0
		case tr.RealizedPnl.IsNegative():
			curLosses++
			curWins = 0
		default:
			curWins, curLosses = 0, 0
		}
		if curWins > maxWins {
			maxWins = curWins
		}
		if curLosses > maxLosses {
			maxLosses = curLosses
		}
	}
	return maxWins, maxLosses
}

func calcMaxDrawdown(curve []types.EquityCurveSample) decimal.Decimal {
	peak := decimal.Zero
	maxDD := decimal.Zero
	for _, sample := range curve {
		if sample.Equity.GreaterThan(peak) {
			peak = sample.Equity
		}
		if peak.IsPositive() {
			dd := peak.Sub(sample.Equity).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// calcRiskAdjusted computes Sharpe and Sortino on daily returns,
// annualized by sqrt(252). The statistics drop to float64: ratio
// precision does not need exact decimals.
func calcRiskAdjusted(dailyReturns []float64, riskFreeRate decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(dailyReturns) < 2 {
		return decimal.Zero, decimal.Zero
	}

	rfDaily := math.Pow(1+riskFreeRate.InexactFloat64(), 1.0/periodsPerYear) - 1

	excess := make([]float64, len(dailyReturns))
	var sum float64
	for i, r := range dailyReturns {
		excess[i] = r - rfDaily
		sum += excess[i]
	}
	mean := sum / float64(len(excess))

	var variance, downVariance float64
	downCount := 0
	for _, x := range excess {
		variance += (x - mean) * (x - mean)
		if x < 0 {
			downVariance += x * x
			downCount++
		}
	}
	std := math.Sqrt(variance / float64(len(excess)-1))

	sharpe := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(periodsPerYear)
	}
	sortino := 0.0
	if downCount > 0 {
		downStd := math.Sqrt(downVariance / float64(downCount))
		if downStd > 0 {
			sortino = mean / downStd * math.Sqrt(periodsPerYear)
		}
	}
	return decimal.NewFromFloat(sharpe), decimal.NewFromFloat(sortino)
}

func calcBestWorstDay(dailyReturns []float64) (decimal.Decimal, decimal.Decimal) {
	if len(dailyReturns) == 0 {
		return decimal.Zero, decimal.Zero
	}
	best, worst := dailyReturns[0], dailyReturns[0]
	for _, r := range dailyReturns[1:] {
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	return decimal.NewFromFloat(best), decimal.NewFromFloat(worst)
}

// resampleDaily keeps the last equity value recorded in each UTC
// calendar day, in day order.
func resampleDaily(curve []types.EquityCurveSample) []decimal.Decimal {
	type dayEnd struct {
		day    time.Time
		equity decimal.Decimal
	}
	byDay := make(map[time.Time]*dayEnd)
	for _, sample := range curve {
		day := sample.Timestamp.UTC().Truncate(24 * time.Hour)
		// Curve is append-only in time order, so the last write wins.
		if end, ok := byDay[day]; ok {
			end.equity = sample.Equity
		} else {
			byDay[day] = &dayEnd{day: day, equity: sample.Equity}
		}
	}

	ends := make([]dayEnd, 0, len(byDay))
	for _, end := range byDay {
		ends = append(ends, *end)
	}
	sort.Slice(ends, func(i, j int) bool { return ends[i].day.Before(ends[j].day) })

	out := make([]decimal.Decimal, len(ends))
	for i, end := range ends {
		out[i] = end.equity
	}
	return out
}

func periodReturns(daily []decimal.Decimal) []float64 {
	if len(daily) < 2 {
		return nil
	}
	out := make([]float64, 0, len(daily)-1)
	prev := daily[0]
	for _, cur := range daily[1:] {
		if prev.IsPositive() {
			out = append(out, cur.Div(prev).Sub(decimal.NewFromInt(1)).InexactFloat64())
		}
		prev = cur
	}
	return out
}
