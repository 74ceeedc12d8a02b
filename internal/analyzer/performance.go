// Package analyzer reduces a completed backtest into aggregate and
// cohort-sliced performance statistics, and renders the human-readable
// report.
package analyzer

import (
	"github.com/montanaflynn/stats"

	"ictbacktest/models"
)

// profitFactorCap is the sentinel reported when there are wins and zero
// losses, so flawless samples stay representable in flat tables.
const profitFactorCap = 999

// Analyze computes the full metrics set over the executed trades of a
// result. An empty trade list yields a fully populated zero-valued
// metrics object.
func Analyze(result *models.BacktestResult) *models.PerformanceMetrics {
	m := emptyMetrics()
	m.TotalAnalyses = len(result.AnalysisPoints)
	m.TradesGenerated = len(result.Trades)
	m.TradesRejected = result.RejectedTrades

	executed := make([]models.SimulatedTrade, 0, len(result.Trades))
	for _, t := range result.Trades {
		if t.Outcome.Executed {
			executed = append(executed, t)
		}
	}
	total := len(executed)
	m.TradesExecuted = total
	if m.TradesGenerated > 0 {
		m.ExecutionRate = float64(total) / float64(m.TradesGenerated) * 100
	}
	if total == 0 {
		return m
	}

	var wins, losses, breakeven int
	var totalWin, totalLoss float64
	durations := make([]float64, 0, total)
	returns := make([]float64, 0, total)
	profits := make([]float64, 0, total)

	for _, t := range executed {
		p := t.Outcome.ProfitUnits
		profits = append(profits, p)
		durations = append(durations, t.Outcome.DurationHours)
		returns = append(returns, t.Outcome.ProfitPercent)
		switch {
		case p > 0:
			wins++
			totalWin += p
		case p < 0:
			losses++
			totalLoss += -p
		default:
			breakeven++
		}
		switch t.Outcome.Outcome {
		case models.OutcomeTP1:
			m.TP1HitRate++
		case models.OutcomeTP2:
			m.TP2HitRate++
		case models.OutcomeTP3:
			m.TP3HitRate++
		case models.OutcomeSL:
			m.SLHitRate++
		case models.OutcomeExpired:
			m.ExpiredRate++
		}
	}

	ftotal := float64(total)
	m.Wins, m.Losses, m.Breakeven = wins, losses, breakeven
	m.WinRate = float64(wins) / ftotal * 100
	m.LossRate = float64(losses) / ftotal * 100
	m.TotalProfitUnits = totalWin
	m.TotalLossUnits = totalLoss
	m.NetProfitUnits = totalWin - totalLoss
	m.TP1HitRate = m.TP1HitRate / ftotal * 100
	m.TP2HitRate = m.TP2HitRate / ftotal * 100
	m.TP3HitRate = m.TP3HitRate / ftotal * 100
	m.SLHitRate = m.SLHitRate / ftotal * 100
	m.ExpiredRate = m.ExpiredRate / ftotal * 100

	if wins > 0 {
		m.AvgWinUnits = totalWin / float64(wins)
	}
	if losses > 0 {
		m.AvgLossUnits = totalLoss / float64(losses)
	}
	m.ProfitFactor = sentinelRatio(totalWin, totalLoss)
	m.AvgRR = sentinelRatio(m.AvgWinUnits, m.AvgLossUnits)

	m.LargestWin, _ = stats.Max(profits)
	m.LargestLoss, _ = stats.Min(profits)
	if m.LargestWin < 0 {
		m.LargestWin = 0
	}
	if m.LargestLoss > 0 {
		m.LargestLoss = 0
	}

	m.AvgTradeDuration, _ = stats.Mean(durations)
	m.LongestTrade, _ = stats.Max(durations)
	m.ShortestTrade, _ = stats.Min(durations)

	mean, _ := stats.Mean(returns)
	stdDev, _ := stats.StdDevP(returns)
	if stdDev > 0 {
		m.SharpeRatio = mean / stdDev
	}

	m.BySession = groupBySession(executed)
	m.ByDirection = groupByDirection(executed)
	m.ByScore = groupByBucket(executed, scoreBuckets, func(t models.SimulatedTrade) float64 { return t.Analysis.Score })
	m.ByConfidence = groupByBucket(executed, confidenceBuckets, func(t models.SimulatedTrade) float64 { return t.Analysis.Confidence })

	m.LongestWinStreak, m.LongestLossStreak, m.CurrentStreak = streaks(executed)
	return m
}

// sentinelRatio implements the profit-factor convention: the cap when
// there are wins and no losses, zero when there are neither.
func sentinelRatio(win, loss float64) float64 {
	if loss > 0 {
		return win / loss
	}
	if win > 0 {
		return profitFactorCap
	}
	return 0
}

// streaks scans executed trades once, chronologically, and tracks the
// longest and currently active win/loss runs.
func streaks(trades []models.SimulatedTrade) (longestWin, longestLoss int, current models.Streak) {
	var winRun, lossRun int
	for _, t := range trades {
		switch {
		case t.Outcome.ProfitUnits > 0:
			winRun++
			lossRun = 0
			if winRun > longestWin {
				longestWin = winRun
			}
		case t.Outcome.ProfitUnits < 0:
			lossRun++
			winRun = 0
			if lossRun > longestLoss {
				longestLoss = lossRun
			}
		}
	}
	if winRun > 0 {
		current = models.Streak{Type: "win", Count: winRun}
	} else {
		current = models.Streak{Type: "loss", Count: lossRun}
	}
	return longestWin, longestLoss, current
}

func cohort(outcomes []models.TradeOutcome) models.CohortStats {
	c := models.CohortStats{Total: len(outcomes)}
	for _, o := range outcomes {
		c.TotalProfit += o.ProfitUnits
		if o.ProfitUnits > 0 {
			c.Wins++
		}
	}
	c.Losses = c.Total - c.Wins
	if c.Total > 0 {
		c.WinRate = float64(c.Wins) / float64(c.Total) * 100
		c.AvgProfit = c.TotalProfit / float64(c.Total)
	}
	return c
}

func groupBySession(trades []models.SimulatedTrade) map[models.Session]models.CohortStats {
	groups := make(map[models.Session][]models.TradeOutcome)
	for _, t := range trades {
		s := t.Analysis.Session
		if s == "" {
			s = models.SessionOffHours
		}
		groups[s] = append(groups[s], t.Outcome)
	}
	result := make(map[models.Session]models.CohortStats, len(groups))
	for s, outcomes := range groups {
		result[s] = cohort(outcomes)
	}
	return result
}

func groupByDirection(trades []models.SimulatedTrade) map[string]models.CohortStats {
	groups := make(map[string][]models.TradeOutcome)
	for _, t := range trades {
		dir := "SELL"
		if t.Analysis.SuggestedTrade != nil && t.Analysis.SuggestedTrade.Kind.IsBuy() {
			dir = "BUY"
		}
		groups[dir] = append(groups[dir], t.Outcome)
	}
	result := make(map[string]models.CohortStats, len(groups))
	for dir, outcomes := range groups {
		result[dir] = cohort(outcomes)
	}
	return result
}

type bucket struct {
	label    string
	min, max float64
}

// scoreBuckets cover the oracle's 0..10 score; trades below the lowest
// bucket are not cohorted (the strategy never proposes below 5).
var scoreBuckets = []bucket{
	{"5-6", 5, 6},
	{"6-7", 6, 7},
	{"7-8", 7, 8},
	{"8-9", 8, 9},
	{"9-10", 9, 10.01},
}

var confidenceBuckets = []bucket{
	{"50-60", 50, 60},
	{"60-70", 60, 70},
	{"70-80", 70, 80},
	{"80-90", 80, 90},
	{"90-100", 90, 100.01},
}

func groupByBucket(trades []models.SimulatedTrade, buckets []bucket, value func(models.SimulatedTrade) float64) map[string]models.CohortStats {
	groups := make(map[string][]models.TradeOutcome)
	for _, t := range trades {
		v := value(t)
		for _, b := range buckets {
			if v >= b.min && v < b.max {
				groups[b.label] = append(groups[b.label], t.Outcome)
				break
			}
		}
	}
	result := make(map[string]models.CohortStats, len(groups))
	for label, outcomes := range groups {
		result[label] = cohort(outcomes)
	}
	return result
}

func emptyMetrics() *models.PerformanceMetrics {
	return &models.PerformanceMetrics{
		BySession:     map[models.Session]models.CohortStats{},
		ByDirection:   map[string]models.CohortStats{},
		ByScore:       map[string]models.CohortStats{},
		ByConfidence:  map[string]models.CohortStats{},
		CurrentStreak: models.Streak{Type: "win", Count: 0},
	}
}
