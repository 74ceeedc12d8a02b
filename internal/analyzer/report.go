package analyzer

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"ictbacktest/models"
)

// WriteReport renders the human-readable summary: run header, aggregate
// performance, the outcome histogram, cohort tables and textual
// recommendations. Pure formatting on top of the metrics.
func WriteReport(w io.Writer, result *models.BacktestResult) {
	m := result.Statistics
	if m == nil {
		fmt.Fprintln(w, "no statistics available")
		return
	}

	fmt.Fprintf(w, "Backtest %s\n", result.ID)
	fmt.Fprintf(w, "Symbol: %s  Period: %s .. %s  Interval: every %dh\n",
		result.Params.Symbol,
		result.Params.StartDate.Format("2006-01-02"),
		result.Params.EndDate.Format("2006-01-02"),
		result.Params.AnalysisIntervalHours)
	if result.Incomplete {
		fmt.Fprintln(w, "NOTE: run is incomplete (aborted before the full range was evaluated)")
	}
	fmt.Fprintf(w, "Execution time: %.2fs\n\n", result.ExecutionTime)

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.AppendBulk([][]string{
		{"Analyses", fmt.Sprintf("%d", m.TotalAnalyses)},
		{"Trades generated", fmt.Sprintf("%d", m.TradesGenerated)},
		{"Trades executed", fmt.Sprintf("%d (%.1f%%)", m.TradesExecuted, m.ExecutionRate)},
		{"Trades rejected", fmt.Sprintf("%d", m.TradesRejected)},
		{"Win rate", fmt.Sprintf("%.1f%%", m.WinRate)},
		{"Profit factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Avg R:R", fmt.Sprintf("%.2f", m.AvgRR)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"Net profit", fmt.Sprintf("%+.1f units", m.NetProfitUnits)},
		{"Avg win / avg loss", fmt.Sprintf("%+.1f / -%.1f units", m.AvgWinUnits, m.AvgLossUnits)},
		{"Largest win / loss", fmt.Sprintf("%+.1f / %.1f units", m.LargestWin, m.LargestLoss)},
		{"Avg duration", fmt.Sprintf("%.1fh (min %.1fh, max %.1fh)", m.AvgTradeDuration, m.ShortestTrade, m.LongestTrade)},
		{"Longest win streak", fmt.Sprintf("%d", m.LongestWinStreak)},
		{"Longest loss streak", fmt.Sprintf("%d", m.LongestLossStreak)},
		{"Current streak", fmt.Sprintf("%d %s", m.CurrentStreak.Count, m.CurrentStreak.Type)},
	})
	summary.Render()
	fmt.Fprintln(w)

	outcomes := tablewriter.NewWriter(w)
	outcomes.SetHeader([]string{"Outcome", "Rate"})
	outcomes.AppendBulk([][]string{
		{"TP1", fmt.Sprintf("%.1f%%", m.TP1HitRate)},
		{"TP2", fmt.Sprintf("%.1f%%", m.TP2HitRate)},
		{"TP3", fmt.Sprintf("%.1f%%", m.TP3HitRate)},
		{"SL", fmt.Sprintf("%.1f%%", m.SLHitRate)},
		{"EXPIRED", fmt.Sprintf("%.1f%%", m.ExpiredRate)},
	})
	outcomes.Render()
	fmt.Fprintln(w)

	writeCohortTable(w, "Session", sessionRows(m.BySession))
	writeCohortTable(w, "Direction", stringRows(m.ByDirection))
	writeCohortTable(w, "Score", stringRows(m.ByScore))
	writeCohortTable(w, "Confidence", stringRows(m.ByConfidence))

	fmt.Fprintln(w, "Recommendations:")
	for _, r := range Recommendations(m) {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

type cohortRow struct {
	label string
	stats models.CohortStats
}

func sessionRows(in map[models.Session]models.CohortStats) []cohortRow {
	rows := make([]cohortRow, 0, len(in))
	for k, v := range in {
		rows = append(rows, cohortRow{string(k), v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].label < rows[j].label })
	return rows
}

func stringRows(in map[string]models.CohortStats) []cohortRow {
	rows := make([]cohortRow, 0, len(in))
	for k, v := range in {
		rows = append(rows, cohortRow{k, v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].label < rows[j].label })
	return rows
}

func writeCohortTable(w io.Writer, name string, rows []cohortRow) {
	if len(rows) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{name, "Trades", "Win rate", "Total profit", "Avg profit"})
	for _, r := range rows {
		table.Append([]string{
			r.label,
			fmt.Sprintf("%d", r.stats.Total),
			fmt.Sprintf("%.1f%%", r.stats.WinRate),
			fmt.Sprintf("%+.1f", r.stats.TotalProfit),
			fmt.Sprintf("%+.1f", r.stats.AvgProfit),
		})
	}
	table.Render()
	fmt.Fprintln(w)
}

// Recommendations derives plain-text advice from metric thresholds.
func Recommendations(m *models.PerformanceMetrics) []string {
	var recs []string

	switch {
	case m.TradesExecuted == 0:
		recs = append(recs, "No executed trades in this run; widen the date range or loosen entry conditions before drawing conclusions.")
		return recs
	case m.WinRate >= 70:
		recs = append(recs, fmt.Sprintf("Excellent win rate (%.1f%%).", m.WinRate))
	case m.WinRate >= 60:
		recs = append(recs, fmt.Sprintf("Good win rate (%.1f%%); tightening entry conditions may improve it further.", m.WinRate))
	default:
		recs = append(recs, fmt.Sprintf("Win rate below target (%.1f%%); review the strategy's entry rules.", m.WinRate))
	}

	if label, stats, ok := bestCohort(stringRows(m.ByScore)); ok {
		recs = append(recs, fmt.Sprintf("Best score bucket: %s (%.1f%% win rate); consider filtering entries below it.", label, stats.WinRate))
	}
	if label, stats, ok := bestCohort(sessionRows(m.BySession)); ok {
		recs = append(recs, fmt.Sprintf("Best session: %s (%.1f%% win rate).", label, stats.WinRate))
	}

	if m.TP3HitRate > 20 {
		recs = append(recs, fmt.Sprintf("TP3 hit rate is strong (%.1f%%); targets could be stretched further.", m.TP3HitRate))
	} else if m.TP1HitRate > 70 {
		recs = append(recs, fmt.Sprintf("Most trades stop at TP1 (%.1f%%); TP2/TP3 may sit too far from entry.", m.TP1HitRate))
	}
	if m.SLHitRate > 40 {
		recs = append(recs, fmt.Sprintf("High stop-loss rate (%.1f%%); review stop placement.", m.SLHitRate))
	}

	return recs
}

func bestCohort(rows []cohortRow) (string, models.CohortStats, bool) {
	if len(rows) == 0 {
		return "", models.CohortStats{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.stats.WinRate > best.stats.WinRate {
			best = r
		}
	}
	return best.label, best.stats, true
}
