package stress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/equityscope/equityscope/internal/breaker"
)

// thresholds for coloring the effective success rate.
const (
	rateGood = 0.95
	rateWarn = 0.90
)

// WriteReport renders the run summary as terminal tables.
func WriteReport(w io.Writer, summary Summary) {
	fmt.Fprintln(w, "=== STRESS RUN SUMMARY ===")
	fmt.Fprintf(w, "probes: %s  strategy: %s  seed: %d  elapsed: %s\n",
		humanize.Comma(int64(summary.Total)),
		summary.Config.Strategy,
		summary.Config.Seed,
		humanize.RelTime(summary.StartTime, summary.EndTime, "", ""),
	)

	fmt.Fprintf(w, "success rate: %s   fallback rate: %.1f%%   failure rate: %s\n\n",
		colorRate(summary.SuccessRate),
		100*summary.FallbackRate,
		colorFailure(summary.FailureRate),
	)

	writeCategoryTable(w, summary)
	writeServerTable(w, summary)

	fmt.Fprintf(w, "latency p50 %.0fms   p95 %.0fms   p99 %.0fms   mean %.0fms (stddev %.0f)   smoothed %.0fms\n",
		summary.LatencyP50, summary.LatencyP95, summary.LatencyP99,
		summary.LatencyMean, summary.LatencyStdDev, summary.LatencySmoothed)

	writeBreakerLines(w, summary)
}

func colorRate(rate float64) string {
	text := fmt.Sprintf("%.1f%%", 100*rate)

	switch {
	case rate >= rateGood:
		return color.GreenString(text)
	case rate >= rateWarn:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

func colorFailure(rate float64) string {
	text := fmt.Sprintf("%.1f%%", 100*rate)
	if rate > 0 {
		return color.RedString(text)
	}

	return color.GreenString(text)
}

func writeCategoryTable(w io.Writer, summary Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Count", "Share"})

	for _, category := range Categories {
		count := summary.ByCategory[category]
		if count == 0 {
			continue
		}

		share := 0.0
		if summary.Total > 0 {
			share = 100 * float64(count) / float64(summary.Total)
		}

		t.AppendRow(table.Row{string(category), count, fmt.Sprintf("%.1f%%", share)})
	}

	t.Render()
	fmt.Fprintln(w)
}

func writeServerTable(w io.Writer, summary Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Server", "Probes", "Healthy", "Fallback", "Failed"})

	for _, server := range DefaultServers() {
		counts, ok := summary.ByServer[server]
		if !ok {
			continue
		}

		total, healthy, fallback, failed := 0, 0, 0, 0

		for category, count := range counts {
			total += count

			switch {
			case category == CategoryFallback:
				fallback += count
				healthy += count
			case category.Healthy():
				healthy += count
			case category == CategoryHardFailure || category == CategoryPersistent:
				failed += count
			}
		}

		t.AppendRow(table.Row{server, total, healthy, fallback, failed})
	}

	t.Render()
	fmt.Fprintln(w)
}

func writeBreakerLines(w io.Writer, summary Summary) {
	open := 0

	for server, status := range summary.CircuitBreakerStatus {
		if status.State != breaker.StateClosed {
			open++

			fmt.Fprintf(w, "breaker %s: %s\n", server, color.RedString(string(status.State)))
		}
	}

	if open == 0 {
		fmt.Fprintln(w, "all circuit breakers closed")
	}
}
