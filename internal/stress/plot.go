package stress

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/equityscope/equityscope/pkg/alg/stats"
)

// WritePlot renders the run as a standalone HTML page: outcome counts
// per category and latency percentiles per server.
func WritePlot(path string, summary Summary, outcomes []Outcome) error {
	page := components.NewPage()
	page.PageTitle = "Stress Run"
	page.AddCharts(
		buildCategoryChart(summary),
		buildLatencyChart(outcomes),
	)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}

	defer f.Close()

	err = page.Render(f)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func buildCategoryChart(summary Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Outcomes by Category",
			Subtitle: fmt.Sprintf("%d probes, %.1f%% effective success", summary.Total, 100*summary.SuccessRate),
		}),
	)

	labels := make([]string, 0, len(Categories))
	values := make([]opts.BarData, 0, len(Categories))

	for _, category := range Categories {
		count := summary.ByCategory[category]
		if count == 0 {
			continue
		}

		labels = append(labels, string(category))
		values = append(values, opts.BarData{Value: count})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("probes", values)

	return bar
}

func buildLatencyChart(outcomes []Outcome) *charts.Bar {
	byServer := map[string][]float64{}

	for _, outcome := range outcomes {
		byServer[outcome.Server] = append(byServer[outcome.Server], outcome.LatencyMS)
	}

	servers := make([]string, 0, len(byServer))
	for server := range byServer {
		servers = append(servers, server)
	}

	sort.Strings(servers)

	p50 := make([]opts.BarData, len(servers))
	p95 := make([]opts.BarData, len(servers))
	p99 := make([]opts.BarData, len(servers))

	for i, server := range servers {
		latencies := byServer[server]
		p50[i] = opts.BarData{Value: stats.Percentile(latencies, 0.50)}
		p95[i] = opts.BarData{Value: stats.Percentile(latencies, 0.95)}
		p99[i] = opts.BarData{Value: stats.Percentile(latencies, 0.99)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Latency Percentiles by Server",
			Subtitle: "milliseconds",
		}),
	)

	bar.SetXAxis(servers)
	bar.AddSeries("p50", p50)
	bar.AddSeries("p95", p95)
	bar.AddSeries("p99", p99)

	return bar
}
