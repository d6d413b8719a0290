package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/report"
	"github.com/urfave/cli/v3"
)

func chartFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "visualization",
			Aliases: []string{"type"},
			Usage:   "Chart type: bar, line or pie",
			Value:   "bar",
		},
		&cli.StringFlag{Name: "dimension", Usage: "Field on the X axis"},
		&cli.StringFlag{Name: "measure", Usage: "Field on the Y axis"},
		&cli.StringFlag{Name: "series", Usage: "Field to split stacked bars by"},
		&cli.StringFlag{Name: "aggregation", Usage: "none, count, sum, average, min or max"},
		&cli.BoolFlag{Name: "stacked", Usage: "Stack bars by the series field (bar only)"},
		&cli.BoolFlag{Name: "cumulated", Usage: "Plot running totals (line only)"},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the chart image to this file (.png or .svg)",
		},
		&cli.StringFlag{Name: "theme", Usage: "Override the configured theme: light or dark"},
		&cli.BoolFlag{Name: "json", Usage: "Print the chart configuration as JSON"},
	}
}

func chartOptions(c *cli.Command) report.Options {
	return report.Options{
		Visualization: c.String("visualization"),
		Dimension:     c.String("dimension"),
		Measure:       c.String("measure"),
		Series:        c.String("series"),
		Aggregation:   c.String("aggregation"),
		Stacked:       c.Bool("stacked"),
		Cumulated:     c.Bool("cumulated"),
	}
}

// ChartCommand creates the chart command
func ChartCommand() *cli.Command {
	flags := append(chartFlags(),
		&cli.StringFlag{
			Name:  "query",
			Usage: "Search query (alternative to positional arguments)",
		},
		&cli.StringFlag{
			Name:  "save-report",
			Usage: "Save the chart as a report with this name",
		},
		&cli.BoolFlag{
			Name:  "server",
			Usage: "Let the backend pick labels and values instead of the local builder",
		},
	)
	return &cli.Command{
		Name:      "chart",
		Usage:     "Chart the results of a query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := queryFromArgs(c)
			if query == "" {
				return fmt.Errorf("a query is required")
			}
			return chartQuery(ctx, c, query)
		},
	}
}

func chartQuery(ctx context.Context, c *cli.Command, query string) error {
	rt, err := openRuntime(c.String("config"), runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.session.Search(ctx, query)
	if err != nil {
		return explainError(rt.cfg, query, err)
	}

	settings := chart.NewSettings(rt.cfg.Chart)
	if theme := c.String("theme"); theme != "" {
		settings.Theme = chart.Theme(theme)
	}

	if c.Bool("server") {
		viz, err := chart.ParseVisualization(c.String("visualization"))
		if err != nil {
			return err
		}
		v, err := rt.client.GenerateVisualization(ctx, client.VisualizationRequest{
			SearchResults:     p,
			VisualizationType: string(viz),
		})
		if err != nil {
			return explainError(rt.cfg, query, err)
		}
		return emitChart(c, settings.Config(viz, payload.ReportConfig{}, v.GraphData))
	}

	opts := chartOptions(c)
	opts.Name = c.String("save-report")
	d, err := report.Open(query, p).Apply(opts)
	if err != nil {
		return err
	}
	cfg := settings.Config(d.Visualization(), d.Config(), d.Preview(settings.BuildOptions()...))
	if err := emitChart(c, cfg); err != nil {
		return err
	}

	if opts.Name == "" {
		return nil
	}
	if _, err := d.Confirm(rt.session.CreateReport(ctx)); err != nil {
		return explainError(rt.cfg, query, err)
	}
	fmt.Printf("Saved report %q\n", d.Name())
	return nil
}

// emitChart writes cfg as an image, as JSON, or as a terminal summary.
func emitChart(c *cli.Command, cfg chart.Config) error {
	if out := c.String("output"); out != "" {
		return writeChartImage(out, cfg)
	}
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	printChartSummary(cfg)
	return nil
}

func writeChartImage(path string, cfg chart.Config) error {
	format, err := chart.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return err
	}
	canvas := chart.NewCanvas(format)
	defer canvas.Release()

	if err := canvas.Draw(cfg); err != nil {
		return fmt.Errorf("drawing chart: %w", err)
	}
	if err := os.WriteFile(path, canvas.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}
	fmt.Printf("Chart written to %s\n", path)
	return nil
}

// printChartSummary prints the chart data as a table, one column per
// dataset.
func printChartSummary(cfg chart.Config) {
	title := fmt.Sprintf("%s chart", cfg.Type)
	if cfg.Options.X != nil && cfg.Options.Y != nil {
		title = fmt.Sprintf("%s: %s by %s", title, cfg.Options.Y.Title, cfg.Options.X.Title)
	}
	fmt.Println(titleStyle.Render(title))

	header := []string{"Label"}
	for _, ds := range cfg.Data.Datasets {
		header = append(header, ds.Label)
	}
	rows := [][]string{header}
	for i, label := range cfg.Data.Labels {
		row := []string{label}
		for _, ds := range cfg.Data.Datasets {
			v := ""
			if i < len(ds.Data) {
				v = chart.FormatNumber(ds.Data[i])
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	fmt.Print(renderTable(rows))
}
