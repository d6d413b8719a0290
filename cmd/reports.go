package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/storage"
	"github.com/urfave/cli/v3"
)

// ReportsCommand creates the reports command
func ReportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "Manage saved reports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved reports",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read from the local cache instead of the backend",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listReports(ctx, c.String("config"), c.Bool("offline"))
				},
			},
			{
				Name:      "show",
				Usage:     "Chart a saved report from the local cache",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "visualization", Aliases: []string{"type"}, Usage: "Override the saved chart type"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the chart image to this file (.png or .svg)"},
					&cli.StringFlag{Name: "theme", Usage: "Override the configured theme: light or dark"},
					&cli.BoolFlag{Name: "json", Usage: "Print the chart configuration as JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return err
					}
					return showReport(c, id)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a saved report",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return err
					}
					return deleteReport(ctx, c.String("config"), id)
				},
			},
		},
	}
}

func listReports(ctx context.Context, configPath string, offline bool) error {
	if offline {
		cache, err := openCache(configPath)
		if err != nil {
			return err
		}
		defer cache.Close()
		reports, err := cache.Reports()
		if err != nil {
			return fmt.Errorf("reading cached reports: %w", err)
		}
		fmt.Print(formatReports(reports))
		return nil
	}

	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	reports, err := rt.session.LoadReports(ctx)
	if err != nil {
		return explainError(rt.cfg, "", err)
	}
	fmt.Print(formatReports(reports))
	return nil
}

// showReport rebuilds a report chart from the data stored with it. Run
// "reports list" first to refresh the cache.
func showReport(c *cli.Command, id int) error {
	rt, err := openRuntime(c.String("config"), runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.cache.Report(id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("report %d is not in the local cache; run \"reports list\" to refresh it", id)
	}
	if err != nil {
		return err
	}

	vizName := c.String("visualization")
	if vizName == "" {
		vizName = rep.VisualizationType
	}
	if vizName == "" {
		vizName = string(chart.Bar)
	}
	viz, err := chart.ParseVisualization(vizName)
	if err != nil {
		return err
	}

	settings := chart.NewSettings(rt.cfg.Chart)
	if theme := c.String("theme"); theme != "" {
		settings.Theme = chart.Theme(theme)
	}
	reportCfg := rep.EffectiveConfig()
	opts := append(settings.BuildOptions(), chart.WithVisualization(viz), chart.WithConfig(reportCfg))
	return emitChart(c, settings.Config(viz, reportCfg, chart.Build(rep.Data, opts...)))
}

func deleteReport(ctx context.Context, configPath string, id int) error {
	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.session.DeleteReport(ctx, id); err != nil {
		return explainError(rt.cfg, "", err)
	}
	fmt.Printf("Deleted report #%d\n", id)
	return nil
}
