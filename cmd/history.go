package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/hdsoft/unisearch/pkg/storage"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past searches recorded in the local cache",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Usage: "Only show searches containing this text"},
			&cli.DurationFlag{Name: "since", Usage: "Only show searches newer than this (e.g. 24h)"},
			&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
			&cli.IntFlag{Name: "limit", Usage: "Entries per page", Value: 30},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			params := storage.HistoryParams{
				Query: c.String("query"),
				Page:  c.Int("page"),
				Limit: c.Int("limit"),
			}
			if since := c.Duration("since"); since > 0 {
				params.Since = timeNow().Add(-since)
			}
			return showHistory(c.String("config"), params)
		},
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Delete recorded searches",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Usage: "Only delete searches older than this (e.g. 720h)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					before := timeNow()
					if d := c.Duration("older-than"); d > 0 {
						before = before.Add(-d)
					}
					return clearHistory(c.String("config"), before)
				},
			},
			{
				Name:  "stats",
				Usage: "Show local cache statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return showStats(c.String("config"))
				},
			},
		},
	}
}

func showHistory(configPath string, params storage.HistoryParams) error {
	cache, err := openCache(configPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	entries, err := cache.History(params)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	fmt.Print(formatHistory(entries))
	return nil
}

func clearHistory(configPath string, before time.Time) error {
	cache, err := openCache(configPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	n, err := cache.ClearHistory(before)
	if err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	fmt.Printf("Deleted %d searches\n", n)
	return nil
}

func showStats(configPath string) error {
	cache, err := openCache(configPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	stats, err := cache.Stats()
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	fmt.Print(formatStats(stats))
	return nil
}
