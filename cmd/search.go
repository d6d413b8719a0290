package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/session"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a natural language query against the backend",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (alternative to positional arguments)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to display per model",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw result payload as JSON",
			},
			&cli.BoolFlag{
				Name:  "favorite",
				Usage: "Save the query as a favorite after a successful search",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := queryFromArgs(c)
			if query == "" {
				return fmt.Errorf("a query is required")
			}
			return searchData(ctx, c.String("config"), query, c.Int("limit"), c.Bool("json"), c.Bool("favorite"))
		},
	}
}

func queryFromArgs(c *cli.Command) string {
	if q := strings.TrimSpace(c.String("query")); q != "" {
		return q
	}
	return strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
}

// searchData runs query and prints its results
func searchData(ctx context.Context, configPath, query string, limit int, asJSON, favorite bool) error {
	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.session.Search(ctx, query)
	if err != nil {
		return explainError(rt.cfg, query, err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printResults(p, limit)

	if favorite {
		fav, err := rt.session.SaveFavorite(ctx, query)
		if err != nil {
			return explainError(rt.cfg, query, err)
		}
		fmt.Printf("Saved favorite #%d\n", fav.ID)
	}
	return nil
}

func printResults(p *payload.Payload, limit int) {
	sum := session.Summarize(p)
	fmt.Println(summaryStyle.Render(fmt.Sprintf("%d records · %s", sum.Records, sum.Shape)))

	if p.IsMultiModel() {
		for _, r := range p.Results() {
			title := r.ModelLabel
			if title == "" {
				title = r.Model
			}
			fmt.Println(titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(r.Records))))
			if len(r.Records) == 0 {
				fmt.Println(noDataStyle.Render("No records."))
				continue
			}
			fmt.Print(formatRecords(r.Records, fields.InspectRecord(r.Records[0]), limit))
		}
		return
	}

	if label := p.String(payload.KeyModelLabel); label != "" {
		fmt.Println(titleStyle.Render(label))
	}
	fmt.Print(formatRecords(p.Records(), fields.Inspect(p), limit))
}
