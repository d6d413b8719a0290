package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/urfave/cli/v3"
)

// FieldsCommand shows how a query's results would be charted by default.
func FieldsCommand() *cli.Command {
	return &cli.Command{
		Name:      "fields",
		Usage:     "Inspect the chartable fields of a query's results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (alternative to positional arguments)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := queryFromArgs(c)
			if query == "" {
				return fmt.Errorf("a query is required")
			}
			return inspectFields(ctx, c.String("config"), query)
		},
	}
}

func inspectFields(ctx context.Context, configPath, query string) error {
	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.session.Search(ctx, query)
	if err != nil {
		return explainError(rt.cfg, query, err)
	}

	fs := fields.Inspect(p)
	if len(fs) == 0 {
		fmt.Println(noDataStyle.Render("No chartable fields in the results."))
		return nil
	}

	defaults := fields.DefaultsFor(fs)
	rows := [][]string{{"Field", "Label", "Type", "Default role"}}
	for _, f := range fs {
		var role string
		switch f.Name {
		case defaults.Dimension:
			role = "dimension"
		case defaults.Measure:
			role = "measure"
		case defaults.Series:
			role = "series"
		}
		rows = append(rows, []string{f.Name, f.Label, string(f.Type), role})
	}
	fmt.Println(titleStyle.Render("Fields"))
	fmt.Print(renderTable(rows))

	kinds := fields.AggregationsFor(fs, defaults.Measure)
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	fmt.Println(metaStyle.Render(fmt.Sprintf("Aggregations for %q: %s (default %s)",
		defaults.Measure, strings.Join(names, ", "), fields.ResolveAggregation(fs, defaults.Measure, aggregate.Sum))))
	return nil
}
