package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
)

// FavoritesCommand creates the favorites command
func FavoritesCommand() *cli.Command {
	return &cli.Command{
		Name:  "favorites",
		Usage: "Manage favorite queries",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List favorite queries",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read from the local cache instead of the backend",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listFavorites(ctx, c.String("config"), c.Bool("offline"))
				},
			},
			{
				Name:      "add",
				Usage:     "Save a query as a favorite",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, c *cli.Command) error {
					query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
					if query == "" {
						return fmt.Errorf("a query is required")
					}
					return addFavorite(ctx, c.String("config"), query)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a favorite",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return err
					}
					return deleteFavorite(ctx, c.String("config"), id)
				},
			},
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("a positive numeric id is required, got %q", s)
	}
	return id, nil
}

func listFavorites(ctx context.Context, configPath string, offline bool) error {
	if offline {
		cache, err := openCache(configPath)
		if err != nil {
			return err
		}
		defer cache.Close()
		favs, err := cache.Favorites()
		if err != nil {
			return fmt.Errorf("reading cached favorites: %w", err)
		}
		fmt.Print(formatFavorites(favs))
		return nil
	}

	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	favs, err := rt.session.LoadFavorites(ctx)
	if err != nil {
		return explainError(rt.cfg, "", err)
	}
	fmt.Print(formatFavorites(favs))
	return nil
}

func addFavorite(ctx context.Context, configPath, query string) error {
	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	fav, err := rt.session.SaveFavorite(ctx, query)
	if err != nil {
		return explainError(rt.cfg, query, err)
	}
	fmt.Printf("Saved favorite #%d: %s\n", fav.ID, fav.Title())
	return nil
}

func deleteFavorite(ctx context.Context, configPath string, id int) error {
	rt, err := openRuntime(configPath, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.session.DeleteFavorite(ctx, id); err != nil {
		return explainError(rt.cfg, "", err)
	}
	fmt.Printf("Deleted favorite #%d\n", id)
	return nil
}
