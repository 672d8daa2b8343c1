package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfboard/internal/api"
	"shelfboard/internal/chaos"
	"shelfboard/internal/config"
	"shelfboard/internal/layout"
	"shelfboard/internal/shelf"
	"shelfboard/internal/storage"
)

var (
	configPath string
	cfg        *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "shelfctl",
		Short:        "Administer a shelfboard deployment",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (environment variables still apply)")

	root.AddCommand(newLayoutCmd(), newPagesCmd(), newMigrateCmd(), newChaosCmd())
	return root
}

func newLayoutCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Validate a layout file and print its slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = cfg.Shelf.LayoutFile
			}
			l, err := layout.LoadFile(file)
			if err != nil {
				return err
			}
			printLayout(cmd.OutOrStdout(), l)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "layout file (default: configured layout, else built-in)")
	return cmd
}

func printLayout(w io.Writer, l *layout.Layout) {
	spine := l.Spine()
	fmt.Fprintf(w, "%d slots, spine %.1f x %.1f\n", l.Capacity(), spine.Width, spine.Height)
	for _, s := range l.Slots() {
		fmt.Fprintf(w, "  slot %2d  x=%5.1f  y=%5.1f\n", s.ID, s.X, s.Y)
	}
}

func newPagesCmd() *cobra.Command {
	var (
		ownerID string
		verify  bool
	)
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Sync an owner's shelf from the database and print page occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(ownerID) == "" {
				return fmt.Errorf("--owner is required")
			}
			ctx := cmd.Context()
			db, dialect, err := api.OpenDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			l, err := layout.LoadFile(cfg.Shelf.LayoutFile)
			if err != nil {
				return err
			}
			opts := api.ShelfOptions(cfg.Shelf, log.New(io.Discard, "", 0))
			board := shelf.NewBoard(ownerID, storage.NewSQLStore(db, dialect), l, opts)

			res, err := board.Sync(ctx)
			if err != nil {
				return err
			}
			printPages(cmd.OutOrStdout(), board.View(), res)

			if verify {
				if err := board.Verify(ctx); err != nil {
					return fmt.Errorf("occupancy check failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "occupancy consistent")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.Flags().BoolVar(&verify, "verify", false, "check occupancy against the stored items")
	return cmd
}

func printPages(w io.Writer, v shelf.View, res shelf.SyncResult) {
	fmt.Fprintf(w, "owner %s: %d items on %d pages (capacity %d per page)\n", v.OwnerID, res.Items, v.PageCount, v.Capacity)
	for _, p := range v.Pages {
		fmt.Fprintf(w, "  page %d: %d/%d occupied %v\n", p.Index, len(p.Occupied), v.Capacity, p.Occupied)
		for _, s := range p.Slots {
			if s.Item != nil {
				fmt.Fprintf(w, "    %2d  %s by %s\n", s.ID, s.Item.Title, s.Item.Author)
			}
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, err := api.OpenDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", dialect)
			return nil
		},
	}
}

func newChaosCmd() *cobra.Command {
	var (
		seed    int
		timeout time.Duration
		only    []string
	)
	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Run store fault experiments against a seeded in-memory board",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			l, err := layout.LoadFile(cfg.Shelf.LayoutFile)
			if err != nil {
				return err
			}
			opts := api.ShelfOptions(cfg.Shelf, log.New(io.Discard, "", 0))
			h, err := chaos.NewHarness(ctx, storage.NewMemoryStore(), "chaos", l, opts, seed)
			if err != nil {
				return err
			}

			all := chaos.NewEngine()
			all.RegisterExperiments(h)
			engine := chaos.NewEngine()
			for _, exp := range all.Experiments() {
				if len(only) == 0 || slices.Contains(only, exp.Name) {
					engine.RegisterExperiment(exp)
				}
			}
			if len(engine.Experiments()) == 0 {
				return fmt.Errorf("no experiments match %v", only)
			}
			return engine.RunAll(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&seed, "seed", 4, "items to shelve before the experiments")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall time limit")
	cmd.Flags().StringSliceVar(&only, "only", nil, "run only the named experiments")
	return cmd
}
