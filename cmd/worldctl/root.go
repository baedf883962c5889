package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/config"
	"github.com/kittclouds/worldbuilder/internal/logging"
	"github.com/kittclouds/worldbuilder/internal/store"
	"github.com/kittclouds/worldbuilder/internal/suggest"
	"github.com/kittclouds/worldbuilder/internal/world"
)

// app is everything a subcommand needs, built once per invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *store.SQLiteStore
	worlds   *world.Provider
	suggests *suggest.Service
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.store = store.New(nil,
		store.WithLogger(logger.Named("store")),
		store.WithCascadeDeletes(cfg.Store.CascadeDeletes),
		store.WithChangeHook(func(ctx context.Context, c store.Change) {
			a.suggests.OnChange(ctx, c)
		}),
	)
	a.suggests = suggest.New(a.store, suggest.Options{
		CacheTTL:      cfg.Suggest.CacheTTL,
		MinNameLength: cfg.Suggest.MinNameLength,
	}, logger.Named("suggest"))
	a.worlds = world.NewProvider(cfg.DataDir, a.store, logger.Named("world"))
	return a, nil
}

// openWorld opens the world selected by --world. The returned context
// carries the world key for cache invalidation.
func (a *app) openWorld(ctx context.Context) (context.Context, *world.Session, error) {
	if a.cfg.World == "" {
		return ctx, nil, fmt.Errorf("no world selected: pass --world or set WORLDBUILDER_WORLD")
	}
	sess, err := a.worlds.Open(ctx, a.cfg.World)
	if err != nil {
		return ctx, nil, err
	}
	return suggest.WithWorld(ctx, sess.Path), sess, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var a *app

	root := &cobra.Command{
		Use:           "worldctl",
		Short:         "Manage worldbuilder world databases",
		Long:          "worldctl reads and writes the entries, tags and world map of a worldbuilder world database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
			}
			var err error
			a, err = newApp(v)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./worldbuilder.yaml)")
	flags.StringP("world", "w", "", "world name or database file")
	flags.String("data-dir", "", "directory holding world databases")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = v.BindPFlag("world", flags.Lookup("world"))
	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	get := func() *app { return a }
	root.AddCommand(
		newWorldsCmd(get),
		newCreateCmd(get),
		newCategoriesCmd(get),
		newColumnsCmd(get),
		newListCmd(get),
		newShowCmd(get),
		newSaveCmd(get),
		newDeleteCmd(get),
		newTagsCmd(get),
		newMapCmd(get),
		newExportCmd(get),
		newImportCmd(get),
		newSuggestCmd(get),
	)
	return root
}
