package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/worldbuilder/internal/export"
	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
	"github.com/kittclouds/worldbuilder/internal/suggest"
)

func newMapCmd(get appFunc) *cobra.Command {
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Read or replace the world map image",
	}

	mapCmd.AddCommand(&cobra.Command{
		Use:   "set FILE",
		Short: "Store FILE as the world map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read map: %w", err)
			}
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()
			return a.store.SetWorldMap(ctx, sess, data)
		},
	})

	mapCmd.AddCommand(&cobra.Command{
		Use:   "get FILE",
		Short: "Write the world map to FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			data, err := a.store.GetWorldMap(ctx, sess)
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("world %s has no map", sess.Name)
			}
			return os.WriteFile(args[0], data, 0o644)
		},
	})
	return mapCmd
}

func newExportCmd(get appFunc) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole world as JSON or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			snap, err := a.store.Export(ctx, sess)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch strings.ToLower(format) {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			case "xlsx":
				return export.WriteXLSX(w, snap, a.store.Registry())
			default:
				return fmt.Errorf("unknown export format %q (want json or xlsx)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the world's content with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var snap store.Snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()
			return a.store.Import(ctx, sess, &snap)
		},
	}
}

func newSuggestCmd(get appFunc) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "suggest NAME",
		Short: "Suggest tags for an entry from the names its description mentions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			req := suggest.Request{World: sess.Path, Self: args[0], Text: text}
			if rec, err := a.store.GetRecord(ctx, sess, args[0]); err != nil {
				return err
			} else if rec != nil {
				if req.Text == "" {
					req.Text, _ = rec.Fields[schema.ColDescription].(string)
				}
				req.Existing, _ = rec.Fields[schema.ColTags].(string)
			}

			entries, err := a.suggests.Suggest(ctx, sess, req)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", e.Name, schema.DisplayName(e.Category))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to scan instead of the entry's description")
	return cmd
}
