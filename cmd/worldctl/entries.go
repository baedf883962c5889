package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
)

type appFunc func() *app

func newWorldsCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "worlds",
		Short: "List the world databases in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			infos, err := a.worlds.Discover(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "no worlds in %s\n", a.worlds.Dir())
				return nil
			}
			for _, info := range infos {
				name := info.Name
				if name == "" {
					name = "(unreadable)"
				}
				fmt.Fprintf(out, "%-24s %s\n", name, info.Path)
			}
			return nil
		},
	}
}

func newCreateCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new world database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := get().worlds.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s at %s\n", sess.Name, sess.Path)
			return nil
		},
	}
}

func newCategoriesCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the entry categories of the world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			cats, err := a.store.ListCategories(ctx, sess)
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", c, schema.DisplayName(c))
			}
			return nil
		},
	}
}

func newColumnsCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "columns CATEGORY",
		Short: "List the editable columns of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols := get().store.ColumnsOf(schema.CategoryFromDisplay(args[0]))
			if len(cols) == 0 {
				return fmt.Errorf("unknown category %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(cols, "\n"))
			return nil
		},
	}
}

func newListCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list CATEGORY",
		Short: "List the entry names of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			names, err := a.store.ListNames(ctx, sess, schema.CategoryFromDisplay(args[0]))
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newShowCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show an entry by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			rec, err := a.store.GetRecord(ctx, sess, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("entry %q not found", args[0])
			}
			printRecord(cmd.OutOrStdout(), rec, a.store.ColumnsOf(rec.Category))
			return nil
		},
	}
}

func printRecord(w io.Writer, rec *store.Record, columns []string) {
	fmt.Fprintf(w, "%-12s %s\n", "category", schema.DisplayName(rec.Category))
	fmt.Fprintf(w, "%-12s %d\n", "id", rec.ID)
	for _, c := range columns {
		switch v := rec.Fields[c].(type) {
		case nil:
		case []byte:
			fmt.Fprintf(w, "%-12s <%d bytes>\n", c, len(v))
		default:
			fmt.Fprintf(w, "%-12s %v\n", c, v)
		}
	}
}

func newSaveCmd(get appFunc) *cobra.Command {
	var (
		description, stats, tags, image, onConflict string
	)
	cmd := &cobra.Command{
		Use:   "save CATEGORY NAME",
		Short: "Create an entry, or update it if the name exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			category := schema.CategoryFromDisplay(args[0])

			fields := store.Fields{"name": args[1]}
			flags := cmd.Flags()
			if flags.Changed("description") {
				fields[schema.ColDescription] = description
			}
			if flags.Changed("stats") {
				fields[schema.ColStats] = stats
			}
			if flags.Changed("tags") {
				fields[schema.ColTags] = tags
			}
			if image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				fields[schema.ColImageData] = data
			}

			opts := store.UpsertOptions{OnConflict: a.cfg.ConflictPolicy()}
			if onConflict != "" {
				p, ok := store.ParseConflictPolicy(onConflict)
				if !ok {
					return fmt.Errorf("unknown conflict policy %q", onConflict)
				}
				opts.OnConflict = p
			}
			if opts.OnConflict == store.ConflictAsk {
				opts.Confirm = promptOverwrite(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			outcome, err := a.store.UpsertByName(ctx, sess, category, fields, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[1], outcome)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "entry description")
	cmd.Flags().StringVar(&stats, "stats", "", "stats block (characters, deities, enemies)")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "comma-separated tags")
	cmd.Flags().StringVar(&image, "image", "", "image file to attach")
	cmd.Flags().StringVar(&onConflict, "on-conflict", "", "ask, overwrite or skip (default from config)")
	return cmd
}

// promptOverwrite asks on the terminal before an existing entry is replaced.
func promptOverwrite(in io.Reader, out io.Writer) store.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, c *store.ConflictError) (bool, error) {
		fmt.Fprintf(out, "%q already exists in %s. Overwrite? [y/N] ", c.Name, schema.DisplayName(c.Category))
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func newDeleteCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CATEGORY NAME",
		Short: "Delete an entry by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			deleted, err := a.store.DeleteByName(ctx, sess, schema.CategoryFromDisplay(args[0]), args[1])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[1])
			return nil
		},
	}
}

func newTagsCmd(get appFunc) *cobra.Command {
	var category, exclude string
	var unique bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tag labels, optionally narrowed to one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx, sess, err := a.openWorld(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			labels, err := a.store.TagChoices(ctx, sess, exclude)
			if err != nil {
				return err
			}
			if category != store.AllCategories {
				labels, err = a.store.FilterTagsByCategory(ctx, sess, labels, schema.CategoryFromDisplay(category))
				if err != nil {
					return err
				}
			}
			if unique {
				labels = dedupe(labels)
			}
			for _, l := range labels {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", store.AllCategories, "only labels located in this category")
	cmd.Flags().StringVar(&exclude, "exclude", "", "entry name to leave out, usually the entry being edited")
	cmd.Flags().BoolVarP(&unique, "unique", "u", false, "print each label once, sorted")
	return cmd
}

func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
