// Package scans implements the offline scan history commands.
package scans

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
)

// Command returns the scans command with its list, show, rename and delete subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Inspect and edit stored scans",
	}

	cmd.AddCommand(listCommand(settings))
	cmd.AddCommand(showCommand(settings))
	cmd.AddCommand(renameCommand(settings))
	cmd.AddCommand(deleteCommand(settings))

	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(settings *conf.Settings, fn func(datastore.Interface) error) error {
	store, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	return errors.Join(fn(store), store.Close())
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), records)
				}
				return writeTable(cmd.OutOrStdout(), records)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func renameCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> [name]",
		Short: "Set a scan's custom name; omit the name to clear it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 2 {
				name = args[1]
			}
			return withStore(settings, func(store datastore.Interface) error {
				rec, err := store.Rename(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.ID, datastore.DisplayName(rec))
				return nil
			})
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a scan permanently",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, records []datastore.ScanRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSCANNED\tNAME")
	for i := range records {
		rec := &records[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.CodeType.Label(),
			rec.ScanDate.Local().Format(time.DateTime),
			datastore.DisplayName(rec))
	}
	return tw.Flush()
}
