package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/audiosniff/internal/client"
	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/media"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var opts client.ListOptions
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List captured audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ctx.client().ListMedia(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				if records == nil {
					records = []media.Record{}
				}
				return printJSON(cmd.OutOrStdout(), records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No audio captured yet")
				return nil
			}
			fmt.Fprintln(out, renderMediaTable(records, time.Now(), tableStyle(out)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Filter by filename, tab title or URL")
	cmd.Flags().StringVar(&opts.Sort, "sort", "date", "Sort by name, date or size")
	cmd.Flags().StringVar(&opts.Order, "order", "desc", "Sort order asc or desc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func renderMediaTable(records []media.Record, now time.Time, style table.Style) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Filename,
			download.FormatSize(r.FileSize),
			r.TabTitle,
			string(r.Source),
			humanize.RelTime(r.Timestamp, now, "ago", "from now"),
		})
	}
	return renderTable(
		[]string{"ID", "File", "Size", "Tab", "Source", "Found"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		style,
	)
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var rawURL, filename string

	cmd := &cobra.Command{
		Use:   "download [id]",
		Short: "Save one captured file to the service downloads directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" && rawURL == "" {
				return fmt.Errorf("give a media id or --url")
			}
			res, err := ctx.client().Download(cmd.Context(), id, rawURL, filename)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", res.Filename, res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "Download a URL directly instead of a captured id")
	cmd.Flags().StringVarP(&filename, "filename", "f", "", "Override the saved filename")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove captured records",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.client()
			out := cmd.OutOrStdout()
			for _, id := range args {
				removed, err := c.RemoveMedia(cmd.Context(), id)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed %s\n", id)
				} else {
					fmt.Fprintf(out, "Not captured: %s\n", id)
				}
			}
			return nil
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every captured record",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := ctx.client().ClearMedia(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", n, plural(n, "record", "records"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
