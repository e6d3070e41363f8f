package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBundleCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var output string

	cmd := &cobra.Command{
		Use:   "bundle [id]...",
		Short: "Bundle captured audio into a zip archive",
		Long:  "Builds a zip on the service. Entries that fail to fetch are skipped and reported. With -o the archive is also written locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("give media ids or --all")
			}
			c := ctx.client()
			meta, err := c.Bundle(cmd.Context(), args, all)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundle %s: %d added, %d skipped (%s)\n",
				meta.Name, len(meta.Added), len(meta.Skipped), humanize.IBytes(uint64(meta.SizeBytes)))
			for _, s := range meta.Skipped {
				fmt.Fprintf(out, "  skipped %s: %s\n", s.URL, s.Error)
			}
			if output == "" {
				fmt.Fprintf(out, "Bundle id: %s\n", meta.ID)
				return nil
			}

			if info, err := os.Stat(output); err == nil && info.IsDir() {
				output = filepath.Join(output, meta.Name)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := c.FetchArchive(cmd.Context(), meta.ID, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(out, "Wrote %s (%s)\n", output, humanize.IBytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Bundle every captured record")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the archive to this file or directory")
	return cmd
}
