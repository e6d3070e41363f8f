package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/audiosniff/internal/client"
	"github.com/dgnsrekt/audiosniff/internal/config"
)

type commandContext struct {
	serverFlag *string
	timeout    time.Duration
}

func (c *commandContext) client() *client.Client {
	return c.streamingClient(c.timeout)
}

// streamingClient uses no overall timeout when d is zero.
func (c *commandContext) streamingClient(d time.Duration) *client.Client {
	return client.New(strings.TrimSpace(*c.serverFlag), &http.Client{Timeout: d})
}

func newRootCommand() *cobra.Command {
	var serverFlag string
	ctx := &commandContext{serverFlag: &serverFlag, timeout: 5 * time.Minute}

	rootCmd := &cobra.Command{
		Use:           "audioctl",
		Short:         "Review and download audio captured by audiosniff",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", config.LoadClient().ServerURL, "audiosniff service URL (env AUDIOSNIFF_URL)")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx))
	rootCmd.AddCommand(newRemoveCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	rootCmd.AddCommand(newBundleCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newSendCommand(ctx))

	return rootCmd
}
