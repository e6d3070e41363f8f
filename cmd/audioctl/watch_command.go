package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var feeds []string
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream capture events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.streamingClient(0).Watch(cmd.Context(), feeds, func(e relay.Event) {
				if raw {
					fmt.Fprintln(out, e.Payload)
					return
				}
				fmt.Fprintln(out, describeEvent(e, time.Now()))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&feeds, "feeds", nil, "Only these feeds (media_captured, media_removed, media_cleared)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print event payloads as JSON")
	return cmd
}

func describeEvent(e relay.Event, now time.Time) string {
	stamp := now.Format("15:04:05")
	switch e.Feed {
	case relay.FeedCaptured:
		var msg relay.CapturedMessage
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			break
		}
		return fmt.Sprintf("%s captured %s (%s) from %s [%s]",
			stamp, msg.Media.Filename, download.FormatSize(msg.Media.FileSize), msg.Media.TabTitle, msg.Media.ID)
	case relay.FeedRemoved:
		var msg struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			break
		}
		return fmt.Sprintf("%s removed %s", stamp, msg.ID)
	case relay.FeedCleared:
		return stamp + " cleared"
	}
	return fmt.Sprintf("%s %s %s", stamp, e.Feed, e.Payload)
}
