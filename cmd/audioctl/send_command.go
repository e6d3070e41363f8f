package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send [json]",
		Short: "Send a raw relay message and print the envelope",
		Long:  "Posts one message such as '{\"type\":\"GET_CAPTURED_MEDIA\"}'. Reads stdin when no argument or '-' is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 0 || args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = data
			} else {
				raw = []byte(args[0])
			}
			if strings.TrimSpace(string(raw)) == "" {
				return fmt.Errorf("empty message")
			}

			resp, err := ctx.client().Send(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("message failed: %s", resp.Error)
			}
			return nil
		},
	}
}
