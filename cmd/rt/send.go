package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/phase"
)

var sendCmd = &cobra.Command{
	Use:     "send <session-id> <text...>",
	Short:   "Post a message as the user",
	GroupID: "sessions",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return fmt.Errorf("message is empty")
		}

		s, err := apiClient.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		if s.IsFinalized() || !phase.Lookup(s.Phase).InputEnabled {
			return fmt.Errorf("input is closed during %s; use 'rt steer' at a checkpoint", s.Phase.Normalize())
		}

		resp, err := apiClient.SendMessage(cmd.Context(), id, text)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent (%s)\n", resp.Status)
		return nil
	},
}
