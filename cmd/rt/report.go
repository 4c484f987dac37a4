package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/client"
)

var reportCmd = &cobra.Command{
	Use:     "report <session-id>",
	Short:   "Print the final report, generating it if needed",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := client.FetchReport(cmd.Context(), apiClient, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(r)
			return nil
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	},
}
