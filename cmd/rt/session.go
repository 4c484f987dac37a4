package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/client"
	"github.com/alfredjeanlab/roundtable/internal/model"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Show, list and create sessions",
	GroupID: "sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := apiClient.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(s)
			return nil
		}
		printSessionTable(cmd.OutOrStdout(), s)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		sessions, err := apiClient.ListSessions(cmd.Context(), user)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(sessions)
			return nil
		}
		printSessionListTable(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <topic>",
	Short: "Open a new session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		user, _ := cmd.Flags().GetString("user")
		caseType, _ := cmd.Flags().GetString("case-type")
		projectType, _ := cmd.Flags().GetString("project-type")

		req := &client.CreateSessionRequest{
			Category:    model.Category(category),
			Topic:       args[0],
			UserID:      user,
			CaseType:    caseType,
			ProjectType: projectType,
		}
		resp, err := apiClient.CreateSession(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", resp.SessionID, resp.Category)
		return nil
	},
}

func init() {
	sessionListCmd.Flags().String("user", "", "only sessions of this user")
	sessionCreateCmd.Flags().String("category", string(model.CategoryNewBiz), "session category (newbiz, marketing, dev, domain, legal)")
	sessionCreateCmd.Flags().String("user", "", "owner user id")
	sessionCreateCmd.Flags().String("case-type", "", "legal case type")
	sessionCreateCmd.Flags().String("project-type", "", "project type (general, dev, legal)")

	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
}
