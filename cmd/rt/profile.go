package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/config"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage named backend profiles",
	GroupID: "system",
	// Profile subcommands only touch profiles.toml; loading the active
	// profile could fail on the very profile being fixed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> <api-url>",
	Short: "Add or update a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")
		dbURL, _ := cmd.Flags().GetString("database")

		p, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		p.Profiles[name] = config.Profile{
			APIURL:      strings.TrimRight(url, "/"),
			Token:       token,
			NATSURL:     natsURL,
			DatabaseURL: dbURL,
		}
		if err := config.SaveProfiles(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q added (%s)\n", name, url)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if err := p.Remove(args[0]); err != nil {
			return err
		}
		if err := config.SaveProfiles(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q removed\n", args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if err := p.Use(args[0]); err != nil {
			return err
		}
		if err := config.SaveProfiles(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active profile set to %q\n", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.LoadProfiles()
		if err != nil {
			return err
		}
		if len(p.Profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no profiles configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tAPI URL\tTOKEN\tFEED")
		for _, name := range p.Names() {
			prof := p.Profiles[name]
			marker := "  "
			if name == p.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, prof.APIURL, maskToken(prof.Token), feedKind(prof))
		}
		return w.Flush()
	},
}

func maskToken(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}

func feedKind(p config.Profile) string {
	switch {
	case p.NATSURL != "":
		return "nats"
	case p.DatabaseURL != "":
		return "postgres"
	}
	return "-"
}

func init() {
	profileAddCmd.Flags().String("token", "", "bearer token for authentication")
	profileAddCmd.Flags().String("nats", "", "NATS URL for the insert feed")
	profileAddCmd.Flags().String("database", "", "Postgres URL for history and the LISTEN feed")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileListCmd)
}
