package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/steering"
)

var factsCmd = &cobra.Command{
	Use:     "facts <session-id>",
	Short:   "Submit the facts of a legal matter",
	GroupID: "steering",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overview, _ := cmd.Flags().GetString("overview")
		facts, _ := cmd.Flags().GetStringSlice("fact")
		evidence, _ := cmd.Flags().GetStringSlice("evidence")
		rawParties, _ := cmd.Flags().GetStringSlice("party")

		parties, err := parseParties(rawParties)
		if err != nil {
			return err
		}
		gw, _, err := newGateway(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		req := &model.FactsRequest{
			CaseOverview: overview,
			Parties:      parties,
			Facts:        facts,
			Evidence:     evidence,
		}
		if _, err := gw.Submit(cmd.Context(), model.ActionSubmitFacts, steering.Payload{Facts: req}); err != nil {
			return err
		}

		resp := gw.Facts()
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Facts submitted (%s)\n", resp.Status)
		printBullets(w, "Confirmed:", resp.ConfirmedFacts)
		printBullets(w, "Disputed:", resp.DisputedFacts)
		printBullets(w, "Questions:", resp.MissingFactsQuestions)
		return nil
	},
}

// parseParties reads "name:role" pairs.
func parseParties(raw []string) ([]model.Party, error) {
	parties := make([]model.Party, 0, len(raw))
	for _, r := range raw {
		name, role, ok := strings.Cut(r, ":")
		name, role = strings.TrimSpace(name), strings.TrimSpace(role)
		if !ok || name == "" || role == "" {
			return nil, fmt.Errorf("invalid party %q (want name:role)", r)
		}
		parties = append(parties, model.Party{Name: name, Role: role})
	}
	return parties, nil
}

func init() {
	factsCmd.Flags().String("overview", "", "case overview")
	factsCmd.Flags().StringSlice("fact", nil, "a fact (repeatable)")
	factsCmd.Flags().StringSlice("evidence", nil, "a piece of evidence (repeatable)")
	factsCmd.Flags().StringSlice("party", nil, "a party as name:role (repeatable)")
}
