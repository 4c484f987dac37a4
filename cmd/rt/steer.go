package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
	"github.com/alfredjeanlab/roundtable/internal/steering"
)

// newGateway loads the session and returns a gateway checking against it.
func newGateway(ctx context.Context, id string) (*steering.Gateway, model.Session, error) {
	s, err := apiClient.GetSession(ctx, id)
	if err != nil {
		return nil, model.Session{}, err
	}
	machine := phase.NewMachine(logger)
	machine.Apply(*s)
	sess, _ := machine.Session()
	return steering.New(id, apiClient, machine, steering.WithLogger(logger)), sess, nil
}

var steerCmd = &cobra.Command{
	Use:   "steer <session-id> <action>",
	Short: "Answer a checkpoint (skip, input, finalize, extend_once, new_session)",
	Long: `Answer the checkpoint a session is waiting at.

At a user gate the actions are skip, input and finalize; input carries the
directive flags. At the end gate they are finalize, extend_once and
new_session. Legal sessions read the legal flags instead.`,
	GroupID: "steering",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, action := args[0], model.Action(args[1])
		gw, sess, err := newGateway(cmd.Context(), id)
		if err != nil {
			return err
		}
		payload := steeringPayload(cmd)

		res, err := gw.Submit(cmd.Context(), action, payload)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s accepted at round %d (%s)\n", action, sess.RoundIndex, res.Status)
		return nil
	},
}

// steeringPayload reads the directive flags. Both the general and the
// legal parts are filled; the gateway reads the one matching the route.
func steeringPayload(cmd *cobra.Command) steering.Payload {
	str := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	list := func(name string) []string {
		v, _ := cmd.Flags().GetStringSlice(name)
		return v
	}

	d := &model.Directives{
		Goal:        str("goal"),
		Priority:    str("priority"),
		Focus:       str("focus"),
		Constraints: list("constraint"),
		Exclusions:  list("exclude"),
		FreeText:    str("note"),
	}
	legal := &model.LegalSteeringRequest{
		FocusIssue:    str("focus-issue"),
		Goal:          str("goal"),
		ProofPriority: str("proof-priority"),
		EvidenceLevel: str("evidence-level"),
		Constraints:   list("constraint"),
		ReportStyle:   str("report-style"),
		Stance:        str("stance"),
		Exclusions:    list("exclude"),
		Notes:         str("note"),
	}
	if d.IsEmpty() {
		d = nil
	}
	return steering.Payload{Steering: d, Legal: legal}
}

var finalizeCmd = &cobra.Command{
	Use:     "finalize <session-id>",
	Short:   "Wrap a session up and produce its report",
	GroupID: "steering",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, _, err := newGateway(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := gw.Finalize(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Finalizing %s\n", args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:     "stop <session-id>",
	Short:   "Answer the early-stop prompt",
	GroupID: "steering",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decline, _ := cmd.Flags().GetBool("continue")
		if err := apiClient.ConfirmStop(cmd.Context(), args[0], !decline); err != nil {
			return err
		}
		if decline {
			fmt.Fprintln(cmd.OutOrStdout(), "Continuing")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Stopping")
		}
		return nil
	},
}

func init() {
	f := steerCmd.Flags()
	f.String("goal", "", "goal for the next round")
	f.String("priority", "", "priority (general and dev)")
	f.String("focus", "", "focus area (general and dev)")
	f.StringSlice("constraint", nil, "constraint (repeatable)")
	f.StringSlice("exclude", nil, "topic to exclude (repeatable)")
	f.String("note", "", "free-text note")
	f.String("focus-issue", "", "legal: issue to focus on")
	f.String("proof-priority", "", "legal: proof priority")
	f.String("evidence-level", "", "legal: evidence level")
	f.String("report-style", "", "legal: report style")
	f.String("stance", "", "legal: stance")

	stopCmd.Flags().Bool("continue", false, "decline the stop and keep going")
}
