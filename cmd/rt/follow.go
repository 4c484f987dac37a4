package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/feed"
	"github.com/alfredjeanlab/roundtable/internal/idgen"
	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
	"github.com/alfredjeanlab/roundtable/internal/session"
	"github.com/alfredjeanlab/roundtable/internal/steering"
	"github.com/alfredjeanlab/roundtable/internal/store/postgres"
	"github.com/alfredjeanlab/roundtable/internal/stream"
	"github.com/alfredjeanlab/roundtable/internal/ui"
)

// openFeed picks the insert feed: NATS when configured, else Postgres
// LISTEN, else none.
func openFeed() (feed.InsertFeed, error) {
	switch {
	case cfg.NATSURL != "":
		f, err := feed.NewNATSFeed(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("insert feed enabled", "transport", "nats")
		return f, nil
	case cfg.DatabaseURL != "":
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		f, err := feed.NewPGFeed(cfg.DatabaseURL, db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("insert feed enabled", "transport", "postgres")
		return &pgInsertFeed{PGFeed: f, db: db}, nil
	}
	logger.Info("insert feed disabled (ROUNDTABLE_NATS_URL and ROUNDTABLE_DATABASE_URL not set)")
	return feed.NoopFeed{}, nil
}

// pgInsertFeed owns the store the LISTEN feed reads announced rows from.
type pgInsertFeed struct {
	*feed.PGFeed
	db *postgres.PostgresStore
}

func (f *pgInsertFeed) Close() error {
	err := f.PGFeed.Close()
	if dbErr := f.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

func newStream(url string) *stream.Client {
	return stream.New(url,
		stream.WithToken(cfg.Token),
		stream.WithBackoff(cfg.ReconnectDelay),
		stream.WithLogger(logger),
	)
}

var followCmd = &cobra.Command{
	Use:   "follow <session-id>",
	Short: "Follow a session live",
	Long: `Follow a session live, printing messages as they complete and
checkpoints as they open.

With --input, lines read from stdin are posted as user messages. A line
starting with "/" answers the current checkpoint instead: /skip, /finalize,
/extend_once, /new_session and /input <guidance>. /stop and /continue
answer an early-stop prompt, and /leave finalizes and exits.`,
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		withInput, _ := cmd.Flags().GetBool("input")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		insertFeed, err := openFeed()
		if err != nil {
			return err
		}
		defer insertFeed.Close()

		view := session.New(id, session.Deps{
			Client:       apiClient,
			Stream:       newStream(apiClient.StreamURL(id)),
			Gates:        newStream(apiClient.EventsURL(id)),
			Feed:         insertFeed,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})

		runErr := make(chan error, 1)
		go func() { runErr <- view.Run(ctx) }()

		if withInput {
			go readInput(ctx, view, os.Stdin, cmd.ErrOrStderr())
		}

		r := newFollowRenderer(cmd.OutOrStdout())
		for {
			select {
			case err := <-runErr:
				return err
			case <-view.Updates():
				r.render(view.Snapshot())
			case d := <-view.Navigation():
				r.render(view.Snapshot())
				stop()
				<-view.Done()
				switch d.Kind {
				case session.DestFinal:
					fmt.Fprintf(r.w, "\nSession finalized. Run 'rt report %s' for the report.\n", d.SessionID)
				default:
					fmt.Fprintln(r.w, "\nLeft the session.")
				}
				return nil
			}
		}
	},
}

// followRenderer prints each completed message once and announces
// checkpoint and phase changes.
type followRenderer struct {
	w         io.Writer
	printed   map[string]bool
	echoed    map[string]int // content of printed local echoes not yet persisted
	lastErr   string
	lastGate  string
	lastPhase model.Phase
	lastRound int
	connected bool
	stopShown bool
}

func newFollowRenderer(w io.Writer) *followRenderer {
	return &followRenderer{w: w, printed: make(map[string]bool), echoed: make(map[string]int)}
}

func (r *followRenderer) render(s session.Snapshot) {
	r.renderErr(s)
	if s.Loading {
		return
	}
	if s.IsConnected != r.connected {
		r.connected = s.IsConnected
		if !s.IsConnected {
			fmt.Fprintln(r.w, ui.RenderWarn("(reconnecting...)"))
		}
	}
	for _, m := range s.Messages {
		if m.IsStreaming || r.printed[m.ID] {
			continue
		}
		r.printed[m.ID] = true
		switch {
		case strings.HasPrefix(m.ID, idgen.LocalPrefix):
			r.echoed[m.Content]++
		case m.Role == model.RoleUser && r.echoed[m.Content] > 0:
			// Persisted copy of an echo already shown.
			r.echoed[m.Content]--
			continue
		}
		fmt.Fprintf(r.w, "\n%s\n", ui.FormatMessage(m))
	}
	if gate := ui.FormatGate(s.GateData); gate != r.lastGate {
		r.lastGate = gate
		if gate != "" {
			fmt.Fprintf(r.w, "\n%s", gate)
		}
	}
	if s.Session.Phase != r.lastPhase || s.Session.RoundIndex != r.lastRound {
		r.lastPhase, r.lastRound = s.Session.Phase, s.Session.RoundIndex
		fmt.Fprintf(r.w, "%s %s\n", ui.RenderMuted(fmt.Sprintf("[round %d, %s]", s.Session.RoundIndex, s.Session.Phase)),
			ui.FormatAffordances(s.Affordances, s.Form))
	}
	if s.StopPrompt != nil && !r.stopShown {
		fmt.Fprintf(r.w, "%s stop now? answer /stop or /continue\n", ui.RenderWarn("Early stop proposed ("+s.StopPrompt.Trigger+"):"))
	}
	r.stopShown = s.StopPrompt != nil
	if s.Finalizing {
		fmt.Fprintln(r.w, ui.RenderMuted("(finalizing...)"))
	}
}

// renderErr prints a load or session fetch failure once, and notes when
// it clears.
func (r *followRenderer) renderErr(s session.Snapshot) {
	var msg string
	switch {
	case s.LoadErr != nil:
		msg = "loading history: " + s.LoadErr.Error()
	case s.SessionErr != nil:
		msg = "fetching session: " + s.SessionErr.Error()
	}
	if msg == r.lastErr {
		return
	}
	if msg != "" {
		fmt.Fprintln(r.w, ui.RenderError("Error: ")+msg+ui.RenderMuted(" (retrying)"))
	} else if !s.Loading {
		fmt.Fprintln(r.w, ui.RenderOK("(recovered)"))
	}
	r.lastErr = msg
}

// readInput turns stdin lines into messages and checkpoint answers.
func readInput(ctx context.Context, view *session.View, in io.Reader, errOut io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := dispatchLine(ctx, view, line); err != nil {
			fmt.Fprintln(errOut, ui.RenderError("Error: ")+err.Error())
		}
	}
}

func dispatchLine(ctx context.Context, view *session.View, line string) error {
	rest, ok := strings.CutPrefix(line, "/")
	if !ok {
		err := view.SendMessage(ctx, line)
		if errors.Is(err, session.ErrInputDisabled) {
			return fmt.Errorf("input is closed; answer the checkpoint with /skip or /finalize")
		}
		return err
	}
	name, arg, _ := strings.Cut(rest, " ")
	switch name {
	case "stop":
		return view.ConfirmStop(ctx, true)
	case "continue":
		return view.ConfirmStop(ctx, false)
	case "leave":
		return view.LeaveAfter(ctx, "", steering.Payload{})
	}
	action := model.Action(name)
	payload, err := checkpointPayload(action, arg)
	if err != nil {
		return err
	}
	if action == model.ActionFinalize && view.Snapshot().Form == phase.FormNone {
		return view.Finalize(ctx)
	}
	_, err = view.ApplySteering(ctx, action, payload)
	return err
}

// checkpointPayload builds the answer for a slash command. /input sends its
// text as free-form guidance; other actions carry nothing.
func checkpointPayload(action model.Action, arg string) (steering.Payload, error) {
	arg = strings.TrimSpace(arg)
	if action != model.ActionInput {
		return steering.Payload{}, nil
	}
	if arg == "" {
		return steering.Payload{}, fmt.Errorf("/input needs guidance text, e.g. /input focus on cost; use 'rt steer' for structured directives")
	}
	return steering.Payload{Steering: &model.Directives{FreeText: arg}}, nil
}

func init() {
	followCmd.Flags().Bool("input", false, "read messages and checkpoint answers from stdin")
}
