package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
	"github.com/alfredjeanlab/roundtable/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSessionTable(w io.Writer, s *model.Session) {
	fmt.Fprintf(w, "ID:          %s\n", s.ID)
	fmt.Fprintf(w, "Topic:       %s\n", s.Topic)
	fmt.Fprintf(w, "Category:    %s\n", s.Category)
	fmt.Fprintf(w, "Track:       %s\n", s.Track())
	fmt.Fprintf(w, "Status:      %s\n", s.Status)
	fmt.Fprintf(w, "Round:       %d\n", s.RoundIndex)
	fmt.Fprintf(w, "Phase:       %s\n", s.Phase.Normalize())
	if s.CaseType != "" {
		fmt.Fprintf(w, "Case Type:   %s\n", s.CaseType)
	}
	if s.ProjectType != "" {
		fmt.Fprintf(w, "Project:     %s\n", s.ProjectType)
	}
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !s.IsFinalized() {
		fmt.Fprintf(w, "Allowed:     %s\n", ui.FormatAffordances(phase.Lookup(s.Phase), phase.FormFor(s.Track(), s.Phase)))
	}
}

func printSessionListTable(w io.Writer, sessions []*model.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCATEGORY\tROUND\tPHASE\tTOPIC")
	for _, s := range sessions {
		topic := s.Topic
		if len(topic) > 50 {
			topic = topic[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID,
			s.Status,
			s.Category,
			s.RoundIndex,
			s.Phase.Normalize(),
			topic,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d sessions\n", len(sessions))
}

func printMessages(w io.Writer, msgs []model.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, ui.FormatMessage(m))
	}
}

func printReport(w io.Writer, r *model.FinalReport) {
	if r.ReportMD != "" {
		fmt.Fprintln(w, r.ReportMD)
		return
	}
	if r.ExecutiveSummary != "" {
		fmt.Fprintf(w, "%s\n%s\n\n", ui.RenderAccent("Executive summary:"), r.ExecutiveSummary)
	}
	printBullets(w, "Top decisions:", r.TopDecisions)
	if len(r.Roadmap) > 0 {
		fmt.Fprintln(w, ui.RenderAccent("Roadmap:"))
		for _, item := range r.Roadmap {
			fmt.Fprintf(w, "  %s: %s\n", item.Week, strings.Join(item.Tasks, "; "))
		}
		fmt.Fprintln(w)
	}
	if len(r.Risks) > 0 {
		fmt.Fprintln(w, ui.RenderAccent("Risks:"))
		for _, item := range r.Risks {
			fmt.Fprintf(w, "  - %s %s\n", item.Risk, ui.RenderMuted("("+item.Mitigation+")"))
		}
		fmt.Fprintln(w)
	}
	printBullets(w, "KPIs:", r.KPIs)
	printBullets(w, "Open issues:", r.OpenIssues)
}

func printBullets(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, ui.RenderAccent(title))
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
	fmt.Fprintln(w)
}
