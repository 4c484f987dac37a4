package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/ui"
)

// helpRule styles every match of re. style receives the submatches and
// returns the replacement.
type helpRule struct {
	re    *regexp.Regexp
	style func(parts []string) string
}

var helpRules = []helpRule{
	// Group headers such as "Sessions:" and "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`), func(p []string) string {
		return ui.RenderAccent(strings.TrimSpace(p[0]))
	}},
	// Subcommand names in the command listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(p []string) string {
		return p[1] + ui.RenderCommand(p[2]) + p[3]
	}},
	// Flag value types, e.g. "--interval duration".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|strings|stringSlice)`), func(p []string) string {
		return p[1] + ui.RenderMuted(p[2])
	}},
	// Only (default "...") annotations, so [command] and [flags] stay plain.
	{regexp.MustCompile(`\(default "[^"]*"\)`), func(p []string) string {
		return ui.RenderMuted(p[0])
	}},
}

// colorizedHelpFunc renders Cobra's usage text, colored when stdout is a
// color-capable terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if noColor || !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		out := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.style(r.re.FindStringSubmatch(match))
		})
	}
	return s
}
