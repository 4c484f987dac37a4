package ui

import (
	"fmt"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 214 // orange
	colorError  = 203 // red
	colorOK     = 114 // green
	colorPurple = 141
)

// roleColors follows the avatar themes: planner blue, critic orange,
// synthesizer purple.
var roleColors = map[model.Role]int{
	model.RoleUser:     colorOK,
	model.RoleAgent1:   colorAccent,
	model.RoleAgent2:   colorWarn,
	model.RoleAgent3:   colorPurple,
	model.RoleVerifier: colorCmd,
	model.RoleJudge:    colorPurple,
	model.RoleClaimant: colorAccent,
	model.RoleOpposing: colorWarn,
	model.RolePM:       colorAccent,
	model.RoleTech:     colorWarn,
	model.RoleUX:       colorPurple,
	model.RolePRD:      colorAccent,
	model.RoleDM:       colorOK,
}

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return paint(colorError, s) }

// RenderOK returns s in the success (green) color.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderRole returns s in the color of role. Unknown roles are muted.
func RenderRole(role model.Role, s string) string {
	code, ok := roleColors[role]
	if !ok {
		code = colorMuted
	}
	return paint(code, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
