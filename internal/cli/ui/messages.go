package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message block
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a multi-line CLI message with optional suggestions and follow-up
// commands
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Consequence string
	Suggestions []string
	Help        []string
	NoColor     bool
}

// Format renders m:
//
//	✗ UNKNOWN ADVISOR: benhc
//
//	   Did you mean: bench?
//
//	   → List advisors: recruitops advise --list
func (m Message) Format() string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, body, symbol = newColor(m.NoColor, color.FgYellow, color.Bold), newColor(m.NoColor, color.FgYellow), "!"
	case LevelInfo:
		head, body, symbol = newColor(m.NoColor, color.FgCyan, color.Bold), newColor(m.NoColor, color.FgCyan), "i"
	default:
		head, body, symbol = newColor(m.NoColor, color.FgRed, color.Bold), newColor(m.NoColor, color.FgRed), "✗"
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Consequence != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", m.Consequence)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		newColor(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Help) > 0 {
		b.WriteString("\n")
		cyan := newColor(m.NoColor, color.FgCyan)
		for _, h := range m.Help {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write prints the formatted message
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Error lets a Message travel as an error value
func (m Message) Error() string {
	if m.Context != "" {
		return m.Context + ": " + m.Problem
	}
	return m.Problem
}

// Success prints a green check line
func Success(w io.Writer, noColor bool, format string, args ...any) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warn prints a yellow warning line
func Warn(w io.Writer, noColor bool, format string, args ...any) {
	newColor(noColor, color.FgYellow).Fprintf(w, "! %s\n", fmt.Sprintf(format, args...))
}

// UnknownName builds the error shown for a mistyped phase, advisor or sync
// target, with close spellings as suggestions
func UnknownName(kind, name string, known []string, help string, noColor bool) Message {
	m := Message{
		Level:       LevelError,
		Context:     "unknown " + kind,
		Problem:     name,
		Suggestions: Suggest(name, known),
		NoColor:     noColor,
	}
	if help != "" {
		m.Help = []string{help}
	}
	return m
}

// ConfigProblem builds the error shown when required settings are missing
func ConfigProblem(problem string, settings []string, noColor bool) Message {
	help := make([]string, 0, len(settings)+1)
	for _, s := range settings {
		help = append(help, "Set "+s)
	}
	help = append(help, "Create a config file: recruitops init")
	return Message{Level: LevelError, Context: "configuration", Problem: problem, Help: help, NoColor: noColor}
}
