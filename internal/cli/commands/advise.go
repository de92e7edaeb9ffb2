package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/cli/ui"
)

// chatter is the part of the advisor service the CLI talks to
type chatter interface {
	Chat(ctx context.Context, name advisor.Name, sessionID, message string) (advisor.Reply, error)
	History(ctx context.Context, name advisor.Name, sessionID string) ([]advisor.Turn, error)
	Reset(ctx context.Context, name advisor.Name, sessionID string) error
}

func newAdviseCommand(g *globalFlags) *cobra.Command {
	var (
		session string
		reset   bool
		history bool
	)

	cmd := &cobra.Command{
		Use:   "advise [advisor] [message]",
		Short: "Ask an AI advisor about the bench, forecast or pipeline",
		Long: `Chat with an advisor that sees the live bench, upcoming hires, the
demand gap and the project pipeline. Without a message, start an interactive
conversation. Without an advisor, list them.`,
		Example: `  recruitops advise bench "who should I call first this week?"
  recruitops advise forecast --session planning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				renderAdvisors(out, g.plain())
				return nil
			}

			name := advisor.Name(args[0])
			if _, ok := advisor.Lookup(name); !ok {
				return ui.UnknownName("advisor", args[0], advisorNames(), "List advisors: recruitops advise", g.plain())
			}

			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.Advisor.APIKey == "" {
				return ui.ConfigProblem("advisors are not configured", []string{
					"advisor.api_key in recruitops.yaml",
					"RECRUITOPS_ADVISOR_API_KEY",
				}, g.plain())
			}

			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			c, rdb := a.openCache(ctx)
			defer c.Close()

			svc, err := a.buildAdvisors(ctx, db, c, a.publisher(rdb))
			if err != nil {
				return err
			}

			sessionID := "cli:" + session
			switch {
			case reset:
				if err := svc.Reset(ctx, name, sessionID); err != nil {
					return err
				}
				ui.Success(out, g.plain(), "cleared %s session %q", name, session)
				return nil
			case history:
				turns, err := svc.History(ctx, name, sessionID)
				if err != nil {
					return err
				}
				renderTurns(out, name, turns, g.plain())
				return nil
			}

			if len(args) > 1 {
				return ask(ctx, out, svc, name, sessionID, strings.Join(args[1:], " "), g.plain())
			}
			if !interactive(out) {
				return errors.New("a message is required when output is not a terminal")
			}
			return converse(ctx, out, svc, name, sessionID, g.plain())
		},
	}

	cmd.Flags().StringVar(&session, "session", "default", "conversation to continue")
	cmd.Flags().BoolVar(&reset, "reset", false, "forget the session's history")
	cmd.Flags().BoolVar(&history, "history", false, "print the session's history")
	cmd.MarkFlagsMutuallyExclusive("reset", "history")
	return cmd
}

func advisorNames() []string {
	personas := advisor.Advisors()
	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = string(p.Name)
	}
	return names
}

func renderAdvisors(w io.Writer, noColor bool) {
	tbl := ui.NewTable(w, noColor, "Advisor", "Title", "Helps with")
	for _, p := range advisor.Advisors() {
		tbl.AddRow(string(p.Name), p.Title, p.Description)
	}
	tbl.Render()
}

// ask sends one message and prints the reply
func ask(ctx context.Context, w io.Writer, chat chatter, name advisor.Name, sessionID, message string, noColor bool) error {
	spin := ui.NewSpinner(w, "Thinking", interactive(w), noColor)
	spin.Start()
	reply, err := chat.Chat(ctx, name, sessionID, message)
	spin.Stop()
	if err != nil {
		return err
	}
	printTurn(w, string(name), reply.Message, noColor)
	return nil
}

// converse prompts for messages until the user sends an empty line, "exit" or
// interrupts
func converse(ctx context.Context, w io.Writer, chat chatter, name advisor.Name, sessionID string, noColor bool) error {
	persona, _ := advisor.Lookup(name)
	ui.Header(w, persona.Title, noColor)
	fmt.Fprintln(w, "Empty line or \"exit\" to finish.")

	for {
		var message string
		prompt := &survey.Input{Message: "You:"}
		if err := survey.AskOne(prompt, &message); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}
		message = strings.TrimSpace(message)
		if message == "" || strings.EqualFold(message, "exit") {
			return nil
		}
		if err := ask(ctx, w, chat, name, sessionID, message, noColor); err != nil {
			return err
		}
	}
}

func renderTurns(w io.Writer, name advisor.Name, turns []advisor.Turn, noColor bool) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "No messages in this session")
		return
	}
	for _, t := range turns {
		speaker := "you"
		if t.Role == advisor.RoleModel {
			speaker = string(name)
		}
		printTurn(w, speaker, t.Text, noColor)
	}
}

func printTurn(w io.Writer, speaker, text string, noColor bool) {
	c := color.New(color.FgGreen, color.Bold)
	if noColor {
		c.DisableColor()
	}
	c.Fprintf(w, "%s: ", speaker)
	fmt.Fprintln(w, strings.TrimSpace(text))
}
