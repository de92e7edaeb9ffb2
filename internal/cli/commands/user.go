package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/auth"
)

func newUserCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(newUserAddCommand(g))
	return cmd
}

// newUser holds the fields of a user being added
type newUser struct {
	Email    string `survey:"email"`
	Name     string `survey:"name"`
	Role     string `survey:"role"`
	Password string `survey:"password"`
}

// missing lists the fields that still need a value
func (u *newUser) missing() []string {
	var out []string
	if u.Email == "" {
		out = append(out, "email")
	}
	if u.Name == "" {
		out = append(out, "name")
	}
	if u.Password == "" {
		out = append(out, "password")
	}
	return out
}

// prompt asks for every field not given as a flag
func (u *newUser) prompt() error {
	var qs []*survey.Question
	if u.Email == "" {
		qs = append(qs, &survey.Question{
			Name:     "email",
			Prompt:   &survey.Input{Message: "Email:"},
			Validate: survey.Required,
		})
	}
	if u.Name == "" {
		qs = append(qs, &survey.Question{
			Name:     "name",
			Prompt:   &survey.Input{Message: "Name:"},
			Validate: survey.Required,
		})
	}
	if u.Role == "" {
		qs = append(qs, &survey.Question{
			Name: "role",
			Prompt: &survey.Select{
				Message: "Role:",
				Options: auth.Roles(),
				Default: auth.RoleRecruiter,
			},
		})
	}
	if u.Password == "" {
		qs = append(qs, &survey.Question{
			Name:     "password",
			Prompt:   &survey.Password{Message: fmt.Sprintf("Password (at least %d characters):", auth.MinPasswordLength)},
			Validate: survey.ComposeValidators(survey.Required, survey.MinLength(auth.MinPasswordLength)),
		})
	}
	if len(qs) == 0 {
		return nil
	}
	return survey.Ask(qs, u)
}

func newUserAddCommand(g *globalFlags) *cobra.Command {
	u := &newUser{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a dashboard login",
		Long: `Create a user who can sign in to the API. Missing fields are prompted
for when running in a terminal. Roles: admin, recruiter (default) and viewer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if missing := u.missing(); len(missing) > 0 {
				if !interactive(out) {
					return fmt.Errorf("missing --%s", strings.Join(missing, ", --"))
				}
				if err := u.prompt(); err != nil {
					return err
				}
			}

			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			var roles []string
			if u.Role != "" {
				roles = []string{u.Role}
			}
			created, err := auth.NewService(db.Users(), nil).Register(cmd.Context(), u.Email, u.Name, u.Password, roles...)
			var ve *crm.ValidationErrors
			switch {
			case errors.As(err, &ve):
				return validationMessage(ve, g.plain())
			case errors.Is(err, store.ErrConflict):
				return fmt.Errorf("a user with email %s already exists", u.Email)
			case err != nil:
				return err
			}
			ui.Success(out, g.plain(), "created %s <%s> as %s", created.Name, created.Email, strings.Join(created.Roles, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&u.Email, "email", "", "login email")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&u.Role, "role", "", "admin, recruiter or viewer")
	cmd.Flags().StringVar(&u.Password, "password", "", "password (prompted when omitted)")
	return cmd
}

// validationMessage lists field errors, one per line
func validationMessage(ve *crm.ValidationErrors, noColor bool) ui.Message {
	fields := make([]string, 0, len(ve.Fields))
	for f := range ve.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f+": "+strings.Join(ve.Fields[f], ", "))
	}
	return ui.Message{
		Level:   ui.LevelError,
		Context: "invalid input",
		Problem: strings.Join(fields, ", "),
		Help:    lines,
		NoColor: noColor,
	}
}
