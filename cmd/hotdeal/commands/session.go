package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/api"
	"github.com/tuumday/hotdeal-console/internal/auth"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

func (c *console) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in with email and password",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "account email (prompted if omitted)",
			},
			&cli.BoolFlag{
				Name:    "remember",
				Aliases: []string{"r"},
				Usage:   "keep the login after this session ends",
			},
		},
		Action: c.loginAction,
	}
}

func (c *console) loginAction(ctx context.Context, cmd *cli.Command) error {
	a, done, err := c.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	ask := c.prompter(cmd)
	email := cmd.String("email")
	if email == "" {
		if email, err = ask.line("Email: "); err != nil {
			return err
		}
	}
	password, err := ask.password("Password: ")
	if err != nil {
		return err
	}

	remember := cmd.Bool("remember")
	tok, err := a.Client().Login(ctx, api.LoginRequest{Email: email, Password: password}, remember)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	scope := "for this session"
	if remember {
		scope = "and remembered"
	}
	_, _ = fmt.Fprintf(stdout(cmd), "Logged in as %s (%s) %s.\n", email, tok.UserID, scope)
	return nil
}

func (c *console) signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "register a new account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "account email (prompted if omitted)",
			},
			&cli.StringFlag{
				Name:    "nickname",
				Aliases: []string{"n"},
				Usage:   "display name (prompted if omitted)",
			},
		},
		Action: c.signupAction,
	}
}

func (c *console) signupAction(ctx context.Context, cmd *cli.Command) error {
	a, done, err := c.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	ask := c.prompter(cmd)
	email, nickname := cmd.String("email"), cmd.String("nickname")
	if email == "" {
		if email, err = ask.line("Email: "); err != nil {
			return err
		}
	}
	if nickname == "" {
		if nickname, err = ask.line("Nickname: "); err != nil {
			return err
		}
	}
	password, err := ask.password("Password: ")
	if err != nil {
		return err
	}
	confirm, err := ask.password("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := a.Client().Signup(ctx, api.SignupRequest{Email: email, Password: password, Nickname: nickname})
	if err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	_, _ = fmt.Fprintf(stdout(cmd), "Account %s created. An administrator must approve it before you can log in.\n", user.Email)
	return nil
}

func (c *console) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session and forget stored credentials",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, done, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := a.Client().RequireLogin(ctx); err != nil {
				_, _ = fmt.Fprintln(stdout(cmd), "Not logged in.")
				return nil
			}
			if err := a.Client().Logout(ctx); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			_, _ = fmt.Fprintln(stdout(cmd), "Logged out.")
			return nil
		},
	}
}

func (c *console) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the logged-in user",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			a, done, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := a.Client().RequireLogin(ctx); err != nil {
				return loginHint(err)
			}
			user, err := a.Client().Me(ctx)
			if err != nil {
				return err
			}
			return p.keyValues(user, userRows(user))
		},
	}
}

// statusReport is the machine-readable form of `hotdeal status`.
type statusReport struct {
	BaseURL   string     `json:"base_url" yaml:"base_url"`
	LoggedIn  bool       `json:"logged_in" yaml:"logged_in"`
	Scope     string     `json:"scope,omitempty" yaml:"scope,omitempty"`
	UserID    string     `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Email     string     `json:"email,omitempty" yaml:"email,omitempty"`
	AuthLevel int        `json:"auth_level,omitempty" yaml:"auth_level,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool       `json:"expired" yaml:"expired"`
	Valid     *bool      `json:"valid,omitempty" yaml:"valid,omitempty"`
}

func (c *console) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show stored credentials without contacting the API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "also verify the credentials against the API, refreshing them if needed",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := newPrinter(cmd)
			if err != nil {
				return err
			}
			a, done, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			report, err := buildStatus(ctx, a.Store(), a.BaseURL())
			if err != nil {
				return err
			}
			if cmd.Bool("check") && report.LoggedIn {
				valid := a.Client().CheckLogin(ctx)
				report.Valid = &valid
			}

			rows := [][2]any{
				{"API", report.BaseURL},
				{"Logged in", report.LoggedIn},
			}
			if report.LoggedIn {
				expires := "-"
				if report.ExpiresAt != nil {
					expires = formatTime(*report.ExpiresAt)
				}
				rows = append(rows,
					[2]any{"Scope", report.Scope},
					[2]any{"User ID", report.UserID},
					[2]any{"Email", report.Email},
					[2]any{"Auth level", report.AuthLevel},
					[2]any{"Token expires", expires},
					[2]any{"Token expired", report.Expired},
				)
			}
			if report.Valid != nil {
				rows = append(rows, [2]any{"Accepted by API", *report.Valid})
			}
			return p.keyValues(report, rows)
		},
	}
}

// buildStatus inspects the stored token. The token's claims are decoded for display only.
func buildStatus(ctx context.Context, store *tokenstore.Store, baseURL string) (statusReport, error) {
	report := statusReport{BaseURL: baseURL}

	rec, err := store.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return report, err
	}

	report.LoggedIn = true
	report.UserID = rec.UserID
	report.Scope = "session"
	if store.Durable(ctx) {
		report.Scope = "durable"
	}

	info, err := auth.Inspect(rec.AccessToken)
	if err != nil {
		// Opaque token; nothing more to show
		return report, nil
	}
	report.Email = info.Email
	report.AuthLevel = info.AuthLevel
	if !info.ExpiresAt.IsZero() {
		report.ExpiresAt = &info.ExpiresAt
		report.Expired = info.Expired(time.Now())
	}
	return report, nil
}

// loginHint turns guard failures into actionable errors.
func loginHint(err error) error {
	switch {
	case errors.Is(err, api.ErrLoginRequired):
		return fmt.Errorf("%w: run `hotdeal login` first", err)
	case errors.Is(err, api.ErrInsufficientPrivilege):
		return fmt.Errorf("%w: try `hotdeal keywords list` for your own keywords", err)
	}
	return err
}
