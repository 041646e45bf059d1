package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/api"
)

func (c *console) adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "administer users, keywords and the crawler (auth level 9 required)",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "manage accounts",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list all accounts",
						Action: c.withAdmin(listUsers),
					},
					{
						Name:      "show",
						Usage:     "show an account and its keywords",
						ArgsUsage: "<user-id>",
						Action:    c.withAdmin(showUser),
					},
					{
						Name:      "approve",
						Usage:     "allow accounts to log in",
						ArgsUsage: "<user-id>...",
						Action: c.withAdmin(func(ctx context.Context, cmd *cli.Command, client *api.Client) error {
							return setApproval(ctx, cmd, client.ApproveUser, "Approved")
						}),
					},
					{
						Name:      "unapprove",
						Usage:     "revoke account approval",
						ArgsUsage: "<user-id>...",
						Action: c.withAdmin(func(ctx context.Context, cmd *cli.Command, client *api.Client) error {
							return setApproval(ctx, cmd, client.UnapproveUser, "Unapproved")
						}),
					},
				},
			},
			{
				Name:  "keywords",
				Usage: "manage keywords of all users",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list every tracked keyword",
						Action: c.withAdmin(listAllKeywords),
					},
					{
						Name:      "delete",
						Aliases:   []string{"rm"},
						Usage:     "delete keywords regardless of owner",
						ArgsUsage: "<id>...",
						Action: c.withAdmin(func(ctx context.Context, cmd *cli.Command, client *api.Client) error {
							return deleteKeywords(ctx, cmd, client.DeleteAnyKeyword)
						}),
					},
				},
			},
			{
				Name:   "logs",
				Usage:  "show crawler runs, newest first",
				Action: c.withAdmin(listWorkerLogs),
			},
			{
				Name:   "trigger-search",
				Usage:  "start a crawler run now",
				Action: c.withAdmin(triggerSearch),
			},
		},
	}
}

// withAdmin is withLogin plus an auth level check against the API.
func (c *console) withAdmin(fn clientAction) cli.ActionFunc {
	return c.withLogin(func(ctx context.Context, cmd *cli.Command, client *api.Client) error {
		if _, err := client.RequireAdmin(ctx); err != nil {
			return loginHint(err)
		}
		return fn(ctx, cmd, client)
	})
}

func listUsers(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	users, err := client.ListUsers(ctx)
	if err != nil {
		return err
	}
	if p.empty(len(users.Items), "users") {
		return nil
	}
	return p.render(users, func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Email", "Nickname", "Active", "Level", "Last login"})
		for _, u := range users.Items {
			t.AppendRow(table.Row{u.ID, u.Email, u.Nickname, u.IsActive, u.AuthLevel, formatOptionalTime(u.LastLogin)})
		}
		t.AppendFooter(table.Row{"", "", "", "", "Total", users.Total})
	})
}

func showUser(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	if cmd.Args().Len() != 1 {
		return errors.New("exactly one user id required")
	}
	id, err := uuid.Parse(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", cmd.Args().First(), err)
	}
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	user, err := client.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := p.keyValues(user, userRows(user.User)); err != nil {
		return err
	}
	if p.format != outputTable || p.empty(len(user.Keywords), "keywords") {
		return nil
	}
	return p.render(user.Keywords, keywordTable(user.Keywords))
}

func setApproval(ctx context.Context, cmd *cli.Command, set func(context.Context, uuid.UUID) error, verb string) error {
	if cmd.Args().Len() == 0 {
		return errors.New("at least one user id required")
	}
	ids := make([]uuid.UUID, 0, cmd.Args().Len())
	for _, arg := range cmd.Args().Slice() {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	var errs []error
	for _, id := range ids {
		if err := set(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		_, _ = fmt.Fprintf(stdout(cmd), "%s user %s.\n", verb, id)
	}
	return errors.Join(errs...)
}

func listAllKeywords(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	keywords, err := client.ListAllKeywords(ctx)
	if err != nil {
		return err
	}
	if p.empty(len(keywords), "keywords") {
		return nil
	}
	return p.render(keywords, keywordTable(keywords))
}

func listWorkerLogs(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	logs, err := client.ListWorkerLogs(ctx)
	if err != nil {
		return err
	}
	if p.empty(len(logs), "crawler runs") {
		return nil
	}
	return p.render(logs, func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Run at", "Status", "Items", "Message"})
		for _, l := range logs {
			msg := "-"
			if l.Message != nil {
				msg = *l.Message
			}
			t.AppendRow(table.Row{l.ID, formatTime(l.RunAt.Time), l.Status, l.ItemsFound, msg})
		}
	})
}

func triggerSearch(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	msg, err := client.TriggerSearch(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout(cmd), msg)
	return nil
}
