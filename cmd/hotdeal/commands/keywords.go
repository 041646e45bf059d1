package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tuumday/hotdeal-console/internal/api"
)

// maxParallelDeletes bounds concurrent delete calls for multi-id commands.
const maxParallelDeletes = 4

func (c *console) keywordsCommand() *cli.Command {
	return &cli.Command{
		Name:    "keywords",
		Aliases: []string{"kw"},
		Usage:   "manage your tracked keywords",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list your keywords",
				Action: c.withLogin(listKeywords),
			},
			{
				Name:      "add",
				Usage:     "track a new keyword",
				ArgsUsage: "<title>",
				Action:    c.withLogin(addKeyword),
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "stop tracking keywords",
				ArgsUsage: "<id>...",
				Action: c.withLogin(func(ctx context.Context, cmd *cli.Command, client *api.Client) error {
					return deleteKeywords(ctx, cmd, client.DeleteKeyword)
				}),
			},
			{
				Name:   "sites",
				Usage:  "list the sites searched for deals",
				Action: c.withLogin(listSites),
			},
		},
	}
}

// clientAction is a command action that needs a logged-in API client.
type clientAction func(ctx context.Context, cmd *cli.Command, client *api.Client) error

// withLogin opens the app and checks for stored credentials before running fn.
func (c *console) withLogin(fn clientAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, done, err := c.open(ctx, cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := a.Client().RequireLogin(ctx); err != nil {
			return loginHint(err)
		}
		return fn(ctx, cmd, a.Client())
	}
}

func listKeywords(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	keywords, err := client.ListKeywords(ctx)
	if err != nil {
		return err
	}
	if p.empty(len(keywords), "keywords") {
		return nil
	}
	return p.render(keywords, keywordTable(keywords))
}

func keywordTable(keywords []api.Keyword) func(t table.Writer) {
	return func(t table.Writer) {
		t.AppendHeader(table.Row{"ID", "Title", "Added"})
		for _, kw := range keywords {
			t.AppendRow(table.Row{kw.ID, kw.Title, formatTime(kw.WDate.Time)})
		}
	}
}

func addKeyword(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	title := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New("keyword title required")
	}
	kw, err := client.CreateKeyword(ctx, title)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout(cmd), "Tracking %q (id %d).\n", kw.Title, kw.ID)
	return nil
}

func listSites(ctx context.Context, cmd *cli.Command, client *api.Client) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	sites, err := client.ListSites(ctx)
	if err != nil {
		return err
	}
	if p.empty(len(sites), "sites") {
		return nil
	}
	return p.render(sites, func(t table.Writer) {
		t.AppendHeader(table.Row{"Name", "Site", "Search URL"})
		for _, s := range sites {
			t.AppendRow(table.Row{s.Name, s.DisplayName, s.SearchURLTemplate})
		}
	})
}

// deleteKeywords deletes every id given as argument concurrently. All deletes are attempted;
// failures are reported together.
func deleteKeywords(ctx context.Context, cmd *cli.Command, del func(context.Context, int) error) error {
	ids, err := parseIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDeletes)
	for _, id := range ids {
		g.Go(func() error {
			err := del(gCtx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("keyword %d: %w", id, err))
				return nil
			}
			_, _ = fmt.Fprintf(stdout(cmd), "Deleted keyword %d.\n", id)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func parseIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one keyword id required")
	}
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid keyword id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
