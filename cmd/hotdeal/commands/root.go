package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/app"
	"github.com/tuumday/hotdeal-console/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	c := &console{environ: os.Environ}
	return c.rootCommand().Run(ctx, args)
}

// console holds state shared by the commands of one invocation. Inside the interactive
// shell all commands run against the shell's app and prompt through its readline instance.
type console struct {
	environ func() []string

	shared *app.App
	rl     *readline.Instance
}

func (c *console) rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "hotdeal",
		Usage: "Hot deal keyword tracker console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "path to a .env file, loaded if it exists",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: app.DefaultConfigLogLevel.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigTelemetry),
			},
			&cli.StringFlag{
				Name:  "api--origin",
				Usage: "web front end origin the API address is derived from",
				Value: app.DefaultConfigAPIOrigin,
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "API base URL, overrides derivation from the origin",
			},
			&cli.DurationFlag{
				Name:  "api--timeout",
				Usage: "timeout for a single API call",
				Value: app.DefaultConfigAPITimeout,
			},
			&cli.StringFlag{
				Name:  "storage--durable",
				Usage: "where remembered logins are kept (file|keyring|redis|memory)",
				Value: string(app.DefaultConfigDurableStorage),
			},
			&cli.StringFlag{
				Name:  "storage--session",
				Usage: "where session logins are kept (file|memory)",
				Value: string(app.DefaultConfigSessionStorage),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format (table|json|yaml)",
				Value:   outputTable,
			},
		},
		Commands: []*cli.Command{
			c.loginCommand(),
			c.signupCommand(),
			c.logoutCommand(),
			c.whoamiCommand(),
			c.statusCommand(),
			c.keywordsCommand(),
			c.adminCommand(),
			c.shellCommand(),
		},
	}
}

// open builds the app for a command. The returned function releases it.
func (c *console) open(ctx context.Context, cmd *cli.Command, opts ...app.Option) (*app.App, func(), error) {
	if c.shared != nil {
		return c.shared, func() {}, nil
	}

	cfg, err := loadConfig(cmd.String("config"), cmd.String("env-file"), cmd, c.environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.Telemetry.Exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	opts = append([]app.Option{app.WithNotices(stderr(cmd))}, opts...)
	application, err := app.New(cfg, opts...)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, func() {
		if err := application.Close(); err != nil {
			slog.WarnContext(ctx, "closing app", "error", err)
		}
		_ = shutdown(context.WithoutCancel(ctx))
	}, nil
}

func (c *console) prompter(cmd *cli.Command) *prompter {
	return newPrompter(c.rl, stdin(cmd), stderr(cmd))
}
