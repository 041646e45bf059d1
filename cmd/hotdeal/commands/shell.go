package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/app"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

const (
	shellPrompt          = "hotdeal> "
	shellPromptLoggedOut = "hotdeal [logged out]> "
)

func (c *console) shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "start an interactive session; logins without --remember end with it",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if c.shared != nil {
				return errors.New("already in the shell")
			}

			// Session logins live in memory, so leaving the shell ends them
			a, done, err := c.open(ctx, cmd, app.WithSessionScope(tokenstore.NewMemoryScope()))
			if err != nil {
				return err
			}
			defer done()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          shellPrompt,
				HistoryFile:     historyFile(),
				AutoComplete:    completer(c.rootCommand().Commands),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",

				HistorySearchFold: true,
			})
			if err != nil {
				return fmt.Errorf("failed to create readline instance: %w", err)
			}
			defer rl.Close()

			sh := &shell{
				console: &console{environ: c.environ, shared: a, rl: rl},
				in:      stdin(cmd),
				out:     stdout(cmd),
				errOut:  stderr(cmd),
			}
			return sh.run(ctx, rl)
		},
	}
}

// shell dispatches each input line to the command tree, sharing one app between lines.
type shell struct {
	console *console
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

func (s *shell) run(ctx context.Context, rl *readline.Instance) error {
	_, _ = fmt.Fprintln(s.out, "Type 'help' for commands, 'exit' to leave. Use TAB for completion.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		rl.SetPrompt(s.prompt(ctx))

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if exit := s.execute(ctx, line); exit {
			return nil
		}
	}
}

func (s *shell) prompt(ctx context.Context) string {
	if s.console.shared.Store().HasToken(ctx) {
		return shellPrompt
	}
	return shellPromptLoggedOut
}

// execute runs one line. Command errors are printed, not returned, so the shell keeps going.
func (s *shell) execute(ctx context.Context, line string) (exit bool) {
	args, err := splitArgs(line)
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "exit", "quit":
		return true
	case "shell":
		_, _ = fmt.Fprintln(s.errOut, "Error: already in the shell")
		return false
	}

	root := s.console.rootCommand()
	root.Reader = s.in
	root.Writer = s.out
	root.ErrWriter = s.errOut
	root.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	if err := root.Run(ctx, append([]string{root.Name}, args...)); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

// splitArgs splits a line on whitespace, keeping single or double quoted sections together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}

// completer mirrors the command tree for TAB completion.
func completer(commands []*cli.Command) *readline.PrefixCompleter {
	items := append(completerItems(commands), readline.PcItem("help"), readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

func completerItems(commands []*cli.Command) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, cmd := range commands {
		if cmd.Name == "shell" {
			continue
		}
		items = append(items, readline.PcItem(cmd.Name, completerItems(cmd.Commands)...))
	}
	return items
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "hotdeal")
	_ = os.MkdirAll(dir, 0700)
	return filepath.Join(dir, "shell_history")
}
