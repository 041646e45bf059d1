package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tuumday/hotdeal-console/internal/api"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// printer renders command results in the format selected with --output.
type printer struct {
	w      io.Writer
	format string
	color  bool
}

func newPrinter(cmd *cli.Command) (*printer, error) {
	format := cmd.String("output")
	switch format {
	case "", outputTable:
		format = outputTable
	case outputJSON, outputYAML:
	default:
		return nil, fmt.Errorf("unsupported output format: %s (want table, json or yaml)", format)
	}

	w := stdout(cmd)
	return &printer{w: w, format: format, color: isTerminal(w)}, nil
}

// render writes v as JSON or YAML, or calls fill to build a table.
func (p *printer) render(v any, fill func(t table.Writer)) error {
	switch p.format {
	case outputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetStyle(table.StyleRounded)
	if p.color {
		t.Style().Color.Header = text.Colors{text.FgHiCyan}
	}
	fill(t)
	t.Render()
	return nil
}

// keyValues renders v as a two column KEY/VALUE table in table mode.
func (p *printer) keyValues(v any, rows [][2]any) error {
	return p.render(v, func(t table.Writer) {
		t.AppendHeader(table.Row{"Key", "Value"})
		for _, row := range rows {
			t.AppendRow(table.Row{row[0], row[1]})
		}
	})
}

// empty reports an empty listing in table mode. Returns false if nothing was printed.
func (p *printer) empty(n int, what string) bool {
	if n > 0 || p.format != outputTable {
		return false
	}
	p.message(fmt.Sprintf("No %s found", what))
	return true
}

// message prints a status line.
func (p *printer) message(msg string) {
	if p.color {
		msg = text.FgYellow.Sprint(msg)
	}
	_, _ = fmt.Fprintln(p.w, msg)
}

func userRows(u api.User) [][2]any {
	return [][2]any{
		{"ID", u.ID},
		{"Email", u.Email},
		{"Nickname", u.Nickname},
		{"Active", u.IsActive},
		{"Auth level", u.AuthLevel},
		{"Admin", u.IsAdmin()},
		{"Last login", formatOptionalTime(u.LastLogin)},
		{"Created", formatTime(u.CreatedAt.Time)},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatOptionalTime(t *api.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(t.Time)
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func stdin(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
