package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// prompter asks the user for input. Inside the interactive shell it reads through the shell's
// readline instance; otherwise from the command's input, hiding passwords on a terminal.
type prompter struct {
	rl    *readline.Instance
	in    io.Reader
	lines *bufio.Reader
	out   io.Writer
}

func newPrompter(rl *readline.Instance, in io.Reader, out io.Writer) *prompter {
	return &prompter{rl: rl, in: in, lines: bufio.NewReader(in), out: out}
}

// line asks for a value and returns it trimmed.
func (p *prompter) line(label string) (string, error) {
	if p.rl != nil {
		prev := p.rl.Config.Prompt
		defer p.rl.SetPrompt(prev)
		p.rl.SetPrompt(label)
		s, err := p.rl.Readline()
		if err != nil {
			return "", promptErr(err)
		}
		return strings.TrimSpace(s), nil
	}

	_, _ = fmt.Fprint(p.out, label)
	s, err := p.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || s == "") {
		return "", promptErr(err)
	}
	return strings.TrimSpace(s), nil
}

// password asks for a secret without echoing it when possible.
func (p *prompter) password(label string) (string, error) {
	if p.rl != nil {
		b, err := p.rl.ReadPassword(label)
		if err != nil {
			return "", promptErr(err)
		}
		return string(b), nil
	}

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", promptErr(err)
		}
		return string(b), nil
	}

	// Piped input: the password is the next line, kept verbatim apart from the line ending
	_, _ = fmt.Fprint(p.out, label)
	s, err := p.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || s == "") {
		return "", promptErr(err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func promptErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
		return errors.New("input cancelled")
	}
	return fmt.Errorf("reading input: %w", err)
}
