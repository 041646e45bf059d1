package commands

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/tuumday/hotdeal-console/internal/app"
	"github.com/tuumday/hotdeal-console/internal/apitest"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{line: "", want: nil},
		{line: "   ", want: nil},
		{line: "keywords list", want: []string{"keywords", "list"}},
		{line: "  keywords\tadd   ssd  ", want: []string{"keywords", "add", "ssd"}},
		{line: `keywords add "rtx 4090"`, want: []string{"keywords", "add", "rtx 4090"}},
		{line: `login -e 'a b@example.com'`, want: []string{"login", "-e", "a b@example.com"}},
		{line: `keywords add ""`, want: []string{"keywords", "add", ""}},
		{line: `keywords add "it's"`, want: []string{"keywords", "add", "it's"}},
		{line: `keywords add "open`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitArgs(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("splitArgs(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

type shellFixture struct {
	server *apitest.Server
	sh     *shell
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newShell(t *testing.T, input string) *shellFixture {
	t.Helper()

	server := apitest.New(t)
	environ := append(baseEnviron(t.TempDir()), "HOTDEAL_API__BASE_URL="+server.BaseURL())
	environFunc := func() []string { return environ }

	cfg, err := loadConfig("", "", nil, environFunc)
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(cfg, app.WithSessionScope(tokenstore.NewMemoryScope()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })

	f := &shellFixture{server: server, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	f.sh = &shell{
		console: &console{environ: environFunc, shared: a},
		in:      strings.NewReader(input),
		out:     f.out,
		errOut:  f.errOut,
	}
	return f
}

func TestShellExecute(t *testing.T) {
	f := newShell(t, "secret\n")
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})
	ctx := t.Context()

	if got := f.sh.prompt(ctx); got != shellPromptLoggedOut {
		t.Errorf("prompt before login = %q, want %q", got, shellPromptLoggedOut)
	}

	if f.sh.execute(ctx, "keywords list") {
		t.Fatal("execute() asked to exit")
	}
	if !strings.Contains(f.errOut.String(), "Error: login required") {
		t.Errorf("stderr = %q, want login error", f.errOut.String())
	}

	f.sh.execute(ctx, "login -e user@example.com")
	if !strings.Contains(f.out.String(), "Logged in as user@example.com") {
		t.Fatalf("stdout = %q, want login message", f.out.String())
	}
	if got := f.sh.prompt(ctx); got != shellPrompt {
		t.Errorf("prompt after login = %q, want %q", got, shellPrompt)
	}

	f.sh.execute(ctx, `keywords add "rtx 4090"`)
	f.sh.execute(ctx, "kw list -o json")
	if !strings.Contains(f.out.String(), `"title": "rtx 4090"`) {
		t.Errorf("stdout = %q, want keyword listing", f.out.String())
	}

	f.errOut.Reset()
	f.sh.execute(ctx, "shell")
	if !strings.Contains(f.errOut.String(), "already in the shell") {
		t.Errorf("nested shell stderr = %q", f.errOut.String())
	}

	f.errOut.Reset()
	f.sh.execute(ctx, `keywords add "unterminated`)
	if !strings.Contains(f.errOut.String(), "unterminated quote") {
		t.Errorf("quote error stderr = %q", f.errOut.String())
	}

	for _, line := range []string{"exit", "quit", "  exit  "} {
		if !f.sh.execute(ctx, line) {
			t.Errorf("execute(%q) = false, want exit", line)
		}
	}
	if f.sh.execute(ctx, "") {
		t.Error("execute(\"\") asked to exit")
	}
}

func TestShellSharesOneRefresh(t *testing.T) {
	f := newShell(t, "secret\n")
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})
	ctx := t.Context()

	f.sh.execute(ctx, "login -e user@example.com")
	f.out.Reset()
	f.errOut.Reset()
	f.server.ExpireAccessTokens()

	f.sh.execute(ctx, "whoami")
	f.sh.execute(ctx, "keywords list")
	if got := f.server.RefreshCalls(); got != 1 {
		t.Errorf("RefreshCalls() = %d, want 1", got)
	}
	if errOut := f.errOut.String(); strings.Contains(errOut, "Error:") || strings.Contains(errOut, "session has expired") {
		t.Errorf("stderr = %q, want no errors", errOut)
	}
	if !strings.Contains(f.out.String(), "user@example.com") {
		t.Errorf("stdout = %q, want whoami output", f.out.String())
	}
}

func TestCompleter(t *testing.T) {
	root := (&console{}).rootCommand()
	items := completerItems(root.Commands)

	var names []string
	for _, item := range items {
		names = append(names, strings.TrimSpace(string(item.GetName())))
	}
	if slices.Contains(names, "shell") {
		t.Errorf("completer offers nested shell: %v", names)
	}
	for _, want := range []string{"login", "keywords", "admin"} {
		if !slices.Contains(names, want) {
			t.Errorf("completer items %v missing %q", names, want)
		}
	}
}
