package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/api"
	"github.com/tuumday/hotdeal-console/internal/apitest"
)

type cliFixture struct {
	server  *apitest.Server
	environ []string
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()
	server := apitest.New(t)
	return &cliFixture{
		server:  server,
		environ: append(baseEnviron(t.TempDir()), "HOTDEAL_API__BASE_URL="+server.BaseURL()),
	}
}

// run executes one CLI invocation with stdin as input and returns what it printed.
func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := (&console{environ: func() []string { return f.environ }}).rootCommand()
	root.Reader = strings.NewReader(stdin)
	root.Writer = &out
	root.ErrWriter = &errOut
	root.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := root.Run(t.Context(), append([]string{"hotdeal", "--env-file", ""}, args...))
	return out.String(), errOut.String(), err
}

func (f *cliFixture) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, errOut, err := f.run(t, stdin, args...)
	if err != nil {
		t.Fatalf("hotdeal %s: %v (stderr: %s)", strings.Join(args, " "), err, errOut)
	}
	return out
}

func (f *cliFixture) login(t *testing.T, email, password string, args ...string) string {
	t.Helper()
	return f.mustRun(t, password+"\n", append([]string{"login", "--email", email}, args...)...)
}

func TestLoginCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantScope string
	}{
		{name: "session", wantScope: "for this session", args: nil},
		{name: "remembered", wantScope: "and remembered", args: []string{"--remember"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLI(t)
			id := f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})

			out := f.login(t, "user@example.com", "secret", tt.args...)
			if !strings.Contains(out, "Logged in as user@example.com ("+id.String()+") "+tt.wantScope) {
				t.Errorf("login output = %q", out)
			}

			status := f.mustRun(t, "", "status", "-o", "json")
			var report statusReport
			if err := json.Unmarshal([]byte(status), &report); err != nil {
				t.Fatalf("decoding status: %v\n%s", err, status)
			}
			wantScope := "session"
			if tt.args != nil {
				wantScope = "durable"
			}
			if !report.LoggedIn || report.Scope != wantScope || report.UserID != id.String() {
				t.Errorf("status = %+v, want logged in with %s scope", report, wantScope)
			}
			if report.Email != "user@example.com" || report.Expired {
				t.Errorf("status claims = %+v", report)
			}
		})
	}
}

func TestLoginCommandErrors(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})
	f.server.AddUser(apitest.User{Email: "pending@example.com", Password: "secret"})

	tests := []struct {
		name    string
		email   string
		stdin   string
		wantErr string
	}{
		{name: "wrong password", email: "user@example.com", stdin: "nope\n", wantErr: "Invalid password"},
		{name: "inactive account", email: "pending@example.com", stdin: "secret\n", wantErr: "not active"},
		{name: "no password given", email: "user@example.com", stdin: "", wantErr: "input cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.run(t, tt.stdin, "login", "-e", tt.email)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("login error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	status := f.mustRun(t, "", "status")
	if !strings.Contains(status, "false") {
		t.Errorf("status after failed logins = %q, want logged out", status)
	}
}

func TestSignupCommand(t *testing.T) {
	f := newCLI(t)

	out := f.mustRun(t, "new-nick\nhunter22\nhunter22\n", "signup", "-e", "new@example.com")
	if !strings.Contains(out, "Account new@example.com created") {
		t.Errorf("signup output = %q", out)
	}

	_, _, err := f.run(t, "hunter22\nhunter23\n", "signup", "-e", "other@example.com", "-n", "other")
	if err == nil || !strings.Contains(err.Error(), "passwords do not match") {
		t.Errorf("signup mismatch error = %v", err)
	}
}

func TestKeywordsCommands(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})

	if _, _, err := f.run(t, "", "keywords", "list"); !errors.Is(err, api.ErrLoginRequired) {
		t.Fatalf("keywords list before login error = %v, want ErrLoginRequired", err)
	}

	f.login(t, "user@example.com", "secret")

	if out := f.mustRun(t, "", "keywords", "list"); !strings.Contains(out, "No keywords found") {
		t.Errorf("empty list output = %q", out)
	}

	out := f.mustRun(t, "", "keywords", "add", "rtx", "4090")
	if !strings.Contains(out, `Tracking "rtx 4090" (id 1).`) {
		t.Errorf("add output = %q", out)
	}
	f.mustRun(t, "", "kw", "add", "ssd")

	var keywords []api.Keyword
	if err := json.Unmarshal([]byte(f.mustRun(t, "", "-o", "json", "keywords", "list")), &keywords); err != nil {
		t.Fatalf("decoding keywords: %v", err)
	}
	if len(keywords) != 2 || keywords[0].Title != "rtx 4090" || keywords[1].Title != "ssd" {
		t.Errorf("keywords = %+v", keywords)
	}

	table := f.mustRun(t, "", "keywords", "list")
	if !strings.Contains(table, "rtx 4090") || !strings.Contains(table, "TITLE") {
		t.Errorf("table output = %q", table)
	}

	out, _, err := f.run(t, "", "keywords", "rm", "1", "2", "99")
	if err == nil || !strings.Contains(err.Error(), "keyword 99") {
		t.Errorf("delete error = %v, want failure for keyword 99", err)
	}
	if !strings.Contains(out, "Deleted keyword 1.") || !strings.Contains(out, "Deleted keyword 2.") {
		t.Errorf("delete output = %q", out)
	}

	if _, _, err := f.run(t, "", "keywords", "delete", "abc"); err == nil || !strings.Contains(err.Error(), "invalid keyword id") {
		t.Errorf("delete with bad id error = %v", err)
	}
	if _, _, err := f.run(t, "", "keywords", "add"); err == nil {
		t.Error("add without title error = nil")
	}
}

func TestAdminCommands(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "admin@example.com", Password: "secret", Active: true, AuthLevel: apitest.AdminLevel})
	pending := f.server.AddUser(apitest.User{Email: "pending@example.com", Password: "secret"})
	f.server.AddWorkerLog("success", 3, "done")

	f.login(t, "admin@example.com", "secret")

	out := f.mustRun(t, "", "admin", "users", "list")
	if !strings.Contains(out, "pending@example.com") || !strings.Contains(out, "TOTAL") {
		t.Errorf("users list output = %q", out)
	}

	f.mustRun(t, "", "admin", "users", "approve", pending.String())
	if !f.server.Active(pending) {
		t.Error("user not approved")
	}
	f.mustRun(t, "", "admin", "users", "unapprove", pending.String())
	if f.server.Active(pending) {
		t.Error("user still approved")
	}

	if out := f.mustRun(t, "", "admin", "logs"); !strings.Contains(out, "done") {
		t.Errorf("logs output = %q", out)
	}

	f.mustRun(t, "", "admin", "trigger-search")
	if got := f.server.SearchesTriggered(); got != 1 {
		t.Errorf("SearchesTriggered() = %d, want 1", got)
	}

	if _, _, err := f.run(t, "", "admin", "users", "show", "not-a-uuid"); err == nil {
		t.Error("show with invalid id error = nil")
	}
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})
	f.login(t, "user@example.com", "secret")

	_, _, err := f.run(t, "", "admin", "users", "list")
	if !errors.Is(err, api.ErrInsufficientPrivilege) {
		t.Errorf("admin users list error = %v, want ErrInsufficientPrivilege", err)
	}
	if got := f.server.RefreshCalls(); got != 0 {
		t.Errorf("RefreshCalls() = %d, want 0", got)
	}
}

func TestSessionExpiryNotice(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})
	f.login(t, "user@example.com", "secret")

	f.server.ExpireAccessTokens()
	if out := f.mustRun(t, "", "whoami"); !strings.Contains(out, "user@example.com") {
		t.Errorf("whoami after refresh = %q", out)
	}

	f.server.ExpireAccessTokens()
	f.server.RevokeRefreshTokens()
	_, errOut, err := f.run(t, "", "whoami")
	if err == nil {
		t.Fatal("whoami with revoked session error = nil")
	}
	if !strings.Contains(errOut, "Your session has expired") {
		t.Errorf("stderr = %q, want expiry notice", errOut)
	}

	if _, _, err := f.run(t, "", "whoami"); !errors.Is(err, api.ErrLoginRequired) {
		t.Errorf("whoami after expiry error = %v, want ErrLoginRequired", err)
	}
}

func TestLogoutCommand(t *testing.T) {
	f := newCLI(t)
	f.server.AddUser(apitest.User{Email: "user@example.com", Password: "secret", Active: true})

	if out := f.mustRun(t, "", "logout"); !strings.Contains(out, "Not logged in.") {
		t.Errorf("logout without login = %q", out)
	}

	f.login(t, "user@example.com", "secret", "-r")
	if out := f.mustRun(t, "", "logout"); !strings.Contains(out, "Logged out.") {
		t.Errorf("logout output = %q", out)
	}
	if _, _, err := f.run(t, "", "whoami"); !errors.Is(err, api.ErrLoginRequired) {
		t.Errorf("whoami after logout error = %v, want ErrLoginRequired", err)
	}
}

func TestUnsupportedOutputFormat(t *testing.T) {
	f := newCLI(t)
	if _, _, err := f.run(t, "", "-o", "xml", "status"); err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("status -o xml error = %v", err)
	}
}
