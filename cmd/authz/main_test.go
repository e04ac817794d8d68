package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv isolates a test from PSQL_* variables set on the host.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PSQL_HOST", "PSQL_PORT", "PSQL_DB", "PSQL_USER", "PSQL_PASSWORD", "AUTHZ_CONFIG"} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = run(args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func sqliteArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--driver", "sqlite", "--psql-db", filepath.Join(t.TempDir(), "authz.db")}
}

func TestRun_Scenarios(t *testing.T) {
	clearEnv(t)
	base := sqliteArgs(t)
	with := func(args ...string) []string {
		return append(append([]string{}, base...), args...)
	}

	stdout, stderr, code := runCLI(t, with("user", "alice", "assign", "ADMIN")...)
	if code != 0 {
		t.Fatalf("assign exit = %d, stderr = %q", code, stderr)
	}

	stdout, _, code = runCLI(t, with("user", "alice", "info")...)
	if code != 0 || strings.TrimSpace(stdout) != "User alice has authorization level ADMIN" {
		t.Errorf("alice info: exit=%d stdout=%q", code, stdout)
	}

	stdout, _, code = runCLI(t, with("user", "bob", "info")...)
	if code != 0 || strings.TrimSpace(stdout) != "User bob has default authorization level" {
		t.Errorf("bob info: exit=%d stdout=%q", code, stdout)
	}

	runCLI(t, with("user", "carol", "assign", "WRITE")...)
	if _, stderr, code := runCLI(t, with("user", "carol", "assign", "DEFAULT")...); code != 0 {
		t.Fatalf("carol clear exit = %d, stderr = %q", code, stderr)
	}
	stdout, _, _ = runCLI(t, with("user", "carol", "info")...)
	if strings.TrimSpace(stdout) != "User carol has default authorization level" {
		t.Errorf("carol info after clear: %q", stdout)
	}
}

func TestRun_UnreachableHost(t *testing.T) {
	clearEnv(t)

	args := []string{"--psql-host", "127.0.0.1", "--psql-port", "1", "--psql-db", "authz",
		"--psql-user", "authz", "--psql-password", "secret", "user", "bob", "info"}

	stdout, stderr, code := runCLI(t, args...)
	if code == 0 {
		t.Fatalf("exit = 0, want non-zero (stdout=%q)", stdout)
	}
	if strings.TrimSpace(stderr) != "Could not connect to the database" {
		t.Errorf("expected a single connection-failure line, got %q", stderr)
	}

	_, stderr, code = runCLI(t, append([]string{"--debug"}, args...)...)
	if code == 0 {
		t.Fatal("debug exit = 0, want non-zero")
	}
	if !strings.Contains(stderr, "Could not connect to the database") || !strings.Contains(stderr, "connect failed") {
		t.Errorf("expected full detail in debug mode, got %q", stderr)
	}
}

func TestRun_CommandsWithoutStore(t *testing.T) {
	clearEnv(t)

	// Points at nothing; these commands must not connect.
	base := []string{"--psql-host", "127.0.0.1", "--psql-port", "1"}

	for _, cmd := range []string{"levels", "help", "version"} {
		t.Run(cmd, func(t *testing.T) {
			_, stderr, code := runCLI(t, append(base, cmd)...)
			if code != 0 {
				t.Errorf("exit = %d, stderr = %q", code, stderr)
			}
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	clearEnv(t)

	if _, _, code := runCLI(t); code != 2 {
		t.Errorf("no command exit = %d, want 2", code)
	}
	if _, _, code := runCLI(t, "--no-such-flag"); code != 2 {
		t.Errorf("bad flag exit = %d, want 2", code)
	}
	if _, _, code := runCLI(t, append(sqliteArgs(t), "user", "x", "assign", "bogus")...); code != 2 {
		t.Errorf("unknown level exit = %d, want 2", code)
	}
}

func TestRun_Version(t *testing.T) {
	stdout, _, code := runCLI(t, "--version")
	if code != 0 || !strings.Contains(stdout, "authz "+version) {
		t.Errorf("--version exit=%d stdout=%q", code, stdout)
	}
}

func TestRun_ConfigFileLevels(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "authz.yaml")
	content := "store:\n  driver: sqlite\n  database: " + filepath.Join(dir, "authz.db") + "\n" +
		"levels:\n  default: public\n  definitions:\n" +
		"    - {name: public, value: 0}\n" +
		"    - {name: employee, value: 1}\n" +
		"    - {name: employee_plus, value: 3}\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, stderr, code := runCLI(t, "--config", cfgPath, "user", "dan", "assign", "employee_plus"); code != 0 {
		t.Fatalf("assign exit = %d, stderr = %q", code, stderr)
	}

	t.Setenv("AUTHZ_CONFIG", cfgPath)
	stdout, _, code := runCLI(t, "user", "dan", "info")
	if code != 0 || !strings.Contains(stdout, "level EMPLOYEE_PLUS") {
		t.Errorf("info exit=%d stdout=%q", code, stdout)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("PSQL_HOST", "env-host")
	t.Setenv("PSQL_USER", "env-user")

	var opts options
	fs := newFlagSet(&opts, &bytes.Buffer{})
	if err := fs.Parse([]string{"--psql-user", "flag-user", "levels"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	cfg, err := loadConfig(fs, &opts)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	if cfg.Store.Host != "env-host" {
		t.Errorf("Host = %q, want env-host", cfg.Store.Host)
	}
	if cfg.Store.User != "flag-user" {
		t.Errorf("User = %q, want flag-user", cfg.Store.User)
	}
	if cfg.Store.Port != 5432 {
		t.Errorf("Port = %d, want default 5432", cfg.Store.Port)
	}
}
