// authz assigns, queries and clears per-user authorization levels stored in
// a PostgreSQL (or SQLite) table.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DatapuntAmsterdam/authorization/internal/authz"
	"github.com/DatapuntAmsterdam/authorization/internal/cli"
	"github.com/DatapuntAmsterdam/authorization/internal/config"
	"github.com/DatapuntAmsterdam/authorization/internal/database"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the global flags.
type options struct {
	debug       bool
	showVersion bool
	configPath  string
	driver      string
	host        string
	port        int
	db          string
	user        string
	password    string
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("authz", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	// Everything after the command name belongs to the command.
	fs.SetInterspersed(false)

	fs.BoolVar(&opts.debug, "debug", false, "show full error detail and debug logs")
	fs.BoolVar(&opts.showVersion, "version", false, "show version information")
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file (env "+config.EnvConfig+")")
	fs.StringVar(&opts.driver, "driver", database.DriverPostgres, "store driver: postgres or sqlite")
	fs.StringVar(&opts.host, "psql-host", "localhost", "database host (env "+config.EnvHost+")")
	fs.IntVar(&opts.port, "psql-port", 5432, "database port (env "+config.EnvPort+")")
	fs.StringVar(&opts.db, "psql-db", "", "database name, or file path for sqlite (env "+config.EnvDatabase+")")
	fs.StringVar(&opts.user, "psql-user", "", "database user (env "+config.EnvUser+")")
	fs.StringVar(&opts.password, "psql-password", "", "database password (env "+config.EnvPassword+", prompted when unset)")

	fs.Usage = func() { printUsage(stderr, fs) }
	return fs
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "authz - manage per-user authorization levels")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  authz [flags] user <user_id> assign <level>")
	fmt.Fprintln(w, "  authz [flags] user <user_id> info")
	fmt.Fprintln(w, "  authz [flags] users | levels | help | version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitUsage
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "authz %s\n", version)
		fmt.Fprintf(stdout, "  commit: %s\n", commit)
		fmt.Fprintf(stdout, "  built: %s\n", buildDate)
		return cli.ExitOK
	}

	logger := log.NewWithOptions(stderr, log.Options{Prefix: "authz"})
	logger.SetLevel(log.WarnLevel)
	if opts.debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportTimestamp(true)
	}

	errStyle := cli.NewStyles(stderr).Error

	cfg, err := loadConfig(fs, &opts)
	if err != nil {
		fmt.Fprintln(stderr, errStyle.Render(err.Error()))
		return cli.ExitUsage
	}

	levels, err := cfg.BuildLevels()
	if err != nil {
		fmt.Fprintln(stderr, errStyle.Render(fmt.Sprintf("Invalid level table: %v", err)))
		return cli.ExitUsage
	}

	cmdArgs := fs.Args()
	if len(cmdArgs) == 0 {
		printUsage(stderr, fs)
		return cli.ExitUsage
	}

	handler := cli.NewHandler(levels, version, logger)
	ctx := context.Background()

	if !cli.NeedsStore(cmdArgs[0]) {
		return handler.Run(ctx, nil, cmdArgs, stdout, stderr)
	}

	if cfg.Store.Driver != database.DriverSQLite && !passwordProvided(fs, cfg) {
		password, err := promptPassword(stderr)
		if err != nil {
			fmt.Fprintln(stderr, errStyle.Render(fmt.Sprintf("Could not read password: %v", err)))
			return cli.ExitFailure
		}
		cfg.Store.Password = password
	}

	m, err := authz.Open(ctx, cfg.Params(), levels, logger)
	if err != nil {
		fmt.Fprintln(stderr, errStyle.Render("Could not connect to the database"))
		if opts.debug {
			logger.Error("connect failed", "err", err)
		}
		return cli.ExitFailure
	}
	defer m.Close()

	if err := m.InitializeSchema(ctx); err != nil {
		fmt.Fprintln(stderr, errStyle.Render("Could not initialize the database schema"))
		if opts.debug {
			logger.Error("schema initialization failed", "err", err)
		}
		return cli.ExitFailure
	}

	return handler.Run(ctx, m, cmdArgs, stdout, stderr)
}

// loadConfig builds the configuration. Precedence: flags, environment,
// config file, defaults.
func loadConfig(fs *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()

	path := opts.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if fs.Changed("driver") {
		cfg.Store.Driver = opts.driver
	}
	if fs.Changed("psql-host") {
		cfg.Store.Host = opts.host
	}
	if fs.Changed("psql-port") {
		cfg.Store.Port = opts.port
	}
	if fs.Changed("psql-db") {
		cfg.Store.Database = opts.db
	}
	if fs.Changed("psql-user") {
		cfg.Store.User = opts.user
	}
	if fs.Changed("psql-password") {
		cfg.Store.Password = opts.password
	}

	return cfg, nil
}

func passwordProvided(fs *pflag.FlagSet, cfg *config.Config) bool {
	if fs.Changed("psql-password") || cfg.Store.Password != "" {
		return true
	}
	_, ok := os.LookupEnv(config.EnvPassword)
	return ok
}

// promptPassword reads the password without echo when stdin is a terminal,
// otherwise it reads one line.
func promptPassword(stderr io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(stderr, "Psql password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
