// Package cli implements the authz command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/DatapuntAmsterdam/authorization/internal/access"
	"github.com/DatapuntAmsterdam/authorization/internal/authz"
	"github.com/charmbracelet/log"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Store is the subset of the authorization map the commands use.
type Store interface {
	Contains(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, userID string) (access.Level, error)
	Set(ctx context.Context, userID string, level access.Level) error
	Delete(ctx context.Context, userID string) error
	Entries(ctx context.Context) ([]authz.Entry, error)
}

// Handler handles CLI commands.
type Handler struct {
	levels  *access.Levels
	version string
	logger  *log.Logger
}

// NewHandler creates a new CLI handler.
func NewHandler(levels *access.Levels, version string, logger *log.Logger) *Handler {
	if levels == nil {
		levels = access.BuiltinLevels()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		levels:  levels,
		version: version,
		logger:  logger,
	}
}

// NeedsStore reports whether cmd requires a store connection.
func NeedsStore(cmd string) bool {
	switch cmd {
	case "user", "users":
		return true
	default:
		return false
	}
}

// Run executes one command and returns its exit code. store may be nil for
// commands that do not need it.
func (h *Handler) Run(ctx context.Context, store Store, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "No command specified. Run 'help' for usage.")
		return ExitUsage
	}

	cctx := &CommandContext{
		Ctx:    ctx,
		Store:  store,
		Levels: h.levels,
		Args:   args[1:],
		Out:    out,
		Err:    errOut,
		Styles: NewStyles(out),
		errSty: NewStyles(errOut),
		logger: h.logger,
	}

	if NeedsStore(args[0]) && store == nil {
		fmt.Fprintf(errOut, "Command %s requires a database connection\n", args[0])
		return ExitFailure
	}

	h.routeCommand(args[0], cctx)
	return cctx.exitCode
}

// routeCommand routes a command to its handler.
func (h *Handler) routeCommand(cmd string, ctx *CommandContext) {
	switch cmd {
	case "user":
		h.cmdUser(ctx)
	case "users":
		h.cmdUsers(ctx)
	case "levels":
		h.cmdLevels(ctx)

	case "help":
		h.cmdHelp(ctx)
	case "version":
		h.cmdVersion(ctx)

	default:
		fmt.Fprintf(ctx.Err, "Unknown command: %s\n", cmd)
		fmt.Fprintln(ctx.Err, "Run 'help' for usage.")
		ctx.Exit(ExitUsage)
	}
}

// CommandContext provides context for command execution. The store is
// handed in explicitly by the caller that opened it.
type CommandContext struct {
	Ctx    context.Context
	Store  Store
	Levels *access.Levels
	Args   []string
	Out    io.Writer
	Err    io.Writer
	Styles Styles

	errSty   Styles
	logger   *log.Logger
	exitCode int
}

// Exit sets the exit code.
func (c *CommandContext) Exit(code int) {
	c.exitCode = code
}

// Fail reports err on one line and exits non-zero. Full detail goes to the
// debug log.
func (c *CommandContext) Fail(msg string, err error) {
	fmt.Fprintln(c.Err, c.errSty.Error.Render(fmt.Sprintf("%s: %v", msg, err)))
	c.logger.Debug(msg, "err", err)
	c.Exit(ExitFailure)
}

// Usage reports a usage error.
func (c *CommandContext) Usage(format string, args ...any) {
	fmt.Fprintln(c.Err, c.errSty.Error.Render(fmt.Sprintf(format, args...)))
	c.Exit(ExitUsage)
}

// GetFlag returns a flag value from args (e.g., --format=json).
func (c *CommandContext) GetFlag(name string) string {
	prefix := "--" + name + "="
	shortPrefix := "-" + name + "="
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
		if strings.HasPrefix(arg, shortPrefix) {
			return strings.TrimPrefix(arg, shortPrefix)
		}
	}
	return ""
}

// GetPositionalArgs returns args that are not flags.
func (c *CommandContext) GetPositionalArgs() []string {
	var result []string
	for _, arg := range c.Args {
		if !strings.HasPrefix(arg, "-") {
			result = append(result, arg)
		}
	}
	return result
}
