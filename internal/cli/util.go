package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// cmdLevels lists the valid level names.
func (h *Handler) cmdLevels(ctx *CommandContext) {
	names := ctx.Levels.Names()

	if ctx.GetFlag("format") == "json" {
		result := make([]map[string]any, 0, len(names))
		for _, name := range names {
			level, _ := ctx.Levels.ValueOf(name)
			result = append(result, map[string]any{
				"name":    name,
				"value":   int(level),
				"default": ctx.Levels.IsDefault(level),
			})
		}
		printJSON(ctx.Out, result)
		return
	}

	fmt.Fprintln(ctx.Out, "LEVEL\tVALUE")
	for _, name := range names {
		level, _ := ctx.Levels.ValueOf(name)
		if ctx.Levels.IsDefault(level) {
			fmt.Fprintf(ctx.Out, "%s\t%d\t%s\n", name, int(level), ctx.Styles.Muted.Render("(default, clears the entry)"))
			continue
		}
		fmt.Fprintf(ctx.Out, "%s\t%d\n", name, int(level))
	}
}

// cmdHelp shows help information.
func (h *Handler) cmdHelp(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()

	if len(args) > 0 {
		h.showCommandHelp(ctx, args[0])
		return
	}

	fmt.Fprintln(ctx.Out, `authz - manage per-user authorization levels

USAGE:
  authz [global options] <command> [arguments]

COMMANDS:
  user <user_id> assign <level>    Assign a level (the default level clears it)
  user <user_id> info              Show a user's authorization level
  users                            List users with an explicit level
  levels                           List valid level names
  help [command]                   Show help
  version                          Show version

GLOBAL OPTIONS:
  --debug                          Show full error detail
  --config=<file>                  YAML config file (env AUTHZ_CONFIG)
  --driver=<name>                  postgres (default) or sqlite
  --psql-host=<host>               env PSQL_HOST (default localhost)
  --psql-port=<port>               env PSQL_PORT (default 5432)
  --psql-db=<name>                 env PSQL_DB
  --psql-user=<name>               env PSQL_USER
  --psql-password=<password>       env PSQL_PASSWORD (prompted when unset)

COMMON OPTIONS:
  --format=json                    Output in JSON format

Run 'help <command>' for detailed help on a specific command.`)
}

// showCommandHelp shows help for a specific command.
func (h *Handler) showCommandHelp(ctx *CommandContext, command string) {
	help := map[string]string{
		"user": `user - Manage one user's authorization level

USAGE:
  user <user_id> assign <level>
  user <user_id> info [--format=json]

Assigning the default level removes the user's entry, so the user falls
back to the default authorization level.

EXAMPLES:
  user alice assign ADMIN
  user alice info
  user alice assign DEFAULT`,

		"users": `users - List users with an explicit level

USAGE:
  users [--format=json]`,

		"levels": `levels - List valid level names

USAGE:
  levels [--format=json]`,
	}

	if text, ok := help[command]; ok {
		fmt.Fprintln(ctx.Out, text)
	} else {
		fmt.Fprintf(ctx.Out, "No detailed help available for '%s'\n", command)
	}
}

// cmdVersion shows version information.
func (h *Handler) cmdVersion(ctx *CommandContext) {
	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, map[string]string{"version": h.version})
		return
	}
	fmt.Fprintf(ctx.Out, "authz %s\n", h.version)
}

// printJSON writes JSON to a writer.
func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
