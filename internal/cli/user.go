package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DatapuntAmsterdam/authorization/internal/authz"
)

// cmdUser dispatches "user <user_id> <subcommand>".
func (h *Handler) cmdUser(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()
	if len(args) < 2 {
		ctx.Usage("Usage: user <user_id> assign <level> | user <user_id> info")
		return
	}

	userID := args[0]
	if strings.TrimSpace(userID) == "" {
		ctx.Usage("User id must not be empty")
		return
	}

	switch args[1] {
	case "assign":
		if len(args) < 3 {
			ctx.Usage("Missing required argument: level (one of %s)", strings.Join(ctx.Levels.Names(), ", "))
			return
		}
		h.cmdAssign(ctx, userID, args[2])
	case "info":
		h.cmdUserInfo(ctx, userID)
	default:
		ctx.Usage("Unknown user command: %s", args[1])
	}
}

// cmdAssign sets a user's level, or clears it when the default level is chosen.
func (h *Handler) cmdAssign(ctx *CommandContext, userID, levelName string) {
	level, err := ctx.Levels.ValueOf(levelName)
	if err != nil {
		ctx.Usage("Invalid value for level: %q is not one of %s", levelName, strings.Join(ctx.Levels.Names(), ", "))
		return
	}
	name, _ := ctx.Levels.NameOf(level)

	if ctx.Levels.IsDefault(level) {
		err = ctx.Store.Delete(ctx.Ctx, userID)
	} else {
		err = ctx.Store.Set(ctx.Ctx, userID, level)
	}
	if err != nil {
		ctx.Fail("Could not assign level", err)
		return
	}

	fmt.Fprintln(ctx.Out, ctx.Styles.Success.Render(fmt.Sprintf("User %s now has authz level %s", userID, name)))
}

// cmdUserInfo prints a user's resolved level.
func (h *Handler) cmdUserInfo(ctx *CommandContext, userID string) {
	name, isDefault, ok := h.resolve(ctx, userID)
	if !ok {
		return
	}

	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, map[string]any{
			"user":    userID,
			"level":   name,
			"default": isDefault,
		})
		return
	}

	if isDefault {
		fmt.Fprintln(ctx.Out, ctx.Styles.Success.Render(fmt.Sprintf("User %s has default authorization level", userID)))
		return
	}
	fmt.Fprintln(ctx.Out, ctx.Styles.Success.Render(fmt.Sprintf("User %s has authorization level %s", userID, name)))
}

// resolve looks up the level name of userID, falling back to the default
// level when there is no explicit entry.
func (h *Handler) resolve(ctx *CommandContext, userID string) (name string, isDefault, ok bool) {
	defaultName, _ := ctx.Levels.NameOf(ctx.Levels.Default())

	present, err := ctx.Store.Contains(ctx.Ctx, userID)
	if err != nil {
		ctx.Fail("Could not read authorization level", err)
		return "", false, false
	}
	if !present {
		return defaultName, true, true
	}

	level, err := ctx.Store.Get(ctx.Ctx, userID)
	if errors.Is(err, authz.ErrNotAssigned) {
		// Deleted between the two reads.
		return defaultName, true, true
	}
	if err != nil {
		ctx.Fail("Could not read authorization level", err)
		return "", false, false
	}

	name, err = ctx.Levels.NameOf(level)
	if err != nil {
		ctx.Fail("Could not read authorization level", err)
		return "", false, false
	}
	return name, false, true
}

// cmdUsers lists every explicit assignment.
func (h *Handler) cmdUsers(ctx *CommandContext) {
	entries, err := ctx.Store.Entries(ctx.Ctx)
	if err != nil {
		ctx.Fail("Could not list users", err)
		return
	}

	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, entries)
		return
	}

	if len(entries) == 0 {
		fmt.Fprintln(ctx.Out, ctx.Styles.Muted.Render("No explicit authorization levels"))
		return
	}

	fmt.Fprintln(ctx.Out, "USER\tLEVEL")
	for _, e := range entries {
		fmt.Fprintf(ctx.Out, "%s\t%s\n", e.UserID, e.Name)
	}
}
