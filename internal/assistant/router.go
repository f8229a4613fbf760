package assistant

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zombor/expense-assistant/internal/menu"
	"github.com/zombor/expense-assistant/internal/session"
)

const failureText = "Sorry, something went wrong on our side. Please try again."

var menuWords = map[string]bool{
	"hi":      true,
	"hello":   true,
	"hey":     true,
	"start":   true,
	"menu":    true,
	"help":    true,
	"options": true,
}

// Selector dispatches a menu reply
type Selector interface {
	HandleMenuSelection(ctx context.Context, phoneNumber, input string) error
}

// ContextResetter clears a pending menu context
type ContextResetter interface {
	SetMenuContext(phoneNumber string, ctx session.MenuContext) error
}

// Router is the entry point for inbound text messages
type Router struct {
	selector  Selector
	menus     Menus
	contexts  ContextResetter
	messenger menu.Messenger
}

// NewRouter creates a new Router
func NewRouter(selector Selector, menus Menus, contexts ContextResetter, messenger menu.Messenger) *Router {
	return &Router{
		selector:  selector,
		menus:     menus,
		contexts:  contexts,
		messenger: messenger,
	}
}

// HandleText routes one inbound message. Greetings show the main menu and
// everything else is read as a menu reply. Errors are answered with a
// generic apology and returned.
func (r *Router) HandleText(ctx context.Context, phoneNumber, text string) error {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(text), "!.?"))

	var err error
	if menuWords[word] {
		err = r.showMenu(ctx, phoneNumber)
	} else {
		err = r.selector.HandleMenuSelection(ctx, phoneNumber, text)
	}
	if err == nil {
		return nil
	}

	slog.Error("Failed to handle message", "phone", phoneNumber, "error", err)
	if sendErr := r.messenger.SendMessage(ctx, phoneNumber, failureText); sendErr != nil {
		slog.Warn("Failed to send apology", "phone", phoneNumber, "error", sendErr)
	}
	return err
}

func (r *Router) showMenu(ctx context.Context, phoneNumber string) error {
	// the main menu replaces any pending post receipt menu
	if err := r.contexts.SetMenuContext(phoneNumber, session.MenuContextMain); err != nil {
		return err
	}
	return r.menus.ShowMainMenu(ctx, phoneNumber)
}
