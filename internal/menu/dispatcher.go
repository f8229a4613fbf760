package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/expense-assistant/internal/session"
)

const (
	mainMenuPrompt        = "What would you like to do? Reply with a number."
	postReceiptMenuPrompt = "Receipt saved! What next? Reply with a number."
)

// Presenter sends menus built from the current session state.
type Presenter struct {
	sessions  Sessions
	messenger Messenger
}

// NewPresenter creates a new Presenter
func NewPresenter(sessions Sessions, messenger Messenger) *Presenter {
	return &Presenter{sessions: sessions, messenger: messenger}
}

// ShowMainMenu re-reads the session and sends the plan's main menu.
func (p *Presenter) ShowMainMenu(ctx context.Context, phoneNumber string) error {
	s, err := p.sessions.GetSession(phoneNumber)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	options := MainOptions(s.Plan)
	if err := p.messenger.SendOptions(ctx, phoneNumber, render(mainMenuPrompt, options), options, TagMainMenu); err != nil {
		return fmt.Errorf("sending main menu: %w", err)
	}
	return nil
}

// ShowPostReceiptMenu sends the short menu offered after a capture.
func (p *Presenter) ShowPostReceiptMenu(ctx context.Context, phoneNumber string) error {
	options := PostReceiptOptions()
	if err := p.messenger.SendOptions(ctx, phoneNumber, render(postReceiptMenuPrompt, options), options, TagPostReceiptMenu); err != nil {
		return fmt.Errorf("sending post receipt menu: %w", err)
	}
	return nil
}

// render lists the options under the prompt for clients without list support.
func render(prompt string, options []Option) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n")
	for _, o := range options {
		fmt.Fprintf(&b, "\n%s. %s", o.ID, o.Label)
	}
	return b.String()
}

// Dispatcher routes numeric replies to business handlers.
type Dispatcher struct {
	*Presenter
	handlers Handlers
}

// NewDispatcher creates a new Dispatcher. Handlers that can validate
// themselves are checked here so that miswiring fails at startup.
func NewDispatcher(sessions Sessions, messenger Messenger, handlers Handlers) (*Dispatcher, error) {
	if handlers == nil {
		return nil, fmt.Errorf("%w: no handlers", ErrHandlerNotConfigured)
	}
	if v, ok := handlers.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &Dispatcher{
		Presenter: NewPresenter(sessions, messenger),
		handlers:  handlers,
	}, nil
}

// HandleMenuSelection interprets input against the user's active menu.
// Unrecognised input is answered with a correction and is not an error;
// handler errors, including ErrHandlerNotConfigured, are returned.
func (d *Dispatcher) HandleMenuSelection(ctx context.Context, phoneNumber, input string) error {
	s, err := d.sessions.GetSession(phoneNumber)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	input = strings.TrimSpace(input)

	if DetermineMenuContext(s) == PostReceiptMenu {
		// cleared before any handler runs so a handler's own prompts start fresh
		if err := d.sessions.SetMenuContext(phoneNumber, session.MenuContextMain); err != nil {
			return fmt.Errorf("clearing menu context: %w", err)
		}
		s.MenuContext = session.MenuContextMain

		if option, ok := selectOption(PostReceiptOptions(), input); ok {
			slog.Debug("Post receipt selection", "phone", phoneNumber, "action", option.Action)
			return d.run(ctx, option.Action, phoneNumber)
		}
		slog.Debug("Post receipt input not recognised, using main menu", "phone", phoneNumber, "input", input)
	}

	return d.dispatchMain(ctx, s, phoneNumber, input)
}

func (d *Dispatcher) dispatchMain(ctx context.Context, s *session.Session, phoneNumber, input string) error {
	options := MainOptions(s.Plan)
	option, ok := selectOption(options, input)
	if !ok || (option.Action == ActionUpgrade && s.IsPro()) {
		return d.correct(ctx, phoneNumber, len(MainOptions(s.Plan)))
	}
	slog.Debug("Main menu selection", "phone", phoneNumber, "action", option.Action)
	return d.run(ctx, option.Action, phoneNumber)
}

func (d *Dispatcher) run(ctx context.Context, action Action, phoneNumber string) error {
	err := invoke(ctx, d.handlers, action, phoneNumber)
	if errors.Is(err, ErrHandlerNotConfigured) {
		slog.Error("Menu handler missing", "action", action, "error", err)
	}
	return err
}

// correct tells the user the valid range.
func (d *Dispatcher) correct(ctx context.Context, phoneNumber string, n int) error {
	msg := fmt.Sprintf("Please reply with a number between 1 and %d", n)
	if err := d.messenger.SendMessage(ctx, phoneNumber, msg); err != nil {
		slog.Warn("Failed to send range correction", "phone", phoneNumber, "error", err)
	}
	return nil
}
