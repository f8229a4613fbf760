package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/session"
)

// Capturer stores a receipt with its extracted data
type Capturer interface {
	Capture(phoneNumber, filename string, data []byte, contentType string, extracted []byte) (*receipt.Receipt, error)
}

// SessionWriter is the session access the intake needs
type SessionWriter interface {
	UpdateUserState(phoneNumber string, state session.State, patch map[string]any) error
	SetMenuContext(phoneNumber string, ctx session.MenuContext) error
}

// PostReceiptMenus shows the menu offered after a capture
type PostReceiptMenus interface {
	ShowPostReceiptMenu(ctx context.Context, phoneNumber string) error
}

// Intake saves incoming receipts and switches the user to the post receipt menu
type Intake struct {
	capturer Capturer
	sessions SessionWriter
	menus    PostReceiptMenus
}

// NewIntake creates a new Intake
func NewIntake(capturer Capturer, sessions SessionWriter, menus PostReceiptMenus) *Intake {
	return &Intake{capturer: capturer, sessions: sessions, menus: menus}
}

// HandleReceipt captures the receipt, marks the post receipt menu as active
// and sends it.
func (in *Intake) HandleReceipt(ctx context.Context, phoneNumber, filename string, data []byte, contentType string, extracted []byte) (*receipt.Receipt, error) {
	r, err := in.capturer.Capture(phoneNumber, filename, data, contentType, extracted)
	if err != nil {
		return nil, err
	}
	if err := in.sessions.UpdateUserState(phoneNumber, session.StateIdle, nil); err != nil {
		return r, fmt.Errorf("updating state: %w", err)
	}
	if err := in.sessions.SetMenuContext(phoneNumber, session.MenuContextPostCapture); err != nil {
		return r, fmt.Errorf("setting menu context: %w", err)
	}
	if err := in.menus.ShowPostReceiptMenu(ctx, phoneNumber); err != nil {
		slog.Warn("Failed to send post receipt menu", "phone", phoneNumber, "error", err)
	}
	return r, nil
}
