package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/expense-assistant/internal/events"
	"github.com/zombor/expense-assistant/internal/menu"
	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/report"
	"github.com/zombor/expense-assistant/internal/session"
)

const (
	noReceiptsText   = "You haven't sent any receipts yet. Send a photo or PDF of a receipt to get started."
	reportFailedText = "Sorry, I couldn't create your report right now. Please try again in a few minutes."
	sendReceiptText  = "Send me a photo or PDF of your receipt and I'll read it for you."
	howItWorksText   = "1. Send a photo or PDF of any receipt.\n2. I read the merchant, amount, tax and date.\n3. Ask for your expense report or a quick summary whenever you need it."
	topCategories    = 3
)

// Receipts lists a user's captured receipts
type Receipts interface {
	ListReceipts(phoneNumber string) ([]*receipt.Receipt, error)
}

// Reports produces report files
type Reports interface {
	GenerateReceiptReport(receipts []*receipt.Receipt, phoneNumber string) report.Result
	GenerateSummaryReport(receipts []*receipt.Receipt, phoneNumber string) report.Result
	GenerateWorkbook(receipts []*receipt.Receipt, phoneNumber string) report.Result
}

// States updates a user's flow state
type States interface {
	UpdateUserState(phoneNumber string, state session.State, patch map[string]any) error
}

// Menus re-displays the main menu
type Menus interface {
	ShowMainMenu(ctx context.Context, phoneNumber string) error
}

// Options holds the texts and links the handlers hand out
type Options struct {
	SupportContact string
	UpgradeURL     string
	ShareURL       string
	Workbook       bool
}

// Handlers implements menu.Handlers
type Handlers struct {
	receipts  Receipts
	reports   Reports
	states    States
	menus     Menus
	messenger menu.Messenger
	publisher events.Publisher
	opts      Options
}

var _ menu.Handlers = (*Handlers)(nil)

// NewHandlers creates a new Handlers. A nil publisher drops events.
func NewHandlers(receipts Receipts, reports Reports, states States, menus Menus, messenger menu.Messenger, publisher events.Publisher, opts Options) *Handlers {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handlers{
		receipts:  receipts,
		reports:   reports,
		states:    states,
		menus:     menus,
		messenger: messenger,
		publisher: publisher,
		opts:      opts,
	}
}

func (h *Handlers) send(ctx context.Context, phoneNumber, text string) error {
	if err := h.messenger.SendMessage(ctx, phoneNumber, text); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// load returns the user's receipts, telling the user when there are none.
func (h *Handlers) load(ctx context.Context, phoneNumber string) ([]*receipt.Receipt, error) {
	receipts, err := h.receipts.ListReceipts(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("loading receipts: %w", err)
	}
	if len(receipts) == 0 {
		return nil, h.send(ctx, phoneNumber, noReceiptsText)
	}
	return receipts, nil
}

func (h *Handlers) publish(ctx context.Context, phoneNumber, kind string, res report.Result) {
	e := events.NewReportGenerated(phoneNumber, kind, res.Filename, res.PublicURL, res.TotalReceipts, res.TotalAmount.StringFixed(2))
	if err := h.publisher.Publish(ctx, e); err != nil {
		slog.Warn("Failed to publish event", "type", e.Type, "phone", phoneNumber, "error", err)
	}
}

// GenerateReport sends a link to the itemized report
func (h *Handlers) GenerateReport(ctx context.Context, phoneNumber string) error {
	receipts, err := h.load(ctx, phoneNumber)
	if err != nil || receipts == nil {
		return err
	}

	res := h.reports.GenerateReceiptReport(receipts, phoneNumber)
	if !res.Success {
		slog.Error("Itemized report failed", "phone", phoneNumber, "error", res.Err)
		return h.send(ctx, phoneNumber, reportFailedText)
	}
	h.publish(ctx, phoneNumber, "itemized", res)

	var b strings.Builder
	fmt.Fprintf(&b, "Your expense report is ready: %d receipts, total %s.\n%s", res.TotalReceipts, res.TotalAmount.StringFixed(2), res.PublicURL)
	if h.opts.Workbook {
		wb := h.reports.GenerateWorkbook(receipts, phoneNumber)
		if wb.Success {
			fmt.Fprintf(&b, "\n\nSpreadsheet version: %s", wb.PublicURL)
			h.publish(ctx, phoneNumber, "workbook", wb)
		} else {
			slog.Warn("Workbook failed", "phone", phoneNumber, "error", wb.Err)
		}
	}
	return h.send(ctx, phoneNumber, b.String())
}

// ShowSummary sends a short overview and a link to the summary report
func (h *Handlers) ShowSummary(ctx context.Context, phoneNumber string) error {
	receipts, err := h.load(ctx, phoneNumber)
	if err != nil || receipts == nil {
		return err
	}

	res := h.reports.GenerateSummaryReport(receipts, phoneNumber)
	if !res.Success || res.Summary == nil {
		slog.Error("Summary report failed", "phone", phoneNumber, "error", res.Err)
		return h.send(ctx, phoneNumber, reportFailedText)
	}
	h.publish(ctx, phoneNumber, "summary", res)
	return h.send(ctx, phoneNumber, overview(res.Summary, res.PublicURL))
}

func overview(s *report.Summary, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quick summary\nReceipts: %d\nTotal: %s", s.Receipts, s.Total.StringFixed(2))
	if len(s.Currencies) > 1 {
		for _, c := range s.Currencies {
			fmt.Fprintf(&b, "\n  %s %s", c.Name, c.Amount.StringFixed(2))
		}
	}
	if len(s.Categories) > 0 {
		b.WriteString("\n\nTop categories:")
		for i, c := range s.Categories {
			if i == topCategories {
				break
			}
			fmt.Fprintf(&b, "\n• %s: %s (%d)", c.Name, c.Amount.StringFixed(2), c.Count)
		}
	}
	if link != "" {
		fmt.Fprintf(&b, "\n\nFull summary: %s", link)
	}
	return b.String()
}

// SendReceipt waits for the next receipt
func (h *Handlers) SendReceipt(ctx context.Context, phoneNumber string) error {
	if err := h.states.UpdateUserState(phoneNumber, session.StateAwaitingReceipt, nil); err != nil {
		return fmt.Errorf("updating state: %w", err)
	}
	return h.send(ctx, phoneNumber, sendReceiptText)
}

// ShareApp sends the share link
func (h *Handlers) ShareApp(ctx context.Context, phoneNumber string) error {
	text := "Know someone buried in receipts? Share the assistant with them"
	if h.opts.ShareURL != "" {
		text += ": " + h.opts.ShareURL
	} else {
		text += "."
	}
	return h.send(ctx, phoneNumber, text)
}

// HowItWorks explains the flow
func (h *Handlers) HowItWorks(ctx context.Context, phoneNumber string) error {
	return h.send(ctx, phoneNumber, howItWorksText)
}

// ContactSupport sends the support contact
func (h *Handlers) ContactSupport(ctx context.Context, phoneNumber string) error {
	contact := h.opts.SupportContact
	if contact == "" {
		contact = "this chat, just describe the problem"
	}
	return h.send(ctx, phoneNumber, "Need help? Reach our team at "+contact+".")
}

// Upgrade starts the upgrade flow
func (h *Handlers) Upgrade(ctx context.Context, phoneNumber string) error {
	if err := h.states.UpdateUserState(phoneNumber, session.StateAwaitingUpgrade, nil); err != nil {
		return fmt.Errorf("updating state: %w", err)
	}
	text := "Pro gives you unlimited receipts and reports."
	if h.opts.UpgradeURL != "" {
		text += " Upgrade here: " + h.opts.UpgradeURL
	}
	return h.send(ctx, phoneNumber, text)
}

// Help shows the full menu
func (h *Handlers) Help(ctx context.Context, phoneNumber string) error {
	return h.menus.ShowMainMenu(ctx, phoneNumber)
}
