package menu

import (
	"context"
	"strconv"

	"github.com/zombor/expense-assistant/internal/session"
)

// Screen is the logical menu a reply is read against.
type Screen int

const (
	MainMenu Screen = iota
	PostReceiptMenu
)

func (c Screen) String() string {
	switch c {
	case PostReceiptMenu:
		return "post_receipt_menu"
	default:
		return "main_menu"
	}
}

// Context tags attached to structured prompts.
const (
	TagMainMenu        = "main_menu"
	TagPostReceiptMenu = "post_receipt_menu"
)

// Action names a business handler.
type Action string

const (
	ActionReport      Action = "report"
	ActionSummary     Action = "summary"
	ActionSendReceipt Action = "send-receipt"
	ActionShare       Action = "share"
	ActionHowItWorks  Action = "how-it-works"
	ActionSupport     Action = "support"
	ActionUpgrade     Action = "upgrade"
	ActionHelp        Action = "help"
)

// Option is one numbered entry of a menu. ID is the digit the user replies with.
type Option struct {
	ID     string
	Label  string
	Action Action
}

// Messenger delivers text and choice prompts to a user.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
	SendOptions(ctx context.Context, phoneNumber, text string, options []Option, contextTag string) error
}

// Sessions is the part of the session store the menus need.
type Sessions interface {
	GetSession(phoneNumber string) (*session.Session, error)
	SetMenuContext(phoneNumber string, ctx session.MenuContext) error
}

type entry struct {
	label  string
	action Action
}

var mainEntries = []entry{
	{"Get Expense Report", ActionReport},
	{"Quick Summary", ActionSummary},
	{"Send a Receipt", ActionSendReceipt},
	{"Share the App", ActionShare},
	{"How It Works", ActionHowItWorks},
	{"Contact Support", ActionSupport},
}

var upgradeEntry = entry{"Upgrade Account", ActionUpgrade}

var postReceiptEntries = []entry{
	{"Get my file", ActionReport},
	{"Quick overview", ActionSummary},
	{"Send another receipt", ActionSendReceipt},
	{"Show all commands", ActionHelp},
}

func number(entries []entry) []Option {
	options := make([]Option, len(entries))
	for i, e := range entries {
		options[i] = Option{ID: strconv.Itoa(i + 1), Label: e.label, Action: e.action}
	}
	return options
}

// MainOptions builds the main menu for a plan. Only free users see the
// upgrade entry.
func MainOptions(plan session.Plan) []Option {
	entries := append([]entry{}, mainEntries...)
	if plan != session.PlanPro {
		entries = append(entries, upgradeEntry)
	}
	return number(entries)
}

// PostReceiptOptions builds the menu shown right after a receipt was saved.
func PostReceiptOptions() []Option {
	return number(postReceiptEntries)
}

// DetermineMenuContext resolves the active menu from session state.
func DetermineMenuContext(s *session.Session) Screen {
	if s != nil && s.MenuContext == session.MenuContextPostCapture {
		return PostReceiptMenu
	}
	return MainMenu
}

// selectOption matches trimmed numeric input against options.
func selectOption(options []Option, input string) (Option, bool) {
	n, ok := parseSelection(input)
	if !ok || n < 1 || n > len(options) {
		return Option{}, false
	}
	return options[n-1], true
}

func parseSelection(input string) (int, bool) {
	if input == "" || len(input) > 3 {
		return 0, false
	}
	for _, r := range input {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, false
	}
	return n, true
}
