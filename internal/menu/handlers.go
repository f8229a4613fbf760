package menu

import (
	"context"
	"errors"
	"fmt"
)

// ErrHandlerNotConfigured is returned when an action has no handler wired.
var ErrHandlerNotConfigured = errors.New("menu handler not configured")

// Handlers performs the business action behind each menu entry.
type Handlers interface {
	GenerateReport(ctx context.Context, phoneNumber string) error
	ShowSummary(ctx context.Context, phoneNumber string) error
	SendReceipt(ctx context.Context, phoneNumber string) error
	ShareApp(ctx context.Context, phoneNumber string) error
	HowItWorks(ctx context.Context, phoneNumber string) error
	ContactSupport(ctx context.Context, phoneNumber string) error
	Upgrade(ctx context.Context, phoneNumber string) error
	Help(ctx context.Context, phoneNumber string) error
}

// HandlerFunc is a single menu action.
type HandlerFunc func(ctx context.Context, phoneNumber string) error

// HandlerFuncs adapts plain functions to Handlers. Call Validate at startup;
// NewDispatcher does.
type HandlerFuncs struct {
	ReportFunc      HandlerFunc
	SummaryFunc     HandlerFunc
	SendReceiptFunc HandlerFunc
	ShareFunc       HandlerFunc
	HowItWorksFunc  HandlerFunc
	SupportFunc     HandlerFunc
	UpgradeFunc     HandlerFunc
	HelpFunc        HandlerFunc
}

func (h HandlerFuncs) funcs() map[Action]HandlerFunc {
	return map[Action]HandlerFunc{
		ActionReport:      h.ReportFunc,
		ActionSummary:     h.SummaryFunc,
		ActionSendReceipt: h.SendReceiptFunc,
		ActionShare:       h.ShareFunc,
		ActionHowItWorks:  h.HowItWorksFunc,
		ActionSupport:     h.SupportFunc,
		ActionUpgrade:     h.UpgradeFunc,
		ActionHelp:        h.HelpFunc,
	}
}

// Validate reports every action without a function.
func (h HandlerFuncs) Validate() error {
	var errs []error
	fns := h.funcs()
	for _, action := range []Action{ActionReport, ActionSummary, ActionSendReceipt, ActionShare, ActionHowItWorks, ActionSupport, ActionUpgrade, ActionHelp} {
		if fns[action] == nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrHandlerNotConfigured, action))
		}
	}
	return errors.Join(errs...)
}

func call(ctx context.Context, fn HandlerFunc, action Action, phoneNumber string) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNotConfigured, action)
	}
	return fn(ctx, phoneNumber)
}

func (h HandlerFuncs) GenerateReport(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.ReportFunc, ActionReport, phoneNumber)
}

func (h HandlerFuncs) ShowSummary(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.SummaryFunc, ActionSummary, phoneNumber)
}

func (h HandlerFuncs) SendReceipt(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.SendReceiptFunc, ActionSendReceipt, phoneNumber)
}

func (h HandlerFuncs) ShareApp(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.ShareFunc, ActionShare, phoneNumber)
}

func (h HandlerFuncs) HowItWorks(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.HowItWorksFunc, ActionHowItWorks, phoneNumber)
}

func (h HandlerFuncs) ContactSupport(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.SupportFunc, ActionSupport, phoneNumber)
}

func (h HandlerFuncs) Upgrade(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.UpgradeFunc, ActionUpgrade, phoneNumber)
}

func (h HandlerFuncs) Help(ctx context.Context, phoneNumber string) error {
	return call(ctx, h.HelpFunc, ActionHelp, phoneNumber)
}

// invoke routes an action to its handler method.
func invoke(ctx context.Context, h Handlers, action Action, phoneNumber string) error {
	switch action {
	case ActionReport:
		return h.GenerateReport(ctx, phoneNumber)
	case ActionSummary:
		return h.ShowSummary(ctx, phoneNumber)
	case ActionSendReceipt:
		return h.SendReceipt(ctx, phoneNumber)
	case ActionShare:
		return h.ShareApp(ctx, phoneNumber)
	case ActionHowItWorks:
		return h.HowItWorks(ctx, phoneNumber)
	case ActionSupport:
		return h.ContactSupport(ctx, phoneNumber)
	case ActionUpgrade:
		return h.Upgrade(ctx, phoneNumber)
	case ActionHelp:
		return h.Help(ctx, phoneNumber)
	default:
		return fmt.Errorf("%w: %s", ErrHandlerNotConfigured, action)
	}
}
