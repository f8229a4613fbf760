package session

import "time"

// State is the conversational flow a user is currently in.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingReceipt State = "awaiting_receipt"
	StateAwaitingUpgrade State = "awaiting_upgrade"
)

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// MenuContext selects which numbered menu a reply is interpreted against.
type MenuContext string

const (
	MenuContextMain        MenuContext = "main"
	MenuContextPostCapture MenuContext = "post_capture"
)

// Session is the per-user conversational state, keyed by phone number.
type Session struct {
	PhoneNumber string         `json:"phoneNumber"`
	State       State          `json:"state"`
	Plan        Plan           `json:"plan"`
	MenuContext MenuContext    `json:"menuContext"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func newSession(phoneNumber string, now time.Time) *Session {
	return &Session{
		PhoneNumber: phoneNumber,
		State:       StateIdle,
		Plan:        PlanFree,
		MenuContext: MenuContextMain,
		Metadata:    map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPro reports whether the session is on the paid plan.
func (s *Session) IsPro() bool {
	return s != nil && s.Plan == PlanPro
}
