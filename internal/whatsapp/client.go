package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/expense-assistant/internal/menu"
)

const (
	// DefaultBaseURL is the Cloud API endpoint root.
	DefaultBaseURL = "https://graph.facebook.com/v20.0"

	maxRowTitle  = 24
	maxRows      = 10
	listButton   = "Choose"
	sectionTitle = "Options"
)

// Client sends messages through the WhatsApp Cloud API
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	client        *http.Client
}

// NewClient creates a new Client instance
func NewClient(baseURL, token, phoneNumberID string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("whatsapp access token is required")
	}
	if phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

type message struct {
	MessagingProduct      string       `json:"messaging_product"`
	RecipientType         string       `json:"recipient_type"`
	To                    string       `json:"to"`
	Type                  string       `json:"type"`
	Text                  *text        `json:"text,omitempty"`
	Interactive           *interactive `json:"interactive,omitempty"`
	BizOpaqueCallbackData string       `json:"biz_opaque_callback_data,omitempty"`
}

type text struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type interactive struct {
	Type   string     `json:"type"`
	Body   bodyText   `json:"body"`
	Action listAction `json:"action"`
}

type bodyText struct {
	Text string `json:"text"`
}

type listAction struct {
	Button   string    `json:"button"`
	Sections []section `json:"sections"`
}

type section struct {
	Title string `json:"title"`
	Rows  []row  `json:"rows"`
}

type row struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendMessage sends a plain text message
func (c *Client) SendMessage(ctx context.Context, phoneNumber, body string) error {
	return c.send(ctx, message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phoneNumber,
		Type:             "text",
		Text:             &text{PreviewURL: true, Body: body},
	})
}

// SendOptions sends options as an interactive list. Row ids are the option
// ids, so a tap replies with the same digit a user would type.
func (c *Client) SendOptions(ctx context.Context, phoneNumber, body string, options []menu.Option, contextTag string) error {
	if len(options) == 0 || len(options) > maxRows {
		return c.SendMessage(ctx, phoneNumber, body)
	}
	rows := make([]row, len(options))
	for i, o := range options {
		rows[i] = row{ID: o.ID, Title: truncate(o.ID+". "+o.Label, maxRowTitle)}
	}
	return c.send(ctx, message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               phoneNumber,
		Type:             "interactive",
		Interactive: &interactive{
			Type: "list",
			Body: bodyText{Text: body},
			Action: listAction{
				Button:   listButton,
				Sections: []section{{Title: sectionTitle, Rows: rows}},
			},
		},
		BizOpaqueCallbackData: contextTag,
	})
}

func (c *Client) send(ctx context.Context, msg message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling whatsapp API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API error (status %d): %s", resp.StatusCode, string(body))
	}

	slog.Debug("WhatsApp message sent", "to", msg.To, "type", msg.Type)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// LogMessenger logs outgoing messages instead of sending them. Used when no
// API token is configured.
type LogMessenger struct{}

// SendMessage logs a text message
func (LogMessenger) SendMessage(_ context.Context, phoneNumber, body string) error {
	slog.Info("Outgoing message", "to", phoneNumber, "text", body)
	return nil
}

// SendOptions logs a choice prompt
func (LogMessenger) SendOptions(_ context.Context, phoneNumber, body string, options []menu.Option, contextTag string) error {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID + "=" + string(o.Action)
	}
	slog.Info("Outgoing options", "to", phoneNumber, "context", contextTag, "options", strings.Join(ids, ","), "text", body)
	return nil
}
