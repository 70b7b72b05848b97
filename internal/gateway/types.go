package gateway

import (
	"encoding/json"

	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

// Package-level logger for the gateway
var log = logging.NewLogger("gateway")

// Event is a websocket frame from the Message Gateway.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	Message Message `json:"message"`
}

// Message is an inbound chat message as delivered over the websocket.
type Message struct {
	ID      int64           `json:"id"`
	ChatID  int64           `json:"chat_id"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Items   []Item          `json:"items"`
	From    Sender          `json:"from"`
	Chat    Chat            `json:"chat"`
	Dialog  DialogRef       `json:"dialog"`
}

// Text extracts the textual content. The gateway sends either an object
// with a text field or a bare string.
func (m Message) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &obj); err == nil && obj.Text != "" {
		return obj.Text
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	return ""
}

// ImageURL returns the preview URL of the first attached image, if any.
func (m Message) ImageURL() string {
	for _, item := range m.Items {
		if item.Kind == "image" && item.PreviewURL != "" {
			return item.PreviewURL
		}
	}
	return ""
}

type Item struct {
	Kind       string `json:"kind"`
	PreviewURL string `json:"preview_url"`
}

type Sender struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type Chat struct {
	Channel Channel `json:"channel"`
}

type Channel struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type DialogRef struct {
	ID int64 `json:"id"`
}

// Dialog is a dialog record from the REST API.
type Dialog struct {
	ID          int64        `json:"id"`
	ChatID      int64        `json:"chat_id"`
	IsAssigned  bool         `json:"is_assigned"`
	Responsible *Responsible `json:"responsible,omitempty"`
}

type Responsible struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Manager is a CRM user eligible for dialog assignment.
type Manager struct {
	ID            int    `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	FullName      string `json:"fullName"`
	ActiveDialogs int    `json:"activeDialogs"`
}

// Name returns a printable manager name.
func (m Manager) Name() string {
	name := m.FirstName
	if m.LastName != "" {
		if name != "" {
			name += " "
		}
		name += m.LastName
	}
	if name == "" {
		name = m.FullName
	}
	if name == "" {
		name = "Unknown"
	}
	return name
}
