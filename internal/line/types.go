package line

// WebhookRequest is the body LINE posts to the callback URL.
type WebhookRequest struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event.
type Event struct {
	Type            string           `json:"type"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	Timestamp       int64            `json:"timestamp,omitempty"`
	Mode            string           `json:"mode,omitempty"`
	Message         *EventMessage    `json:"message,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Source          *Source          `json:"source,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
}

// EventMessage is the message payload of a "message" event.
type EventMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
	SourceRoom  SourceType = "room"
)

// Source identifies where an event came from.
type Source struct {
	Type    SourceType `json:"type"`
	UserID  string     `json:"userId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	RoomID  string     `json:"roomId,omitempty"`
}

// ChatID is the id of the chat the event belongs to.
func (s Source) ChatID() string {
	switch s.Type {
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	default:
		return s.UserID
	}
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// TextMessage reports whether the event is a text message with a reply token
// and a known user, returning the user id and text.
func (e Event) TextMessage() (userID, text string, ok bool) {
	if e.Type != "message" || e.Message == nil || e.Message.Type != "text" {
		return "", "", false
	}
	if e.ReplyToken == "" || e.Source == nil || e.Source.UserID == "" {
		return "", "", false
	}
	return e.Source.UserID, e.Message.Text, true
}

// Message is an outbound message.
type Message struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// QuickReplyItem is a button rendered under a message.
type QuickReplyItem struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// NewTextMessage builds a text message, attaching quick replies when given.
func NewTextMessage(text string, items ...QuickReplyItem) Message {
	m := Message{Type: "text", Text: text}
	if len(items) > 0 {
		m.QuickReply = &QuickReply{Items: items}
	}
	return m
}

// MessageAction is a quick reply that sends text as the user.
func MessageAction(label, text string) QuickReplyItem {
	return QuickReplyItem{Type: "action", Action: Action{Type: "message", Label: label, Text: text}}
}

// URIAction is a quick reply that opens uri.
func URIAction(label, uri string) QuickReplyItem {
	return QuickReplyItem{Type: "action", Action: Action{Type: "uri", Label: label, URI: uri}}
}

// Profile is the user profile returned by GetProfile.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Language      string `json:"language,omitempty"`
}
