package history

import (
	"time"

	"github.com/google/uuid"
)

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversational turn. Timestamp is RFC 3339.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewMessage stamps a message with a fresh id and the current UTC time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Since returns the messages strictly after the one with anchorID. If the anchor
// is no longer in msgs (evicted by the cap) every message is returned.
func Since(msgs []Message, anchorID string) []Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == anchorID {
			return msgs[i+1:]
		}
	}
	return msgs
}

// Without drops the message with the given id.
func Without(msgs []Message, id string) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
