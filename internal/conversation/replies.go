package conversation

import (
	"strings"

	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/line"
)

// replyTable answers plain text outside of a document session.
type replyTable struct {
	exact    map[string]string
	fallback string
}

func newReplyTable(cfg config.ConversationConfig) replyTable {
	t := replyTable{exact: make(map[string]string, len(cfg.Replies)), fallback: cfg.DefaultReply}
	for _, r := range cfg.Replies {
		t.exact[strings.TrimSpace(r.Match)] = r.Reply
	}
	return t
}

func (t replyTable) lookup(text string) string {
	if reply, ok := t.exact[strings.TrimSpace(text)]; ok {
		return reply
	}
	return t.fallback
}

// quickReplies returns the buttons shown under every reply. The start and cancel
// buttons are left out when the user just pressed one of them.
func (c *Controller) quickReplies(text string) []line.QuickReplyItem {
	items := []line.QuickReplyItem{line.URIAction(c.docs.ManageLabel, c.docs.ManageURL)}
	if c.isCommand(text) {
		return items
	}
	return append(items,
		line.MessageAction(c.cfg.StartCommand, c.cfg.StartCommand),
		line.MessageAction(c.cfg.CancelCommand, c.cfg.CancelCommand),
	)
}

func (c *Controller) isCommand(text string) bool {
	return text == c.cfg.StartCommand || text == c.cfg.CancelCommand
}
