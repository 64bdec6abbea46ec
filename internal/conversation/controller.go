// Package conversation turns incoming LINE text messages into replies. Outside a
// document session replies are static; inside one every message goes to the agent.
package conversation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/comigor/duckling-go/internal/agent"
	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/history"
	"github.com/comigor/duckling-go/internal/line"
	"github.com/comigor/duckling-go/internal/logger"
	"github.com/comigor/duckling-go/internal/session"
	"github.com/comigor/duckling-go/pkg/tools"
)

// Messenger sends messages back to LINE.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages []line.Message) (*http.Response, error)
	StartLoading(ctx context.Context, chatID string, seconds int) (*http.Response, error)
}

// Responder produces the reply for a document-session turn.
type Responder interface {
	// Respond may return a partial Response alongside an error.
	Respond(ctx context.Context, systemPrompt string, hist []history.Message, input string) (*agent.Response, error)
}

// Controller handles one webhook event at a time per user.
type Controller struct {
	cfg            config.ConversationConfig
	docs           config.DocumentsConfig
	systemPrompt   string
	loadingSeconds int

	history   *history.Store
	sessions  *session.Store
	messenger Messenger
	agent     Responder

	replies replyTable
	locks   *userLocks
}

// New creates a Controller.
func New(cfg config.Config, hist *history.Store, sessions *session.Store, messenger Messenger, responder Responder) *Controller {
	return &Controller{
		cfg:            cfg.Conversation,
		docs:           cfg.Documents,
		systemPrompt:   cfg.LLM.SystemPrompt,
		loadingSeconds: cfg.LINE.LoadingSeconds,
		history:        hist,
		sessions:       sessions,
		messenger:      messenger,
		agent:          responder,
		replies:        newReplyTable(cfg.Conversation),
		locks:          newUserLocks(),
	}
}

// Handle processes a single event. Events other than text messages from a user
// with a reply token are ignored.
func (c *Controller) Handle(ctx context.Context, ev line.Event) error {
	userID, text, ok := ev.TextMessage()
	if !ok {
		logger.L.Debug("ignoring event", "type", ev.Type, "event_id", ev.WebhookEventID)
		return nil
	}

	unlock := c.locks.Lock(userID)
	defer unlock()

	ctx = tools.WithUserID(ctx, userID)

	inbound := history.NewMessage(history.RoleUser, text)
	if err := c.history.Append(ctx, userID, inbound); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}

	sess, err := c.sessions.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	reply, err := c.respond(ctx, ev, userID, inbound, sess)
	if err != nil {
		if serr := c.sessions.Save(ctx, userID, sess); serr != nil {
			logger.L.Warn("failed to save session", "user", userID, "error", serr)
		}
		return err
	}

	if err := c.sessions.Save(ctx, userID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if c.cfg.PersistReplies {
		if err := c.history.Append(ctx, userID, history.NewMessage(history.RoleAssistant, reply)); err != nil {
			logger.L.Warn("failed to save reply", "user", userID, "error", err)
		}
	}

	msg := line.NewTextMessage(reply, c.quickReplies(strings.TrimSpace(text))...)
	resp, err := c.messenger.Reply(ctx, ev.ReplyToken, []line.Message{msg})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if err := line.CheckResponse(resp); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	logger.L.Info("replied", "user", userID, "state", sess.State)
	return nil
}

// respond advances the session for the inbound message and returns the reply text.
func (c *Controller) respond(ctx context.Context, ev line.Event, userID string, inbound history.Message, sess *session.Session) (string, error) {
	switch strings.TrimSpace(inbound.Content) {
	case c.cfg.StartCommand:
		if err := sess.Fire(ctx, session.TriggerStartDocument, inbound.ID); err != nil {
			return "", err
		}
		return c.cfg.StartReply, nil
	case c.cfg.CancelCommand:
		if err := sess.Fire(ctx, session.TriggerCancel); err != nil {
			return "", err
		}
		return c.cfg.CancelReply, nil
	}

	if !sess.Drafting() {
		return c.replies.lookup(inbound.Content), nil
	}

	c.startLoading(ctx, ev)

	msgs, err := c.history.Load(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	turns := history.Without(history.Since(msgs, sess.AnchorID), inbound.ID)

	res, err := c.agent.Respond(ctx, c.systemPrompt, turns, inbound.Content)
	if res != nil && res.Invoked(tools.DocumentToolName) {
		if ferr := sess.Fire(ctx, session.TriggerDocumentSubmitted); ferr != nil {
			return "", ferr
		}
	}
	if err != nil {
		return "", fmt.Errorf("agent: %w", err)
	}
	if strings.TrimSpace(res.Output) == "" {
		return c.cfg.DefaultReply, nil
	}
	return res.Output, nil
}

func (c *Controller) startLoading(ctx context.Context, ev line.Event) {
	if c.loadingSeconds <= 0 || ev.Source == nil {
		return
	}
	resp, err := c.messenger.StartLoading(ctx, ev.Source.ChatID(), c.loadingSeconds)
	if err == nil {
		err = line.CheckResponse(resp)
	}
	if err != nil {
		logger.L.Warn("failed to start loading animation", "error", err)
	}
}
