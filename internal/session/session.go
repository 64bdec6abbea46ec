// Package session tracks whether a user is drafting a document. The state is an
// explicit record per user, advanced by a small finite state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qmuntal/stateless"
)

// State of a user's document session.
type State string

const (
	StateIdle     State = "idle"
	StateDrafting State = "drafting"
)

// Trigger moves a session between states.
type Trigger string

const (
	// TriggerStartDocument takes the id of the message that opened the session.
	TriggerStartDocument     Trigger = "StartDocument"
	TriggerCancel            Trigger = "Cancel"
	TriggerDocumentSubmitted Trigger = "DocumentSubmitted"
)

// Session is the persisted document-session record of one user.
type Session struct {
	State     State  `json:"state"`
	AnchorID  string `json:"anchor_id,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
}

// Idle returns a fresh idle session.
func Idle() *Session { return &Session{State: StateIdle} }

// Drafting reports whether a document session is open.
func (s *Session) Drafting() bool { return s.State == StateDrafting }

// Fire applies trigger to the session in place.
func (s *Session) Fire(ctx context.Context, trigger Trigger, args ...any) error {
	if err := s.machine().FireCtx(ctx, trigger, args...); err != nil {
		return fmt.Errorf("session %s on %s: %w", s.State, trigger, err)
	}
	return nil
}

func (s *Session) machine() *stateless.StateMachine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) {
			if s.State == "" {
				return StateIdle, nil
			}
			return s.State, nil
		},
		func(_ context.Context, st stateless.State) error {
			s.State = st.(State)
			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(StateIdle).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.AnchorID = ""
			s.StartedAt = ""
			return nil
		}).
		Permit(TriggerStartDocument, StateDrafting).
		Ignore(TriggerCancel).
		Ignore(TriggerDocumentSubmitted)

	sm.Configure(StateDrafting).
		OnEntryFrom(TriggerStartDocument, func(_ context.Context, args ...any) error {
			if len(args) != 1 {
				return errors.New("start requires the anchor message id")
			}
			anchor, ok := args[0].(string)
			if !ok || anchor == "" {
				return errors.New("start requires the anchor message id")
			}
			s.AnchorID = anchor
			s.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
			return nil
		}).
		PermitReentry(TriggerStartDocument).
		Permit(TriggerCancel, StateIdle).
		Permit(TriggerDocumentSubmitted, StateIdle)

	return sm
}
