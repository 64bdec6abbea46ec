package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/comigor/duckling-go/internal/schedule"
)

// EventStore is the calendar storage used by the event tools.
type EventStore interface {
	Create(ctx context.Context, e schedule.Event) (*schedule.Event, error)
	Upcoming(ctx context.Context, creatorID string, limit int) ([]schedule.Event, error)
}

// CreateEventTool adds a calendar event for the current user.
type CreateEventTool struct {
	store EventStore
	loc   *time.Location
}

// NewCreateEventTool creates a CreateEventTool. Times without an offset are read in timezone.
func NewCreateEventTool(store EventStore, timezone string) *CreateEventTool {
	return &CreateEventTool{store: store, loc: location(timezone)}
}

func (t *CreateEventTool) Name() string { return "create_event" }

func (t *CreateEventTool) Description() string {
	return "Create a new event with title and time"
}

func (t *CreateEventTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "The title of the event"},
    "start_time": {"type": "string", "description": "Start time in ISO format (YYYY-MM-DDTHH:mm:ss)"},
    "end_time": {"type": "string", "description": "Optional end time in ISO format"},
    "creator_id": {"type": "string", "description": "LINE user ID of the creator"}
  },
  "required": ["title", "start_time"]
}`)
}

func (t *CreateEventTool) Run(ctx context.Context, args string) string {
	var in struct {
		Title     string `json:"title"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		CreatorID string `json:"creator_id"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return fmt.Sprintf("Failed to create event: invalid arguments: %v", err)
	}

	creator := in.CreatorID
	if id, ok := UserIDFrom(ctx); ok {
		creator = id
	}

	start, err := parseTime(in.StartTime, t.loc)
	if err != nil {
		return fmt.Sprintf("Failed to create event: start_time: %v", err)
	}
	ev := schedule.Event{Title: in.Title, StartTime: start, CreatorID: creator}
	if in.EndTime != "" {
		end, err := parseTime(in.EndTime, t.loc)
		if err != nil {
			return fmt.Sprintf("Failed to create event: end_time: %v", err)
		}
		ev.EndTime = &end
	}

	created, err := t.store.Create(ctx, ev)
	if err != nil {
		return fmt.Sprintf("Failed to create event: %v", err)
	}
	b, _ := json.Marshal(created)
	return fmt.Sprintf("Event created: %s", b)
}

// UpcomingEventsTool lists the current user's next events.
type UpcomingEventsTool struct {
	store EventStore
	loc   *time.Location
	limit int
}

func NewUpcomingEventsTool(store EventStore, timezone string, limit int) *UpcomingEventsTool {
	return &UpcomingEventsTool{store: store, loc: location(timezone), limit: limit}
}

func (t *UpcomingEventsTool) Name() string { return "get_upcoming_events" }

func (t *UpcomingEventsTool) Description() string { return "Get upcoming events for a user" }

func (t *UpcomingEventsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "creator_id": {"type": "string", "description": "LINE user ID to get events for"}
  }
}`)
}

func (t *UpcomingEventsTool) Run(ctx context.Context, args string) string {
	var in struct {
		CreatorID string `json:"creator_id"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &in); err != nil {
			return fmt.Sprintf("Failed to list events: invalid arguments: %v", err)
		}
	}
	creator := in.CreatorID
	if id, ok := UserIDFrom(ctx); ok {
		creator = id
	}

	events, err := t.store.Upcoming(ctx, creator, t.limit)
	if err != nil {
		return fmt.Sprintf("Failed to list events: %v", err)
	}
	if len(events) == 0 {
		return "No upcoming events found."
	}

	const layout = "2006-01-02 15:04"
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := fmt.Sprintf("- %s: %s", e.Title, e.StartTime.In(t.loc).Format(layout))
		if e.EndTime != nil {
			line += " ~ " + e.EndTime.In(t.loc).Format(layout)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q", s)
}
