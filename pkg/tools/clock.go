package tools

import (
	"context"
	"encoding/json"
	"time"
)

// CurrentTimeTool reports the current time in a fixed location.
type CurrentTimeTool struct {
	loc *time.Location
	now func() time.Time
}

// NewCurrentTimeTool creates a CurrentTimeTool for the named IANA timezone,
// falling back to UTC when it cannot be loaded.
func NewCurrentTimeTool(timezone string) *CurrentTimeTool {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &CurrentTimeTool{loc: loc, now: time.Now}
}

func (t *CurrentTimeTool) Name() string { return "get_current_time" }

func (t *CurrentTimeTool) Description() string { return "Get current time" }

func (t *CurrentTimeTool) Parameters() json.RawMessage { return emptySchema }

func (t *CurrentTimeTool) Run(_ context.Context, _ string) string {
	return t.now().In(t.loc).Format("2006-01-02 15:04:05 (Mon) MST")
}
