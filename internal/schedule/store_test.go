package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return now }
	return s
}

func TestStore_CreateAndUpcoming(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := openTestStore(t, now)
	ctx := context.Background()

	end := now.Add(3 * time.Hour)
	created, err := s.Create(ctx, Event{Title: "dentist", StartTime: now.Add(2 * time.Hour), EndTime: &end, CreatorID: "U1"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, now.Equal(created.CreatedAt))

	_, err = s.Create(ctx, Event{Title: "standup", StartTime: now.Add(time.Hour), CreatorID: "U1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Event{Title: "past", StartTime: now.Add(-time.Hour), CreatorID: "U1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Event{Title: "someone else", StartTime: now.Add(time.Hour), CreatorID: "U2"})
	require.NoError(t, err)

	events, err := s.Upcoming(ctx, "U1", 5)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "standup", events[0].Title)
	require.Nil(t, events[0].EndTime)
	require.Equal(t, "dentist", events[1].Title)
	require.NotNil(t, events[1].EndTime)
	require.True(t, end.Equal(*events[1].EndTime))

	limited, err := s.Upcoming(ctx, "U1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStore_CreateValidation(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := openTestStore(t, now)
	ctx := context.Background()

	_, err := s.Create(ctx, Event{StartTime: now, CreatorID: "U1"})
	require.Error(t, err)
	_, err = s.Create(ctx, Event{Title: "x", CreatorID: "U1"})
	require.Error(t, err)

	before := now.Add(-time.Hour)
	_, err = s.Create(ctx, Event{Title: "x", StartTime: now, EndTime: &before, CreatorID: "U1"})
	require.Error(t, err)
}
