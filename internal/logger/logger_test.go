package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	SetLevel("debug")
	require.Equal(t, slog.LevelDebug, levelVar.Level())
	SetLevel("WARN")
	require.Equal(t, slog.LevelWarn, levelVar.Level())
	SetLevel("nonsense")
	require.Equal(t, slog.LevelInfo, levelVar.Level())
}

func TestNewHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, "json")).Info("hello", "user", "U1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "U1", rec["user"])

	buf.Reset()
	slog.New(newHandler(&buf, "text")).Info("hello", "user", "U1")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "user=U1")
}
