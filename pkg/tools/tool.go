package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all tools. Run never fails: errors are reported
// as text so the model can explain them to the user.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() json.RawMessage
	Run(ctx context.Context, args string) string
}

type userIDKey struct{}

// WithUserID attaches the LINE user id of the conversation to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the user id attached by WithUserID.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)
