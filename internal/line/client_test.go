package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/duckling-go/internal/config"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newLINEServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.body))
		}
		calls = append(calls, rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_Reply(t *testing.T) {
	srv, calls := newLINEServer(t, http.StatusOK, `{}`)
	c := NewClient(config.LINEConfig{BaseURL: srv.URL + "/", ChannelAccessToken: "tok"})

	msg := NewTextMessage("hi", URIAction("管理文件", "https://example.com/"), MessageAction("取消", "取消"))
	resp, err := c.Reply(context.Background(), "rt-1", []Message{msg})
	require.NoError(t, err)
	require.NoError(t, CheckResponse(resp))

	require.Len(t, *calls, 1)
	got := (*calls)[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/message/reply", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "rt-1", got.body["replyToken"])

	messages := got.body["messages"].([]any)
	first := messages[0].(map[string]any)
	assert.Equal(t, "hi", first["text"])
	items := first["quickReply"].(map[string]any)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "uri", items[0].(map[string]any)["action"].(map[string]any)["type"])
	assert.Equal(t, "取消", items[1].(map[string]any)["action"].(map[string]any)["text"])
}

func TestClient_StartLoading(t *testing.T) {
	srv, calls := newLINEServer(t, http.StatusAccepted, ``)
	c := NewClient(config.LINEConfig{BaseURL: srv.URL, ChannelAccessToken: "tok"})

	resp, err := c.StartLoading(context.Background(), "U1", 17)
	require.NoError(t, err)
	require.NoError(t, CheckResponse(resp))

	got := (*calls)[0]
	assert.Equal(t, "/chat/loading/start", got.path)
	assert.Equal(t, "U1", got.body["chatId"])
	assert.EqualValues(t, 20, got.body["loadingSeconds"])
}

func TestClient_GetProfile(t *testing.T) {
	srv, calls := newLINEServer(t, http.StatusOK, `{"userId":"U1","displayName":"Duck"}`)
	c := NewClient(config.LINEConfig{BaseURL: srv.URL, ChannelAccessToken: "tok"})

	resp, err := c.GetProfile(context.Background(), "U1")
	require.NoError(t, err)
	p, err := DecodeProfile(resp)
	require.NoError(t, err)
	assert.Equal(t, "Duck", p.DisplayName)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/profile/U1", (*calls)[0].path)
}

func TestClient_HistoryEndpoints(t *testing.T) {
	srv, calls := newLINEServer(t, http.StatusOK, `{}`)
	c := NewClient(config.LINEConfig{BaseURL: srv.URL, ChannelAccessToken: "tok"})

	resp, err := c.GetGroupChatHistory(context.Background(), "G1")
	require.NoError(t, err)
	require.NoError(t, CheckResponse(resp))
	resp, err = c.GetMessageContent(context.Background(), "M1")
	require.NoError(t, err)
	require.NoError(t, CheckResponse(resp))

	assert.Equal(t, "/group/G1/messages", (*calls)[0].path)
	assert.Equal(t, "/message/M1/content", (*calls)[1].path)
}

func TestCheckResponse_Error(t *testing.T) {
	srv, _ := newLINEServer(t, http.StatusBadRequest, `{"message":"Invalid reply token"}`)
	c := NewClient(config.LINEConfig{BaseURL: srv.URL, ChannelAccessToken: "tok"})

	resp, err := c.Reply(context.Background(), "bad", nil)
	require.NoError(t, err)
	err = CheckResponse(resp)
	require.ErrorContains(t, err, "400")
	require.ErrorContains(t, err, "Invalid reply token")
}

func TestLoadingSeconds(t *testing.T) {
	for in, want := range map[int]int{0: 5, 5: 5, 6: 10, 20: 20, 59: 60, 120: 60} {
		assert.Equal(t, want, loadingSeconds(in), "input %d", in)
	}
}

func sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := sign("secret", body)
	require.True(t, ValidateSignature("secret", body, sig))
	require.False(t, ValidateSignature("other", body, sig))
	require.False(t, ValidateSignature("secret", []byte(`{}`), sig))
	require.False(t, ValidateSignature("secret", body, "%%%"))
}

func TestEvent_TextMessage(t *testing.T) {
	ev := Event{
		Type:       "message",
		Message:    &EventMessage{Type: "text", Text: "hello"},
		ReplyToken: "rt",
		Source:     &Source{Type: SourceUser, UserID: "U1"},
	}
	user, text, ok := ev.TextMessage()
	require.True(t, ok)
	require.Equal(t, "U1", user)
	require.Equal(t, "hello", text)

	sticker := ev
	sticker.Message = &EventMessage{Type: "sticker"}
	_, _, ok = sticker.TextMessage()
	require.False(t, ok)

	follow := Event{Type: "follow", Source: ev.Source}
	_, _, ok = follow.TextMessage()
	require.False(t, ok)

	require.Equal(t, "G1", Source{Type: SourceGroup, GroupID: "G1", UserID: "U1"}.ChatID())
	require.Equal(t, "U1", Source{Type: SourceUser, UserID: "U1"}.ChatID())
}
