package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleStdioConfig = `
line:
  channel_access_token: line-token
  channel_secret: line-secret
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
server:
  host: 0.0.0.0
  port: "8080"
conversation:
  persist_replies: true
  history_limit: 4
  replies:
    - match: 謝謝
      reply: 不客氣！
mcp_servers:
  - type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString(body)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	return tmp.Name()
}

// TestLoad_Stdio verifies that Load correctly unmarshals stdio server configuration.
func TestLoad_Stdio(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleStdioConfig))

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 1)

	s := cfg.MCPServers[0]
	require.Equal(t, ClientTypeStdio, s.Type)
	require.Equal(t, "./mock", s.Command)
	require.Equal(t, []string{"--flag"}, s.Args)
	// viper lower-cases map keys
	require.Equal(t, "bar", s.Env["foo"])

	require.Equal(t, "line-token", cfg.LINE.ChannelAccessToken)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.True(t, cfg.Conversation.PersistReplies)
	require.Equal(t, 4, cfg.Conversation.HistoryLimit)
	require.Equal(t, []ReplyRule{{Match: "謝謝", Reply: "不客氣！"}}, cfg.Conversation.Replies)
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "log:\n  level: debug\n"))
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "env-token")
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("DUCKLING_LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("HISTORY_DB_PATH", "/tmp/h.db")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "env-token", cfg.LINE.ChannelAccessToken)
	require.Equal(t, "env-key", cfg.LLM.APIKey)
	require.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	require.Equal(t, "/tmp/h.db", cfg.Storage.SQLitePath)

	require.Equal(t, "https://api.line.me/v2/bot", cfg.LINE.BaseURL)
	require.Equal(t, 10, cfg.Conversation.HistoryLimit)
	require.Equal(t, 5, cfg.LLM.MaxTurns)
	require.Equal(t, "新增文件", cfg.Conversation.StartCommand)
	require.Equal(t, "取消", cfg.Conversation.CancelCommand)
	require.False(t, cfg.Conversation.PersistReplies)
	require.Equal(t, DriverSQLite, cfg.Storage.Driver)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  api_key: k\n"))
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("DUCKLING_LINE_CHANNEL_ACCESS_TOKEN", "")

	_, err := Load()
	require.ErrorContains(t, err, "line.channel_access_token")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir()+"/nope.yaml")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LINE:         LINEConfig{ChannelAccessToken: "t"},
			LLM:          LLMConfig{APIKey: "k", MaxTurns: 5},
			Conversation: ConversationConfig{StartCommand: "start", CancelCommand: "cancel", HistoryLimit: 10},
			Storage:      StorageConfig{Driver: DriverMemory},
			Tools:        ToolsConfig{Timezone: "UTC"},
		}
	}

	c := valid()
	require.NoError(t, c.Validate())

	c = valid()
	c.Storage = StorageConfig{Driver: DriverPostgres}
	require.ErrorContains(t, c.Validate(), "postgres_url")

	c = valid()
	c.Storage.Driver = "redis"
	require.ErrorContains(t, c.Validate(), "unsupported")

	c = valid()
	c.Conversation.CancelCommand = "start"
	require.ErrorContains(t, c.Validate(), "must differ")

	c = valid()
	c.Conversation.HistoryLimit = 0
	require.Error(t, c.Validate())

	c = valid()
	c.Tools.Timezone = "Mars/Olympus"
	require.Error(t, c.Validate())
}

func TestLoad_ExampleFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "../../config.example.yaml")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("LLM_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "新增文件", cfg.Conversation.StartCommand)
	require.Equal(t, DriverSQLite, cfg.Storage.Driver)
	require.Len(t, cfg.Conversation.Replies, 1)
	require.Equal(t, 10*time.Minute, cfg.Server.DedupeTTL)
	require.Empty(t, cfg.MCPServers)
}
