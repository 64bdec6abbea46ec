package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	LINE         LINEConfig         `mapstructure:"line"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Documents    DocumentsConfig    `mapstructure:"documents"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Events       EventsConfig       `mapstructure:"events"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	MCPServers   []MCPServerConfig  `mapstructure:"mcp_servers"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// DedupeTTL is how long a webhook event id is remembered to drop redeliveries.
	DedupeTTL  time.Duration `mapstructure:"dedupe_ttl"`
	DedupeSize int           `mapstructure:"dedupe_size"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LINEConfig holds the LINE Messaging API configuration
type LINEConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	ChannelSecret      string `mapstructure:"channel_secret"`
	LoadingSeconds     int    `mapstructure:"loading_seconds"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	APIVersion   string  `mapstructure:"api_version"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	MaxTurns     int     `mapstructure:"max_turns"`
}

// DocumentsConfig points at the document web app.
type DocumentsConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CreatorID   int    `mapstructure:"creator_id"`
	ManageURL   string `mapstructure:"manage_url"`
	ManageLabel string `mapstructure:"manage_label"`
}

// ReplyRule maps an exact inbound text to a static reply.
type ReplyRule struct {
	Match string `mapstructure:"match"`
	Reply string `mapstructure:"reply"`
}

// ConversationConfig holds the command lexicon and static replies.
type ConversationConfig struct {
	StartCommand   string      `mapstructure:"start_command"`
	CancelCommand  string      `mapstructure:"cancel_command"`
	DefaultReply   string      `mapstructure:"default_reply"`
	StartReply     string      `mapstructure:"start_reply"`
	CancelReply    string      `mapstructure:"cancel_reply"`
	Replies        []ReplyRule `mapstructure:"replies"`
	PersistReplies bool        `mapstructure:"persist_replies"`
	HistoryLimit   int         `mapstructure:"history_limit"`
}

// StorageConfig selects the key-value backend for history and sessions.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// EventsConfig enables the calendar event tools and their sqlite table.
type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	UpcomingLimit int    `mapstructure:"upcoming_limit"`
}

// ToolsConfig holds settings shared by the built-in tools.
type ToolsConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// ClientType is the transport used to reach an MCP server.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// MCPServerConfig describes one MCP server whose tools are offered to the agent.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultSystemPrompt = `你是一個智慧文件管理助理，名叫「鴨鴨助手」，幫助使用者整理、標籤化並新增文件。

語氣親切活潑，偶爾使用「🦆」。

使用者傳來要整理成文件的內容時，自行生成以下參數，不再次詢問使用者，並呼叫 create_document：
- title: 文件標題（不超過十個字）
- description: 簡短的文件摘要
- labels: 一到三個標籤
- content: 整理後的文件內容，使用適當的 markdown 排版，不可修改、刪除或新增內容

觀察工具呼叫結果：
- 成功時，把新增的文件標題回覆給使用者，不要重複呼叫工具。
- 失敗時，回覆「嘎嘎！這裡好像出了點問題，小鴨來幫你看看！」並附上友善的錯誤說明，不要重複呼叫工具。`

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.dedupe_ttl", 10*time.Minute)
	v.SetDefault("server.dedupe_size", 10000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("line.base_url", "https://api.line.me/v2/bot")
	v.SetDefault("line.channel_access_token", "")
	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.loading_seconds", 20)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_version", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.system_prompt", defaultSystemPrompt)
	v.SetDefault("llm.max_turns", 5)

	v.SetDefault("documents.base_url", "https://dump-duck-web-client.pages.dev")
	v.SetDefault("documents.creator_id", 1)
	v.SetDefault("documents.manage_url", "https://dump-duck-web-client.pages.dev/")
	v.SetDefault("documents.manage_label", "管理文件")

	v.SetDefault("conversation.start_command", "新增文件")
	v.SetDefault("conversation.cancel_command", "取消")
	v.SetDefault("conversation.default_reply", "小鴨收到！你可以繼續上傳更多資料，或點選下方按鈕進行動作～")
	v.SetDefault("conversation.start_reply", "小鴨準備好了！請傳送要整理成文件的內容～🦆")
	v.SetDefault("conversation.cancel_reply", "小鴨已取消文件新增！你可以繼續上傳更多資料，或點選下方按鈕進行動作～")
	v.SetDefault("conversation.replies", []ReplyRule{})
	v.SetDefault("conversation.persist_replies", false)
	v.SetDefault("conversation.history_limit", 10)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "history.db")
	v.SetDefault("storage.postgres_url", "")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.sqlite_path", "events.db")
	v.SetDefault("events.upcoming_limit", 5)

	v.SetDefault("tools.timezone", "Asia/Taipei")
}

// bindSecrets lets the conventional variable names feed the matching keys.
func bindSecrets(v *viper.Viper) error {
	bindings := map[string][]string{
		"line.channel_access_token": {"DUCKLING_LINE_CHANNEL_ACCESS_TOKEN", "LINE_CHANNEL_ACCESS_TOKEN"},
		"line.channel_secret":       {"DUCKLING_LINE_CHANNEL_SECRET", "LINE_CHANNEL_SECRET"},
		"llm.api_key":               {"DUCKLING_LLM_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY"},
		"storage.sqlite_path":       {"DUCKLING_STORAGE_SQLITE_PATH", "HISTORY_DB_PATH"},
		"storage.postgres_url":      {"DUCKLING_STORAGE_POSTGRES_URL", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load loads the configuration from config.yaml (or $CONFIG_PATH), defaults and the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DUCKLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindSecrets(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &config, nil
}

// Validate checks that required secrets are present and values are usable.
func (c *Config) Validate() error {
	if c.LINE.ChannelAccessToken == "" {
		return errors.New("line.channel_access_token is required")
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required")
	}
	if c.LLM.MaxTurns <= 0 {
		return errors.New("llm.max_turns must be positive")
	}
	if c.Conversation.HistoryLimit <= 0 {
		return errors.New("conversation.history_limit must be positive")
	}
	if c.Conversation.StartCommand == "" || c.Conversation.CancelCommand == "" {
		return errors.New("conversation commands must not be empty")
	}
	if c.Conversation.StartCommand == c.Conversation.CancelCommand {
		return errors.New("conversation.start_command and conversation.cancel_command must differ")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	if _, err := time.LoadLocation(c.Tools.Timezone); err != nil {
		return fmt.Errorf("tools.timezone: %w", err)
	}
	return nil
}

// Address is the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}
