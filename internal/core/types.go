package core

import (
	"context"
	"time"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
)

// State is the lifecycle state of one bot's connection.
type State string

const (
	StateDisconnected   State = "disconnected"   // No connection, or waiting to reconnect
	StateConnecting     State = "connecting"     // Resolving endpoint and dialing
	StateAuthenticating State = "authenticating" // Login sent, waiting for the reply
	StateActive         State = "active"         // Logged in and receiving events
	StateDraining       State = "draining"       // Tearing down the connection
)

// EventHandler receives every prepared event. Each call runs on its own
// goroutine; ctx is cancelled when the manager stops.
type EventHandler func(ctx context.Context, b *bot.Bot, ev event.Event)

// Config represents the complete villabot configuration structure
type Config struct {
	APIBaseURL    string              `yaml:"api_base_url"`
	WebhookServer WebhookServerConfig `yaml:"webhook_server"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Bots          []BotConfig         `yaml:"bots"`
	AMQP          AMQPConfig          `yaml:"amqp"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// WebhookServerConfig represents the HTTP callback server configuration
type WebhookServerConfig struct {
	Listen string `yaml:"listen"` // Address to listen on (default: ":8080")
}

// ConnectionConfig holds WebSocket timing. Durations use Go syntax ("20s").
type ConnectionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	LogoutGrace       time.Duration `yaml:"logout_grace"`
}

// BotConfig represents one bot's credentials and transport
type BotConfig struct {
	BotID          string `yaml:"bot_id"`
	BotSecret      string `yaml:"bot_secret"`
	PubKey         string `yaml:"pub_key"`
	ConnectionType string `yaml:"connection_type"` // webhook or websocket; inferred from callback_url when empty
	CallbackURL    string `yaml:"callback_url"`    // Webhook mode only
	TestVillaID    uint64 `yaml:"test_villa_id"`   // WebSocket mode only
	VerifyEvent    *bool  `yaml:"verify_event"`    // Check x-rpc-bot_sign (default: true)
}

// AMQPConfig configures publishing of normalized events to RabbitMQ
type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`    // Topic exchange (default: "villa.events")
	RoutingKey string `yaml:"routing_key"` // Prefix, the event name is appended (default: "villa")
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // trace, debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs
	EnableStdout *bool  `yaml:"enable_stdout"` // Also output to stdout (default: true)
}
