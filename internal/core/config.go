// Package core provides the connection manager and configuration for villabot.
//
// The core package implements the protocol state machine that connects Villa
// bots to the hosting application. It handles:
//
//   - Configuration loading and validation (from YAML files)
//   - One WebSocket supervisor per websocket-mode bot (login, heartbeat, reconnect)
//   - The HTTP callback server for webhook-mode bots (signature check, dedup)
//   - Dispatch of prepared events to the application's EventHandler
//   - Graceful shutdown with best-effort logout
//
// # Main Components
//
//   - Manager: owns the bot registry, supervisors and webhook server
//   - Config: configuration structure and loading
//
// # Example Configuration
//
//	webhook_server:
//	  listen: ":8080"
//	bots:
//	  - bot_id: bot_xxx
//	    bot_secret: ${VILLA_SECRET}
//	    pub_key: ${VILLA_PUB_KEY}
//	    callback_url: http://0.0.0.0:8080/villa/callback
//	  - bot_id: bot_yyy
//	    bot_secret: ${VILLA_SECRET_2}
//	    pub_key: ${VILLA_PUB_KEY_2}
//	    connection_type: websocket
//	    test_villa_id: 12345
package core

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWebhookListen  = ":8080"
	DefaultLogLevel       = "info"
	DefaultLogMaxSize     = constants.DefaultLogMaxSize // MB
	DefaultLogMaxBackups  = 5
	DefaultLogMaxAge      = constants.DefaultLogMaxAge // days
	DefaultAMQPExchange   = "villa.events"
	DefaultAMQPRoutingKey = "villa"
)

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig expands, parses and validates a YAML document.
func ParseConfig(data []byte) (*Config, error) {
	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and checks that every bot is coherent
func validateConfig(config *Config) error {
	if config.APIBaseURL == "" {
		config.APIBaseURL = constants.DefaultAPIBaseURL
	}
	if config.WebhookServer.Listen == "" {
		config.WebhookServer.Listen = DefaultWebhookListen
	}

	conn := &config.Connection
	if conn.HeartbeatInterval == 0 {
		conn.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if conn.ReconnectDelay == 0 {
		conn.ReconnectDelay = constants.DefaultReconnectDelay
	}
	if conn.ConnectTimeout == 0 {
		conn.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if conn.LogoutGrace == 0 {
		conn.LogoutGrace = constants.DefaultLogoutGrace
	}
	if conn.HeartbeatInterval < 0 || conn.ReconnectDelay < 0 || conn.ConnectTimeout < 0 || conn.LogoutGrace < 0 {
		return fmt.Errorf("connection durations must be positive")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if config.Logging.EnableStdout == nil {
		enabled := true
		config.Logging.EnableStdout = &enabled
	}

	if config.AMQP.Enabled {
		if config.AMQP.URL == "" {
			return fmt.Errorf("amqp.url is required when amqp is enabled")
		}
		if config.AMQP.Exchange == "" {
			config.AMQP.Exchange = DefaultAMQPExchange
		}
		if config.AMQP.RoutingKey == "" {
			config.AMQP.RoutingKey = DefaultAMQPRoutingKey
		}
	}

	if len(config.Bots) == 0 {
		return fmt.Errorf("at least one bot must be configured")
	}

	seen := make(map[string]bool, len(config.Bots))
	for i := range config.Bots {
		b := &config.Bots[i]
		if err := validateBot(b); err != nil {
			return fmt.Errorf("bots[%d]: %w", i, err)
		}
		if seen[b.BotID] {
			return fmt.Errorf("bots[%d]: duplicate bot_id %s", i, b.BotID)
		}
		seen[b.BotID] = true
	}

	return nil
}

func validateBot(b *BotConfig) error {
	if b.BotID == "" {
		return fmt.Errorf("bot_id is required")
	}
	if b.BotSecret == "" {
		return fmt.Errorf("bot_secret is required for %s", b.BotID)
	}
	if strings.TrimSpace(b.PubKey) == "" {
		return fmt.Errorf("pub_key is required for %s", b.BotID)
	}
	if b.VerifyEvent == nil {
		verify := true
		b.VerifyEvent = &verify
	}

	if b.ConnectionType == "" {
		if b.CallbackURL != "" {
			b.ConnectionType = string(bot.ConnectionWebhook)
		} else {
			b.ConnectionType = string(bot.ConnectionWebsocket)
		}
	}

	switch bot.ConnectionType(b.ConnectionType) {
	case bot.ConnectionWebhook:
		if b.CallbackURL == "" {
			return fmt.Errorf("callback_url is required for webhook bot %s", b.BotID)
		}
		u, err := url.Parse(b.CallbackURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid callback_url for %s: %q", b.BotID, b.CallbackURL)
		}
	case bot.ConnectionWebsocket:
		if b.CallbackURL != "" {
			return fmt.Errorf("websocket bot %s must not set callback_url", b.BotID)
		}
		if b.TestVillaID == 0 {
			return fmt.Errorf("test_villa_id is required for websocket bot %s", b.BotID)
		}
	default:
		return fmt.Errorf("unknown connection_type %q for %s (use webhook or websocket)", b.ConnectionType, b.BotID)
	}
	return nil
}

// GetBotConfig retrieves configuration for a specific bot
func (c *Config) GetBotConfig(botID string) (BotConfig, error) {
	for _, b := range c.Bots {
		if b.BotID == botID {
			return b, nil
		}
	}
	return BotConfig{}, fmt.Errorf("bot %s not found in configuration", botID)
}

// WebhookPaths returns the distinct callback paths of webhook bots.
func (c *Config) WebhookPaths() []string {
	var paths []string
	seen := make(map[string]bool)
	for _, b := range c.Bots {
		if !b.IsWebhook() {
			continue
		}
		p := b.CallbackPath()
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

func (b BotConfig) IsWebhook() bool {
	return bot.ConnectionType(b.ConnectionType) == bot.ConnectionWebhook
}

func (b BotConfig) IsWebsocket() bool {
	return bot.ConnectionType(b.ConnectionType) == bot.ConnectionWebsocket
}

// CallbackPath is the HTTP path the platform posts this bot's events to.
func (b BotConfig) CallbackPath() string {
	u, err := url.Parse(b.CallbackURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Info converts the configuration into the bot package's credentials.
func (b BotConfig) Info() bot.Info {
	verify := true
	if b.VerifyEvent != nil {
		verify = *b.VerifyEvent
	}
	return bot.Info{
		BotID:          b.BotID,
		BotSecret:      b.BotSecret,
		PubKey:         b.PubKey,
		TestVillaID:    b.TestVillaID,
		CallbackURL:    b.CallbackURL,
		ConnectionType: bot.ConnectionType(b.ConnectionType),
		VerifyEvent:    verify,
	}
}
