package constants

import "time"

// Platform endpoints
const (
	// DefaultAPIBaseURL is the production REST host
	DefaultAPIBaseURL = "https://bbs-api.miyoushe.com"
	// APIPathPrefix is prepended to every REST operation name
	APIPathPrefix = "/vila/api/bot/platform/"
)

// Request headers
const (
	HeaderBotID      = "x-rpc-bot_id"
	HeaderBotSecret  = "x-rpc-bot_secret"
	HeaderBotVillaID = "x-rpc-bot_villa_id"
	HeaderBotSign    = "x-rpc-bot_sign"
)

// Connection timing
const (
	// DefaultHeartbeatInterval is how often an active connection sends P_HEARTBEAT
	DefaultHeartbeatInterval = 20 * time.Second
	// DefaultReconnectDelay is the fixed wait between connection attempts
	DefaultReconnectDelay = 3 * time.Second
	// DefaultConnectTimeout bounds the initial WebSocket dial
	DefaultConnectTimeout = 30 * time.Second
	// DefaultLogoutGrace is how long shutdown waits for logout replies
	DefaultLogoutGrace = 1 * time.Second
	// WebhookShutdownTimeout bounds graceful stop of the webhook server
	WebhookShutdownTimeout = 5 * time.Second
	// DefaultAPITimeout bounds a single REST call
	DefaultAPITimeout = 10 * time.Second
)

// Event dedup
const (
	// DedupWindowSize is the number of recent event ids remembered per manager
	DedupWindowSize = 1024
)

// Login defaults used when the websocket info omits a field
const (
	// DefaultLoginRegion is the region field sent with Login and Logout
	DefaultLoginRegion = ""
)

// Message rendering
const (
	// MentionAllLabel is the display text for an @everyone mention
	MentionAllLabel = "全体成员"
	// ZeroWidthSpace stands in for text when a message only carries attachments
	ZeroWidthSpace = "\u200b"
)

// Token masking
const (
	// MinSecretLengthForMasking is the minimum secret length to apply masking
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 4
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Logging
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
	// MaxLoggedPayloadLength caps raw payloads written to the log
	MaxLoggedPayloadLength = 256
)

// Webhook replies
const (
	// WebhookAckMessage is the message field of the 200 acknowledgement
	WebhookAckMessage = "OK"
	// InvalidSignatureMessage is returned with 401 on signature failure
	InvalidSignatureMessage = "Invalid Signature"
	// InvalidBodyMessage is returned with 415 when the body is empty or has no event
	InvalidBodyMessage = "Invalid Request Body"
)
