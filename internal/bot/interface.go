// Package bot holds the runtime entity for one Villa bot.
//
// A Bot carries the credentials from configuration, the derived secret used
// on every transport, the robot profile learned from the platform, and an
// API client for outbound calls. Both the webhook handler and the WebSocket
// supervisor work against the same Bot value.
//
// # Lifecycle
//
// A Bot is created from configuration with New. Its profile is unknown until
// the first successful WebSocket login or the first verified webhook event:
//
//	b, err := bot.New(info, "", nil)
//	if err != nil {
//	    return err
//	}
//	if _, err := b.Profile(); errors.Is(err, villaerr.ErrProfileNotYetAvailable) {
//	    // not connected yet
//	}
//
// # Thread Safety
//
// All methods are safe for concurrent use. The profile is guarded by an
// internal RWMutex and everything else is immutable after New.
package bot

import (
	"context"

	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/message"
)

// ConnectionType selects how a bot receives events.
type ConnectionType string

const (
	ConnectionWebhook   ConnectionType = "webhook"
	ConnectionWebsocket ConnectionType = "websocket"
)

// Info is the static description of a bot as configured by the operator.
type Info struct {
	BotID          string
	BotSecret      string
	PubKey         string
	TestVillaID    uint64
	CallbackURL    string
	ConnectionType ConnectionType
	VerifyEvent    bool
}

// Replier is the outbound surface handlers use to answer an event.
type Replier interface {
	Send(ctx context.Context, ev event.Event, msg message.Message, opts SendOptions) (string, error)
}

// SendOptions adjusts a reply built by Send.
type SendOptions struct {
	// MentionSender prepends a mention of the event's author.
	MentionSender bool
	// ReplyMessage quotes the event's message.
	ReplyMessage bool
}
