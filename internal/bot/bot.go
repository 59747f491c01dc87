package bot

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/keepmind9/villabot/internal/api"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/internal/message"
	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/sirupsen/logrus"
)

// Bot is a configured Villa bot.
type Bot struct {
	info   Info
	secret string
	pubKey *rsa.PublicKey
	api    *api.Client

	mu      sync.RWMutex
	profile *event.Robot
}

// New creates a bot from its configuration. apiBase may be empty for the
// public endpoint and httpClient nil for a default client. The public key is
// parsed eagerly so a bad key fails at startup rather than on the first
// event.
func New(info Info, apiBase string, httpClient *http.Client) (*Bot, error) {
	if info.BotID == "" {
		return nil, fmt.Errorf("bot_id is required")
	}

	pem := normalizePubKey(info.PubKey)
	var pubKey *rsa.PublicKey
	if pem != "" {
		key, err := parsePubKey(pem)
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", info.BotID, err)
		}
		pubKey = key
	}

	secret := deriveSecret(pem, info.BotSecret)
	b := &Bot{
		info:   info,
		secret: secret,
		pubKey: pubKey,
		api:    api.NewClient(apiBase, api.Credentials{BotID: info.BotID, Secret: secret}, httpClient),
	}

	logger.WithFields(logrus.Fields{
		"bot_id":          info.BotID,
		"connection_type": info.ConnectionType,
		"secret":          logger.MaskSecret(secret),
	}).Debug("bot-created")

	return b, nil
}

// SelfID returns the bot id.
func (b *Bot) SelfID() string { return b.info.BotID }

func (b *Bot) Info() Info { return b.info }

// Secret returns the derived secret sent as x-rpc-bot_secret.
func (b *Bot) Secret() string { return b.secret }

func (b *Bot) API() *api.Client { return b.api }

// LoginToken is the token carried by the WebSocket Login message.
func (b *Bot) LoginToken() string {
	return fmt.Sprintf("%d.%s.%s", b.info.TestVillaID, b.secret, b.info.BotID)
}

// Profile returns the robot snapshot the platform last reported.
func (b *Bot) Profile() (event.Robot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.profile == nil {
		return event.Robot{}, villaerr.ErrProfileNotYetAvailable
	}
	return *b.profile, nil
}

// SetProfile records the robot snapshot carried by a login or event.
func (b *Bot) SetProfile(r event.Robot) {
	b.mu.Lock()
	b.profile = &r
	b.mu.Unlock()
}

// Send replies to a SendMessage event in the room it came from and returns
// the bot message id.
func (b *Bot) Send(ctx context.Context, ev event.Event, msg message.Message, opts SendOptions) (string, error) {
	sm, ok := ev.(*event.SendMessage)
	if !ok {
		return "", fmt.Errorf("event %s cannot be replied to", ev.Name())
	}

	out := make(message.Message, 0, len(msg)+2)
	if opts.MentionSender {
		out = append(out, message.MentionUser{
			UserID:  uint64(sm.FromUserID),
			Name:    sm.Nickname,
			VillaID: uint64(sm.VillaID),
		})
	}
	out = append(out, msg...)
	if opts.ReplyMessage {
		out = append(out, message.Quote{MessageID: sm.MsgUID, SentAt: sm.SendAt})
	}

	return b.SendTo(ctx, uint64(sm.VillaID), uint64(sm.RoomID), out)
}

// SendTo encodes msg and posts it to a room.
func (b *Bot) SendTo(ctx context.Context, villaID, roomID uint64, msg message.Message) (string, error) {
	ci, err := message.ToContentInfo(ctx, b.fill(msg, villaID), b.api)
	if err != nil {
		return "", err
	}
	content, err := json.Marshal(ci)
	if err != nil {
		return "", fmt.Errorf("failed to encode message content: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"bot_id":      b.info.BotID,
		"villa_id":    villaID,
		"room_id":     roomID,
		"object_name": ci.ObjectName(),
		"content":     logger.Truncate(content),
	}).Debug("sending-message")

	id, err := b.api.SendMessage(ctx, villaID, roomID, ci.ObjectName(), string(content))
	if err != nil {
		logger.WithFields(logrus.Fields{
			"bot_id":   b.info.BotID,
			"villa_id": villaID,
			"room_id":  roomID,
			"error":    err,
		}).Error("failed-to-send-message")
		return "", err
	}
	return id, nil
}

// fill completes mentions with what the bot already knows: its own name and
// the target villa.
func (b *Bot) fill(msg message.Message, villaID uint64) message.Message {
	var selfName string
	if p, err := b.Profile(); err == nil {
		selfName = p.Template.Name
	}

	out := msg.Clone()
	for i, seg := range out {
		switch s := seg.(type) {
		case message.MentionRobot:
			if s.Name == "" && s.BotID == b.info.BotID && selfName != "" {
				s.Name = selfName
				out[i] = s
			}
		case message.MentionUser:
			if s.VillaID == 0 {
				s.VillaID = villaID
				out[i] = s
			}
		}
	}
	return out
}
