package main

import (
	"context"
	"strings"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/core"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/internal/message"
	"github.com/sirupsen/logrus"
)

// chain runs handlers in order on the dispatch goroutine.
func chain(handlers ...core.EventHandler) core.EventHandler {
	return func(ctx context.Context, b *bot.Bot, ev event.Event) {
		for _, h := range handlers {
			h(ctx, b, ev)
		}
	}
}

func pingHandler(ctx context.Context, b *bot.Bot, ev event.Event) {
	replyPing(ctx, b, ev)
}

// replyPing answers "ping" or "/ping" addressed to the bot with a quoted
// "pong" that mentions the sender.
func replyPing(ctx context.Context, r bot.Replier, ev event.Event) bool {
	sm, ok := ev.(*event.SendMessage)
	if !ok || !sm.IsToMe() {
		return false
	}

	text := strings.ToLower(strings.TrimSpace(sm.Message.PlainText()))
	if text != "ping" && text != "/ping" {
		return false
	}

	id, err := r.Send(ctx, ev, message.FromText("pong"), bot.SendOptions{
		MentionSender: true,
		ReplyMessage:  true,
	})
	if err != nil {
		logger.WithFields(logrus.Fields{
			"event_id": ev.Header().EventID,
			"error":    err,
		}).Warn("failed-to-reply-ping")
		return false
	}

	logger.WithFields(logrus.Fields{
		"event_id":   ev.Header().EventID,
		"session_id": ev.SessionID(),
		"bot_msg_id": id,
	}).Debug("ping-replied")
	return true
}
