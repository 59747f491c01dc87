package event

import (
	"strings"

	"github.com/keepmind9/villabot/internal/message"
)

const trimSet = " \t\r\n\u00a0"

// Prepare applies the per-bot passes to a message event before dispatch:
// quote segments move to Quote, a leading or trailing mention of the bot
// itself is removed and ToMe is set. Other events are returned unchanged.
func Prepare(ev Event, selfID string) Event {
	sm, ok := ev.(*SendMessage)
	if !ok {
		return ev
	}

	msg := sm.Message.Clone()
	for _, seg := range msg.Only(message.KindQuote) {
		q := seg.(message.Quote)
		sm.Quote = &q
	}
	msg = msg.Without(message.KindQuote)

	msg, stripped := stripSelfMention(msg, selfID)
	if stripped {
		sm.ToMe = true
	}
	if mi := sm.ContentInfo; mi != nil && mi.MentionedInfo != nil {
		for _, id := range mi.MentionedInfo.UserIDList {
			if id == selfID {
				sm.ToMe = true
			}
		}
	}

	if len(msg) == 0 {
		msg = message.FromText("")
	}
	sm.Message = msg
	return sm
}

func isBlank(seg message.Segment) bool {
	t, ok := seg.(message.Text)
	return ok && strings.Trim(t.Content, trimSet) == ""
}

func isSelf(seg message.Segment, selfID string) bool {
	m, ok := seg.(message.MentionRobot)
	return ok && m.BotID == selfID
}

func stripSelfMention(msg message.Message, selfID string) (message.Message, bool) {
	first := 0
	for first < len(msg) && isBlank(msg[first]) {
		first++
	}
	if first < len(msg) && isSelf(msg[first], selfID) {
		msg = msg[first+1:]
		if len(msg) > 0 {
			if t, ok := msg[0].(message.Text); ok {
				t.Content = strings.TrimLeft(t.Content, trimSet)
				if t.Content == "" {
					msg = msg[1:]
				} else {
					msg[0] = t
				}
			}
		}
		return msg, true
	}

	last := len(msg) - 1
	for last >= 0 && isBlank(msg[last]) {
		last--
	}
	if last >= 0 && isSelf(msg[last], selfID) {
		msg = msg[:last]
		for len(msg) > 0 && isBlank(msg[len(msg)-1]) {
			msg = msg[:len(msg)-1]
		}
		if n := len(msg); n > 0 {
			if t, ok := msg[n-1].(message.Text); ok {
				t.Content = strings.TrimRight(t.Content, trimSet)
				msg[n-1] = t
			}
		}
		return msg, true
	}

	return msg, false
}
