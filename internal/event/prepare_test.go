package event

import (
	"testing"

	"github.com/keepmind9/villabot/internal/message"
	"github.com/stretchr/testify/assert"
)

const self = "bot_self"

func prepared(msg message.Message, mentioned ...string) *SendMessage {
	sm := &SendMessage{Message: msg, ContentInfo: &message.ContentInfo{}}
	if len(mentioned) > 0 {
		sm.ContentInfo.MentionedInfo = &message.MentionedInfo{Type: message.MentionTypePart, UserIDList: mentioned}
	}
	return Prepare(sm, self).(*SendMessage)
}

func TestPrepare_SelfMention(t *testing.T) {
	me := message.MentionRobot{BotID: self, Name: "Me"}
	other := message.MentionRobot{BotID: "bot_other", Name: "Other"}

	tests := []struct {
		name   string
		in     message.Message
		want   message.Message
		wantMe bool
	}{
		{
			name:   "leading mention",
			in:     message.Message{me, message.Text{Content: " hello"}},
			want:   message.Message{message.Text{Content: "hello"}},
			wantMe: true,
		},
		{
			name:   "trailing mention",
			in:     message.Message{message.Text{Content: "hello "}, me},
			want:   message.Message{message.Text{Content: "hello"}},
			wantMe: true,
		},
		{
			name:   "mention only",
			in:     message.Message{me},
			want:   message.Message{message.Text{Content: ""}},
			wantMe: true,
		},
		{
			name:   "leading whitespace before mention",
			in:     message.Message{message.Text{Content: " "}, me, message.Text{Content: " hi"}},
			want:   message.Message{message.Text{Content: "hi"}},
			wantMe: true,
		},
		{
			name:   "trailing whitespace after mention",
			in:     message.Message{message.Text{Content: "ok "}, me, message.Text{Content: "  "}},
			want:   message.Message{message.Text{Content: "ok"}},
			wantMe: true,
		},
		{
			name:   "mention in the middle is kept",
			in:     message.Message{message.Text{Content: "a "}, me, message.Text{Content: " b"}},
			want:   message.Message{message.Text{Content: "a "}, me, message.Text{Content: " b"}},
			wantMe: false,
		},
		{
			name:   "other bot is kept",
			in:     message.Message{other, message.Text{Content: " hi"}},
			want:   message.Message{other, message.Text{Content: " hi"}},
			wantMe: false,
		},
		{
			name:   "empty message",
			in:     message.Message{},
			want:   message.Message{message.Text{Content: ""}},
			wantMe: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := prepared(tt.in)
			assert.Equal(t, tt.want, sm.Message)
			assert.Equal(t, tt.wantMe, sm.IsToMe())
		})
	}
}

func TestPrepare_Idempotent(t *testing.T) {
	sm := prepared(message.Message{message.MentionRobot{BotID: self}, message.Text{Content: " hello"}})
	again := Prepare(sm, self).(*SendMessage)

	assert.Equal(t, message.Message{message.Text{Content: "hello"}}, again.Message)
	assert.True(t, again.ToMe)
}

func TestPrepare_QuoteStripping(t *testing.T) {
	q := message.Quote{MessageID: "m-0", SentAt: 99}
	sm := prepared(message.Message{q, message.Text{Content: "reply"}})

	assert.Equal(t, message.Message{message.Text{Content: "reply"}}, sm.Message)
	if assert.NotNil(t, sm.Quote) {
		assert.Equal(t, q, *sm.Quote)
	}
}

func TestPrepare_MentionedInfoSetsToMe(t *testing.T) {
	sm := prepared(message.FromText("hi"), "123", self)
	assert.True(t, sm.ToMe)
	assert.Equal(t, message.FromText("hi"), sm.Message)
}

func TestPrepare_KeepsOriginal(t *testing.T) {
	in := message.Message{message.MentionRobot{BotID: self}, message.Text{Content: " x"}}
	sm := &SendMessage{Message: in, OriginalMessage: in.Clone()}
	Prepare(sm, self)

	assert.Equal(t, in, sm.OriginalMessage)
	assert.Equal(t, message.Text{Content: " x"}, in[1])
}

func TestPrepare_IgnoresNotices(t *testing.T) {
	ev := &CreateRobot{CreateRobotData: CreateRobotData{VillaID: 1}}
	assert.Same(t, ev, Prepare(ev, self))
}
