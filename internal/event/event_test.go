package event

import (
	"encoding/json"
	"testing"

	"github.com/keepmind9/villabot/internal/message"
	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendMessageRecord(t *testing.T, content string) *Record {
	t.Helper()
	return &Record{
		Robot: Robot{Template: Template{ID: "bot_abc", Name: "Helper"}, VillaID: 100},
		Type:  TypeSendMessage,
		ExtendData: ExtendData{SendMessage: &SendMessageData{
			Content:    content,
			FromUserID: 42,
			SendAt:     1700,
			ObjectName: 1,
			RoomID:     7,
			Nickname:   "Ann",
			MsgUID:     "msg-1",
			VillaID:    100,
		}},
		ID: "ev-9",
	}
}

func contentJSON(t *testing.T, ci message.ContentInfo) string {
	t.Helper()
	b, err := json.Marshal(ci)
	require.NoError(t, err)
	return string(b)
}

func TestClassify_SendMessage(t *testing.T) {
	content := `{"content":{"text":"@Helper hi","entities":[{"offset":0,"length":8,"entity":{"type":"mentioned_robot","bot_id":"bot_abc"}}]}}`

	ev, err := Classify(TypeSendMessage, sendMessageRecord(t, content))
	require.NoError(t, err)

	sm, ok := ev.(*SendMessage)
	require.True(t, ok)
	assert.Equal(t, "SendMessage", sm.Name())
	assert.Equal(t, CategoryMessage, sm.Category())
	assert.Equal(t, "42", sm.UserID())
	assert.Equal(t, "100-7-42", sm.SessionID())
	assert.Equal(t, "bot_abc", sm.Header().BotID)
	assert.Equal(t, "ev-9", sm.Header().EventID)
	assert.Equal(t, message.Message{
		message.MentionRobot{BotID: "bot_abc", Name: "Helper"},
		message.Text{Content: "hi"},
	}, sm.Message)
	assert.False(t, sm.IsToMe())
}

func TestClassify_Variants(t *testing.T) {
	robot := Robot{Template: Template{ID: "bot_abc"}, VillaID: 1}
	tests := []struct {
		name    string
		typ     Type
		data    ExtendData
		user    string
		session string
	}{
		{"join", TypeJoinVilla, ExtendData{JoinVilla: &JoinVillaData{JoinUID: 5, VillaID: 1}}, "5", "5"},
		{"create", TypeCreateRobot, ExtendData{CreateRobot: &CreateRobotData{VillaID: 1}}, "", "1"},
		{"delete", TypeDeleteRobot, ExtendData{DeleteRobot: &DeleteRobotData{VillaID: 1}}, "", "1"},
		{"emoticon", TypeAddQuickEmoticon, ExtendData{AddQuickEmoticon: &AddQuickEmoticonData{VillaID: 1, RoomID: 2, UID: 3}}, "3", "1-2-3"},
		{"audit", TypeAuditCallback, ExtendData{AuditCallback: &AuditCallbackData{VillaID: 1, RoomID: 2, UserID: 4, AuditResult: AuditPass}}, "4", "1-2-4"},
		{"click", TypeClickMsgComponent, ExtendData{ClickMsgComponent: &ClickMsgComponentData{VillaID: 1, RoomID: 2, UID: 6, ComponentID: "btn"}}, "6", "1-2-6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Classify(tt.typ, &Record{Robot: robot, Type: tt.typ, ExtendData: tt.data})
			require.NoError(t, err)
			assert.Equal(t, tt.typ, ev.Type())
			assert.Equal(t, tt.typ.String(), ev.Name())
			assert.Equal(t, CategoryNotice, ev.Category())
			assert.Equal(t, tt.user, ev.UserID())
			assert.Equal(t, tt.session, ev.SessionID())
			assert.False(t, ev.IsToMe())
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	_, err := Classify(Type(42), &Record{})
	assert.ErrorIs(t, err, villaerr.ErrUnknownEventType)

	_, err = Classify(TypeJoinVilla, &Record{Type: TypeJoinVilla})
	assert.ErrorIs(t, err, villaerr.ErrMalformedContent)

	_, err = Classify(TypeSendMessage, sendMessageRecord(t, "not json"))
	assert.ErrorIs(t, err, villaerr.ErrMalformedContent)
}

func TestClassify_FromWebhookJSON(t *testing.T) {
	content := `{\"content\":{\"text\":\"hello\",\"entities\":[]},\"user\":{\"name\":\"Ann\"}}`
	body := `{"event": {"robot": ` + robotJSON + `, "type": "SendMessage", "extend_data": {"EventData": {"SendMessage": {"content": "` + content + `", "from_user_id": 42, "send_at": 1, "object_name": 1, "room_id": 7, "nickname": "Ann", "msg_uid": "m", "villa_id": 100}}}, "created_at": 1, "id": "e1", "send_at": 2}}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	require.NotNil(t, env.Event)

	ev, err := Classify(env.Event.Type, env.Event)
	require.NoError(t, err)
	assert.Equal(t, message.FromText("hello"), ev.(*SendMessage).Message)
}
