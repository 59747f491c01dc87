package event

import (
	"encoding/json"
	"testing"

	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotJSON = `{"template": {"id": "bot_abc", "name": "Helper", "icon": "https://icon"}, "villa_id": 100}`

func TestRecord_UnmarshalHistoricalShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "numeric type wrapped in EventData",
			body: `{"robot": ` + robotJSON + `, "type": 4, "extend_data": {"EventData": {"DeleteRobot": {"villa_id": 100}}}, "created_at": 1700000000, "id": "ev-1", "send_at": 1700000001}`,
		},
		{
			name: "type name with direct variant key",
			body: `{"robot": ` + robotJSON + `, "type": "DeleteRobot", "extend_data": {"DeleteRobot": {"villa_id": "100"}}, "created_at": "1700000000", "id": "ev-1", "send_at": 1700000001}`,
		},
		{
			name: "snake case variant key",
			body: `{"robot": ` + robotJSON + `, "type": 4, "extend_data": {"delete_robot": {"villa_id": 100}}, "created_at": 1700000000, "id": "ev-1", "send_at": 1700000001}`,
		},
		{
			name: "type inferred from payload",
			body: `{"robot": ` + robotJSON + `, "extend_data": {"DeleteRobot": {"villa_id": 100}}, "created_at": 1700000000, "id": "ev-1", "send_at": 1700000001}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			require.NoError(t, json.Unmarshal([]byte(tt.body), &r))

			assert.Equal(t, TypeDeleteRobot, r.Type)
			assert.Equal(t, "bot_abc", r.Robot.Template.ID)
			assert.Equal(t, ID(100), r.Robot.VillaID)
			assert.Equal(t, int64(1700000000), r.CreatedAt)
			assert.Equal(t, "ev-1", r.ID)
			require.NotNil(t, r.ExtendData.DeleteRobot)
			assert.Equal(t, ID(100), r.ExtendData.DeleteRobot.VillaID)
		})
	}
}

func TestRecord_UnknownTypeName(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"type": "Dance", "extend_data": {}}`), &r)
	assert.ErrorIs(t, err, villaerr.ErrUnknownEventType)
}

func TestRecord_NumericEventID(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"type": 3, "id": 12345, "extend_data": {"CreateRobot": {"villa_id": 1}}}`), &r))
	assert.Equal(t, "12345", r.ID)
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	in := Record{
		Robot: Robot{Template: Template{ID: "bot_abc", Name: "Helper"}, VillaID: 9},
		Type:  TypeJoinVilla,
		ExtendData: ExtendData{JoinVilla: &JoinVillaData{
			JoinUID: 77, JoinUserNickname: "Ann", JoinAt: 5, VillaID: 9,
		}},
		CreatedAt: 1,
		ID:        "e",
		SendAt:    2,
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Record
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"SendMessage", TypeSendMessage, true},
		{"send_message", TypeSendMessage, true},
		{"ClickMsgComponent", TypeClickMsgComponent, true},
		{"click_msg_component", TypeClickMsgComponent, true},
		{"2", TypeSendMessage, true},
		{"99", Type(99), false},
		{"nope", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
