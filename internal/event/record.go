package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/keepmind9/villabot/internal/villaerr"
)

// ID is a numeric identifier that the platform sends either as a JSON
// number or as a decimal string.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(v)
	return nil
}

// Record is the wire event shared by both transports. Webhook JSON and
// WebSocket protobuf bodies decode into it before classification.
type Record struct {
	Robot      Robot      `json:"robot"`
	Type       Type       `json:"type"`
	ExtendData ExtendData `json:"extend_data"`
	CreatedAt  int64      `json:"created_at"`
	ID         string     `json:"id"`
	SendAt     int64      `json:"send_at"`
}

// Robot is the bot snapshot carried by every event.
type Robot struct {
	Template Template `json:"template"`
	VillaID  ID       `json:"villa_id"`
}

type Template struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	Desc                     string          `json:"desc,omitempty"`
	Icon                     string          `json:"icon"`
	Commands                 []Command       `json:"commands,omitempty"`
	CustomSettings           []CustomSetting `json:"custom_settings,omitempty"`
	IsAllowedAddToOtherVilla bool            `json:"is_allowed_add_to_other_villa,omitempty"`
}

type Command struct {
	Name   string         `json:"name"`
	Desc   string         `json:"desc,omitempty"`
	Params []CommandParam `json:"params,omitempty"`
}

type CommandParam struct {
	Desc string `json:"desc"`
}

type CustomSetting struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ExtendData holds the per-type payload. At most one field is set.
type ExtendData struct {
	JoinVilla         *JoinVillaData         `json:"join_villa,omitempty"`
	SendMessage       *SendMessageData       `json:"send_message,omitempty"`
	CreateRobot       *CreateRobotData       `json:"create_robot,omitempty"`
	DeleteRobot       *DeleteRobotData       `json:"delete_robot,omitempty"`
	AddQuickEmoticon  *AddQuickEmoticonData  `json:"add_quick_emoticon,omitempty"`
	AuditCallback     *AuditCallbackData     `json:"audit_callback,omitempty"`
	ClickMsgComponent *ClickMsgComponentData `json:"click_msg_component,omitempty"`
}

type JoinVillaData struct {
	JoinUID          ID     `json:"join_uid"`
	JoinUserNickname string `json:"join_user_nickname"`
	JoinAt           int64  `json:"join_at"`
	VillaID          ID     `json:"villa_id"`
}

type SendMessageData struct {
	Content    string        `json:"content"`
	FromUserID ID            `json:"from_user_id"`
	SendAt     int64         `json:"send_at"`
	ObjectName int32         `json:"object_name"`
	RoomID     ID            `json:"room_id"`
	Nickname   string        `json:"nickname"`
	MsgUID     string        `json:"msg_uid"`
	BotMsgID   string        `json:"bot_msg_id,omitempty"`
	VillaID    ID            `json:"villa_id"`
	QuoteMsg   *QuoteMessage `json:"quote_msg,omitempty"`
}

// QuoteMessage describes the message a SendMessage event replied to.
type QuoteMessage struct {
	Content          string   `json:"content"`
	MsgUID           string   `json:"msg_uid"`
	SendAt           int64    `json:"send_at"`
	MsgType          string   `json:"msg_type"`
	BotMsgID         string   `json:"bot_msg_id,omitempty"`
	FromUserID       ID       `json:"from_user_id"`
	FromUserIDStr    string   `json:"from_user_id_str"`
	FromUserNickname string   `json:"from_user_nickname"`
	Images           []string `json:"images,omitempty"`
}

type CreateRobotData struct {
	VillaID ID `json:"villa_id"`
}

type DeleteRobotData struct {
	VillaID ID `json:"villa_id"`
}

type AddQuickEmoticonData struct {
	VillaID      ID     `json:"villa_id"`
	RoomID       ID     `json:"room_id"`
	UID          ID     `json:"uid"`
	EmoticonID   ID     `json:"emoticon_id"`
	Emoticon     string `json:"emoticon"`
	MsgUID       string `json:"msg_uid"`
	IsCancel     bool   `json:"is_cancel"`
	BotMsgID     string `json:"bot_msg_id,omitempty"`
	EmoticonType uint32 `json:"emoticon_type"`
}

// AuditResult is the outcome reported by an AuditCallback event.
type AuditResult int32

const (
	AuditCompatibility AuditResult = 0
	AuditPass          AuditResult = 1
	AuditReject        AuditResult = 2
)

type AuditCallbackData struct {
	AuditID     string      `json:"audit_id"`
	BotTplID    string      `json:"bot_tpl_id"`
	VillaID     ID          `json:"villa_id"`
	RoomID      ID          `json:"room_id"`
	UserID      ID          `json:"user_id"`
	PassThrough string      `json:"pass_through"`
	AuditResult AuditResult `json:"audit_result"`
}

type ClickMsgComponentData struct {
	VillaID     ID     `json:"villa_id"`
	RoomID      ID     `json:"room_id"`
	ComponentID string `json:"component_id"`
	MsgUID      string `json:"msg_uid"`
	UID         ID     `json:"uid"`
	BotMsgID    string `json:"bot_msg_id,omitempty"`
	TemplateID  ID     `json:"template_id"`
	Extra       string `json:"extra"`
}

// UnmarshalJSON accepts the historical record shapes: type as number or
// name, numeric fields as numbers or strings, and extend_data either wrapped
// in EventData or keyed directly by the variant name.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Robot      Robot           `json:"robot"`
		Type       json.RawMessage `json:"type"`
		ExtendData json.RawMessage `json:"extend_data"`
		CreatedAt  ID              `json:"created_at"`
		ID         json.RawMessage `json:"id"`
		SendAt     ID              `json:"send_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	typ, err := parseTypeJSON(raw.Type)
	if err != nil {
		return err
	}

	*r = Record{
		Robot:     raw.Robot,
		Type:      typ,
		CreatedAt: int64(raw.CreatedAt),
		ID:        strings.Trim(string(raw.ID), `"`),
		SendAt:    int64(raw.SendAt),
	}
	if r.ID == "null" {
		r.ID = ""
	}
	if err := r.ExtendData.decode(raw.ExtendData, typ); err != nil {
		return err
	}
	if r.Type == 0 {
		r.Type = r.ExtendData.Type()
	}
	return nil
}

func parseTypeJSON(data json.RawMessage) (Type, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, ok := ParseType(s); ok {
			return t, nil
		}
		return 0, fmt.Errorf("%w: %q", villaerr.ErrUnknownEventType, s)
	}
	var n int32
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("invalid event type %s: %w", data, err)
	}
	return Type(n), nil
}

func (d *ExtendData) decode(data json.RawMessage, typ Type) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var variants map[string]json.RawMessage
	if err := json.Unmarshal(data, &variants); err != nil {
		return fmt.Errorf("invalid extend_data: %w", err)
	}
	if wrapped, ok := variants["EventData"]; ok {
		variants = nil
		if err := json.Unmarshal(wrapped, &variants); err != nil {
			return fmt.Errorf("invalid extend_data.EventData: %w", err)
		}
	}

	for key, body := range variants {
		t, ok := ParseType(key)
		if !ok || (typ != 0 && t != typ) {
			continue
		}
		if err := d.set(t, body); err != nil {
			return fmt.Errorf("%w: extend_data.%s: %v", villaerr.ErrMalformedContent, key, err)
		}
	}
	return nil
}

func (d *ExtendData) set(t Type, body json.RawMessage) error {
	var target any
	switch t {
	case TypeJoinVilla:
		d.JoinVilla = &JoinVillaData{}
		target = d.JoinVilla
	case TypeSendMessage:
		d.SendMessage = &SendMessageData{}
		target = d.SendMessage
	case TypeCreateRobot:
		d.CreateRobot = &CreateRobotData{}
		target = d.CreateRobot
	case TypeDeleteRobot:
		d.DeleteRobot = &DeleteRobotData{}
		target = d.DeleteRobot
	case TypeAddQuickEmoticon:
		d.AddQuickEmoticon = &AddQuickEmoticonData{}
		target = d.AddQuickEmoticon
	case TypeAuditCallback:
		d.AuditCallback = &AuditCallbackData{}
		target = d.AuditCallback
	case TypeClickMsgComponent:
		d.ClickMsgComponent = &ClickMsgComponentData{}
		target = d.ClickMsgComponent
	default:
		return nil
	}
	return json.Unmarshal(body, target)
}

// Type returns the type of the variant that is set, or 0.
func (d *ExtendData) Type() Type {
	switch {
	case d.JoinVilla != nil:
		return TypeJoinVilla
	case d.SendMessage != nil:
		return TypeSendMessage
	case d.CreateRobot != nil:
		return TypeCreateRobot
	case d.DeleteRobot != nil:
		return TypeDeleteRobot
	case d.AddQuickEmoticon != nil:
		return TypeAddQuickEmoticon
	case d.AuditCallback != nil:
		return TypeAuditCallback
	case d.ClickMsgComponent != nil:
		return TypeClickMsgComponent
	}
	return 0
}

// Envelope is the webhook request body.
type Envelope struct {
	Event *Record `json:"event"`
}
