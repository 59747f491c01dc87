// Package event normalizes platform events from either transport into one
// closed set of Go types.
package event

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/keepmind9/villabot/internal/message"
	"github.com/keepmind9/villabot/internal/villaerr"
)

// Type is the platform's event discriminant.
type Type int32

const (
	TypeJoinVilla         Type = 1
	TypeSendMessage       Type = 2
	TypeCreateRobot       Type = 3
	TypeDeleteRobot       Type = 4
	TypeAddQuickEmoticon  Type = 5
	TypeAuditCallback     Type = 6
	TypeClickMsgComponent Type = 7
)

var typeNames = map[Type]string{
	TypeJoinVilla:         "JoinVilla",
	TypeSendMessage:       "SendMessage",
	TypeCreateRobot:       "CreateRobot",
	TypeDeleteRobot:       "DeleteRobot",
	TypeAddQuickEmoticon:  "AddQuickEmoticon",
	TypeAuditCallback:     "AuditCallback",
	TypeClickMsgComponent: "ClickMsgComponent",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames)*2)
	for t, name := range typeNames {
		m[strings.ToLower(name)] = t
		m[snakeCase(name)] = t
	}
	return m
}()

func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// ParseType accepts "SendMessage", "send_message" or "2".
func ParseType(s string) (Type, bool) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		t := Type(n)
		_, ok := typeNames[t]
		return t, ok
	}
	t, ok := typesByName[strings.ToLower(s)]
	return t, ok
}

// Category groups events the way handlers subscribe to them.
type Category string

const (
	CategoryMessage Category = "message"
	CategoryNotice  Category = "notice"
)

// Event is implemented by every event variant in this package.
type Event interface {
	Type() Type
	Name() string
	Category() Category
	Header() Header
	UserID() string
	SessionID() string
	IsToMe() bool
	isEvent()
}

// Header holds the fields common to all events.
type Header struct {
	BotID     string `json:"bot_id"`
	Robot     Robot  `json:"robot"`
	EventID   string `json:"event_id"`
	CreatedAt int64  `json:"created_at"`
	SendAt    int64  `json:"send_at"`
}

type base struct {
	Head Header `json:"header"`
}

func (b *base) Header() Header { return b.Head }
func (b *base) Category() Category { return CategoryNotice }
func (b *base) IsToMe() bool { return false }
func (b *base) isEvent() {}

type JoinVilla struct {
	base
	JoinVillaData
}

func (*JoinVilla) Type() Type { return TypeJoinVilla }
func (*JoinVilla) Name() string { return TypeJoinVilla.String() }
func (e *JoinVilla) UserID() string { return e.JoinUID.String() }
func (e *JoinVilla) SessionID() string { return e.JoinUID.String() }

// SendMessage is a message that mentions the bot.
type SendMessage struct {
	base
	SendMessageData
	ContentInfo *message.ContentInfo `json:"content_info"`
	// Message is the working message after Prepare. OriginalMessage keeps
	// the decoded form including quotes and self mentions.
	Message         message.Message `json:"message"`
	OriginalMessage message.Message `json:"original_message"`
	Quote           *message.Quote  `json:"quote,omitempty"`
	ToMe            bool            `json:"to_me"`
}

func (*SendMessage) Type() Type { return TypeSendMessage }
func (*SendMessage) Name() string { return TypeSendMessage.String() }
func (*SendMessage) Category() Category { return CategoryMessage }
func (e *SendMessage) UserID() string { return e.FromUserID.String() }
func (e *SendMessage) IsToMe() bool { return e.ToMe }
func (e *SendMessage) SessionID() string {
	return fmt.Sprintf("%d-%d-%d", e.VillaID, e.RoomID, e.FromUserID)
}

type CreateRobot struct {
	base
	CreateRobotData
}

func (*CreateRobot) Type() Type { return TypeCreateRobot }
func (*CreateRobot) Name() string { return TypeCreateRobot.String() }
func (*CreateRobot) UserID() string { return "" }
func (e *CreateRobot) SessionID() string { return e.VillaID.String() }

type DeleteRobot struct {
	base
	DeleteRobotData
}

func (*DeleteRobot) Type() Type { return TypeDeleteRobot }
func (*DeleteRobot) Name() string { return TypeDeleteRobot.String() }
func (*DeleteRobot) UserID() string { return "" }
func (e *DeleteRobot) SessionID() string { return e.VillaID.String() }

type AddQuickEmoticon struct {
	base
	AddQuickEmoticonData
}

func (*AddQuickEmoticon) Type() Type { return TypeAddQuickEmoticon }
func (*AddQuickEmoticon) Name() string { return TypeAddQuickEmoticon.String() }
func (e *AddQuickEmoticon) UserID() string { return e.UID.String() }
func (e *AddQuickEmoticon) SessionID() string {
	return fmt.Sprintf("%d-%d-%d", e.VillaID, e.RoomID, e.UID)
}

type AuditCallback struct {
	base
	AuditCallbackData
}

func (*AuditCallback) Type() Type { return TypeAuditCallback }
func (*AuditCallback) Name() string { return TypeAuditCallback.String() }
func (e *AuditCallback) UserID() string { return e.AuditCallbackData.UserID.String() }
func (e *AuditCallback) SessionID() string {
	return fmt.Sprintf("%d-%d-%d", e.VillaID, e.RoomID, e.AuditCallbackData.UserID)
}

// ClickMsgComponent reports a click on an interactive panel component.
type ClickMsgComponent struct {
	base
	ClickMsgComponentData
}

func (*ClickMsgComponent) Type() Type { return TypeClickMsgComponent }
func (*ClickMsgComponent) Name() string { return TypeClickMsgComponent.String() }
func (e *ClickMsgComponent) UserID() string { return e.UID.String() }
func (e *ClickMsgComponent) SessionID() string {
	return fmt.Sprintf("%d-%d-%d", e.VillaID, e.RoomID, e.UID)
}

// Classify maps a record to its event variant. Unknown types fail with
// ErrUnknownEventType, a missing payload or undecodable message content with
// ErrMalformedContent.
func Classify(t Type, r *Record) (Event, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", villaerr.ErrUnknownEventType, int32(t))
	}

	b := base{Head: Header{
		BotID:     r.Robot.Template.ID,
		Robot:     r.Robot,
		EventID:   r.ID,
		CreatedAt: r.CreatedAt,
		SendAt:    r.SendAt,
	}}
	missing := fmt.Errorf("%w: %s event without payload", villaerr.ErrMalformedContent, t)
	d := &r.ExtendData

	switch t {
	case TypeJoinVilla:
		if d.JoinVilla == nil {
			return nil, missing
		}
		return &JoinVilla{base: b, JoinVillaData: *d.JoinVilla}, nil
	case TypeSendMessage:
		if d.SendMessage == nil {
			return nil, missing
		}
		return newSendMessage(b, d.SendMessage)
	case TypeCreateRobot:
		if d.CreateRobot == nil {
			return nil, missing
		}
		return &CreateRobot{base: b, CreateRobotData: *d.CreateRobot}, nil
	case TypeDeleteRobot:
		if d.DeleteRobot == nil {
			return nil, missing
		}
		return &DeleteRobot{base: b, DeleteRobotData: *d.DeleteRobot}, nil
	case TypeAddQuickEmoticon:
		if d.AddQuickEmoticon == nil {
			return nil, missing
		}
		return &AddQuickEmoticon{base: b, AddQuickEmoticonData: *d.AddQuickEmoticon}, nil
	case TypeAuditCallback:
		if d.AuditCallback == nil {
			return nil, missing
		}
		return &AuditCallback{base: b, AuditCallbackData: *d.AuditCallback}, nil
	default:
		if d.ClickMsgComponent == nil {
			return nil, missing
		}
		return &ClickMsgComponent{base: b, ClickMsgComponentData: *d.ClickMsgComponent}, nil
	}
}

func newSendMessage(b base, data *SendMessageData) (*SendMessage, error) {
	ci, err := message.ParseContentInfo([]byte(data.Content))
	if err != nil {
		return nil, err
	}
	msg, err := message.FromContentInfo(ci, uint64(data.VillaID))
	if err != nil {
		return nil, err
	}
	return &SendMessage{
		base:            b,
		SendMessageData: *data,
		ContentInfo:     ci,
		Message:         msg,
		OriginalMessage: msg.Clone(),
	}, nil
}
