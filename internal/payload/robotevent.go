package payload

import (
	"fmt"

	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/villaerr"
	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeRobotEvent parses the protobuf RobotEvent carried by EVENT frames
// into the same record the webhook JSON path produces.
func DecodeRobotEvent(body []byte) (*event.Record, error) {
	var r event.Record
	err := walk(body, func(f field) error {
		switch f.num {
		case 1:
			return decodeRobot(f.bytes, &r.Robot)
		case 2:
			r.Type = event.Type(f.i32())
		case 3:
			return decodeExtendData(f.bytes, &r.ExtendData)
		case 4:
			r.CreatedAt = f.i64()
		case 5:
			r.ID = f.str()
		case 6:
			r.SendAt = f.i64()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: robot event: %v", villaerr.ErrMalformedContent, err)
	}
	return &r, nil
}

func decodeRobot(b []byte, r *event.Robot) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeTemplate(f.bytes, &r.Template)
		case 2:
			r.VillaID = event.ID(f.varint)
		}
		return nil
	})
}

func decodeTemplate(b []byte, t *event.Template) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			t.ID = f.str()
		case 2:
			t.Name = f.str()
		case 3:
			t.Desc = f.str()
		case 4:
			t.Icon = f.str()
		case 5:
			var c event.Command
			if err := decodeCommand(f.bytes, &c); err != nil {
				return err
			}
			t.Commands = append(t.Commands, c)
		case 6:
			var s event.CustomSetting
			err := walk(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					s.Name = f.str()
				case 2:
					s.URL = f.str()
				}
				return nil
			})
			if err != nil {
				return err
			}
			t.CustomSettings = append(t.CustomSettings, s)
		case 7:
			t.IsAllowedAddToOtherVilla = f.flag()
		}
		return nil
	})
}

func decodeCommand(b []byte, c *event.Command) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			c.Name = f.str()
		case 2:
			c.Desc = f.str()
		case 3:
			var p event.CommandParam
			err := walk(f.bytes, func(f field) error {
				if f.num == 1 {
					p.Desc = f.str()
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Params = append(c.Params, p)
		}
		return nil
	})
}

func decodeExtendData(b []byte, d *event.ExtendData) error {
	return walk(b, func(f field) error {
		switch event.Type(f.num) {
		case event.TypeJoinVilla:
			d.JoinVilla = &event.JoinVillaData{}
			return decodeJoinVilla(f.bytes, d.JoinVilla)
		case event.TypeSendMessage:
			d.SendMessage = &event.SendMessageData{}
			return decodeSendMessage(f.bytes, d.SendMessage)
		case event.TypeCreateRobot:
			d.CreateRobot = &event.CreateRobotData{}
			return decodeVillaOnly(f.bytes, &d.CreateRobot.VillaID)
		case event.TypeDeleteRobot:
			d.DeleteRobot = &event.DeleteRobotData{}
			return decodeVillaOnly(f.bytes, &d.DeleteRobot.VillaID)
		case event.TypeAddQuickEmoticon:
			d.AddQuickEmoticon = &event.AddQuickEmoticonData{}
			return decodeAddQuickEmoticon(f.bytes, d.AddQuickEmoticon)
		case event.TypeAuditCallback:
			d.AuditCallback = &event.AuditCallbackData{}
			return decodeAuditCallback(f.bytes, d.AuditCallback)
		case event.TypeClickMsgComponent:
			d.ClickMsgComponent = &event.ClickMsgComponentData{}
			return decodeClickMsgComponent(f.bytes, d.ClickMsgComponent)
		}
		return nil
	})
}

func decodeJoinVilla(b []byte, d *event.JoinVillaData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.JoinUID = event.ID(f.varint)
		case 2:
			d.JoinUserNickname = f.str()
		case 3:
			d.JoinAt = f.i64()
		case 4:
			d.VillaID = event.ID(f.varint)
		}
		return nil
	})
}

func decodeSendMessage(b []byte, d *event.SendMessageData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.Content = f.str()
		case 2:
			d.FromUserID = event.ID(f.varint)
		case 3:
			d.SendAt = f.i64()
		case 4:
			d.ObjectName = f.i32()
		case 5:
			d.RoomID = event.ID(f.varint)
		case 6:
			d.Nickname = f.str()
		case 7:
			d.MsgUID = f.str()
		case 8:
			d.BotMsgID = f.str()
		case 9:
			d.VillaID = event.ID(f.varint)
		case 10:
			d.QuoteMsg = &event.QuoteMessage{}
			return decodeQuoteMessage(f.bytes, d.QuoteMsg)
		}
		return nil
	})
}

func decodeQuoteMessage(b []byte, q *event.QuoteMessage) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			q.Content = f.str()
		case 2:
			q.MsgUID = f.str()
		case 3:
			q.SendAt = f.i64()
		case 4:
			q.MsgType = f.str()
		case 5:
			q.BotMsgID = f.str()
		case 6:
			q.FromUserID = event.ID(f.varint)
		case 7:
			q.FromUserIDStr = f.str()
		case 8:
			q.FromUserNickname = f.str()
		}
		return nil
	})
}

func decodeVillaOnly(b []byte, villaID *event.ID) error {
	return walk(b, func(f field) error {
		if f.num == 1 {
			*villaID = event.ID(f.varint)
		}
		return nil
	})
}

func decodeAddQuickEmoticon(b []byte, d *event.AddQuickEmoticonData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.VillaID = event.ID(f.varint)
		case 2:
			d.RoomID = event.ID(f.varint)
		case 3:
			d.UID = event.ID(f.varint)
		case 4:
			d.EmoticonID = event.ID(f.varint)
		case 5:
			d.Emoticon = f.str()
		case 6:
			d.MsgUID = f.str()
		case 7:
			d.IsCancel = f.flag()
		case 8:
			d.BotMsgID = f.str()
		case 9:
			d.EmoticonType = uint32(f.varint)
		}
		return nil
	})
}

func decodeAuditCallback(b []byte, d *event.AuditCallbackData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.AuditID = f.str()
		case 2:
			d.BotTplID = f.str()
		case 3:
			d.VillaID = event.ID(f.varint)
		case 4:
			d.RoomID = event.ID(f.varint)
		case 5:
			d.UserID = event.ID(f.varint)
		case 6:
			d.PassThrough = f.str()
		case 7:
			d.AuditResult = event.AuditResult(f.i32())
		}
		return nil
	})
}

func decodeClickMsgComponent(b []byte, d *event.ClickMsgComponentData) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			d.VillaID = event.ID(f.varint)
		case 2:
			d.RoomID = event.ID(f.varint)
		case 3:
			d.ComponentID = f.str()
		case 4:
			d.MsgUID = f.str()
		case 5:
			d.UID = event.ID(f.varint)
		case 6:
			d.BotMsgID = f.str()
		case 7:
			d.TemplateID = event.ID(f.varint)
		case 8:
			d.Extra = f.str()
		}
		return nil
	})
}

// EncodeRobotEvent is the inverse of DecodeRobotEvent. It is used to replay
// captured events and by the in-memory transport in tests.
func EncodeRobotEvent(r *event.Record) []byte {
	var b []byte
	b = appendMessage(b, 1, encodeRobot(&r.Robot))
	b = appendInt(b, 2, int64(r.Type))
	if ext := encodeExtendData(&r.ExtendData); ext != nil {
		b = appendMessage(b, 3, ext)
	}
	b = appendInt(b, 4, r.CreatedAt)
	b = appendString(b, 5, r.ID)
	return appendInt(b, 6, r.SendAt)
}

func encodeRobot(r *event.Robot) []byte {
	t := &r.Template
	var tb []byte
	tb = appendString(tb, 1, t.ID)
	tb = appendString(tb, 2, t.Name)
	tb = appendString(tb, 3, t.Desc)
	tb = appendString(tb, 4, t.Icon)
	for _, c := range t.Commands {
		var cb []byte
		cb = appendString(cb, 1, c.Name)
		cb = appendString(cb, 2, c.Desc)
		for _, p := range c.Params {
			cb = appendMessage(cb, 3, appendString(nil, 1, p.Desc))
		}
		tb = appendMessage(tb, 5, cb)
	}
	for _, s := range t.CustomSettings {
		tb = appendMessage(tb, 6, appendString(appendString(nil, 1, s.Name), 2, s.URL))
	}
	tb = appendBool(tb, 7, t.IsAllowedAddToOtherVilla)

	b := appendMessage(nil, 1, tb)
	return appendUint(b, 2, uint64(r.VillaID))
}

func encodeExtendData(d *event.ExtendData) []byte {
	var (
		num protowire.Number
		b   []byte
	)
	switch {
	case d.JoinVilla != nil:
		v := d.JoinVilla
		num = protowire.Number(event.TypeJoinVilla)
		b = appendUint(b, 1, uint64(v.JoinUID))
		b = appendString(b, 2, v.JoinUserNickname)
		b = appendInt(b, 3, v.JoinAt)
		b = appendUint(b, 4, uint64(v.VillaID))
	case d.SendMessage != nil:
		v := d.SendMessage
		num = protowire.Number(event.TypeSendMessage)
		b = appendString(b, 1, v.Content)
		b = appendUint(b, 2, uint64(v.FromUserID))
		b = appendInt(b, 3, v.SendAt)
		b = appendInt(b, 4, int64(v.ObjectName))
		b = appendUint(b, 5, uint64(v.RoomID))
		b = appendString(b, 6, v.Nickname)
		b = appendString(b, 7, v.MsgUID)
		b = appendString(b, 8, v.BotMsgID)
		b = appendUint(b, 9, uint64(v.VillaID))
		if q := v.QuoteMsg; q != nil {
			var qb []byte
			qb = appendString(qb, 1, q.Content)
			qb = appendString(qb, 2, q.MsgUID)
			qb = appendInt(qb, 3, q.SendAt)
			qb = appendString(qb, 4, q.MsgType)
			qb = appendString(qb, 5, q.BotMsgID)
			qb = appendUint(qb, 6, uint64(q.FromUserID))
			qb = appendString(qb, 7, q.FromUserIDStr)
			qb = appendString(qb, 8, q.FromUserNickname)
			b = appendMessage(b, 10, qb)
		}
	case d.CreateRobot != nil:
		num = protowire.Number(event.TypeCreateRobot)
		b = appendUint(b, 1, uint64(d.CreateRobot.VillaID))
	case d.DeleteRobot != nil:
		num = protowire.Number(event.TypeDeleteRobot)
		b = appendUint(b, 1, uint64(d.DeleteRobot.VillaID))
	case d.AddQuickEmoticon != nil:
		v := d.AddQuickEmoticon
		num = protowire.Number(event.TypeAddQuickEmoticon)
		b = appendUint(b, 1, uint64(v.VillaID))
		b = appendUint(b, 2, uint64(v.RoomID))
		b = appendUint(b, 3, uint64(v.UID))
		b = appendUint(b, 4, uint64(v.EmoticonID))
		b = appendString(b, 5, v.Emoticon)
		b = appendString(b, 6, v.MsgUID)
		b = appendBool(b, 7, v.IsCancel)
		b = appendString(b, 8, v.BotMsgID)
		b = appendUint(b, 9, uint64(v.EmoticonType))
	case d.AuditCallback != nil:
		v := d.AuditCallback
		num = protowire.Number(event.TypeAuditCallback)
		b = appendString(b, 1, v.AuditID)
		b = appendString(b, 2, v.BotTplID)
		b = appendUint(b, 3, uint64(v.VillaID))
		b = appendUint(b, 4, uint64(v.RoomID))
		b = appendUint(b, 5, uint64(v.UserID))
		b = appendString(b, 6, v.PassThrough)
		b = appendInt(b, 7, int64(v.AuditResult))
	case d.ClickMsgComponent != nil:
		v := d.ClickMsgComponent
		num = protowire.Number(event.TypeClickMsgComponent)
		b = appendUint(b, 1, uint64(v.VillaID))
		b = appendUint(b, 2, uint64(v.RoomID))
		b = appendString(b, 3, v.ComponentID)
		b = appendString(b, 4, v.MsgUID)
		b = appendUint(b, 5, uint64(v.UID))
		b = appendString(b, 6, v.BotMsgID)
		b = appendUint(b, 7, uint64(v.TemplateID))
		b = appendString(b, 8, v.Extra)
	default:
		return nil
	}
	return appendMessage(nil, num, b)
}
