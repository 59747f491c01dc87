// Package payload encodes and decodes the protobuf bodies carried by
// frames: connection control messages and robot events.
package payload

import (
	"github.com/keepmind9/villabot/internal/frame"
)

// HeartBeat is sent every heartbeat interval on an active connection.
type HeartBeat struct {
	ClientTimestamp string // milliseconds
}

func (m HeartBeat) Marshal() []byte {
	return appendString(nil, 1, m.ClientTimestamp)
}

func (m *HeartBeat) Unmarshal(b []byte) error {
	*m = HeartBeat{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.ClientTimestamp = f.str()
		}
		return nil
	})
}

func (m HeartBeat) Frame(seq uint64) frame.Frame {
	return frame.New(seq, frame.BizPHeartbeat, m.Marshal())
}

type HeartBeatReply struct {
	Code            int32
	ServerTimestamp uint64
}

func (m HeartBeatReply) Marshal() []byte {
	b := appendInt(nil, 1, int64(m.Code))
	return appendUint(b, 2, m.ServerTimestamp)
}

func (m *HeartBeatReply) Unmarshal(b []byte) error {
	*m = HeartBeatReply{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.i32()
		case 2:
			m.ServerTimestamp = f.varint
		}
		return nil
	})
}

// Login authenticates a connection. Token is
// "<villa_id>.<derived secret>.<bot_id>".
type Login struct {
	UID      uint64
	Token    string
	Platform int32
	AppID    int32
	DeviceID string
	Region   string
	Meta     map[string]string
}

func (m Login) Marshal() []byte {
	b := appendUint(nil, 1, m.UID)
	b = appendString(b, 2, m.Token)
	b = appendInt(b, 3, int64(m.Platform))
	b = appendInt(b, 4, int64(m.AppID))
	b = appendString(b, 5, m.DeviceID)
	b = appendString(b, 6, m.Region)
	return appendStringMap(b, 7, m.Meta)
}

func (m *Login) Unmarshal(b []byte) error {
	*m = Login{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.UID = f.varint
		case 2:
			m.Token = f.str()
		case 3:
			m.Platform = f.i32()
		case 4:
			m.AppID = f.i32()
		case 5:
			m.DeviceID = f.str()
		case 6:
			m.Region = f.str()
		case 7:
			k, v, err := readMapEntry(f.bytes)
			if err != nil {
				return err
			}
			if m.Meta == nil {
				m.Meta = map[string]string{}
			}
			m.Meta[k] = v
		}
		return nil
	})
}

func (m Login) Frame(seq uint64) frame.Frame {
	return frame.New(seq, frame.BizPLogin, m.Marshal())
}

type LoginReply struct {
	Code            int32
	Msg             string
	ServerTimestamp uint64
	ConnID          uint64
}

func (m LoginReply) Marshal() []byte {
	b := appendInt(nil, 1, int64(m.Code))
	b = appendString(b, 2, m.Msg)
	b = appendUint(b, 3, m.ServerTimestamp)
	return appendUint(b, 4, m.ConnID)
}

func (m *LoginReply) Unmarshal(b []byte) error {
	*m = LoginReply{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.i32()
		case 2:
			m.Msg = f.str()
		case 3:
			m.ServerTimestamp = f.varint
		case 4:
			m.ConnID = f.varint
		}
		return nil
	})
}

type Logout struct {
	UID      uint64
	Platform int32
	AppID    int32
	DeviceID string
	Region   string
}

func (m Logout) Marshal() []byte {
	b := appendUint(nil, 1, m.UID)
	b = appendInt(b, 2, int64(m.Platform))
	b = appendInt(b, 3, int64(m.AppID))
	b = appendString(b, 4, m.DeviceID)
	return appendString(b, 5, m.Region)
}

func (m *Logout) Unmarshal(b []byte) error {
	*m = Logout{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.UID = f.varint
		case 2:
			m.Platform = f.i32()
		case 3:
			m.AppID = f.i32()
		case 4:
			m.DeviceID = f.str()
		case 5:
			m.Region = f.str()
		}
		return nil
	})
}

func (m Logout) Frame(seq uint64) frame.Frame {
	return frame.New(seq, frame.BizPLogout, m.Marshal())
}

type LogoutReply struct {
	Code   int32
	Msg    string
	ConnID uint64
}

func (m LogoutReply) Marshal() []byte {
	b := appendInt(nil, 1, int64(m.Code))
	b = appendString(b, 2, m.Msg)
	return appendUint(b, 3, m.ConnID)
}

func (m *LogoutReply) Unmarshal(b []byte) error {
	*m = LogoutReply{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.i32()
		case 2:
			m.Msg = f.str()
		case 3:
			m.ConnID = f.varint
		}
		return nil
	})
}

type CommonReply struct {
	Code int32
	Msg  string
}

func (m CommonReply) Marshal() []byte {
	b := appendInt(nil, 1, int64(m.Code))
	return appendString(b, 2, m.Msg)
}

func (m *CommonReply) Unmarshal(b []byte) error {
	*m = CommonReply{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.i32()
		case 2:
			m.Msg = f.str()
		}
		return nil
	})
}

// KickOff revokes the session. The connection must not be re-established.
type KickOff struct {
	Code   int32
	Reason string
}

func (m KickOff) Marshal() []byte {
	b := appendInt(nil, 1, int64(m.Code))
	return appendString(b, 2, m.Reason)
}

func (m *KickOff) Unmarshal(b []byte) error {
	*m = KickOff{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.i32()
		case 2:
			m.Reason = f.str()
		}
		return nil
	})
}

// Shutdown announces a server restart. The client reconnects.
type Shutdown struct{}

func (Shutdown) Marshal() []byte { return nil }
