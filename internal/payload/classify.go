package payload

import (
	"fmt"

	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/frame"
	"github.com/keepmind9/villabot/internal/villaerr"
)

// Inbound is a classified frame: one of *HeartBeatReply, *LoginReply,
// *LogoutReply, *KickOff, *Shutdown or *EventFrame.
type Inbound interface {
	isInbound()
}

func (*HeartBeatReply) isInbound() {}
func (*LoginReply) isInbound() {}
func (*LogoutReply) isInbound() {}
func (*KickOff) isInbound() {}
func (*Shutdown) isInbound() {}
func (*EventFrame) isInbound() {}

// EventFrame is a decoded and classified EVENT frame.
type EventFrame struct {
	Record *event.Record
	Event  event.Event
}

type unmarshaler interface {
	Unmarshal([]byte) error
}

func decodeControl(f frame.Frame, m unmarshaler) error {
	if err := m.Unmarshal(f.Body); err != nil {
		return fmt.Errorf("%w: %s body: %v", villaerr.ErrMalformedFrame, f.BizType, err)
	}
	return nil
}

// Classify decodes the body of f according to its biz type.
//
// Heartbeat and login replies with a non-zero code are reported as
// *villaerr.ProtocolError. Logout replies and kick-offs are returned as
// values whatever their code so the caller can finish teardown. Undecodable
// control bodies fail with ErrMalformedFrame; event bodies that cannot be
// classified fail with ErrMalformedContent or ErrUnknownEventType. Any other
// biz type fails with ErrUnrecognizedFrame.
func Classify(f frame.Frame) (Inbound, error) {
	switch f.BizType {
	case frame.BizPHeartbeat, frame.BizHeartbeat:
		var m HeartBeatReply
		if err := decodeControl(f, &m); err != nil {
			return nil, err
		}
		if m.Code != 0 {
			return nil, villaerr.NewProtocolError("heartbeat", int(m.Code), "")
		}
		return &m, nil

	case frame.BizPLogin, frame.BizLogin:
		var m LoginReply
		if err := decodeControl(f, &m); err != nil {
			return nil, err
		}
		if m.Code != 0 {
			return nil, villaerr.NewProtocolError("login", int(m.Code), m.Msg)
		}
		return &m, nil

	case frame.BizPLogout, frame.BizLogout:
		var m LogoutReply
		if err := decodeControl(f, &m); err != nil {
			return nil, err
		}
		return &m, nil

	case frame.BizKickOff, frame.BizPKickOff:
		var m KickOff
		if err := decodeControl(f, &m); err != nil {
			return nil, err
		}
		return &m, nil

	case frame.BizShutdown:
		return &Shutdown{}, nil

	case frame.BizEvent:
		rec, err := DecodeRobotEvent(f.Body)
		if err != nil {
			return nil, err
		}
		ev, err := event.Classify(rec.Type, rec)
		if err != nil {
			return nil, err
		}
		return &EventFrame{Record: rec, Event: ev}, nil
	}

	return nil, fmt.Errorf("%w: biz type %s", villaerr.ErrUnrecognizedFrame, f.BizType)
}
