// Package frame implements the binary envelope used on the Villa WebSocket
// connection.
//
// Layout (32-byte fixed header, little-endian):
//
//	[0-3]   magic       uint32 = 0xBABEFACE
//	[4-7]   total_len   uint32 (header_len + body length, counted from byte 8)
//	[8-11]  header_len  uint32 = 24
//	[12-19] id          uint64 (sequence id)
//	[20-23] flag        uint32
//	[24-27] biz_type    int32
//	[28-31] app_id      int32 = 104
//	[32-]   body
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/keepmind9/villabot/internal/villaerr"
)

const (
	Magic      uint32 = 0xBABEFACE
	HeaderLen         = 24
	HeaderSize        = 8 + HeaderLen
	AppID      int32  = 104
)

// Flag marks the direction of a frame.
type Flag uint32

const (
	FlagRequest  Flag = 1
	FlagResponse Flag = 2
)

// BizType identifies the payload carried in the body.
type BizType int32

const (
	BizUnknown       BizType = 0
	BizExchangeKey   BizType = 1
	BizHeartbeat     BizType = 2
	BizLogin         BizType = 3
	BizLogout        BizType = 4
	BizPExchangeKey  BizType = 5
	BizPHeartbeat    BizType = 6
	BizPLogin        BizType = 7
	BizPLogout       BizType = 8
	BizKickOff       BizType = 51
	BizShutdown      BizType = 52
	BizPKickOff      BizType = 53
	BizRoomEnter     BizType = 60
	BizRoomLeave     BizType = 61
	BizRoomClose     BizType = 62
	BizRoomMsg       BizType = 63
	BizEvent         BizType = 30001
)

var bizNames = map[BizType]string{
	BizUnknown:      "UNKNOWN",
	BizExchangeKey:  "EXCHANGE_KEY",
	BizHeartbeat:    "HEARTBEAT",
	BizLogin:        "LOGIN",
	BizLogout:       "LOGOUT",
	BizPExchangeKey: "P_EXCHANGE_KEY",
	BizPHeartbeat:   "P_HEARTBEAT",
	BizPLogin:       "P_LOGIN",
	BizPLogout:      "P_LOGOUT",
	BizKickOff:      "KICK_OFF",
	BizShutdown:     "SHUTDOWN",
	BizPKickOff:     "P_KICK_OFF",
	BizRoomEnter:    "ROOM_ENTER",
	BizRoomLeave:    "ROOM_LEAVE",
	BizRoomClose:    "ROOM_CLOSE",
	BizRoomMsg:      "ROOM_MSG",
	BizEvent:        "EVENT",
}

func (b BizType) String() string {
	if name, ok := bizNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BizType(%d)", int32(b))
}

// Frame is one decoded envelope.
type Frame struct {
	ID      uint64
	Flag    Flag
	BizType BizType
	AppID   int32
	Body    []byte
}

// New builds an outbound request frame for the fixed application id.
func New(id uint64, biz BizType, body []byte) Frame {
	return Frame{
		ID:      id,
		Flag:    FlagRequest,
		BizType: biz,
		AppID:   AppID,
		Body:    body,
	}
}

// Encode serialises f into a single byte slice.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderSize+len(f.Body))
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint32(out[4:8], uint32(HeaderLen+len(f.Body)))
	binary.LittleEndian.PutUint32(out[8:12], HeaderLen)
	binary.LittleEndian.PutUint64(out[12:20], f.ID)
	binary.LittleEndian.PutUint32(out[20:24], uint32(f.Flag))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.BizType))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.AppID))
	copy(out[HeaderSize:], f.Body)
	return out
}

// Decode parses one envelope. Bytes beyond the declared length are ignored.
func Decode(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes is shorter than the header", villaerr.ErrMalformedFrame, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		return Frame{}, fmt.Errorf("%w: bad magic %#x", villaerr.ErrMalformedFrame, magic)
	}
	totalLen := binary.LittleEndian.Uint32(data[4:8])
	if headerLen := binary.LittleEndian.Uint32(data[8:12]); headerLen != HeaderLen {
		return Frame{}, fmt.Errorf("%w: header length %d, want %d", villaerr.ErrMalformedFrame, headerLen, HeaderLen)
	}
	if totalLen < HeaderLen {
		return Frame{}, fmt.Errorf("%w: total length %d below header length", villaerr.ErrMalformedFrame, totalLen)
	}
	end := 8 + uint64(totalLen)
	if uint64(len(data)) < end {
		return Frame{}, fmt.Errorf("%w: declared %d bytes, have %d", villaerr.ErrMalformedFrame, end, len(data))
	}

	var body []byte
	if n := end - HeaderSize; n > 0 {
		body = make([]byte, n)
		copy(body, data[HeaderSize:end])
	}

	return Frame{
		ID:      binary.LittleEndian.Uint64(data[12:20]),
		Flag:    Flag(binary.LittleEndian.Uint32(data[20:24])),
		BizType: BizType(int32(binary.LittleEndian.Uint32(data[24:28]))),
		AppID:   int32(binary.LittleEndian.Uint32(data[28:32])),
		Body:    body,
	}, nil
}
