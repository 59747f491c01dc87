package message

import (
	"encoding/json"
	"strings"
)

// Message is an ordered list of segments. Order is rendering order.
type Message []Segment

// FromText returns a message holding a single Text segment.
func FromText(s string) Message {
	return Message{Text{Content: s}}
}

// Append returns m with segs added at the end.
func (m Message) Append(segs ...Segment) Message {
	return append(m, segs...)
}

// String renders the message for logs, with non-text segments as
// <kind:...> markers.
func (m Message) String() string {
	var sb strings.Builder
	for _, seg := range m {
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// PlainText concatenates the Text segments only.
func (m Message) PlainText() string {
	var sb strings.Builder
	for _, seg := range m {
		if t, ok := seg.(Text); ok {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

// Has reports whether any segment is of kind k.
func (m Message) Has(k Kind) bool {
	for _, seg := range m {
		if seg.Kind() == k {
			return true
		}
	}
	return false
}

// Only returns the segments of kind k.
func (m Message) Only(k Kind) Message {
	out := Message{}
	for _, seg := range m {
		if seg.Kind() == k {
			out = append(out, seg)
		}
	}
	return out
}

// Without returns the segments that are not of kind k.
func (m Message) Without(k Kind) Message {
	out := Message{}
	for _, seg := range m {
		if seg.Kind() != k {
			out = append(out, seg)
		}
	}
	return out
}

// Clone copies the segment list. Segments are values, except Panel whose
// component groups are shared.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	out := make(Message, len(m))
	copy(out, m)
	return out
}

type segmentJSON struct {
	Type Kind    `json:"type"`
	Data Segment `json:"data"`
}

// MarshalJSON writes the message as [{"type": kind, "data": {...}}].
func (m Message) MarshalJSON() ([]byte, error) {
	out := make([]segmentJSON, 0, len(m))
	for _, seg := range m {
		out = append(out, segmentJSON{Type: seg.Kind(), Data: seg})
	}
	return json.Marshal(out)
}
