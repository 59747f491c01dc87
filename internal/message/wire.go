package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keepmind9/villabot/internal/villaerr"
)

// EntityType tags a text entity.
type EntityType string

const (
	EntityMentionedRobot EntityType = "mentioned_robot"
	EntityMentionedUser  EntityType = "mentioned_user"
	EntityMentionAll     EntityType = "mention_all"
	EntityVillaRoomLink  EntityType = "villa_room_link"
	EntityLink           EntityType = "link"
	EntityStyle          EntityType = "style"
)

// FontStyle values carried by style entities.
const (
	FontBold          = "bold"
	FontItalic        = "italic"
	FontStrikethrough = "strikethrough"
	FontUnderline     = "underline"
)

// MentionType is the mentionedInfo.type value.
type MentionType int

const (
	MentionTypeAll  MentionType = 1
	MentionTypePart MentionType = 2
)

// Object names accepted by sendMessage.
const (
	ObjectText  = "MHY:Text"
	ObjectImage = "MHY:Image"
	ObjectPost  = "MHY:Post"
)

// ContentInfo is the JSON document carried in the content field of a
// message event and posted to sendMessage.
type ContentInfo struct {
	Content       Content        `json:"content"`
	MentionedInfo *MentionedInfo `json:"mentionedInfo,omitempty"`
	Quote         *QuoteInfo     `json:"quote,omitempty"`
	Panel         *Panel         `json:"panel,omitempty"`
}

// Content holds exactly one of the three content shapes.
type Content struct {
	Text  *TextContent
	Image *ImageContent
	Post  *PostContent
}

type TextContent struct {
	Text        string         `json:"text"`
	Entities    []TextEntity   `json:"entities"`
	Images      []ImageContent `json:"images,omitempty"`
	PreviewLink *PreviewLink   `json:"preview_link,omitempty"`
	Badge       *Badge         `json:"badge,omitempty"`
}

type TextEntity struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Entity Entity `json:"entity"`
}

// Entity is the flattened tagged union of entity payloads. Only the fields
// of Type are set.
type Entity struct {
	Type                   EntityType `json:"type"`
	BotID                  string     `json:"bot_id,omitempty"`
	UserID                 string     `json:"user_id,omitempty"`
	VillaID                string     `json:"villa_id,omitempty"`
	RoomID                 string     `json:"room_id,omitempty"`
	URL                    string     `json:"url,omitempty"`
	RequiresBotAccessToken *bool      `json:"requires_bot_access_token,omitempty"`
	FontStyle              string     `json:"font_style,omitempty"`
}

type ImageSize struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

type ImageContent struct {
	URL      string     `json:"url"`
	Size     *ImageSize `json:"size,omitempty"`
	FileSize int64      `json:"file_size,omitempty"`
}

type PostContent struct {
	PostID string `json:"post_id"`
}

type MentionedInfo struct {
	Type       MentionType `json:"type"`
	UserIDList []string    `json:"userIdList"`
}

type QuoteInfo struct {
	QuotedMessageID         string `json:"quoted_message_id"`
	QuotedMessageSendTime   int64  `json:"quoted_message_send_time"`
	OriginalMessageID       string `json:"original_message_id"`
	OriginalMessageSendTime int64  `json:"original_message_send_time"`
}

// MarshalJSON writes whichever content shape is set.
func (c Content) MarshalJSON() ([]byte, error) {
	switch {
	case c.Text != nil:
		t := *c.Text
		if t.Entities == nil {
			t.Entities = []TextEntity{}
		}
		return json.Marshal(t)
	case c.Image != nil:
		return json.Marshal(c.Image)
	case c.Post != nil:
		return json.Marshal(c.Post)
	default:
		return nil, fmt.Errorf("content: %w", villaerr.ErrEmptyMessage)
	}
}

// UnmarshalJSON picks the content shape from the keys present: text wins,
// then post_id, then url.
func (c *Content) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*c = Content{}
	switch {
	case keys["text"] != nil:
		c.Text = &TextContent{}
		return json.Unmarshal(data, c.Text)
	case keys["post_id"] != nil:
		c.Post = &PostContent{}
		return json.Unmarshal(data, c.Post)
	case keys["url"] != nil:
		c.Image = &ImageContent{}
		return json.Unmarshal(data, c.Image)
	}
	return fmt.Errorf("%w: content has no text, post_id or url", villaerr.ErrMalformedContent)
}

// ObjectName returns the sendMessage object_name for the content shape.
func (ci *ContentInfo) ObjectName() string {
	switch {
	case ci.Content.Image != nil:
		return ObjectImage
	case ci.Content.Post != nil:
		return ObjectPost
	default:
		return ObjectText
	}
}

// ParseContentInfo reads the content JSON string of a message event. Extra
// keys such as user and trace are ignored.
func ParseContentInfo(data []byte) (*ContentInfo, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content", villaerr.ErrMalformedContent)
	}
	var ci ContentInfo
	if err := json.Unmarshal(data, &ci); err != nil {
		if errors.Is(err, villaerr.ErrMalformedContent) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", villaerr.ErrMalformedContent, err)
	}
	return &ci, nil
}
