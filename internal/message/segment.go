package message

import (
	"fmt"
	"strings"
)

// Kind names a segment variant.
type Kind string

const (
	KindText         Kind = "text"
	KindMentionUser  Kind = "mention_user"
	KindMentionRobot Kind = "mention_robot"
	KindMentionAll   Kind = "mention_all"
	KindRoomLink     Kind = "room_link"
	KindLink         Kind = "link"
	KindQuote        Kind = "quote"
	KindImage        Kind = "image"
	KindPost         Kind = "post"
	KindBadge        Kind = "badge"
	KindPreviewLink  Kind = "preview_link"
	KindPanel        Kind = "panel"
)

// Segment is one typed unit of a Message.
type Segment interface {
	Kind() Kind
	String() string
}

// Text is a run of plain or styled text.
type Text struct {
	Content       string `json:"text"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
}

func (Text) Kind() Kind { return KindText }

func (t Text) String() string { return t.Content }

// Styled reports whether any style flag is set.
func (t Text) Styled() bool {
	return t.Bold || t.Italic || t.Strikethrough || t.Underline
}

// MentionUser mentions a villa member. Name is optional on outbound
// messages and is resolved before sending when empty.
type MentionUser struct {
	UserID  uint64 `json:"user_id"`
	Name    string `json:"name,omitempty"`
	VillaID uint64 `json:"villa_id,omitempty"`
}

func (MentionUser) Kind() Kind { return KindMentionUser }

func (m MentionUser) String() string { return fmt.Sprintf("<mention_user:%d>", m.UserID) }

// MentionRobot mentions a bot by its bot id.
type MentionRobot struct {
	BotID string `json:"bot_id"`
	Name  string `json:"name,omitempty"`
}

func (MentionRobot) Kind() Kind { return KindMentionRobot }

func (m MentionRobot) String() string { return "<mention_robot:" + m.BotID + ">" }

// MentionAll mentions everyone in the room.
type MentionAll struct {
	Label string `json:"label,omitempty"`
}

func (MentionAll) Kind() Kind { return KindMentionAll }

func (MentionAll) String() string { return "<mention_all>" }

// RoomLink links to a room of a villa.
type RoomLink struct {
	VillaID uint64 `json:"villa_id"`
	RoomID  uint64 `json:"room_id"`
	Name    string `json:"name,omitempty"`
}

func (RoomLink) Kind() Kind { return KindRoomLink }

func (r RoomLink) String() string { return fmt.Sprintf("<room_link:%d:%d>", r.VillaID, r.RoomID) }

// Link is an external hyperlink rendered as Label.
type Link struct {
	URL                    string `json:"url"`
	Label                  string `json:"label,omitempty"`
	RequiresBotAccessToken bool   `json:"requires_bot_access_token,omitempty"`
}

func (Link) Kind() Kind { return KindLink }

func (l Link) String() string { return "<link:" + l.URL + ">" }

// Quote references an earlier message.
type Quote struct {
	MessageID string `json:"message_id"`
	SentAt    int64  `json:"sent_at"`
}

func (Quote) Kind() Kind { return KindQuote }

func (q Quote) String() string { return "<quote:" + q.MessageID + ">" }

// Image is a picture hosted by the platform. Zero sizes mean unknown.
type Image struct {
	URL      string `json:"url"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

func (Image) Kind() Kind { return KindImage }

func (i Image) String() string { return "<image:" + i.URL + ">" }

// Post shares a forum post.
type Post struct {
	PostID string `json:"post_id"`
}

func (Post) Kind() Kind { return KindPost }

func (p Post) String() string { return "<post:" + p.PostID + ">" }

// Badge is the small label shown under a message.
type Badge struct {
	IconURL string `json:"icon_url"`
	Text    string `json:"text"`
	URL     string `json:"url"`
}

func (Badge) Kind() Kind { return KindBadge }

func (b Badge) String() string { return "<badge:" + b.Text + ">" }

// PreviewLink is a link card shown under a message.
type PreviewLink struct {
	IconURL        string `json:"icon_url"`
	ImageURL       string `json:"image_url"`
	IsInternalLink bool   `json:"is_internal_link"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	URL            string `json:"url"`
	SourceName     string `json:"source_name"`
}

func (PreviewLink) Kind() Kind { return KindPreviewLink }

func (p PreviewLink) String() string { return "<preview_link:" + p.URL + ">" }

// Component is one interactive element of a Panel.
type Component struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Type         int    `json:"type"`
	NeedCallback bool   `json:"need_callback,omitempty"`
	Extra        string `json:"extra"`
	CType        int    `json:"c_type,omitempty"`
	Input        string `json:"input,omitempty"`
	Link         string `json:"link,omitempty"`
	NeedToken    bool   `json:"need_token,omitempty"`
}

// Panel is an interactive component panel, either a registered template or
// inline component groups.
type Panel struct {
	TemplateID int64         `json:"template_id,omitempty"`
	Small      [][]Component `json:"small_component_group_list,omitempty"`
	Mid        [][]Component `json:"mid_component_group_list,omitempty"`
	Big        [][]Component `json:"big_component_group_list,omitempty"`
}

func (Panel) Kind() Kind { return KindPanel }

func (p Panel) String() string {
	if p.TemplateID != 0 {
		return fmt.Sprintf("<panel:template=%d>", p.TemplateID)
	}
	var ids []string
	for _, groups := range [][][]Component{p.Small, p.Mid, p.Big} {
		for _, group := range groups {
			for _, c := range group {
				ids = append(ids, c.ID)
			}
		}
	}
	return "<panel:" + strings.Join(ids, ",") + ">"
}
