package message

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/keepmind9/villabot/pkg/constants"
)

// NameResolver looks up display names for mentions and room links that were
// built without one.
type NameResolver interface {
	MemberName(ctx context.Context, villaID, userID uint64) (string, error)
	RoomName(ctx context.Context, villaID, roomID uint64) (string, error)
}

// FromContentInfo decodes a wire content document into a Message. villaID is
// attached to decoded user mentions.
func FromContentInfo(ci *ContentInfo, villaID uint64) (Message, error) {
	msg := Message{}
	if ci.Quote != nil {
		msg = append(msg, Quote{
			MessageID: ci.Quote.QuotedMessageID,
			SentAt:    ci.Quote.QuotedMessageSendTime,
		})
	}

	switch {
	case ci.Content.Text != nil:
		tc := ci.Content.Text
		segs, err := decodeText(tc.Text, tc.Entities, villaID)
		if err != nil {
			return nil, err
		}
		msg = append(msg, segs...)
		for _, img := range tc.Images {
			msg = append(msg, imageSegment(img))
		}
		if tc.PreviewLink != nil {
			msg = append(msg, *tc.PreviewLink)
		}
		if tc.Badge != nil {
			msg = append(msg, *tc.Badge)
		}
	case ci.Content.Image != nil:
		msg = append(msg, imageSegment(*ci.Content.Image))
	case ci.Content.Post != nil:
		msg = append(msg, Post{PostID: ci.Content.Post.PostID})
	default:
		return nil, fmt.Errorf("%w: no content", villaerr.ErrMalformedContent)
	}

	if ci.Panel != nil {
		msg = append(msg, *ci.Panel)
	}
	return msg, nil
}

// decodeText splits text into segments along its entities. Offsets count
// UTF-16 code units. Mentions, links and unknown entities own their span and
// must not overlap; style entities may overlap freely and are flattened into
// runs carrying every style that covers them.
func decodeText(text string, entities []TextEntity, villaID uint64) (Message, error) {
	if len(entities) == 0 {
		return FromText(text), nil
	}

	units := toUTF16(text)
	var styles, owned []TextEntity
	cursor := 0

	for i, e := range entities {
		if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
			return nil, fmt.Errorf("%w: entity %d spans [%d,%d) of %d units",
				villaerr.ErrMalformedContent, i, e.Offset, e.Offset+e.Length, len(units))
		}
		if e.Entity.Type == EntityStyle {
			styles = append(styles, e)
			continue
		}
		if e.Offset < cursor {
			return nil, fmt.Errorf("%w: entity %d at offset %d overlaps previous span ending at %d",
				villaerr.ErrMalformedContent, i, e.Offset, cursor)
		}
		owned = append(owned, e)
		cursor = e.Offset + e.Length
	}

	msg := Message{}
	cursor = 0
	for _, e := range owned {
		msg = append(msg, styledRuns(units, cursor, e.Offset, styles)...)
		seg, err := entitySegment(e.Entity, fromUTF16(units[e.Offset:e.Offset+e.Length]), villaID)
		if err != nil {
			return nil, fmt.Errorf("entity at offset %d: %w", e.Offset, err)
		}
		msg = append(msg, seg)
		cursor = e.Offset + e.Length
	}
	msg = append(msg, styledRuns(units, cursor, len(units), styles)...)
	return msg, nil
}

// styledRuns returns units[lo:hi] as Text segments, cut wherever a style
// starts or ends.
func styledRuns(units []uint16, lo, hi int, styles []TextEntity) Message {
	if lo >= hi {
		return nil
	}

	cuts := []int{lo, hi}
	for _, st := range styles {
		for _, b := range []int{st.Offset, st.Offset + st.Length} {
			if b > lo && b < hi {
				cuts = append(cuts, b)
			}
		}
	}
	sort.Ints(cuts)

	var out Message
	for i := 1; i < len(cuts); i++ {
		from, to := cuts[i-1], cuts[i]
		if from == to {
			continue
		}
		t := Text{Content: fromUTF16(units[from:to])}
		for _, st := range styles {
			if st.Offset <= from && to <= st.Offset+st.Length {
				applyStyle(&t, st.Entity.FontStyle)
			}
		}
		out = append(out, t)
	}
	return out
}

func entitySegment(e Entity, span string, villaID uint64) (Segment, error) {
	switch e.Type {
	case EntityMentionedRobot:
		return MentionRobot{BotID: e.BotID, Name: displayName(span, "@")}, nil
	case EntityMentionedUser:
		uid, err := parseID("user_id", e.UserID)
		if err != nil {
			return nil, err
		}
		return MentionUser{UserID: uid, Name: displayName(span, "@"), VillaID: villaID}, nil
	case EntityMentionAll:
		return MentionAll{Label: displayName(span, "@")}, nil
	case EntityVillaRoomLink:
		vid, err := parseID("villa_id", e.VillaID)
		if err != nil {
			return nil, err
		}
		rid, err := parseID("room_id", e.RoomID)
		if err != nil {
			return nil, err
		}
		return RoomLink{VillaID: vid, RoomID: rid, Name: displayName(span, "#")}, nil
	case EntityLink:
		l := Link{URL: e.URL, Label: span}
		if e.RequiresBotAccessToken != nil {
			l.RequiresBotAccessToken = *e.RequiresBotAccessToken
		}
		return l, nil
	default:
		// Entity kinds added later by the platform keep their text.
		return Text{Content: span}, nil
	}
}

func displayName(span, prefix string) string {
	return strings.TrimRight(strings.TrimPrefix(span, prefix), " ")
}

func parseID(field, s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not numeric", villaerr.ErrMalformedContent, field, s)
	}
	return id, nil
}

func applyStyle(t *Text, style string) {
	switch style {
	case FontBold:
		t.Bold = true
	case FontItalic:
		t.Italic = true
	case FontStrikethrough:
		t.Strikethrough = true
	case FontUnderline:
		t.Underline = true
	}
}

func imageSegment(img ImageContent) Image {
	out := Image{URL: img.URL, FileSize: img.FileSize}
	if img.Size != nil {
		out.Width = img.Size.Width
		out.Height = img.Size.Height
	}
	return out
}

// encoder accumulates the text body and structural parts of an outbound
// message.
type encoder struct {
	text     strings.Builder
	offset   int
	entities []TextEntity

	mentionAll bool
	mentioned  []string
	seen       map[string]bool

	quote   *QuoteInfo
	images  []ImageContent
	post    *PostContent
	badge   *Badge
	preview *PreviewLink
	panel   *Panel
}

func (e *encoder) write(s string, entity *Entity) {
	n := utf16Len(s)
	if entity != nil && n > 0 {
		e.entities = append(e.entities, TextEntity{Offset: e.offset, Length: n, Entity: *entity})
	}
	e.text.WriteString(s)
	e.offset += n
}

func (e *encoder) mention(id string) {
	if e.seen == nil {
		e.seen = map[string]bool{}
	}
	if !e.seen[id] {
		e.seen[id] = true
		e.mentioned = append(e.mentioned, id)
	}
}

// ToContentInfo encodes msg for sendMessage. Mentions and room links without
// a name are resolved through resolver when it is non-nil, falling back to
// the numeric id.
func ToContentInfo(ctx context.Context, msg Message, resolver NameResolver) (*ContentInfo, error) {
	var e encoder

	for _, seg := range msg {
		switch s := seg.(type) {
		case Text:
			start := e.offset
			e.write(s.Content, nil)
			n := e.offset - start
			if n == 0 {
				continue
			}
			for _, style := range styles(s) {
				e.entities = append(e.entities, TextEntity{
					Offset: start,
					Length: n,
					Entity: Entity{Type: EntityStyle, FontStyle: style},
				})
			}
		case MentionUser:
			name := s.Name
			if name == "" {
				name = resolveMember(ctx, resolver, s)
			}
			uid := strconv.FormatUint(s.UserID, 10)
			e.write("@"+name+" ", &Entity{Type: EntityMentionedUser, UserID: uid})
			e.mention(uid)
		case MentionRobot:
			name := s.Name
			if name == "" {
				name = s.BotID
			}
			e.write("@"+name+" ", &Entity{Type: EntityMentionedRobot, BotID: s.BotID})
			e.mention(s.BotID)
		case MentionAll:
			label := s.Label
			if label == "" {
				label = constants.MentionAllLabel
			}
			e.write("@"+label+" ", &Entity{Type: EntityMentionAll})
			e.mentionAll = true
		case RoomLink:
			name := s.Name
			if name == "" {
				name = resolveRoom(ctx, resolver, s)
			}
			e.write("#"+name+" ", &Entity{
				Type:    EntityVillaRoomLink,
				VillaID: strconv.FormatUint(s.VillaID, 10),
				RoomID:  strconv.FormatUint(s.RoomID, 10),
			})
		case Link:
			label := s.Label
			if label == "" {
				label = s.URL
			}
			requires := s.RequiresBotAccessToken
			e.write(label, &Entity{Type: EntityLink, URL: s.URL, RequiresBotAccessToken: &requires})
		case Quote:
			e.quote = &QuoteInfo{
				QuotedMessageID:         s.MessageID,
				QuotedMessageSendTime:   s.SentAt,
				OriginalMessageID:       s.MessageID,
				OriginalMessageSendTime: s.SentAt,
			}
		case Image:
			img := ImageContent{URL: s.URL, FileSize: s.FileSize}
			if s.Width > 0 || s.Height > 0 {
				img.Size = &ImageSize{Width: s.Width, Height: s.Height}
			}
			e.images = append(e.images, img)
		case Post:
			e.post = &PostContent{PostID: s.PostID}
		case Badge:
			b := s
			e.badge = &b
		case PreviewLink:
			p := s
			e.preview = &p
		case Panel:
			p := s
			e.panel = &p
		default:
			return nil, fmt.Errorf("unsupported segment kind %q", seg.Kind())
		}
	}

	ci := &ContentInfo{Quote: e.quote, Panel: e.panel}
	if e.mentionAll || len(e.mentioned) > 0 {
		mi := &MentionedInfo{Type: MentionTypePart, UserIDList: e.mentioned}
		if e.mentionAll {
			mi.Type = MentionTypeAll
		}
		if mi.UserIDList == nil {
			mi.UserIDList = []string{}
		}
		ci.MentionedInfo = mi
	}

	text := e.text.String()
	if text != "" || len(e.entities) > 0 {
		ci.Content.Text = &TextContent{
			Text:        text,
			Entities:    e.entities,
			Images:      e.images,
			PreviewLink: e.preview,
			Badge:       e.badge,
		}
		return ci, nil
	}

	switch {
	case len(e.images) > 1:
		ci.Content.Text = &TextContent{
			Text:        constants.ZeroWidthSpace,
			Images:      e.images,
			PreviewLink: e.preview,
			Badge:       e.badge,
		}
	case len(e.images) == 1:
		img := e.images[0]
		ci.Content.Image = &img
	case e.post != nil:
		ci.Content.Post = e.post
	case e.badge != nil || e.preview != nil || e.panel != nil:
		ci.Content.Text = &TextContent{
			Text:        constants.ZeroWidthSpace,
			PreviewLink: e.preview,
			Badge:       e.badge,
		}
	default:
		return nil, villaerr.ErrEmptyMessage
	}
	return ci, nil
}

func styles(t Text) []string {
	var out []string
	if t.Bold {
		out = append(out, FontBold)
	}
	if t.Italic {
		out = append(out, FontItalic)
	}
	if t.Strikethrough {
		out = append(out, FontStrikethrough)
	}
	if t.Underline {
		out = append(out, FontUnderline)
	}
	return out
}

func resolveMember(ctx context.Context, resolver NameResolver, m MentionUser) string {
	if resolver != nil {
		if name, err := resolver.MemberName(ctx, m.VillaID, m.UserID); err == nil && name != "" {
			return name
		}
	}
	return strconv.FormatUint(m.UserID, 10)
}

func resolveRoom(ctx context.Context, resolver NameResolver, r RoomLink) string {
	if resolver != nil {
		if name, err := resolver.RoomName(ctx, r.VillaID, r.RoomID); err == nil && name != "" {
			return name
		}
	}
	return strconv.FormatUint(r.RoomID, 10)
}
