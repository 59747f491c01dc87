package api

import (
	"context"
	"fmt"
	"net/http"
)

// GetWebsocketInfo fetches the endpoint and login identity for a WebSocket
// connection. villaID is the bot's test villa.
func (c *Client) GetWebsocketInfo(ctx context.Context, villaID uint64) (*WebsocketInfo, error) {
	var info WebsocketInfo
	if err := c.Do(ctx, http.MethodGet, "getWebsocketInfo", villaID, nil, &info); err != nil {
		return nil, err
	}
	if info.WebsocketURL == "" {
		return nil, fmt.Errorf("getWebsocketInfo: empty websocket_url")
	}
	return &info, nil
}

// SendMessage posts msgContent, the JSON encoded content document, to a room
// and returns the bot message id.
func (c *Client) SendMessage(ctx context.Context, villaID, roomID uint64, objectName, msgContent string) (string, error) {
	body := map[string]any{
		"room_id":     roomID,
		"object_name": objectName,
		"msg_content": msgContent,
	}
	var out struct {
		BotMsgID string `json:"bot_msg_id"`
	}
	if err := c.Do(ctx, http.MethodPost, "sendMessage", villaID, body, &out); err != nil {
		return "", err
	}
	return out.BotMsgID, nil
}

func (c *Client) RecallMessage(ctx context.Context, villaID uint64, msgUID string, roomID uint64, msgTime int64) error {
	body := map[string]any{
		"msg_uid":  msgUID,
		"room_id":  roomID,
		"msg_time": msgTime,
	}
	return c.Do(ctx, http.MethodPost, "recallMessage", villaID, body, nil)
}

// PinMessage pins a message, or unpins it when cancel is set.
func (c *Client) PinMessage(ctx context.Context, villaID uint64, msgUID string, cancel bool, roomID uint64, sendAt int64) error {
	body := map[string]any{
		"msg_uid":   msgUID,
		"is_cancel": cancel,
		"room_id":   roomID,
		"send_at":   sendAt,
	}
	return c.Do(ctx, http.MethodPost, "pinMessage", villaID, body, nil)
}

func (c *Client) GetVilla(ctx context.Context, villaID uint64) (*Villa, error) {
	var out struct {
		Villa Villa `json:"villa"`
	}
	if err := c.Do(ctx, http.MethodGet, "getVilla", villaID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Villa, nil
}

func (c *Client) GetMember(ctx context.Context, villaID, uid uint64) (*Member, error) {
	var out struct {
		Member Member `json:"member"`
	}
	if err := c.Do(ctx, http.MethodGet, "getMember", villaID, map[string]any{"uid": uid}, &out); err != nil {
		return nil, err
	}
	return &out.Member, nil
}

func (c *Client) GetRoom(ctx context.Context, villaID, roomID uint64) (*Room, error) {
	var out struct {
		Room Room `json:"room"`
	}
	if err := c.Do(ctx, http.MethodGet, "getRoom", villaID, map[string]any{"room_id": roomID}, &out); err != nil {
		return nil, err
	}
	return &out.Room, nil
}

// GetAllEmoticons lists the platform emoticons. The call is not scoped to a
// villa.
func (c *Client) GetAllEmoticons(ctx context.Context) ([]Emoticon, error) {
	var out struct {
		List []Emoticon `json:"list"`
	}
	if err := c.Do(ctx, http.MethodGet, "getAllEmoticons", 0, nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

// CheckMemberBotAccessToken validates a token that a member obtained through
// a link with requires_bot_access_token set.
func (c *Client) CheckMemberBotAccessToken(ctx context.Context, villaID uint64, token string) (*CheckMemberBotAccessTokenResult, error) {
	var out CheckMemberBotAccessTokenResult
	if err := c.Do(ctx, http.MethodPost, "checkMemberBotAccessToken", villaID, map[string]any{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Audit submits content for moderation. The verdict arrives later as an
// AuditCallback event carrying passThrough.
func (c *Client) Audit(ctx context.Context, villaID uint64, content, passThrough string, roomID, uid uint64) (string, error) {
	body := map[string]any{
		"audit_content": content,
		"pass_through":  passThrough,
		"room_id":       roomID,
		"uid":           uid,
	}
	var out struct {
		AuditID string `json:"audit_id"`
	}
	if err := c.Do(ctx, http.MethodPost, "audit", villaID, body, &out); err != nil {
		return "", err
	}
	return out.AuditID, nil
}

// MemberName resolves a user's nickname for mention rendering.
func (c *Client) MemberName(ctx context.Context, villaID, userID uint64) (string, error) {
	m, err := c.GetMember(ctx, villaID, userID)
	if err != nil {
		return "", err
	}
	return m.Basic.Nickname, nil
}

// RoomName resolves a room's display name for room links.
func (c *Client) RoomName(ctx context.Context, villaID, roomID uint64) (string, error) {
	r, err := c.GetRoom(ctx, villaID, roomID)
	if err != nil {
		return "", err
	}
	return r.RoomName, nil
}
