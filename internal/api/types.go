package api

import "github.com/keepmind9/villabot/internal/event"

// WebsocketInfo is the connection descriptor returned by getWebsocketInfo.
type WebsocketInfo struct {
	WebsocketURL string   `json:"websocket_url"`
	UID          event.ID `json:"uid"`
	AppID        int32    `json:"app_id"`
	Platform     int32    `json:"platform"`
	DeviceID     string   `json:"device_id"`
}

type Villa struct {
	VillaID        event.ID `json:"villa_id"`
	Name           string   `json:"name"`
	VillaAvatarURL string   `json:"villa_avatar_url"`
	OwnerUID       event.ID `json:"onwer_uid"`
	IsOfficial     bool     `json:"is_official"`
	Introduce      string   `json:"introduce"`
	CategoryID     event.ID `json:"category_id"`
	Tags           []string `json:"tags"`
}

type MemberBasic struct {
	UID       event.ID `json:"uid"`
	Nickname  string   `json:"nickname"`
	Introduce string   `json:"introduce"`
	AvatarURL string   `json:"avatar_url"`
}

type MemberRole struct {
	ID       event.ID `json:"id"`
	Name     string   `json:"name"`
	VillaID  event.ID `json:"villa_id"`
	Color    string   `json:"color"`
	RoleType string   `json:"role_type"`
}

type Member struct {
	Basic      MemberBasic  `json:"basic"`
	RoleIDList []event.ID   `json:"role_id_list"`
	JoinedAt   event.ID     `json:"joined_at"`
	RoleList   []MemberRole `json:"role_list"`
}

type SendMsgAuthRange struct {
	IsAllSendMsg bool       `json:"is_all_send_msg"`
	Roles        []event.ID `json:"roles"`
}

type Room struct {
	RoomID                event.ID         `json:"room_id"`
	RoomName              string           `json:"room_name"`
	RoomType              string           `json:"room_type"`
	GroupID               event.ID         `json:"group_id"`
	RoomDefaultNotifyType string           `json:"room_default_notify_type"`
	SendMsgAuthRange      SendMsgAuthRange `json:"send_msg_auth_range"`
}

type Emoticon struct {
	EmoticonID   event.ID `json:"emoticon_id"`
	DescribeText string   `json:"describe_text"`
	Icon         string   `json:"icon"`
}

// MemberAccessInfo describes a member bot access token that passed the check.
type MemberAccessInfo struct {
	UID               event.ID `json:"uid"`
	VillaID           event.ID `json:"villa_id"`
	MemberAccessToken string   `json:"member_access_token"`
	BotTplID          string   `json:"bot_tpl_id"`
}

type CheckMemberBotAccessTokenResult struct {
	AccessInfo MemberAccessInfo `json:"access_info"`
	Member     Member           `json:"member"`
}
