package events

import "encoding/json"

// RoomEventType enumerates the user-state transitions published on the room
// event topic.
type RoomEventType int

const (
	EventTypeUnknown RoomEventType = iota
	EventTypeUserEnterRoom
	EventTypeUserLeaveRoom
	EventTypeUserEnterQueue
	EventTypeUserLeaveQueue
	EventTypeUserInQueueBeReady
	EventTypeUserInQueueNotBeReady
	EventTypeUserStart3rdPartyGame
	EventTypeUserEnd3rdPartyGame
)

func (t RoomEventType) String() string {
	switch t {
	case EventTypeUserEnterRoom:
		return "user_enter_room"
	case EventTypeUserLeaveRoom:
		return "user_leave_room"
	case EventTypeUserEnterQueue:
		return "user_enter_queue"
	case EventTypeUserLeaveQueue:
		return "user_leave_queue"
	case EventTypeUserInQueueBeReady:
		return "user_in_queue_be_ready"
	case EventTypeUserInQueueNotBeReady:
		return "user_in_queue_not_be_ready"
	case EventTypeUserStart3rdPartyGame:
		return "user_start_3rd_party_game"
	case EventTypeUserEnd3rdPartyGame:
		return "user_end_3rd_party_game"
	default:
		return "unknown"
	}
}

// RoomEventCommon carries the fields every room event shares.
type RoomEventCommon struct {
	RoomID        string `json:"room_id"`
	GameIndex     string `json:"game_index"`
	BeHosting     bool   `json:"be_hosting"`
	UID           string `json:"uid"`
	Nickname      string `json:"nickname"`
	Avatar        string `json:"avatar"`
	OwnerID       string `json:"owner_id"`
	OwnerNickname string `json:"owner_nickname"`
	OwnerAvatar   string `json:"owner_avatar"`
}

type EnterRoomEvent struct {
	RoomEventCommon
}

type LeaveRoomEvent struct {
	RoomEventCommon
}

type EnterQueueEvent struct {
	RoomEventCommon
	QueueIsFull bool `json:"queue_is_full"`
}

type LeaveQueueEvent struct {
	RoomEventCommon
	QueueIsFull bool `json:"queue_is_full"`
}

type InQueueBeReadyEvent struct {
	RoomEventCommon
	QueueIsReady bool `json:"queue_is_ready"`
}

type InQueueNotBeReadyEvent struct {
	RoomEventCommon
	QueueIsReady bool `json:"queue_is_ready"`
}

type Start3rdPartyGameEvent struct {
	RoomEventCommon
	QueueIsInGameBattle bool `json:"queue_is_in_game_battle"`
}

type End3rdPartyGameEvent struct {
	RoomEventCommon
	QueueIsInGameBattle bool `json:"queue_is_in_game_battle"`
}

// RoomEvent is the wire envelope: the typed body is serialised separately so
// consumers can dispatch on event_type before decoding.
type RoomEvent struct {
	EventType RoomEventType   `json:"event_type"`
	EventBody json.RawMessage `json:"event_body"`
	TraceID   string          `json:"trace_id"`
	Timestamp int64           `json:"timestamp"`
}

// GameResultMessage is published on the result topic after a callback from
// the external game server has been ingested.
type GameResultMessage struct {
	TraceID    string `json:"trace_id"`
	StatusCode int    `json:"status_code"`

	AppUserID         string `json:"app_user_id"`
	AppUserNickname   string `json:"app_user_nickname"`
	AppUserAvatar     string `json:"app_user_avatar"`
	AppAIPlayerID     string `json:"app_ai_player_id"`
	AppAIPlayerNickname string `json:"app_ai_player_nickname"`
	AppAIPlayerAvatar string `json:"app_ai_player_avatar"`
	AppRoomID         string `json:"app_room_id"`
	AppGameIndex      string `json:"app_game_index"`

	GameRegion string `json:"game_region"`
	GameUID    string `json:"game_uid"`
	GameBID    string `json:"game_bid"`
	OrderID    string `json:"order_id"`

	ResultType        string   `json:"result_type"`
	ResultGameIdx     int      `json:"result_game_idx"`
	ResultWin         bool     `json:"result_win"`
	ResultScreenshots []string `json:"result_screenshots,omitempty"`

	ReceiveTime int64 `json:"receive_time"`
}
