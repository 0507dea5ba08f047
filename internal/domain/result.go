package domain

// GameResult is the raw callback payload from the external game server,
// persisted before any aggregation. (AppUID, CreateTS) is unique so replayed
// callbacks are no-ops.
type GameResult struct {
	ID int64 `db:"id" json:"-"`

	AppUID            string `db:"app_uid" json:"app_uid"`
	AppUserNickname   string `db:"app_user_nickname" json:"app_user_nickname"`
	AppUserAvatar     string `db:"app_user_avatar" json:"app_user_avatar"`
	AppAID            string `db:"app_aid" json:"app_aid"`
	AppAINickname     string `db:"app_ai_nickname" json:"app_ai_nickname"`
	AppAIAvatar       string `db:"app_ai_avatar" json:"app_ai_avatar"`
	AppRoomID         string `db:"app_room_id" json:"app_room_id"`
	AppGameIndex      string `db:"app_game_index" json:"app_game_index"`

	GameRegion string `db:"game_region" json:"game_region"`
	GameUID    string `db:"game_uid" json:"game_uid"`
	GameBID    string `db:"game_bid" json:"game_bid"`
	OrderID    string `db:"order_id" json:"order_id"`

	ResultType        string   `db:"result_type" json:"result_type"`
	ResultGameIdx     int      `db:"result_game_idx" json:"result_game_idx"`
	ResultWin         bool     `db:"result_win" json:"result_win"`
	ResultScreenshots []string `db:"result_screenshots" json:"result_screenshots,omitempty"`
	HasResult         bool     `db:"has_result" json:"has_result"`

	StatusCode int    `db:"status_code" json:"status_code"`
	TraceID    string `db:"trace_id" json:"trace_id"`
	CreateTS   int64  `db:"create_ts" json:"create_ts"`
}
