package domain

// InstalledGame is a game title the platform can host rooms for.
type InstalledGame struct {
	Index            string `db:"index" json:"index"`
	Name             string `db:"name" json:"name"`
	Icon             string `db:"icon" json:"icon"`
	MinOnlineUserCnt int    `db:"min_online_user_cnt" json:"min_online_user_cnt"`
	MaxOnlineUserCnt int    `db:"max_online_user_cnt" json:"max_online_user_cnt"`
}

// AIPlayer is an installed AI persona. The master owns its room; slaves are
// ordered within the room by SlaveNumber.
type AIPlayer struct {
	ID              string `db:"id" json:"id"`
	RoomID          string `db:"room_id" json:"room_id"`
	IsMaster        bool   `db:"is_master" json:"is_master"`
	SlaveNumber     int    `db:"slave_number" json:"slave_number"`
	Nickname        string `db:"nickname" json:"nickname"`
	Gender          int    `db:"gender" json:"gender"`
	Avatar          string `db:"avatar" json:"avatar"`
	GameIndex       string `db:"game_index" json:"game_index"`
	Tags            string `db:"tags" json:"tags"`
	State           int    `db:"state" json:"state"`
	BeHosting       bool   `db:"be_hosting" json:"be_hosting"`
	Installed       bool   `db:"installed" json:"installed"`
	BeHostingRoomID string `db:"be_hosting_room_id" json:"be_hosting_room_id,omitempty"`
}

// Room is a live installed room. The four *Cnt counters are denormalised:
// each equals AIPlayerCnt plus the number of live human state records on
// its axis, and is adjusted atomically with every state transition.
type Room struct {
	ID            string   `db:"id" json:"id"`
	GameIndex     string   `db:"game_index" json:"game_index"`
	Rule          string   `db:"rule" json:"rule"`
	Title         string   `db:"title" json:"title"`
	Announcement  string   `db:"announcement" json:"announcement"`
	Cover         string   `db:"cover" json:"cover"`
	OwnerID       string   `db:"owner_id" json:"owner_id"`
	OwnerNickname string   `db:"owner_nickname" json:"owner_nickname"`
	OwnerGender   int      `db:"owner_gender" json:"owner_gender"`
	OwnerAvatar   string   `db:"owner_avatar" json:"owner_avatar"`
	Assistants    []string `db:"assistants" json:"assistants"`
	Tags          string   `db:"tags" json:"tags"`

	CarryingCapacity int    `db:"carrying_capacity" json:"carrying_capacity"`
	QueueSymbol      string `db:"queue_symbol" json:"queue_symbol"`
	AIPlayerCnt      int    `db:"ai_player_cnt" json:"ai_player_cnt"`
	RankWeight       int    `db:"rank_weight" json:"rank_weight"`
	BeHosting        bool   `db:"be_hosting" json:"be_hosting"`

	OnlineUserCnt             int `db:"online_user_cnt" json:"online_user_cnt"`
	InGameQueueUserCnt        int `db:"in_game_queue_user_cnt" json:"in_game_queue_user_cnt"`
	InGameQueueBeReadyUserCnt int `db:"in_game_queue_be_ready_user_cnt" json:"in_game_queue_be_ready_user_cnt"`
	InGameBattleUserCnt       int `db:"in_game_battle_user_cnt" json:"in_game_battle_user_cnt"`

	UpdateTS int64 `db:"update_ts" json:"update_ts"`
}

// Per-axis room×user state records. Created lazily on first transition,
// updated in place, never deleted.
type RoomPresence struct {
	RoomID   string `db:"room_id" json:"room_id"`
	UserID   string `db:"user_id" json:"user_id"`
	Online   bool   `db:"online" json:"online"`
	UpdateTS int64  `db:"update_ts" json:"update_ts"`
}

type RoomSeat struct {
	RoomID      string `db:"room_id" json:"room_id"`
	UserID      string `db:"user_id" json:"user_id"`
	InGameQueue bool   `db:"in_game_queue" json:"in_game_queue"`
	XCoord      int    `db:"at_game_queue_x_coord" json:"at_game_queue_x_coord"`
	YCoord      int    `db:"at_game_queue_y_coord" json:"at_game_queue_y_coord"`
	FrozenTime  int64  `db:"frozen_time" json:"frozen_time"`
	UpdateTS    int64  `db:"update_ts" json:"update_ts"`
}

type RoomReady struct {
	RoomID   string `db:"room_id" json:"room_id"`
	UserID   string `db:"user_id" json:"user_id"`
	BeReady  bool   `db:"in_game_queue_be_ready" json:"in_game_queue_be_ready"`
	UpdateTS int64  `db:"update_ts" json:"update_ts"`
}

type RoomBattle struct {
	RoomID   string `db:"room_id" json:"room_id"`
	UserID   string `db:"user_id" json:"user_id"`
	InBattle bool   `db:"in_game_battle" json:"in_game_battle"`
	UpdateTS int64  `db:"update_ts" json:"update_ts"`
}
