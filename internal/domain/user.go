package domain

type DeviceType int

const (
	DeviceTypeUnknown DeviceType = 0
	DeviceTypeIOS     DeviceType = 1
	DeviceTypeAndroid DeviceType = 2
)

type User struct {
	UID                string     `db:"uid" json:"uid"`
	Account            string     `db:"account" json:"account"`
	DeviceType         DeviceType `db:"device_type" json:"device_type"`
	DeviceID           string     `db:"device_id" json:"device_id"`
	PushRegistrationID string     `db:"push_registration_id" json:"push_registration_id"`
	Nickname           string     `db:"nickname" json:"nickname"`
	Gender             int        `db:"gender" json:"gender"`
	Avatar             string     `db:"avatar" json:"avatar"`
	Birthday           string     `db:"birthday" json:"birthday"`
	Age                int        `db:"age" json:"age"`
	CreateTS           int64      `db:"create_ts" json:"create_ts"`
	UpdateTS           int64      `db:"update_ts" json:"update_ts"`
	IsOnline           bool       `db:"is_online" json:"is_online"`
	IsDeleted          bool       `db:"is_deleted" json:"-"`
	DeleteReason       string     `db:"delete_reason" json:"-"`
}

type PersonalGameStats struct {
	UID            string  `db:"uid" json:"uid"`
	PlayCnt        int64   `db:"play_cnt" json:"play_cnt"`
	WinningPlayCnt int64   `db:"winning_play_cnt" json:"winning_play_cnt"`
	WinRate        float64 `db:"win_rate" json:"win_rate"`
}
