package cache

import "fmt"

// Keys carry the deploy env so several deployments can share one redis.
type Keys struct {
	env string
}

func NewKeys(deployEnv string) Keys {
	return Keys{env: deployEnv}
}

func (k Keys) prefix() string {
	return "cg_ags_" + k.env
}

// TotalUserCnt counts all registered users.
func (k Keys) TotalUserCnt() string {
	return k.prefix() + "_total_user_cnt"
}

// UserDeviceID binds an account to its current device.
func (k Keys) UserDeviceID(account string) string {
	return fmt.Sprintf("%s_device_id_%s", k.prefix(), account)
}

// SMSCode stores the pending {msg_id, issued} pair for a phone number.
func (k Keys) SMSCode(phone string) string {
	return fmt.Sprintf("%s_sms_code_%s", k.prefix(), phone)
}

// SMSDailyTokens is the per-phone daily send bucket.
func (k Keys) SMSDailyTokens(phone string) string {
	return fmt.Sprintf("%s_user_%s_daily_tokens", k.prefix(), phone)
}

// UserOnline flags a user as online anywhere on the platform.
func (k Keys) UserOnline(uid string) string {
	return fmt.Sprintf("%s_user_%s_online", k.prefix(), uid)
}

// UserEnteredRoom points at the room the user is currently in.
func (k Keys) UserEnteredRoom(uid string) string {
	return fmt.Sprintf("%s_user_%s_entered_room", k.prefix(), uid)
}

// RoomOnlineUsers is the set of human users present in a room.
func (k Keys) RoomOnlineUsers(roomID string) string {
	return fmt.Sprintf("%s_room_%s_online_users", k.prefix(), roomID)
}

// RoomQueueUsers is the set of human users seated in a room's queue.
func (k Keys) RoomQueueUsers(roomID string) string {
	return fmt.Sprintf("%s_room_%s_in_game_queue_users", k.prefix(), roomID)
}

// RoomReadyUsers is the set of seated users that signalled readiness.
func (k Keys) RoomReadyUsers(roomID string) string {
	return fmt.Sprintf("%s_room_%s_in_game_queue_be_ready_users", k.prefix(), roomID)
}

// RoomQueueLock serialises every seat/ready/battle transition of a room.
func (k Keys) RoomQueueLock(roomID string) string {
	return fmt.Sprintf("%s_room_%s_game_queue_lock", k.prefix(), roomID)
}

// UserBackgroundTask keys the cancellable delayed tasks (101 queue kick,
// 102 battle shutdown).
func (k Keys) UserBackgroundTask(uid string, taskNo int) string {
	return fmt.Sprintf("%s_user_%s_background_%d_delay_task", k.prefix(), uid, taskNo)
}
