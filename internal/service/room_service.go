package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/domain"
	"companion_gateway/internal/events"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	roomLockTTL    = 2 * time.Second
	freezeDuration = 300 * time.Second

	txRetries    = 3
	txRetryDelay = 100 * time.Millisecond
)

const (
	upsertPresenceSQL = `INSERT INTO room_presence (room_id, user_id, online, update_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO UPDATE SET online = $3, update_ts = $4`

	upsertReadySQL = `INSERT INTO room_ready (room_id, user_id, in_game_queue_be_ready, update_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO UPDATE SET in_game_queue_be_ready = $3, update_ts = $4`

	upsertBattleSQL = `INSERT INTO room_battle (room_id, user_id, in_game_battle, update_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO UPDATE SET in_game_battle = $3, update_ts = $4`
)

// RoomService is the room lifecycle engine: four orthogonal per-user state
// axes (presence, seat, ready, battle) driven under a room-scoped
// distributed lock, inside a store transaction, with the room's denormalised
// counters adjusted atomically alongside every state record write. Every
// applied transition emits exactly one room event; filtered no-ops emit
// nothing.
type RoomService struct {
	db        *pgxpool.Pool
	cache     *cache.Client
	lock      *cache.Redlock
	producer  *events.Producer
	rooms     *repository.RoomRepository
	states    *repository.StateRepository
	installs  *repository.InstallRepository
	users     *repository.UserRepository
	scheduler *TimeoutScheduler

	queueKickAfter     time.Duration
	battleShutoffAfter time.Duration
	hostedPrefill      map[string]bool
}

type RoomServiceConfig struct {
	QueueKickAfter       time.Duration
	BattleShutoffAfter   time.Duration
	HostedPrefillRoomIDs []string
}

func NewRoomService(
	db *pgxpool.Pool,
	c *cache.Client,
	lock *cache.Redlock,
	producer *events.Producer,
	scheduler *TimeoutScheduler,
	cfg RoomServiceConfig,
) *RoomService {
	hosted := make(map[string]bool, len(cfg.HostedPrefillRoomIDs))
	for _, id := range cfg.HostedPrefillRoomIDs {
		hosted[id] = true
	}
	return &RoomService{
		db:                 db,
		cache:              c,
		lock:               lock,
		producer:           producer,
		rooms:              repository.NewRoomRepository(db),
		states:             repository.NewStateRepository(db),
		installs:           repository.NewInstallRepository(db),
		users:              repository.NewUserRepository(db),
		scheduler:          scheduler,
		queueKickAfter:     cfg.QueueKickAfter,
		battleShutoffAfter: cfg.BattleShutoffAfter,
		hostedPrefill:      hosted,
	}
}

// withRoomLock serialises all mutating transitions of one room.
func (s *RoomService) withRoomLock(ctx context.Context, roomID string, fn func(context.Context) error) error {
	lock, err := s.lock.Acquire(ctx, s.cache.Keys().RoomQueueLock(roomID), roomLockTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.lock.Release(relCtx, lock)
	}()
	return fn(ctx)
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure / deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// inTx runs fn in a transaction, retrying concurrent-write failures a few
// times. The retry window stays well inside the room lock's ttl.
func (s *RoomService) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryableTxError(err) {
				lastErr = err
				time.Sleep(txRetryDelay)
				continue
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if isRetryableTxError(err) {
				lastErr = err
				time.Sleep(txRetryDelay)
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func eventCommon(room *domain.Room, user *domain.User) events.RoomEventCommon {
	return events.RoomEventCommon{
		RoomID:        room.ID,
		GameIndex:     room.GameIndex,
		BeHosting:     room.BeHosting,
		UID:           user.UID,
		Nickname:      user.Nickname,
		Avatar:        user.Avatar,
		OwnerID:       room.OwnerID,
		OwnerNickname: room.OwnerNickname,
		OwnerAvatar:   room.OwnerAvatar,
	}
}

func (s *RoomService) emit(ctx context.Context, room *domain.Room, eventType events.RoomEventType, body any) string {
	traceID := uuid.NewString()
	// Publish failures are alarmed inside the producer; the committed
	// transition stays authoritative either way.
	_ = s.producer.SendRoomEvent(ctx, room.ID, traceID, eventType, body)
	return traceID
}

// TransitionResult reports one applied (or filtered) transition.
type TransitionResult struct {
	Room     *domain.Room `json:"room,omitempty"`
	Filtered bool         `json:"filtered"`
	// QueueIsFull is set on sit: this seat filled the queue.
	QueueIsFull bool `json:"queue_is_full,omitempty"`
	// AllReady is set on ready: this call completed the ready set.
	AllReady bool `json:"all_ready,omitempty"`
	// AllInBattle is set on battle start: this call completed the battle set.
	AllInBattle bool `json:"all_in_battle,omitempty"`
}

// EnterRoom marks the user present. Already-present users are filtered.
func (s *RoomService) EnterRoom(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var online bool
			err = tx.QueryRow(ctx,
				`SELECT online FROM room_presence WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&online)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if err == nil && online {
				res.Filtered = true
				return nil
			}

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertPresenceSQL, roomID, user.UID, true, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET online_user_cnt = online_user_cnt + 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.OnlineUserCnt++
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		keys := s.cache.Keys()
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.SAdd(ctx, keys.RoomOnlineUsers(roomID), user.UID) })
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.SetString(ctx, keys.UserEnteredRoom(user.UID), roomID, 0) })
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.SetString(ctx, keys.UserOnline(user.UID), "1", 0) })

		s.emit(ctx, room, events.EventTypeUserEnterRoom, events.EnterRoomEvent{RoomEventCommon: eventCommon(room, user)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LeaveRoom marks the user absent. Users that were never present are
// filtered.
func (s *RoomService) LeaveRoom(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var online bool
			err = tx.QueryRow(ctx,
				`SELECT online FROM room_presence WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&online)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !online) {
				res.Filtered = true
				return nil
			}
			if err != nil {
				return err
			}

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertPresenceSQL, roomID, user.UID, false, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET online_user_cnt = online_user_cnt - 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.OnlineUserCnt--
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		keys := s.cache.Keys()
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.SRem(ctx, keys.RoomOnlineUsers(roomID), user.UID) })
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.Delete(ctx, keys.UserEnteredRoom(user.UID)) })
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.Delete(ctx, keys.UserOnline(user.UID)) })

		s.emit(ctx, room, events.EventTypeUserLeaveRoom, events.LeaveRoomEvent{RoomEventCommon: eventCommon(room, user)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Sit seats the user at (x, y). Rejections: InvalidSeat (outside the grid),
// Frozen (cooldown from a forced kick), QueueFull, SeatOccupied. Re-sitting
// while already seated is filtered.
func (s *RoomService) Sit(ctx context.Context, user *domain.User, roomID string, x, y int) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			shape, err := ParseQueueSymbol(room.QueueSymbol)
			if err != nil {
				return err
			}
			if !shape.Contains(x, y) {
				return errInvalidSeat()
			}

			var (
				inQueue    bool
				frozenTime int64
			)
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue, frozen_time FROM room_seat WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inQueue, &frozenTime)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if inQueue {
				res.Filtered = true
				return nil
			}

			now := time.Now().Unix()
			if frozenTime > now {
				return errFrozen(frozenTime - now)
			}

			var occupied bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM room_seat
				  WHERE room_id = $1 AND in_game_queue
				    AND at_game_queue_x_coord = $2 AND at_game_queue_y_coord = $3
				    AND user_id <> $4)`,
				roomID, x, y, user.UID,
			).Scan(&occupied); err != nil {
				return err
			}
			if occupied {
				return errSeatOccupied()
			}
			if room.InGameQueueUserCnt >= room.CarryingCapacity {
				return errQueueFull()
			}

			if _, err := tx.Exec(ctx,
				`INSERT INTO room_seat (room_id, user_id, in_game_queue, at_game_queue_x_coord, at_game_queue_y_coord, frozen_time, update_ts)
				 VALUES ($1, $2, TRUE, $3, $4, 0, $5)
				 ON CONFLICT (room_id, user_id) DO UPDATE SET
					in_game_queue = TRUE,
					at_game_queue_x_coord = $3,
					at_game_queue_y_coord = $4,
					update_ts = $5`,
				roomID, user.UID, x, y, now,
			); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_queue_user_cnt = in_game_queue_user_cnt + 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameQueueUserCnt++
			res.QueueIsFull = room.InGameQueueUserCnt >= room.CarryingCapacity
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		s.mirror(ctx, func(ctx context.Context) error {
			return s.cache.SAdd(ctx, s.cache.Keys().RoomQueueUsers(roomID), user.UID)
		})
		s.scheduleQueueKick(ctx, user, roomID)

		s.emit(ctx, room, events.EventTypeUserEnterQueue, events.EnterQueueEvent{
			RoomEventCommon: eventCommon(room, user),
			QueueIsFull:     res.QueueIsFull,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Stand removes the user from the queue. A voluntary stand is rejected while
// the user is in battle; a forced kick freezes the seat for five minutes.
// Readiness is cleared together with the seat so the ready set never
// outlives it.
func (s *RoomService) Stand(ctx context.Context, user *domain.User, roomID string, forced bool) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var (
			room     *domain.Room
			wasReady bool
		)
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var inQueue bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue FROM room_seat WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inQueue)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !inQueue) {
				res.Filtered = true
				return nil
			}
			if err != nil {
				return err
			}

			var inBattle bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_battle FROM room_battle WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inBattle)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if inBattle {
				if forced {
					// The battle shutdown task owns this user now.
					res.Filtered = true
					return nil
				}
				return errInBattle()
			}

			err = tx.QueryRow(ctx,
				`SELECT in_game_queue_be_ready FROM room_ready WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&wasReady)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}

			now := time.Now().Unix()
			frozenUntil := int64(0)
			if forced {
				frozenUntil = now + int64(freezeDuration.Seconds())
			}
			if _, err := tx.Exec(ctx,
				`UPDATE room_seat SET in_game_queue = FALSE, frozen_time = $1, update_ts = $2
				 WHERE room_id = $3 AND user_id = $4`,
				frozenUntil, now, roomID, user.UID,
			); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_queue_user_cnt = in_game_queue_user_cnt - 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameQueueUserCnt--

			if wasReady {
				if _, err := tx.Exec(ctx, upsertReadySQL, roomID, user.UID, false, now); err != nil {
					return err
				}
				if _, err := tx.Exec(ctx,
					`UPDATE installed_rooms SET in_game_queue_be_ready_user_cnt = in_game_queue_be_ready_user_cnt - 1 WHERE id = $1`,
					roomID,
				); err != nil {
					return err
				}
				room.InGameQueueBeReadyUserCnt--
			}
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		keys := s.cache.Keys()
		s.mirror(ctx, func(ctx context.Context) error { return s.cache.SRem(ctx, keys.RoomQueueUsers(roomID), user.UID) })
		if wasReady {
			s.mirror(ctx, func(ctx context.Context) error { return s.cache.SRem(ctx, keys.RoomReadyUsers(roomID), user.UID) })
		}
		s.scheduler.Cancel(ctx, user.UID, TaskQueueKick)

		s.emit(ctx, room, events.EventTypeUserLeaveQueue, events.LeaveQueueEvent{
			RoomEventCommon: eventCommon(room, user),
			QueueIsFull:     false,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ready marks a seated user ready. The call that completes the ready set
// reports AllReady so the handler can launch the downstream game.
func (s *RoomService) Ready(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var inQueue bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue FROM room_seat WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inQueue)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !inQueue) {
				return errNotSeated()
			}
			if err != nil {
				return err
			}

			var ready bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue_be_ready FROM room_ready WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&ready)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if ready {
				res.Filtered = true
				return nil
			}

			// Checked before the increment: this transition is the one
			// completing the ready set.
			res.AllReady = room.CarryingCapacity-room.InGameQueueBeReadyUserCnt == 1

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertReadySQL, roomID, user.UID, true, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_queue_be_ready_user_cnt = in_game_queue_be_ready_user_cnt + 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameQueueBeReadyUserCnt++
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		s.mirror(ctx, func(ctx context.Context) error {
			return s.cache.SAdd(ctx, s.cache.Keys().RoomReadyUsers(roomID), user.UID)
		})

		s.emit(ctx, room, events.EventTypeUserInQueueBeReady, events.InQueueBeReadyEvent{
			RoomEventCommon: eventCommon(room, user),
			QueueIsReady:    res.AllReady,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unready clears readiness. Rejected while in battle; filtered when the user
// was never ready.
func (s *RoomService) Unready(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var inBattle bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_battle FROM room_battle WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inBattle)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if inBattle {
				return errInBattle()
			}

			var ready bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue_be_ready FROM room_ready WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&ready)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !ready) {
				res.Filtered = true
				return nil
			}
			if err != nil {
				return err
			}

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertReadySQL, roomID, user.UID, false, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_queue_be_ready_user_cnt = in_game_queue_be_ready_user_cnt - 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameQueueBeReadyUserCnt--
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		s.mirror(ctx, func(ctx context.Context) error {
			return s.cache.SRem(ctx, s.cache.Keys().RoomReadyUsers(roomID), user.UID)
		})

		s.emit(ctx, room, events.EventTypeUserInQueueNotBeReady, events.InQueueNotBeReadyEvent{
			RoomEventCommon: eventCommon(room, user),
			QueueIsReady:    false,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// StartBattle moves a seated user into the third-party game. Already
// in-battle users are filtered. The completing call reports AllInBattle.
func (s *RoomService) StartBattle(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var inBattle bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_battle FROM room_battle WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inBattle)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if inBattle {
				res.Filtered = true
				return nil
			}

			var inQueue bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_queue FROM room_seat WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inQueue)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !inQueue) {
				return errNotSeated()
			}
			if err != nil {
				return err
			}

			res.AllInBattle = room.CarryingCapacity-room.InGameBattleUserCnt == 1

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertBattleSQL, roomID, user.UID, true, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_battle_user_cnt = in_game_battle_user_cnt + 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameBattleUserCnt++
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		// A user inside the game is no longer subject to the queue kick.
		s.scheduler.Cancel(ctx, user.UID, TaskQueueKick)
		s.scheduleBattleShutoff(ctx, user, roomID)

		s.emit(ctx, room, events.EventTypeUserStart3rdPartyGame, events.Start3rdPartyGameEvent{
			RoomEventCommon:     eventCommon(room, user),
			QueueIsInGameBattle: res.AllInBattle,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EndBattle moves the user back out of the third-party game. Users that
// never entered a battle are filtered.
func (s *RoomService) EndBattle(ctx context.Context, user *domain.User, roomID string) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		var room *domain.Room
		if err := s.inTx(ctx, func(tx pgx.Tx) error {
			r, err := repository.GetRoomForUpdate(ctx, tx, roomID)
			if err != nil {
				return err
			}
			room = r

			var inBattle bool
			err = tx.QueryRow(ctx,
				`SELECT in_game_battle FROM room_battle WHERE room_id = $1 AND user_id = $2`,
				roomID, user.UID,
			).Scan(&inBattle)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !inBattle) {
				res.Filtered = true
				return nil
			}
			if err != nil {
				return err
			}

			now := time.Now().Unix()
			if _, err := tx.Exec(ctx, upsertBattleSQL, roomID, user.UID, false, now); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE installed_rooms SET in_game_battle_user_cnt = in_game_battle_user_cnt - 1, update_ts = $1 WHERE id = $2`,
				now, roomID,
			); err != nil {
				return err
			}
			room.InGameBattleUserCnt--
			return nil
		}); err != nil {
			return err
		}
		res.Room = room
		if res.Filtered {
			return nil
		}

		s.scheduler.Cancel(ctx, user.UID, TaskBattleShutdown)

		s.emit(ctx, room, events.EventTypeUserEnd3rdPartyGame, events.End3rdPartyGameEvent{
			RoomEventCommon:     eventCommon(room, user),
			QueueIsInGameBattle: false,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// scheduleQueueKick arms the forced stand for a seated user.
func (s *RoomService) scheduleQueueKick(ctx context.Context, user *domain.User, roomID string) {
	u := *user
	s.scheduler.Schedule(ctx, user.UID, TaskQueueKick, s.queueKickAfter, func(ctx context.Context) {
		if _, err := s.Stand(ctx, &u, roomID, true); err != nil {
			logger.Error("forced queue kick failed", "uid", u.UID, "room_id", roomID, "error", err)
		}
	})
}

// scheduleBattleShutoff arms the forced battle end for an in-battle user.
func (s *RoomService) scheduleBattleShutoff(ctx context.Context, user *domain.User, roomID string) {
	u := *user
	s.scheduler.Schedule(ctx, user.UID, TaskBattleShutdown, s.battleShutoffAfter, func(ctx context.Context) {
		if _, err := s.EndBattle(ctx, &u, roomID); err != nil {
			logger.Error("forced battle end failed", "uid", u.UID, "room_id", roomID, "error", err)
		}
	})
}

// mirror applies a cache-side mirror write, logging instead of failing: the
// store is authoritative, the cache converges.
func (s *RoomService) mirror(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		logger.Error("cache mirror write failed", "error", err)
	}
}
