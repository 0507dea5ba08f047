package repository

import (
	"context"
	"errors"
	"time"

	"companion_gateway/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRoomNotFound = errors.New("room not found")

const roomColumns = `id, game_index, rule, title, announcement, cover,
	owner_id, owner_nickname, owner_gender, owner_avatar, assistants, tags,
	carrying_capacity, queue_symbol, ai_player_cnt, rank_weight, be_hosting,
	online_user_cnt, in_game_queue_user_cnt, in_game_queue_be_ready_user_cnt,
	in_game_battle_user_cnt, update_ts`

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var rm domain.Room
	if err := row.Scan(
		&rm.ID,
		&rm.GameIndex,
		&rm.Rule,
		&rm.Title,
		&rm.Announcement,
		&rm.Cover,
		&rm.OwnerID,
		&rm.OwnerNickname,
		&rm.OwnerGender,
		&rm.OwnerAvatar,
		&rm.Assistants,
		&rm.Tags,
		&rm.CarryingCapacity,
		&rm.QueueSymbol,
		&rm.AIPlayerCnt,
		&rm.RankWeight,
		&rm.BeHosting,
		&rm.OnlineUserCnt,
		&rm.InGameQueueUserCnt,
		&rm.InGameQueueBeReadyUserCnt,
		&rm.InGameBattleUserCnt,
		&rm.UpdateTS,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM installed_rooms WHERE id = $1`, id)
	return scanRoom(row)
}

// GetByIDForUpdate reads the room inside tx with a row lock, pinning the
// counters for the duration of a state transition.
func GetRoomForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Room, error) {
	row := tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM installed_rooms WHERE id = $1 FOR UPDATE`, id)
	return scanRoom(row)
}

// List returns one page of rooms ranked for listing: operator-hosted rooms
// first, then rank weight, then emptier queues, busier rooms, recent
// activity. gameIndex "all" lists every game.
func (r *RoomRepository) List(ctx context.Context, gameIndex string, offset, limit int) ([]*domain.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM installed_rooms`
	args := []any{}
	if gameIndex != "all" {
		q += ` WHERE game_index = $1`
		args = append(args, gameIndex)
	}
	q += ` ORDER BY be_hosting DESC, rank_weight DESC, in_game_queue_user_cnt ASC,
		online_user_cnt DESC, update_ts DESC`
	if gameIndex != "all" {
		q += ` OFFSET $2 LIMIT $3`
	} else {
		q += ` OFFSET $1 LIMIT $2`
	}
	args = append(args, offset, limit)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// Upsert installs or refreshes a room definition at bootstrap. Counters are
// seeded to ai_player_cnt on first install and left alone afterwards so live
// human counts survive restarts.
func (r *RoomRepository) Upsert(ctx context.Context, rm *domain.Room) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO installed_rooms (id, game_index, rule, title, announcement, cover,
			owner_id, owner_nickname, owner_gender, owner_avatar, assistants, tags,
			carrying_capacity, queue_symbol, ai_player_cnt, rank_weight, be_hosting,
			online_user_cnt, in_game_queue_user_cnt, in_game_queue_be_ready_user_cnt,
			in_game_battle_user_cnt, update_ts)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$15,$15,$15,$15,$18)
		 ON CONFLICT (id) DO UPDATE SET
			game_index = EXCLUDED.game_index,
			rule = EXCLUDED.rule,
			title = EXCLUDED.title,
			announcement = EXCLUDED.announcement,
			cover = EXCLUDED.cover,
			owner_id = EXCLUDED.owner_id,
			owner_nickname = EXCLUDED.owner_nickname,
			owner_gender = EXCLUDED.owner_gender,
			owner_avatar = EXCLUDED.owner_avatar,
			assistants = EXCLUDED.assistants,
			tags = EXCLUDED.tags,
			carrying_capacity = EXCLUDED.carrying_capacity,
			queue_symbol = EXCLUDED.queue_symbol,
			ai_player_cnt = EXCLUDED.ai_player_cnt,
			rank_weight = EXCLUDED.rank_weight,
			be_hosting = EXCLUDED.be_hosting,
			update_ts = EXCLUDED.update_ts`,
		rm.ID, rm.GameIndex, rm.Rule, rm.Title, rm.Announcement, rm.Cover,
		rm.OwnerID, rm.OwnerNickname, rm.OwnerGender, rm.OwnerAvatar, rm.Assistants, rm.Tags,
		rm.CarryingCapacity, rm.QueueSymbol, rm.AIPlayerCnt, rm.RankWeight, rm.BeHosting,
		time.Now().Unix(),
	)
	return err
}
