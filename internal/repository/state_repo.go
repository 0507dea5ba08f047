package repository

import (
	"context"

	"companion_gateway/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StateRepository serves the read-only views over the per-axis room×user
// state records: presence lists, seated users, and the recounts the counter
// verifier compares against the denormalised room counters. Mutations go
// through the engine's transactions, not through here.
type StateRepository struct {
	db *pgxpool.Pool
}

func NewStateRepository(db *pgxpool.Pool) *StateRepository {
	return &StateRepository{db: db}
}

// Presences returns up to limit online users of a room, most recent first.
func (r *StateRepository) Presences(ctx context.Context, roomID string, limit int) ([]*domain.RoomPresence, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, user_id, online, update_ts
		 FROM room_presence
		 WHERE room_id = $1 AND online
		 ORDER BY update_ts DESC
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RoomPresence
	for rows.Next() {
		var p domain.RoomPresence
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Online, &p.UpdateTS); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SeatedUsers returns the live seats of a room.
func (r *StateRepository) SeatedUsers(ctx context.Context, roomID string) ([]*domain.RoomSeat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, user_id, in_game_queue, at_game_queue_x_coord, at_game_queue_y_coord, frozen_time, update_ts
		 FROM room_seat
		 WHERE room_id = $1 AND in_game_queue`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RoomSeat
	for rows.Next() {
		var s domain.RoomSeat
		if err := rows.Scan(&s.RoomID, &s.UserID, &s.InGameQueue, &s.XCoord, &s.YCoord, &s.FrozenTime, &s.UpdateTS); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// AxisCount recounts one axis from its state table. Used by the counter
// verifier; the result plus ai_player_cnt must equal the room counter.
func (r *StateRepository) AxisCount(ctx context.Context, table, flagColumn, roomID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE room_id = $1 AND `+flagColumn,
		roomID,
	).Scan(&n)
	return n, err
}

// RoomIDs lists every installed room id.
func (r *StateRepository) RoomIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM installed_rooms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
