package repository

import (
	"context"

	"companion_gateway/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InstallRepository persists the declarative game and AI-persona definitions
// applied at startup.
type InstallRepository struct {
	db *pgxpool.Pool
}

func NewInstallRepository(db *pgxpool.Pool) *InstallRepository {
	return &InstallRepository{db: db}
}

func (r *InstallRepository) UpsertGame(ctx context.Context, g *domain.InstalledGame) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO installed_games (index, name, icon, min_online_user_cnt, max_online_user_cnt)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (index) DO UPDATE SET
			name = EXCLUDED.name,
			icon = EXCLUDED.icon,
			min_online_user_cnt = EXCLUDED.min_online_user_cnt,
			max_online_user_cnt = EXCLUDED.max_online_user_cnt`,
		g.Index, g.Name, g.Icon, g.MinOnlineUserCnt, g.MaxOnlineUserCnt,
	)
	return err
}

func (r *InstallRepository) UpsertAIPlayer(ctx context.Context, p *domain.AIPlayer) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO installed_ai_players (id, room_id, is_master, slave_number, nickname,
			gender, avatar, game_index, tags, state, be_hosting, installed, be_hosting_room_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 ON CONFLICT (id) DO UPDATE SET
			room_id = EXCLUDED.room_id,
			is_master = EXCLUDED.is_master,
			slave_number = EXCLUDED.slave_number,
			nickname = EXCLUDED.nickname,
			gender = EXCLUDED.gender,
			avatar = EXCLUDED.avatar,
			game_index = EXCLUDED.game_index,
			tags = EXCLUDED.tags,
			state = EXCLUDED.state,
			be_hosting = EXCLUDED.be_hosting,
			installed = EXCLUDED.installed,
			be_hosting_room_id = EXCLUDED.be_hosting_room_id`,
		p.ID, p.RoomID, p.IsMaster, p.SlaveNumber, p.Nickname,
		p.Gender, p.Avatar, p.GameIndex, p.Tags, p.State, p.BeHosting, p.Installed, p.BeHostingRoomID,
	)
	return err
}

// AIPlayersByRoom returns a room's installed AIs, master first, then slaves
// ordered by slave_number.
func (r *InstallRepository) AIPlayersByRoom(ctx context.Context, roomID string) ([]*domain.AIPlayer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, room_id, is_master, slave_number, nickname, gender, avatar,
			game_index, tags, state, be_hosting, installed, be_hosting_room_id
		 FROM installed_ai_players
		 WHERE room_id = $1 AND installed
		 ORDER BY is_master DESC, slave_number ASC`,
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AIPlayer
	for rows.Next() {
		var p domain.AIPlayer
		if err := rows.Scan(
			&p.ID, &p.RoomID, &p.IsMaster, &p.SlaveNumber, &p.Nickname, &p.Gender, &p.Avatar,
			&p.GameIndex, &p.Tags, &p.State, &p.BeHosting, &p.Installed, &p.BeHostingRoomID,
		); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *InstallRepository) GetAIPlayer(ctx context.Context, id string) (*domain.AIPlayer, error) {
	var p domain.AIPlayer
	err := r.db.QueryRow(ctx,
		`SELECT id, room_id, is_master, slave_number, nickname, gender, avatar,
			game_index, tags, state, be_hosting, installed, be_hosting_room_id
		 FROM installed_ai_players WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &p.RoomID, &p.IsMaster, &p.SlaveNumber, &p.Nickname, &p.Gender, &p.Avatar,
		&p.GameIndex, &p.Tags, &p.State, &p.BeHosting, &p.Installed, &p.BeHostingRoomID,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
