package repository

import (
	"context"
	"errors"

	"companion_gateway/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository persists raw game results and the per-user aggregates
// derived from them.
type ResultRepository struct {
	db *pgxpool.Pool
}

func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// Insert stores the raw result. Returns false when (app_uid, create_ts) was
// already stored, which makes replayed callbacks no-ops.
func (r *ResultRepository) Insert(ctx context.Context, gr *domain.GameResult) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO game_results (app_uid, app_user_nickname, app_user_avatar,
			app_aid, app_ai_nickname, app_ai_avatar, app_room_id, app_game_index,
			game_region, game_uid, game_bid, order_id,
			result_type, result_game_idx, result_win, result_screenshots, has_result,
			status_code, trace_id, create_ts)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		 ON CONFLICT (app_uid, create_ts) DO NOTHING`,
		gr.AppUID, gr.AppUserNickname, gr.AppUserAvatar,
		gr.AppAID, gr.AppAINickname, gr.AppAIAvatar, gr.AppRoomID, gr.AppGameIndex,
		gr.GameRegion, gr.GameUID, gr.GameBID, gr.OrderID,
		gr.ResultType, gr.ResultGameIdx, gr.ResultWin, gr.ResultScreenshots, gr.HasResult,
		gr.StatusCode, gr.TraceID, gr.CreateTS,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BumpStats applies one finished play to the user's aggregates inside a
// transaction, keeping win_rate consistent with the two counters.
func (r *ResultRepository) BumpStats(ctx context.Context, uid string, win bool) (*domain.PersonalGameStats, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	winInc := 0
	if win {
		winInc = 1
	}
	var s domain.PersonalGameStats
	err = tx.QueryRow(ctx,
		`INSERT INTO personal_game_stats (uid, play_cnt, winning_play_cnt, win_rate)
		 VALUES ($1, 1, $2, $2)
		 ON CONFLICT (uid) DO UPDATE SET
			play_cnt = personal_game_stats.play_cnt + 1,
			winning_play_cnt = personal_game_stats.winning_play_cnt + $2
		 RETURNING uid, play_cnt, winning_play_cnt, win_rate`,
		uid, winInc,
	).Scan(&s.UID, &s.PlayCnt, &s.WinningPlayCnt, &s.WinRate)
	if err != nil {
		return nil, err
	}

	s.WinRate = float64(s.WinningPlayCnt) / float64(s.PlayCnt)
	if _, err := tx.Exec(ctx,
		`UPDATE personal_game_stats SET win_rate = $1 WHERE uid = $2`,
		s.WinRate, uid,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// Stats returns the user's aggregates; a user that never played gets zeros.
func (r *ResultRepository) Stats(ctx context.Context, uid string) (*domain.PersonalGameStats, error) {
	var s domain.PersonalGameStats
	err := r.db.QueryRow(ctx,
		`SELECT uid, play_cnt, winning_play_cnt, win_rate FROM personal_game_stats WHERE uid = $1`,
		uid,
	).Scan(&s.UID, &s.PlayCnt, &s.WinningPlayCnt, &s.WinRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.PersonalGameStats{UID: uid}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
