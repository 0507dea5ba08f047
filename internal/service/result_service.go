package service

import (
	"context"
	"errors"
	"net"
	"time"

	"companion_gateway/internal/domain"
	"companion_gateway/internal/events"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultService ingests game-result callbacks from the external game server:
// persist the raw payload, fold it into the user's aggregates, publish it
// downstream. Replays of the same (app_uid, create_ts) pair short-circuit
// after the insert.
type ResultService struct {
	results  *repository.ResultRepository
	producer *events.Producer
}

func NewResultService(db *pgxpool.Pool, producer *events.Producer) *ResultService {
	return &ResultService{
		results:  repository.NewResultRepository(db),
		producer: producer,
	}
}

// transientStoreError picks out failures worth retrying: connectivity and
// concurrent-write classes, not constraint or payload problems.
func transientStoreError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "08000", "08003", "08006":
			return true
		}
	}
	return false
}

// Ingest runs the pipeline for one callback. The returned bool is false when
// the callback was a replay and nothing new was recorded.
func (s *ResultService) Ingest(ctx context.Context, gr *domain.GameResult) (bool, error) {
	if gr.TraceID == "" {
		gr.TraceID = uuid.NewString()
	}
	if gr.CreateTS == 0 {
		gr.CreateTS = time.Now().Unix()
	}

	var inserted bool
	err := retryTransient(ctx, "result_insert", transientStoreError, func(ctx context.Context) error {
		var insErr error
		inserted, insErr = s.results.Insert(ctx, gr)
		return insErr
	})
	if err != nil {
		logger.Alarm("result_ingest", "failed to persist game result",
			"trace_id", gr.TraceID, "order_id", gr.OrderID, "error", err)
		return false, err
	}
	if !inserted {
		logger.Info("duplicate game result ignored", "trace_id", gr.TraceID, "app_uid", gr.AppUID, "create_ts", gr.CreateTS)
		return false, nil
	}

	if gr.HasResult {
		err = retryTransient(ctx, "result_bump_stats", transientStoreError, func(ctx context.Context) error {
			_, bumpErr := s.results.BumpStats(ctx, gr.AppUID, gr.ResultWin)
			return bumpErr
		})
		if err != nil {
			// The raw result is safe; the aggregates can be rebuilt from it.
			logger.Alarm("result_ingest", "failed to update personal stats",
				"trace_id", gr.TraceID, "app_uid", gr.AppUID, "error", err)
		}
	}

	msg := &events.GameResultMessage{
		TraceID:             gr.TraceID,
		StatusCode:          gr.StatusCode,
		AppUserID:           gr.AppUID,
		AppUserNickname:     gr.AppUserNickname,
		AppUserAvatar:       gr.AppUserAvatar,
		AppAIPlayerID:       gr.AppAID,
		AppAIPlayerNickname: gr.AppAINickname,
		AppAIPlayerAvatar:   gr.AppAIAvatar,
		AppRoomID:           gr.AppRoomID,
		AppGameIndex:        gr.AppGameIndex,
		GameRegion:          gr.GameRegion,
		GameUID:             gr.GameUID,
		GameBID:             gr.GameBID,
		OrderID:             gr.OrderID,
		ResultType:          gr.ResultType,
		ResultGameIdx:       gr.ResultGameIdx,
		ResultWin:           gr.ResultWin,
		ResultScreenshots:   gr.ResultScreenshots,
		ReceiveTime:         gr.CreateTS,
	}
	// Keyed by order id so one order's results land on one partition.
	_ = s.producer.SendGameResult(ctx, gr.OrderID, msg)

	return true, nil
}

// Stats returns the user's aggregated play record.
func (s *ResultService) Stats(ctx context.Context, uid string) (*domain.PersonalGameStats, error) {
	return s.results.Stats(ctx, uid)
}
