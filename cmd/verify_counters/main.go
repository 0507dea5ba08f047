package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"companion_gateway/internal/db"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"
)

// Recounts each room's four state axes from the state tables and compares
// counter = ai_player_cnt + live human rows. Exits non-zero on drift so it
// can run as a cron with alerting on failures.
func main() {
	logger.Init("counter-verifier", "info", false)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	pool := db.Connect(dsn)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rooms := repository.NewRoomRepository(pool)
	states := repository.NewStateRepository(pool)

	ids, err := states.RoomIDs(ctx)
	if err != nil {
		logger.Fatal("failed to list rooms", "error", err)
	}

	axes := []struct {
		name  string
		table string
		flag  string
	}{
		{"online_user_cnt", "room_presence", "online"},
		{"in_game_queue_user_cnt", "room_seat", "in_game_queue"},
		{"in_game_queue_be_ready_user_cnt", "room_ready", "in_game_queue_be_ready"},
		{"in_game_battle_user_cnt", "room_battle", "in_game_battle"},
	}

	drift := 0
	for _, id := range ids {
		room, err := rooms.GetByID(ctx, id)
		if err != nil {
			logger.Fatal("failed to load room", "room_id", id, "error", err)
		}
		stored := []int{
			room.OnlineUserCnt,
			room.InGameQueueUserCnt,
			room.InGameQueueBeReadyUserCnt,
			room.InGameBattleUserCnt,
		}
		for i, axis := range axes {
			humans, err := states.AxisCount(ctx, axis.table, axis.flag, id)
			if err != nil {
				logger.Fatal("failed to recount", "room_id", id, "axis", axis.name, "error", err)
			}
			want := room.AIPlayerCnt + humans
			if stored[i] != want {
				drift++
				fmt.Printf("DRIFT room=%s axis=%s stored=%d recount=%d (ai=%d humans=%d)\n",
					id, axis.name, stored[i], want, room.AIPlayerCnt, humans)
			}
		}
	}

	if drift > 0 {
		fmt.Printf("%d drifted counters across %d rooms\n", drift, len(ids))
		os.Exit(1)
	}
	fmt.Printf("all counters consistent across %d rooms\n", len(ids))
}
