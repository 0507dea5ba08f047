package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/domain"
	"companion_gateway/internal/events"
	"companion_gateway/internal/repository"
	"companion_gateway/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

type env struct {
	db    *pgxpool.Pool
	cache *cache.Client
	rooms *service.RoomService
}

// setupEnv wires the engine against real Postgres and Redis, with the Kafka
// producer pointed at a dead endpoint: publish failures are logged, never
// fatal, so the flows still run.
func setupEnv(t *testing.T) *env {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	applyMigrations(t, db)

	keys := cache.NewKeys("test_" + uuid.NewString()[:8])
	c, err := cache.New(addr, os.Getenv("REDIS_PASSWORD"), 0, keys)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	lock := cache.NewRedlock([]*redis.Client{c.Redis()})
	producer := events.NewProducer([]string{"127.0.0.1:1"}, "test", "test-results", "test-room-events")
	t.Cleanup(func() { producer.Close() })
	scheduler := service.NewTimeoutScheduler(c)
	t.Cleanup(scheduler.Stop)

	rooms := service.NewRoomService(db, c, lock, producer, scheduler, service.RoomServiceConfig{
		QueueKickAfter:     time.Hour,
		BattleShutoffAfter: time.Hour,
	})
	return &env{db: db, cache: c, rooms: rooms}
}

func installRoom(t *testing.T, db *pgxpool.Pool, capacity int, queueSymbol string) string {
	t.Helper()
	return installRoomForGame(t, db, "gobang", capacity, queueSymbol)
}

func installRoomForGame(t *testing.T, db *pgxpool.Pool, gameIndex string, capacity int, queueSymbol string) string {
	t.Helper()
	roomID := "room_" + uuid.NewString()[:8]
	masterID := "ai_" + uuid.NewString()[:8]
	boot := service.NewBootstrapService(db)
	err := boot.Apply(context.Background(), &service.Catalog{
		Games: []domain.InstalledGame{{Index: gameIndex, Name: gameIndex}},
		Players: []domain.AIPlayer{
			{ID: masterID, RoomID: roomID, IsMaster: true, Nickname: "Master", GameIndex: gameIndex, Installed: true},
		},
		Rooms: []service.RoomDef{{
			ID: roomID, GameIndex: gameIndex, Title: "Test Room",
			CarryingCapacity: capacity, QueueSymbol: queueSymbol,
		}},
	})
	if err != nil {
		t.Fatalf("install room: %v", err)
	}
	return roomID
}

func testUser(t *testing.T, db *pgxpool.Pool) *domain.User {
	t.Helper()
	u := &domain.User{
		UID:      uuid.NewString(),
		Account:  "138" + uuid.NewString()[:8],
		DeviceID: "dev-" + uuid.NewString()[:8],
		Nickname: "tester",
	}
	repo := repository.NewUserRepository(db)
	if err := repo.UpsertAccount(context.Background(), u, false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func transitionCode(err error) int {
	var tErr *service.TransitionError
	if errors.As(err, &tErr) {
		return tErr.Code
	}
	return 0
}

func TestEnterSitReadyFlow(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	// Capacity 2, one AI already counted: one human completes every axis.
	roomID := installRoom(t, e.db, 2, "X;X")
	u := testUser(t, e.db)

	res, err := e.rooms.EnterRoom(ctx, u, roomID)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if res.Filtered {
		t.Fatal("first enter must apply")
	}
	if res.Room.OnlineUserCnt != 2 {
		t.Fatalf("online_user_cnt = %d, want 2", res.Room.OnlineUserCnt)
	}

	// Idempotent: entering again is filtered and leaves the counter alone.
	res, err = e.rooms.EnterRoom(ctx, u, roomID)
	if err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	if !res.Filtered {
		t.Fatal("second enter must be filtered")
	}

	sit, err := e.rooms.Sit(ctx, u, roomID, 1, 0)
	if err != nil {
		t.Fatalf("sit: %v", err)
	}
	if !sit.QueueIsFull {
		t.Fatal("last seat must report queue full")
	}
	if sit.Room.InGameQueueUserCnt != 2 {
		t.Fatalf("in_game_queue_user_cnt = %d, want 2", sit.Room.InGameQueueUserCnt)
	}

	ready, err := e.rooms.Ready(ctx, u, roomID)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if !ready.AllReady {
		t.Fatal("completing the ready set must report all-ready")
	}

	battle, err := e.rooms.StartBattle(ctx, u, roomID)
	if err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if !battle.AllInBattle {
		t.Fatal("completing the battle set must report all-in-battle")
	}

	// Standing up mid-battle is rejected.
	if _, err := e.rooms.Stand(ctx, u, roomID, false); transitionCode(err) != service.CodeInBattle {
		t.Fatalf("expected InBattle rejection, got %v", err)
	}

	end, err := e.rooms.EndBattle(ctx, u, roomID)
	if err != nil {
		t.Fatalf("end battle: %v", err)
	}
	if end.Filtered {
		t.Fatal("first end must apply")
	}

	stand, err := e.rooms.Stand(ctx, u, roomID, false)
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	if stand.Room.InGameQueueUserCnt != 1 {
		t.Fatalf("queue counter after stand = %d, want 1", stand.Room.InGameQueueUserCnt)
	}
	// Voluntary stand also clears readiness.
	if stand.Room.InGameQueueBeReadyUserCnt != 1 {
		t.Fatalf("ready counter after stand = %d, want 1", stand.Room.InGameQueueBeReadyUserCnt)
	}
}

func TestSitPreconditions(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 2, "X;X")
	a := testUser(t, e.db)
	b := testUser(t, e.db)
	c := testUser(t, e.db)

	for _, u := range []*domain.User{a, b, c} {
		if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
			t.Fatalf("enter: %v", err)
		}
	}

	// Out of the grid.
	if _, err := e.rooms.Sit(ctx, a, roomID, 5, 0); transitionCode(err) != service.CodeInvalidSeat {
		t.Fatalf("expected InvalidSeat, got %v", err)
	}

	if _, err := e.rooms.Sit(ctx, a, roomID, 1, 0); err != nil {
		t.Fatalf("sit a: %v", err)
	}

	// Same seat, another user.
	if _, err := e.rooms.Sit(ctx, b, roomID, 1, 0); transitionCode(err) != service.CodeSeatOccupied {
		t.Fatalf("expected SeatOccupied, got %v", err)
	}

	// The AI fills one of two seats, a took the other: queue is full.
	if _, err := e.rooms.Sit(ctx, b, roomID, 0, 0); transitionCode(err) != service.CodeQueueFull {
		t.Fatalf("expected QueueFull, got %v", err)
	}

	// Ready without a seat.
	if _, err := e.rooms.Ready(ctx, c, roomID); transitionCode(err) != service.CodeNotSeated {
		t.Fatalf("expected NotSeated, got %v", err)
	}
}

func TestForcedKickFreezesSeat(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 3, "X,X,X")
	u := testUser(t, e.db)

	if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.rooms.Sit(ctx, u, roomID, 0, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := e.rooms.Stand(ctx, u, roomID, true); err != nil {
		t.Fatalf("forced stand: %v", err)
	}

	// The freeze blocks re-sitting and reports the remaining seconds.
	_, err := e.rooms.Sit(ctx, u, roomID, 0, 1)
	var tErr *service.TransitionError
	if !errors.As(err, &tErr) || tErr.Code != service.CodeFrozen {
		t.Fatalf("expected Frozen, got %v", err)
	}
	if tErr.SecondsLeft <= 0 || tErr.SecondsLeft > 300 {
		t.Fatalf("seconds_left = %d, want (0, 300]", tErr.SecondsLeft)
	}
}

func TestVoluntaryStandDoesNotFreeze(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 3, "X,X,X")
	u := testUser(t, e.db)

	if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.rooms.Sit(ctx, u, roomID, 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.rooms.Stand(ctx, u, roomID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := e.rooms.Sit(ctx, u, roomID, 0, 2); err != nil {
		t.Fatalf("re-sit after voluntary stand must work: %v", err)
	}
}

func TestRoomDetailAndListing(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 2, "X;X")
	u := testUser(t, e.db)

	if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.rooms.Sit(ctx, u, roomID, 1, 0); err != nil {
		t.Fatal(err)
	}

	detail, err := e.rooms.RoomDetail(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.SeatGrid) != 2 || len(detail.SeatGrid[0]) != 1 {
		t.Fatalf("grid shape %dx%d, want 2x1", len(detail.SeatGrid), len(detail.SeatGrid[0]))
	}
	if !detail.SeatGrid[0][0].IsAI {
		t.Fatal("master must own (0,0)")
	}
	cell := detail.SeatGrid[1][0]
	if !cell.Occupied || cell.IsAI || cell.UID != u.UID {
		t.Fatalf("expected human at (1,0), got %+v", cell)
	}
	if len(detail.OnlineUsers) != 1 || detail.OnlineUsers[0].UID != u.UID {
		t.Fatalf("online users %+v", detail.OnlineUsers)
	}

	rooms, err := e.rooms.ListRooms(ctx, "gobang", 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, rm := range rooms {
		if rm.ID == roomID {
			found = true
		}
	}
	if !found {
		t.Fatal("installed room missing from listing")
	}

	detailed, err := e.rooms.ListRoomsDetailed(ctx, "gobang", 0, 50)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range detailed {
		if d.Room.ID != roomID {
			continue
		}
		if len(d.SeatGrid) != 2 || !d.SeatGrid[1][0].Occupied {
			t.Fatalf("slow listing grid not hydrated: %+v", d.SeatGrid)
		}
		if len(d.OnlineUsers) != 1 {
			t.Fatalf("slow listing presences not hydrated: %+v", d.OnlineUsers)
		}
	}

	entered, err := e.rooms.EnteredRoom(ctx, u.UID)
	if err != nil {
		t.Fatal(err)
	}
	if entered != roomID {
		t.Fatalf("entered room = %q, want %q", entered, roomID)
	}
}

// sitBusyRetry retries a sit that lost the room lock, the way a client
// retries a busy room. Domain rejections come back as-is.
func sitBusyRetry(ctx context.Context, rooms *service.RoomService, u *domain.User, roomID string, x, y int) error {
	for attempt := 0; attempt < 100; attempt++ {
		_, err := rooms.Sit(ctx, u, roomID, x, y)
		if errors.Is(err, service.ErrLockUnavailable) {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return err
	}
	return errors.New("room lock stayed busy")
}

func TestConcurrentSitSameSeat(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	// Capacity 4, one AI: three free slots, so capacity never rejects here.
	roomID := installRoom(t, e.db, 4, "X,X;X,X")

	const contenders = 6
	users := make([]*domain.User, contenders)
	for i := range users {
		users[i] = testUser(t, e.db)
		if _, err := e.rooms.EnterRoom(ctx, users[i], roomID); err != nil {
			t.Fatalf("enter: %v", err)
		}
	}

	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sitBusyRetry(ctx, e.rooms, users[i], roomID, 0, 1)
		}(i)
	}
	wg.Wait()

	won, occupied := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case transitionCode(err) == service.CodeSeatOccupied:
			occupied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || occupied != contenders-1 {
		t.Fatalf("won=%d occupied=%d, want 1 and %d", won, occupied, contenders-1)
	}

	room, err := repository.NewRoomRepository(e.db).GetByID(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if room.InGameQueueUserCnt != 2 {
		t.Fatalf("in_game_queue_user_cnt = %d, want 2 (AI + winner)", room.InGameQueueUserCnt)
	}
}

func TestConcurrentSitCapacity(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	// Capacity 3 over a 4-cell grid, one AI: two free slots for three users.
	roomID := installRoom(t, e.db, 3, "X,X;X,X")

	seats := [][2]int{{0, 1}, {1, 0}, {1, 1}}
	users := make([]*domain.User, len(seats))
	for i := range users {
		users[i] = testUser(t, e.db)
		if _, err := e.rooms.EnterRoom(ctx, users[i], roomID); err != nil {
			t.Fatalf("enter: %v", err)
		}
	}

	errs := make([]error, len(seats))
	var wg sync.WaitGroup
	for i := range seats {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sitBusyRetry(ctx, e.rooms, users[i], roomID, seats[i][0], seats[i][1])
		}(i)
	}
	wg.Wait()

	seated, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			seated++
		case transitionCode(err) == service.CodeQueueFull:
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if seated != 2 || full != 1 {
		t.Fatalf("seated=%d full=%d, want 2 and 1", seated, full)
	}

	room, err := repository.NewRoomRepository(e.db).GetByID(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if room.InGameQueueUserCnt != room.CarryingCapacity {
		t.Fatalf("in_game_queue_user_cnt = %d, want %d", room.InGameQueueUserCnt, room.CarryingCapacity)
	}
}

func TestDoubleSitAndReadyFiltered(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 3, "X,X,X")
	u := testUser(t, e.db)

	if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	sit, err := e.rooms.Sit(ctx, u, roomID, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sit.Filtered {
		t.Fatal("first sit must apply")
	}

	// Sitting again, even at a different seat, is a filtered no-op.
	sit, err = e.rooms.Sit(ctx, u, roomID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !sit.Filtered {
		t.Fatal("second sit must be filtered")
	}
	if sit.Room.InGameQueueUserCnt != 2 {
		t.Fatalf("queue counter moved on filtered sit: %d", sit.Room.InGameQueueUserCnt)
	}

	ready, err := e.rooms.Ready(ctx, u, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if ready.Filtered {
		t.Fatal("first ready must apply")
	}
	ready, err = e.rooms.Ready(ctx, u, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if !ready.Filtered {
		t.Fatal("second ready must be filtered")
	}
	if ready.Room.InGameQueueBeReadyUserCnt != 2 {
		t.Fatalf("ready counter moved on filtered ready: %d", ready.Room.InGameQueueBeReadyUserCnt)
	}
}

func TestLeaveClearsOnlineMirrors(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	roomID := installRoom(t, e.db, 3, "X,X,X")
	u := testUser(t, e.db)
	keys := e.cache.Keys()

	if _, err := e.rooms.EnterRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := e.cache.GetString(ctx, keys.UserOnline(u.UID)); err != nil || !ok {
		t.Fatalf("online flag not set after enter (ok=%v err=%v)", ok, err)
	}

	if _, err := e.rooms.LeaveRoom(ctx, u, roomID); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := e.cache.GetString(ctx, keys.UserOnline(u.UID)); err != nil || ok {
		t.Fatalf("online flag still set after leave (ok=%v err=%v)", ok, err)
	}
	if _, ok, err := e.cache.GetString(ctx, keys.UserEnteredRoom(u.UID)); err != nil || ok {
		t.Fatalf("entered-room pointer still set after leave (ok=%v err=%v)", ok, err)
	}
	n, err := e.cache.SCard(ctx, keys.RoomOnlineUsers(roomID))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("room online set has %d members after leave", n)
	}
}

func TestListingRanksBusierRoomsFirst(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	gameIndex := "game_" + uuid.NewString()[:8]
	quiet := installRoomForGame(t, e.db, gameIndex, 3, "X,X,X")
	busy := installRoomForGame(t, e.db, gameIndex, 3, "X,X,X")

	u := testUser(t, e.db)
	if _, err := e.rooms.EnterRoom(ctx, u, busy); err != nil {
		t.Fatal(err)
	}

	rooms, err := e.rooms.ListRooms(ctx, gameIndex, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("listing has %d rooms, want 2", len(rooms))
	}
	if rooms[0].ID != busy || rooms[1].ID != quiet {
		t.Fatalf("order = [%s %s], want busy room first", rooms[0].ID, rooms[1].ID)
	}
}

func TestResultIngestIsIdempotent(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer db.Close()
	applyMigrations(t, db)

	producer := events.NewProducer([]string{"127.0.0.1:1"}, "test", "test-results", "test-room-events")
	defer producer.Close()
	svc := service.NewResultService(db, producer)

	ctx := context.Background()
	gr := &domain.GameResult{
		AppUID:    uuid.NewString(),
		AppRoomID: "room-x",
		OrderID:   uuid.NewString(),
		ResultWin: true,
		HasResult: true,
		CreateTS:  time.Now().Unix(),
	}
	inserted, err := svc.Ingest(ctx, gr)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first ingest must insert")
	}

	replay := *gr
	inserted, err = svc.Ingest(ctx, &replay)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("replay must be a no-op")
	}

	stats, err := svc.Stats(ctx, gr.AppUID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.PlayCnt != 1 || stats.WinningPlayCnt != 1 {
		t.Fatalf("stats after replay: %+v", stats)
	}
	if stats.WinRate != 1 {
		t.Fatalf("win_rate = %v, want 1", stats.WinRate)
	}
}
