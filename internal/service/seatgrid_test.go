package service

import (
	"testing"

	"companion_gateway/internal/domain"
)

func TestParseQueueSymbol(t *testing.T) {
	cases := []struct {
		symbol  string
		rows    int
		cols    int
		wantErr bool
	}{
		{"X,X;X,X", 2, 2, false},
		{"X;X", 2, 1, false},
		{"X", 1, 1, false},
		{"X,X,X,X;X,X,X,X", 2, 4, false},
		{"", 0, 0, true},
		{"X,X;X", 0, 0, true},
	}
	for _, tc := range cases {
		shape, err := ParseQueueSymbol(tc.symbol)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseQueueSymbol(%q): expected error", tc.symbol)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseQueueSymbol(%q): %v", tc.symbol, err)
		}
		if shape.Rows != tc.rows || shape.Cols != tc.cols {
			t.Errorf("ParseQueueSymbol(%q) = %dx%d, want %dx%d", tc.symbol, shape.Rows, shape.Cols, tc.rows, tc.cols)
		}
	}
}

func TestGridShapeContains(t *testing.T) {
	shape, err := ParseQueueSymbol("X,X;X,X")
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		x, y int
		want bool
	}{
		{0, 0, true}, {1, 1, true}, {0, 1, true},
		{2, 0, false}, {0, 2, false}, {-1, 0, false}, {0, -1, false},
	} {
		if got := shape.Contains(tc.x, tc.y); got != tc.want {
			t.Errorf("Contains(%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func testRoom(queueSymbol string) *domain.Room {
	return &domain.Room{
		ID:            "room-1",
		OwnerID:       "ai-master",
		OwnerNickname: "Master",
		OwnerAvatar:   "/a/m.png",
		QueueSymbol:   queueSymbol,
	}
}

func TestBuildSeatGridMasterAlwaysAtOrigin(t *testing.T) {
	grid, err := BuildSeatGrid(testRoom("X,X;X,X"), nil, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	cell := grid[0][0]
	if !cell.Occupied || !cell.IsAI || cell.UID != "ai-master" {
		t.Fatalf("expected master at (0,0), got %+v", cell)
	}
}

func TestBuildSeatGridStandardLayout(t *testing.T) {
	slaves := []*domain.AIPlayer{{ID: "ai-slave-1", Nickname: "Slave1"}}
	grid, err := BuildSeatGrid(testRoom("X,X;X,X"), slaves, nil, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !grid[0][1].Occupied || grid[0][1].UID != "ai-slave-1" {
		t.Fatalf("expected first slave beside master at (0,1), got %+v", grid[0][1])
	}
	if grid[1][0].Occupied || grid[1][1].Occupied {
		t.Fatal("second row should stay free for humans")
	}
}

func TestBuildSeatGridHostedPrefillSingleColumn(t *testing.T) {
	slaves := []*domain.AIPlayer{{ID: "ai-slave-1", Nickname: "Slave1"}}
	grid, err := BuildSeatGrid(testRoom("X;X"), slaves, nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	// One column: the slave wraps below the master.
	if !grid[1][0].Occupied || grid[1][0].UID != "ai-slave-1" {
		t.Fatalf("expected slave at (1,0), got %+v", grid[1][0])
	}
}

func TestBuildSeatGridMergesHumans(t *testing.T) {
	seats := []*domain.RoomSeat{
		{RoomID: "room-1", UserID: "u-1", InGameQueue: true, XCoord: 1, YCoord: 0},
		{RoomID: "room-1", UserID: "u-gone", InGameQueue: false, XCoord: 1, YCoord: 1},
	}
	users := map[string]*domain.User{
		"u-1": {UID: "u-1", Nickname: "Human", Avatar: "/a/h.png"},
	}
	grid, err := BuildSeatGrid(testRoom("X,X;X,X"), nil, seats, users, false)
	if err != nil {
		t.Fatal(err)
	}
	cell := grid[1][0]
	if !cell.Occupied || cell.IsAI || cell.UID != "u-1" || cell.Nickname != "Human" {
		t.Fatalf("expected human at (1,0), got %+v", cell)
	}
	if grid[1][1].Occupied {
		t.Fatal("stood-up seat must stay empty")
	}
}
