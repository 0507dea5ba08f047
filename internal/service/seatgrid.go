package service

import (
	"errors"
	"strings"

	"companion_gateway/internal/domain"
)

var ErrBadQueueSymbol = errors.New("malformed queue symbol")

// GridShape is the rows×cols layout encoded by a room's queue symbol,
// e.g. "X,X;X,X" is 2×2 and "X;X;X;X;X" is 5×1.
type GridShape struct {
	Rows int
	Cols int
}

func ParseQueueSymbol(symbol string) (GridShape, error) {
	if symbol == "" {
		return GridShape{}, ErrBadQueueSymbol
	}
	rows := strings.Split(symbol, ";")
	cols := strings.Split(rows[0], ",")
	shape := GridShape{Rows: len(rows), Cols: len(cols)}
	for _, r := range rows {
		if len(strings.Split(r, ",")) != shape.Cols {
			return GridShape{}, ErrBadQueueSymbol
		}
	}
	return shape, nil
}

// Contains reports whether (x, y) is a valid seat, x being the row.
func (g GridShape) Contains(x, y int) bool {
	return x >= 0 && x < g.Rows && y >= 0 && y < g.Cols
}

// SeatCell is one spot of the hydrated seat grid.
type SeatCell struct {
	Occupied bool   `json:"occupied"`
	IsAI     bool   `json:"is_ai"`
	UID      string `json:"uid,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// BuildSeatGrid hydrates a room's grid: AI personas pre-filled by the room's
// layout convention, live seated humans merged into their stored seats.
// hostedPrefill marks operator-hosted rooms whose slaves fill consecutive
// cells after the master.
func BuildSeatGrid(room *domain.Room, assistants []*domain.AIPlayer, seats []*domain.RoomSeat, users map[string]*domain.User, hostedPrefill bool) ([][]SeatCell, error) {
	shape, err := ParseQueueSymbol(room.QueueSymbol)
	if err != nil {
		return nil, err
	}

	grid := make([][]SeatCell, shape.Rows)
	for i := range grid {
		grid[i] = make([]SeatCell, shape.Cols)
	}

	// Master always owns (0,0).
	grid[0][0] = SeatCell{
		Occupied: true,
		IsAI:     true,
		UID:      room.OwnerID,
		Nickname: room.OwnerNickname,
		Avatar:   room.OwnerAvatar,
	}

	placeAI := func(x, y int, p *domain.AIPlayer) {
		grid[x][y] = SeatCell{Occupied: true, IsAI: true, UID: p.ID, Nickname: p.Nickname, Avatar: p.Avatar}
	}

	if hostedPrefill {
		// Slaves take the cells after the master in row-major order.
		x, y := 0, 1
		if y >= shape.Cols {
			x, y = 1, 0
		}
		for _, p := range assistants {
			if x >= shape.Rows {
				break
			}
			placeAI(x, y, p)
			y++
			if y >= shape.Cols {
				x, y = x+1, 0
			}
		}
	} else if shape.Cols >= 2 && len(assistants) > 0 {
		// Two-column layouts seat the first slave beside the master.
		placeAI(0, 1, assistants[0])
	}

	for _, s := range seats {
		if !s.InGameQueue || !shape.Contains(s.XCoord, s.YCoord) {
			continue
		}
		cell := SeatCell{Occupied: true, UID: s.UserID}
		if u, ok := users[s.UserID]; ok {
			cell.Nickname = u.Nickname
			cell.Avatar = u.Avatar
		}
		grid[s.XCoord][s.YCoord] = cell
	}

	return grid, nil
}
