package service

import (
	"context"

	"companion_gateway/internal/domain"
)

// presenceHydrationCap bounds the online-user profiles hydrated into a room
// detail; the counter still reports the true total.
const presenceHydrationCap = 100

// RoomMember is a hydrated profile inside a room view.
type RoomMember struct {
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
	Gender   int    `json:"gender"`
	Avatar   string `json:"avatar"`
}

// RoomDetail is the full hydrated view of one room.
type RoomDetail struct {
	Room        *domain.Room `json:"room"`
	SeatGrid    [][]SeatCell `json:"seat_grid"`
	OnlineUsers []RoomMember `json:"online_users"`
}

// ListRooms returns one ranked page of rooms. The fast path serves straight
// off the denormalised counters, no per-room hydration.
func (s *RoomService) ListRooms(ctx context.Context, gameIndex string, offset, limit int) ([]*domain.Room, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.rooms.List(ctx, gameIndex, offset, limit)
}

// ListRoomsDetailed is the slow listing path: each room comes with its seat
// grid and online presences hydrated.
func (s *RoomService) ListRoomsDetailed(ctx context.Context, gameIndex string, offset, limit int) ([]*RoomDetail, error) {
	rooms, err := s.ListRooms(ctx, gameIndex, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*RoomDetail, 0, len(rooms))
	for _, room := range rooms {
		detail, err := s.hydrateRoom(ctx, room)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, nil
}

// seatGrid hydrates one room's grid: AI personas by layout, seated humans at
// their stored coordinates.
func (s *RoomService) seatGrid(ctx context.Context, room *domain.Room) ([][]SeatCell, error) {
	assistants, err := s.installs.AIPlayersByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	// AIPlayersByRoom returns master first; the grid builder seats the
	// master itself from the room record.
	slaves := assistants
	if len(slaves) > 0 && slaves[0].IsMaster {
		slaves = slaves[1:]
	}

	seats, err := s.states.SeatedUsers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(seats))
	for _, seat := range seats {
		uids = append(uids, seat.UserID)
	}
	users, err := s.users.GetByUIDs(ctx, uids)
	if err != nil {
		return nil, err
	}
	return BuildSeatGrid(room, slaves, seats, users, s.hostedPrefill[room.ID])
}

// RoomDetail hydrates one room: the seat grid with AI personas and live
// humans merged in, plus up to presenceHydrationCap online profiles, most
// recently active first.
func (s *RoomService) RoomDetail(ctx context.Context, roomID string) (*RoomDetail, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.hydrateRoom(ctx, room)
}

func (s *RoomService) hydrateRoom(ctx context.Context, room *domain.Room) (*RoomDetail, error) {
	grid, err := s.seatGrid(ctx, room)
	if err != nil {
		return nil, err
	}

	presences, err := s.states.Presences(ctx, room.ID, presenceHydrationCap)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(presences))
	for _, p := range presences {
		uids = append(uids, p.UserID)
	}
	users, err := s.users.GetByUIDs(ctx, uids)
	if err != nil {
		return nil, err
	}

	online := make([]RoomMember, 0, len(presences))
	for _, p := range presences {
		m := RoomMember{UID: p.UserID}
		if u, ok := users[p.UserID]; ok {
			m.Nickname = u.Nickname
			m.Gender = u.Gender
			m.Avatar = u.Avatar
		}
		online = append(online, m)
	}

	return &RoomDetail{Room: room, SeatGrid: grid, OnlineUsers: online}, nil
}

// EnteredRoom returns the room id the user is currently inside, "" when none.
func (s *RoomService) EnteredRoom(ctx context.Context, uid string) (string, error) {
	roomID, ok, err := s.cache.GetString(ctx, s.cache.Keys().UserEnteredRoom(uid))
	if err != nil || !ok {
		return "", err
	}
	return roomID, nil
}
