package service

import "companion_gateway/internal/domain"

// DefaultCatalog is the install set shipped with the gateway. Deployments
// with their own roster replace this wholesale.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Games: []domain.InstalledGame{
			{Index: "gobang", Name: "Gobang", Icon: "/static/games/gobang.png", MinOnlineUserCnt: 2, MaxOnlineUserCnt: 60},
			{Index: "werewolf", Name: "Werewolf", Icon: "/static/games/werewolf.png", MinOnlineUserCnt: 6, MaxOnlineUserCnt: 120},
		},
		Players: []domain.AIPlayer{
			{ID: "ai-gobang-anna", RoomID: "room-gobang-1", IsMaster: true, Nickname: "Anna", Gender: 2,
				Avatar: "/static/avatars/anna.png", GameIndex: "gobang", Tags: "gentle,patient", State: 1, Installed: true},
			{ID: "ai-gobang-bruno", RoomID: "room-gobang-1", IsMaster: false, SlaveNumber: 1, Nickname: "Bruno", Gender: 1,
				Avatar: "/static/avatars/bruno.png", GameIndex: "gobang", Tags: "chatty", State: 1, Installed: true},
			{ID: "ai-gobang-clio", RoomID: "room-gobang-2", IsMaster: true, Nickname: "Clio", Gender: 2,
				Avatar: "/static/avatars/clio.png", GameIndex: "gobang", Tags: "competitive", State: 1, Installed: true,
				BeHosting: true, BeHostingRoomID: "room-werewolf-1"},
			{ID: "ai-werewolf-dara", RoomID: "room-werewolf-1", IsMaster: true, Nickname: "Dara", Gender: 2,
				Avatar: "/static/avatars/dara.png", GameIndex: "werewolf", Tags: "storyteller", State: 1, Installed: true},
			{ID: "ai-werewolf-enzo", RoomID: "room-werewolf-1", IsMaster: false, SlaveNumber: 1, Nickname: "Enzo", Gender: 1,
				Avatar: "/static/avatars/enzo.png", GameIndex: "werewolf", Tags: "night-owl", State: 1, Installed: true},
		},
		Rooms: []RoomDef{
			{
				ID: "room-gobang-1", GameIndex: "gobang", Rule: "five in a row wins",
				Title: "Anna's Gobang Lounge", Announcement: "Friendly matches all day.",
				Cover: "/static/covers/gobang1.png", Tags: "casual",
				CarryingCapacity: 4, QueueSymbol: "X,X;X,X", RankWeight: 10,
				Assistants: []string{"ai-gobang-bruno"},
			},
			{
				ID: "room-gobang-2", GameIndex: "gobang", Rule: "five in a row wins",
				Title: "Clio's Arena", Announcement: "Ranked play, bring your A game.",
				Cover: "/static/covers/gobang2.png", Tags: "ranked",
				CarryingCapacity: 2, QueueSymbol: "X;X", RankWeight: 20, BeHosting: true,
			},
			{
				ID: "room-werewolf-1", GameIndex: "werewolf", Rule: "classic 8-player village",
				Title: "Moonlit Village", Announcement: "Night falls every hour.",
				Cover: "/static/covers/werewolf1.png", Tags: "voice,party",
				CarryingCapacity: 8, QueueSymbol: "X,X,X,X;X,X,X,X", RankWeight: 15,
				Assistants: []string{"ai-werewolf-enzo"},
			},
		},
	}
}
