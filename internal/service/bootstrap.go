package service

import (
	"context"
	"fmt"

	"companion_gateway/internal/domain"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog is the declarative install set applied at startup: games, AI
// personas, and room definitions. Owner fields and ai_player_cnt are derived
// from the personas, not written by hand.
type Catalog struct {
	Games   []domain.InstalledGame
	Players []domain.AIPlayer
	Rooms   []RoomDef
}

// RoomDef is a room before derivation.
type RoomDef struct {
	ID               string
	GameIndex        string
	Rule             string
	Title            string
	Announcement     string
	Cover            string
	Tags             string
	CarryingCapacity int
	QueueSymbol      string
	RankWeight       int
	BeHosting        bool
	Assistants       []string
}

// BootstrapService installs the catalog: idempotent upserts, so reapplying
// the same catalog on every start is safe. Room counters are seeded to the
// derived ai_player_cnt on first install only.
type BootstrapService struct {
	rooms    *repository.RoomRepository
	installs *repository.InstallRepository
}

func NewBootstrapService(db *pgxpool.Pool) *BootstrapService {
	return &BootstrapService{
		rooms:    repository.NewRoomRepository(db),
		installs: repository.NewInstallRepository(db),
	}
}

// Apply installs the catalog. Every room must have exactly one master
// persona; hosted personas attach to their be_hosting_room_id on top of the
// room's own roster.
func (b *BootstrapService) Apply(ctx context.Context, catalog *Catalog) error {
	for i := range catalog.Games {
		if err := b.installs.UpsertGame(ctx, &catalog.Games[i]); err != nil {
			return fmt.Errorf("install game %s: %w", catalog.Games[i].Index, err)
		}
	}

	masters := make(map[string]*domain.AIPlayer)
	aiCnt := make(map[string]int)
	for i := range catalog.Players {
		p := &catalog.Players[i]
		if !p.Installed {
			continue
		}
		if p.IsMaster {
			if _, dup := masters[p.RoomID]; dup {
				return fmt.Errorf("room %s has more than one master persona", p.RoomID)
			}
			masters[p.RoomID] = p
		}
		aiCnt[p.RoomID]++
		if p.BeHosting && p.BeHostingRoomID != "" && p.BeHostingRoomID != p.RoomID {
			aiCnt[p.BeHostingRoomID]++
		}
	}

	for i := range catalog.Players {
		if err := b.installs.UpsertAIPlayer(ctx, &catalog.Players[i]); err != nil {
			return fmt.Errorf("install ai player %s: %w", catalog.Players[i].ID, err)
		}
	}

	for _, def := range catalog.Rooms {
		master, ok := masters[def.ID]
		if !ok {
			return fmt.Errorf("room %s has no master persona", def.ID)
		}
		if _, err := ParseQueueSymbol(def.QueueSymbol); err != nil {
			return fmt.Errorf("room %s: %w", def.ID, err)
		}
		room := &domain.Room{
			ID:               def.ID,
			GameIndex:        def.GameIndex,
			Rule:             def.Rule,
			Title:            def.Title,
			Announcement:     def.Announcement,
			Cover:            def.Cover,
			OwnerID:          master.ID,
			OwnerNickname:    master.Nickname,
			OwnerGender:      master.Gender,
			OwnerAvatar:      master.Avatar,
			Assistants:       def.Assistants,
			Tags:             def.Tags,
			CarryingCapacity: def.CarryingCapacity,
			QueueSymbol:      def.QueueSymbol,
			AIPlayerCnt:      aiCnt[def.ID],
			RankWeight:       def.RankWeight,
			BeHosting:        def.BeHosting,
		}
		if err := b.rooms.Upsert(ctx, room); err != nil {
			return fmt.Errorf("install room %s: %w", def.ID, err)
		}
	}

	logger.Info("catalog applied",
		"games", len(catalog.Games), "ai_players", len(catalog.Players), "rooms", len(catalog.Rooms))
	return nil
}
