package handlers

import (
	"strconv"

	"companion_gateway/internal/domain"
	"companion_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// ListRooms serves one ranked page of rooms. game_index "all" (the default)
// lists every game; fast=false hydrates each room's seat grid.
func (h *Handler) ListRooms(c *gin.Context) {
	gameIndex := c.DefaultQuery("game_index", "all")
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	fast := c.DefaultQuery("fast", "true") != "false"

	if fast {
		rooms, err := h.Rooms.ListRooms(c.Request.Context(), gameIndex, offset, limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, gin.H{"rooms": rooms})
		return
	}
	rooms, err := h.Rooms.ListRoomsDetailed(c.Request.Context(), gameIndex, offset, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"rooms": rooms})
}

// RoomDetail serves the hydrated view of one room.
func (h *Handler) RoomDetail(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		respondCode(c, CodeBadRequest, "room_id is required", nil)
		return
	}
	detail, err := h.Rooms.RoomDetail(c.Request.Context(), roomID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, detail)
}

// EnteredRoom tells the client which room it is still inside, so it can
// resume after a reconnect.
func (h *Handler) EnteredRoom(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	roomID, err := h.Rooms.EnteredRoom(c.Request.Context(), u.UID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"room_id": roomID})
}

type roomRequest struct {
	RoomID string `json:"room_id" binding:"required"`
}

type sitRequest struct {
	RoomID string `json:"room_id" binding:"required"`
	X      *int   `json:"x" binding:"required"`
	Y      *int   `json:"y" binding:"required"`
}

// transition runs one lifecycle operation shared by all the POST room
// endpoints.
func (h *Handler) transition(c *gin.Context, op func(u *domain.User, roomID string) (*service.TransitionResult, error)) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	res, err := op(u, req.RoomID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) EnterRoom(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.EnterRoom(c.Request.Context(), u, roomID)
	})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.LeaveRoom(c.Request.Context(), u, roomID)
	})
}

func (h *Handler) Sit(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	var req sitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	res, err := h.Rooms.Sit(c.Request.Context(), u, req.RoomID, *req.X, *req.Y)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) Stand(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.Stand(c.Request.Context(), u, roomID, false)
	})
}

func (h *Handler) Ready(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.Ready(c.Request.Context(), u, roomID)
	})
}

func (h *Handler) Unready(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.Unready(c.Request.Context(), u, roomID)
	})
}

func (h *Handler) StartBattle(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.StartBattle(c.Request.Context(), u, roomID)
	})
}

func (h *Handler) EndBattle(c *gin.Context) {
	h.transition(c, func(u *domain.User, roomID string) (*service.TransitionResult, error) {
		return h.Rooms.EndBattle(c.Request.Context(), u, roomID)
	})
}
