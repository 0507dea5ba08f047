package handlers

import (
	"errors"
	"net/http"

	"companion_gateway/internal/domain"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"
	"companion_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// Envelope codes outside the domain ranges.
const (
	CodeOK           = 0
	CodeUnauthorized = 10401
	CodeInternal     = 10500
	CodeBadRequest   = 10400
)

// Response is the uniform envelope. Domain rejections ride in code/msg with
// HTTP 200; only transport-level problems surface as non-200.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Msg: "ok", Data: data})
}

func respondCode(c *gin.Context, code int, msg string, data any) {
	c.JSON(http.StatusOK, Response{Code: code, Msg: msg, Data: data})
}

// respondErr maps service errors onto envelope codes. Unknown errors become
// 10500 and are logged with the request path.
func respondErr(c *gin.Context, err error) {
	var tErr *service.TransitionError
	if errors.As(err, &tErr) {
		var data any
		if tErr.Code == service.CodeFrozen {
			data = gin.H{"seconds_left": tErr.SecondsLeft}
		}
		respondCode(c, tErr.Code, tErr.Msg, data)
		return
	}
	var rErr *service.RequestError
	if errors.As(err, &rErr) {
		respondCode(c, rErr.Code, rErr.Msg, nil)
		return
	}
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		respondCode(c, CodeBadRequest, "room not found", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		respondCode(c, CodeBadRequest, "user not found", nil)
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrDevicechanged):
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
	case errors.Is(err, service.ErrLockUnavailable):
		logger.Alarm("room_lock", "room busy, lock not acquired", "path", c.FullPath(), "error", err)
		respondCode(c, CodeInternal, "room is busy, try again", nil)
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		respondCode(c, CodeInternal, "internal error", nil)
	}
}

// currentUser returns the profile the auth middleware resolved.
func currentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

// Handler bundles the services behind the API surface.
type Handler struct {
	Identity *service.IdentityService
	Auth     *service.AuthService
	Rooms    *service.RoomService
	Results  *service.ResultService
}

func NewHandler(identity *service.IdentityService, auth *service.AuthService, rooms *service.RoomService, results *service.ResultService) *Handler {
	return &Handler{Identity: identity, Auth: auth, Rooms: rooms, Results: results}
}
