package handlers

import (
	"github.com/gin-gonic/gin"
)

// Me returns the signed-in user's profile.
func (h *Handler) Me(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	respondOK(c, u)
}

// Profile returns another user's public profile.
func (h *Handler) Profile(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		respondCode(c, CodeBadRequest, "uid is required", nil)
		return
	}
	u, err := h.Identity.Profile(c.Request.Context(), uid)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, u)
}

type setProfileRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Gender   int    `json:"gender"`
	Avatar   string `json:"avatar"`
	Birthday string `json:"birthday"`
}

// SetProfile updates the signed-in user's display profile.
func (h *Handler) SetProfile(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	var req setProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	updateTS, err := h.Identity.SetProfile(c.Request.Context(), u.UID, req.Nickname, req.Gender, req.Avatar, req.Birthday)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"update_ts": updateTS})
}
