package handlers

import (
	"companion_gateway/internal/domain"

	"github.com/gin-gonic/gin"
)

// IngestGameResult receives a callback from the external game server.
// Replays come back with duplicate=true and change nothing.
func (h *Handler) IngestGameResult(c *gin.Context) {
	var gr domain.GameResult
	if err := c.ShouldBindJSON(&gr); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	if gr.AppUID == "" || gr.OrderID == "" {
		respondCode(c, CodeBadRequest, "app_uid and order_id are required", nil)
		return
	}
	inserted, err := h.Results.Ingest(c.Request.Context(), &gr)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"trace_id": gr.TraceID, "duplicate": !inserted})
}

// GameStats serves the signed-in user's aggregated play record.
func (h *Handler) GameStats(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	uid := c.DefaultQuery("uid", u.UID)
	stats, err := h.Results.Stats(c.Request.Context(), uid)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, stats)
}
