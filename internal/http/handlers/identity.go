package handlers

import (
	"github.com/gin-gonic/gin"
)

type sendCodeRequest struct {
	Mobile string `json:"mobile" binding:"required"`
}

// SendSMSCode delivers a verification code, charging the phone's daily
// bucket. Data carries the tokens left.
func (h *Handler) SendSMSCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	remaining, err := h.Identity.SendCode(c.Request.Context(), req.Mobile)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"remaining_tokens": remaining})
}

type loginRequest struct {
	Mobile             string `json:"mobile" binding:"required"`
	Code               string `json:"code" binding:"required"`
	DeviceType         int    `json:"device_type"`
	DeviceID           string `json:"device_id" binding:"required"`
	PushRegistrationID string `json:"push_registration_id"`
}

// Login verifies the code and signs the user in, minting a fresh token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, CodeBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.Identity.Login(c.Request.Context(),
		req.Mobile, req.Code, req.DeviceType, req.DeviceID, req.PushRegistrationID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, result)
}

// Logout flips the account offline and drops the device binding.
func (h *Handler) Logout(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		respondCode(c, CodeUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.Identity.Logout(c.Request.Context(), u.Account, u.UID); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, nil)
}

// TotalUsers serves the platform-wide registered-user count.
func (h *Handler) TotalUsers(c *gin.Context) {
	n, err := h.Identity.TotalUserCount(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"total_user_cnt": n})
}
