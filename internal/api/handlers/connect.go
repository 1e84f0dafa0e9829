package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListOEMs 获取启用的 OEM 目录
func (h *Handler) ListOEMs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.connectService.Catalog()})
}

type connectRequest struct {
	OEM string `json:"oem" binding:"required"`
}

// StartConnect 发起连接，返回授权地址
// POST /api/connect
func (h *Handler) StartConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.connectService.Start(c.Request.Context(), req.OEM)
	if err != nil {
		h.logger.Warn("Failed to start connect", zap.String("oem", req.OEM), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": res.Session.ID,
		"url":        res.URL,
	})
}

// RedirectConnect 浏览器直接跳转到授权页
// GET /connect/:oem
func (h *Handler) RedirectConnect(c *gin.Context) {
	res, err := h.connectService.Start(c.Request.Context(), c.Param("oem"))
	if err != nil {
		h.logger.Warn("Failed to start connect", zap.String("oem", c.Param("oem")), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.Redirect(http.StatusFound, res.URL)
}

// Callback 平台重定向回调
// GET /callback?code=...&state=...
func (h *Handler) Callback(c *gin.Context) {
	session, err := h.connectService.Complete(c.Request.Context(), c.Request.URL.String())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to complete connect", zap.Error(err))
		} else {
			h.logger.Info("Connect callback rejected", zap.Int("status", status), zap.Error(err))
		}

		body := gin.H{"error": err.Error()}
		// 拒绝或过期时会话已进入终态
		if session != nil {
			body["session_id"] = session.ID
			body["status"] = session.Status
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"status":     session.Status,
	})
}

// GetSession 查询会话状态
// GET /api/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.connectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}
