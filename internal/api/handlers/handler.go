package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/carconnect/internal/authorize"
	"github.com/langchou/carconnect/internal/oem"
	"github.com/langchou/carconnect/internal/service"
	"github.com/langchou/carconnect/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger         *zap.Logger
	connectService *service.ConnectService
	wsHub          *ws.Hub
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewHandler 创建处理器
// allowedOrigins 为空时只接受同源请求
func NewHandler(
	logger *zap.Logger,
	connectService *service.ConnectService,
	wsHub *ws.Hub,
	allowedOrigins []string,
) *Handler {
	h := &Handler{
		logger:         logger,
		connectService: connectService,
		wsHub:          wsHub,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

// originAllowed 来源是否在白名单中，"*" 表示全部
func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// checkOrigin 白名单或同源
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if originAllowed(h.allowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// CORSMiddleware CORS 中间件，只对白名单来源返回允许头
func (h *Handler) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(h.allowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/oems", h.ListOEMs)
		api.POST("/connect", h.StartConnect)
		api.GET("/sessions/:id", h.GetSession)
	}

	// 浏览器入口
	r.GET("/connect/:oem", h.RedirectConnect)
	r.GET("/callback", h.Callback)

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// statusFor 将领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, oem.ErrUnknownOEM),
		errors.Is(err, service.ErrOEMNotEnabled),
		errors.Is(err, authorize.ErrInvalidCallback),
		errors.Is(err, authorize.ErrStateMismatch),
		errors.Is(err, authorize.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, authorize.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionNotPending):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// HandleWebSocket 订阅单个会话的状态更新
// GET /ws?session=<id>
// 先注册再读取快照，读取之后发生的状态变化都会以更新消息送达
func (h *Handler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Query("session")
	if _, err := h.connectService.Get(c.Request.Context(), sessionID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn, sessionID)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()

	session, err := h.connectService.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to reload session", zap.String("session_id", sessionID), zap.Error(err))
		_ = client.SendError(err.Error())
		return
	}
	if err := client.SendInit(session); err != nil {
		h.logger.Error("Failed to send session snapshot", zap.Error(err))
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
