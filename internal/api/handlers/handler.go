package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langhaul/roadlog/internal/models"
	"github.com/langhaul/roadlog/internal/service"
	syncengine "github.com/langhaul/roadlog/internal/sync"
	"github.com/langhaul/roadlog/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	tracker  *service.Tracker
	engine   *syncengine.Engine
	deviceID string
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	tracker *service.Tracker,
	engine *syncengine.Engine,
	deviceID string,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:   logger,
		tracker:  tracker,
		engine:   engine,
		deviceID: deviceID,
		wsHub:    wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 本地驾驶舱 UI，允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 职责状态
		api.GET("/status", h.GetStatus)
		api.POST("/status", h.PostTransition)

		// 日志
		api.GET("/logs", h.ListLogs)
		api.POST("/logs/import", h.ImportLog)

		// 违规
		api.GET("/violations", h.ListViolations)

		// 遥测与车检
		api.POST("/locations", h.PostLocation)
		api.POST("/inspections", h.PostInspection)

		// 同步
		api.POST("/sync", h.TriggerSync)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// GetStatus 获取状态快照：当前状态、剩余时间、各队列积压与最近同步时间
func (h *Handler) GetStatus(c *gin.Context) {
	snapshot, err := h.tracker.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build status snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// PostTransition 执行状态转换
func (h *Handler) PostTransition(c *gin.Context) {
	var req struct {
		Status    models.DutyStatus `json:"status"`
		Latitude  *float64          `json:"latitude"`
		Longitude *float64          `json:"longitude"`
		Odometer  *float64          `json:"odometer"`
		Notes     string            `json:"notes"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var loc *models.Location
	if req.Latitude != nil && req.Longitude != nil {
		loc = &models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	closed, err := h.tracker.Transition(c.Request.Context(), service.TransitionRequest{
		NewStatus: req.Status,
		Location:  loc,
		Odometer:  req.Odometer,
		Notes:     req.Notes,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		h.logger.Error("Transition failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transition failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"status":     req.Status,
		"closed_log": closed,
	}})
}

// ListLogs 获取最近窗口内的职责日志
func (h *Handler) ListLogs(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "192"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hours"})
		return
	}

	logs, err := h.tracker.RecentLogs(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		h.logger.Error("Failed to list duty logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ImportLog 导入旧采集端的历史日志记录
func (h *Handler) ImportLog(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	log, err := h.tracker.ImportLog(c.Request.Context(), raw)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		h.logger.Error("Failed to import log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Import failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": log})
}

// ListViolations 当前评估周期的违规集合
func (h *Handler) ListViolations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.tracker.CurrentViolations()})
}

// PostLocation 接收位置采样
func (h *Handler) PostLocation(c *gin.Context) {
	var sample models.LocationSample
	if err := c.BindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.tracker.RecordLocation(c.Request.Context(), &sample); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		h.logger.Error("Failed to record location", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record location"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PostInspection 接收车检报告
func (h *Handler) PostInspection(c *gin.Context) {
	var report models.InspectionReport
	if err := c.BindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.tracker.SubmitInspection(c.Request.Context(), &report); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		h.logger.Error("Failed to submit inspection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit inspection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// TriggerSync 按需触发一次同步，返回本周期结果
func (h *Handler) TriggerSync(c *gin.Context) {
	result := h.engine.DrainAndSync(c.Request.Context(), h.deviceID)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
