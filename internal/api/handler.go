package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/robot-scan-console/internal/console"
	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/metrics"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/repository"
	"github.com/mr1hm/robot-scan-console/internal/scanrun"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type Handler struct {
	console     *console.Console
	broadcaster *internalgrpc.Broadcaster
}

func NewHandler(c *console.Console, broadcaster *internalgrpc.Broadcaster) *Handler {
	return &Handler{
		console:     c,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", metrics.Handler())
	r.GET("/ws", h.streamEvents)

	api := r.Group("/api")
	api.GET("/area", h.getArea)
	api.POST("/area/target", h.dragTarget)
	api.PUT("/area/robot", h.setRobot)
	api.PUT("/area/zone", h.setZone)

	api.GET("/scan", h.getScan)
	api.POST("/scan/start", h.startScan)
	api.POST("/scan/pause", h.pauseScan)
	api.POST("/scan/resume", h.resumeScan)
	api.POST("/scan/stop", h.stopScan)

	api.GET("/history", h.getHistory)
	api.GET("/history.geojson", h.getHistoryGeoJSON)
	api.GET("/history/:id", h.getHistoryMarker)

	api.GET("/logs", h.getLogs)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pointRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (p pointRequest) point() geo.Point {
	return geo.Point{Lat: *p.Lat, Lng: *p.Lng}
}

func (h *Handler) getArea(c *gin.Context) {
	snap, err := h.console.Snapshot()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap.Area)
}

func (h *Handler) dragTarget(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	target, err := h.console.OnDragScanTarget(req.point())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": target})
}

func (h *Handler) setRobot(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	if err := h.console.SetRobotPosition(req.point()); err != nil {
		writeError(c, err)
		return
	}
	h.getArea(c)
}

func (h *Handler) setZone(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	h.console.SetZoneName(strings.TrimSpace(req.Name))
	h.getArea(c)
}

func (h *Handler) getScan(c *gin.Context) {
	snap, err := h.console.Snapshot()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) startScan(c *gin.Context)  { h.runCommand(c, h.console.OnStart) }
func (h *Handler) pauseScan(c *gin.Context)  { h.runCommand(c, h.console.OnPause) }
func (h *Handler) resumeScan(c *gin.Context) { h.runCommand(c, h.console.OnResume) }

func (h *Handler) stopScan(c *gin.Context) {
	h.console.OnStop()
	h.getScan(c)
}

func (h *Handler) runCommand(c *gin.Context, cmd func() error) {
	if err := cmd(); err != nil {
		writeError(c, err)
		return
	}
	h.getScan(c)
}

func (h *Handler) getHistory(c *gin.Context) {
	enabled, err := parseRiskSet(c.Query("risk"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	markers, err := h.console.History(c.Request.Context(), enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markers": markers})
}

func (h *Handler) getHistoryGeoJSON(c *gin.Context) {
	enabled, err := parseRiskSet(c.Query("risk"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	markers, err := h.console.History(c.Request.Context(), enabled)
	if err != nil {
		writeError(c, err)
		return
	}

	body, err := toGeoJSON(markers).MarshalJSON()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func (h *Handler) getHistoryMarker(c *gin.Context) {
	result, err := h.console.OnSelectHistoryMarker(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getLogs(c *gin.Context) {
	filter := repository.LogFilter{
		Limit: defaultLogLimit,
		Zone:  c.Query("zone"),
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLogLimit {
			filter.Limit = lim
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}

	logs, err := h.console.Logs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// parseRiskSet reads "low,medium". An empty value enables every level.
func parseRiskSet(s string) (repository.RiskSet, error) {
	if strings.TrimSpace(s) == "" {
		return repository.AllRisks(), nil
	}
	set := repository.RiskSet{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		level, err := models.ParseRiskLevel(part)
		if err != nil {
			return nil, err
		}
		set[level] = true
	}
	return set, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scanrun.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, geo.ErrInvalidLatitude):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
