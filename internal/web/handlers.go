package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/gridpulse/internal/master"
	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/store"
	"github.com/user/gridpulse/internal/util"
)

// Handlers contains the query-interface HTTP handlers. Every operation is a
// pure read of current engine/store state.
type Handlers struct {
	cfg    *util.Config
	engine *master.Engine
	store  *store.Store
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *util.Config, engine *master.Engine, st *store.Store) *Handlers {
	return &Handlers{cfg: cfg, engine: engine, store: st}
}

// GetStatus returns the aggregate per-outstation status and latest samples.
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.SystemStatus())
}

// GetOutstation returns full detail for one outstation, or 404.
func (h *Handlers) GetOutstation(c *gin.Context) {
	id, ok := h.outstationID(c)
	if !ok {
		return
	}
	status, err := h.engine.Status(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "outstation not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// measurementsResponse is the paginated history payload.
type measurementsResponse struct {
	OutstationID int                 `json:"outstation_id"`
	TotalRecords int                 `json:"total_records"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
	Measurements []model.Measurement `json:"measurements"`
}

// GetMeasurements returns history for one outstation, newest first. Invalid
// limit/offset values are normalized, not rejected.
func (h *Handlers) GetMeasurements(c *gin.Context) {
	id, ok := h.outstationID(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	measurements, err := h.store.History(id, limit, offset)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "outstation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, _ := h.store.Count(id)

	c.JSON(http.StatusOK, measurementsResponse{
		OutstationID: id,
		TotalRecords: total,
		Limit:        limit,
		Offset:       offset,
		Measurements: measurements,
	})
}

// GetStats returns min/max/avg per field over the current history window.
func (h *Handlers) GetStats(c *gin.Context) {
	id, ok := h.outstationID(c)
	if !ok {
		return
	}
	stats, err := h.store.Stats(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "outstation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outstation_id": id, "stats": stats})
}

// GetConfig returns the master configuration view.
func (h *Handlers) GetConfig(c *gin.Context) {
	outstations := make([]model.Outstation, 0, len(h.cfg.Outstations))
	for _, o := range h.cfg.Outstations {
		outstations = append(outstations, o.Identity())
	}
	c.JSON(http.StatusOK, gin.H{
		"master_id":         h.cfg.MasterID,
		"poll_interval":     h.cfg.PollInterval.String(),
		"failure_threshold": h.cfg.FailureThreshold,
		"history_capacity":  h.cfg.HistoryCapacity,
		"outstations":       outstations,
	})
}

// Health is the liveness endpoint.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

func (h *Handlers) outstationID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "outstation not found"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def))); err == nil {
		return v
	}
	return def
}
