package handlers

import (
	"net/http"

	"hoodwatch/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusAccepted  = "accepted"
	statusResynced  = "resynced"
	statusCleaned   = "cleaned"
	errListSections = "failed to list sections"
	errResync       = "failed to resync sections"
	errMarkCleaned  = "failed to mark section cleaned"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// ReconnectRequest is the reconnect payload; address is optional and, when
// set, replaces the section's stored endpoint.
type ReconnectRequest struct {
	// New controller endpoint, host:port
	Address string `json:"address,omitempty" example:"10.0.8.21:502"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Category status summary
// @Description  Every section reporting a non-good level in the category; empty means fully healthy.
// @Tags         status
// @Produce      json
// @Param        category  query  string  true  "Category"  Enums(dps,pressure,lamp,cleaning)
// @Success      200  {object}  map[string]interface{}  "count, entries"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/status/summary [get]
// @Security     BearerAuth
func (h *Handler) getSummary(c *gin.Context) {
	cat := models.Category(c.Query("category"))
	entries, err := h.services.Status.Summary(cat)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Global health overview
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/status/overview [get]
// @Security     BearerAuth
func (h *Handler) getOverview(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Status.Overview())
}

// @Summary      List configured sections
// @Tags         sections
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, sections"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sections [get]
// @Security     BearerAuth
func (h *Handler) listSections(c *gin.Context) {
	sections, err := h.services.Fleet.Sections(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListSections, "sections_list_failed", err)
		return
	}
	type sectionView struct {
		models.Section
		ConnState models.ConnState `json:"conn_state"`
	}
	out := make([]sectionView, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionView{Section: s, ConnState: h.services.Status.ConnState(s.ID)})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "sections": out})
}

// @Summary      Resync fleet from configuration
// @Tags         sections
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sections/resync [post]
// @Security     BearerAuth
func (h *Handler) resyncSections(c *gin.Context) {
	if err := h.services.Fleet.Resync(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errResync, "sections_resync_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusResynced})
}

// @Summary      Standing faults of a section
// @Tags         sections
// @Produce      json
// @Param        id  path  string  true  "Section id"
// @Success      200  {object}  map[string]interface{}  "count, errors"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sections/{id}/errors [get]
// @Security     BearerAuth
func (h *Handler) getSectionErrors(c *gin.Context) {
	id := c.Param("id")
	records := h.services.Status.ErrorsForSection(id)
	c.JSON(http.StatusOK, gin.H{"count": len(records), "errors": records})
}

// @Summary      Lamp working hours of a section
// @Tags         sections
// @Produce      json
// @Param        id  path  string  true  "Section id"
// @Success      200  {object}  map[string]interface{}  "as_of, slots"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sections/{id}/hours [get]
// @Security     BearerAuth
func (h *Handler) getSectionHours(c *gin.Context) {
	id := c.Param("id")
	hours, asOf := h.services.Status.WorkingHours(id)

	type slotView struct {
		Slot           int      `json:"slot"`
		CurrentHours   *float64 `json:"current_hours,omitempty"`
		MaxHours       *float64 `json:"max_hours,omitempty"`
		RemainingHours *float64 `json:"remaining_hours,omitempty"`
	}
	slots := make([]slotView, 0, len(hours))
	for slot := 1; slot <= models.MaxLampSlots; slot++ {
		wh, ok := hours[slot]
		if !ok {
			continue
		}
		v := slotView{Slot: slot, CurrentHours: wh.CurrentHours, MaxHours: wh.MaxHours}
		if rem, known := wh.Remaining(); known {
			v.RemainingHours = &rem
		}
		slots = append(slots, v)
	}
	resp := gin.H{"section_id": id, "slots": slots}
	if !asOf.IsZero() {
		resp["as_of"] = asOf
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Reconnect a suspended section
// @Description  Queues one immediate poll attempt; outcome is observable via summary/error queries.
// @Tags         sections
// @Accept       json
// @Produce      json
// @Param        id    path  string            true   "Section id"
// @Param        body  body  ReconnectRequest  false  "Optional replacement address"
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/sections/{id}/reconnect [post]
// @Security     BearerAuth
func (h *Handler) reconnectSection(c *gin.Context) {
	id := c.Param("id")
	var req ReconnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}
	if err := h.services.Fleet.ReconnectSection(id, req.Address); err != nil {
		if h.log != nil {
			h.log.Infow("section_reconnect_rejected", "section", id, "err", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted, "section_id": id})
}

// @Summary      Mark a section cleaned
// @Tags         sections
// @Produce      json
// @Param        id  path  string  true  "Section id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sections/{id}/clean [post]
// @Security     BearerAuth
func (h *Handler) markCleaned(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Fleet.MarkCleaned(c.Request.Context(), id); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errMarkCleaned, "section_clean_failed", err, "section", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCleaned, "section_id": id})
}
