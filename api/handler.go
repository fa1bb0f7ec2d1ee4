// Package api serves a read-mostly HTTP view of a running simulation.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kilianp07/emsdispatch/core/dispatch"
	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/incident"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/sim"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

// Intake accepts incidents reported from outside the generator.
type Intake interface {
	Submit(ctx context.Context, inc model.Incident) error
}

// Deps are the components read by the handlers.
type Deps struct {
	Fleet   *fleet.Fleet
	Tracker *incident.Tracker
	Events  *eventlog.Log
	// Intake is optional; without it POST /api/incidents is not served.
	Intake Intake
	Clock  clock.Clock
}

type Handler struct {
	Deps
	log      logger.Logger
	validate *validator.Validate
}

func NewHandler(d Deps, log logger.Logger) *Handler {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{
		Deps:     d,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the API under group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/fleet", h.listVehicles)
	api.GET("/fleet/:id", h.getVehicle)

	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		if h.Intake != nil {
			incidents.POST("", h.createIncident)
		}
	}

	api.GET("/events", h.listEvents)
	api.GET("/summary", h.getSummary)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listVehicles(c *gin.Context) {
	snaps := h.Fleet.Snapshot()
	if s := c.Query("status"); s != "" {
		st, err := model.ParseVehicleStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filtered := snaps[:0]
		for _, v := range snaps {
			if v.Status == st {
				filtered = append(filtered, v)
			}
		}
		snaps = filtered
	}
	c.JSON(http.StatusOK, snaps)
}

func (h *Handler) getVehicle(c *gin.Context) {
	v, ok := h.Fleet.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, v.Snapshot())
}

func (h *Handler) listIncidents(c *gin.Context) {
	var statuses []model.IncidentStatus
	for _, s := range c.QueryArray("status") {
		st, err := model.ParseIncidentStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		statuses = append(statuses, st)
	}
	c.JSON(http.StatusOK, toIncidentResponses(h.Tracker.List(statuses...)))
}

func (h *Handler) getIncident(c *gin.Context) {
	inc, ok := h.Tracker.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, toIncidentResponse(inc))
}

func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inc := model.Incident{
		ID:        input.ID,
		Location:  model.Coordinate{Lat: *input.Lat, Lon: *input.Lon},
		CreatedAt: h.Clock.Now(),
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	err := h.Intake.Submit(c.Request.Context(), inc)
	switch {
	case err == nil:
	case errors.Is(err, incident.ErrDuplicateIncident):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, dispatch.ErrStopped), errors.Is(err, dispatch.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	default:
		h.log.Errorf("submit incident %s: %v", inc.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if stored, ok := h.Tracker.Get(inc.ID); ok {
		inc = stored
	}
	c.JSON(http.StatusAccepted, toIncidentResponse(inc))
}

func (h *Handler) listEvents(c *gin.Context) {
	var since uint64
	if s := c.Query("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		since = v
	}
	kind := eventlog.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}
	events := h.Events.Since(since)
	out := make([]eventlog.Event, 0, len(events))
	for _, ev := range events {
		if kind == "" || ev.Kind == kind {
			out = append(out, ev)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, sim.Summarize(h.Tracker, h.Fleet, h.Events.Len()))
}
