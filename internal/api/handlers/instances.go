package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/instance"
	"github.com/yourusername/mc-instance-manager/internal/scheduler"
)

// InstanceHandler exposes instance lifecycle operations over HTTP.
type InstanceHandler struct {
	manager *instance.Manager
	db      *database.DB
	sched   *scheduler.Scheduler
}

// NewInstanceHandler creates an instance handler. The scheduler may be nil
// when scheduled restarts are disabled.
func NewInstanceHandler(manager *instance.Manager, db *database.DB, sched *scheduler.Scheduler) *InstanceHandler {
	return &InstanceHandler{manager: manager, db: db, sched: sched}
}

type instanceSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Port    int    `json:"port"`
	Flavour string `json:"flavour"`
	Version string `json:"version"`
	Players int    `json:"players"`
}

func summarize(sup *instance.Supervisor) instanceSummary {
	settings := sup.Settings()
	return instanceSummary{
		ID:      sup.ID(),
		Name:    settings.Name,
		State:   sup.State().String(),
		Port:    settings.Port,
		Flavour: settings.Flavour.Kind,
		Version: settings.Version,
		Players: len(sup.Players()),
	}
}

// List returns a summary of every instance.
func (h *InstanceHandler) List(c *gin.Context) {
	sups := h.manager.List()
	out := make([]instanceSummary, 0, len(sups))
	for _, sup := range sups {
		out = append(out, summarize(sup))
	}
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

// Create registers a new instance from the posted settings.
func (h *InstanceHandler) Create(c *gin.Context) {
	var settings config.InstanceSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sup, err := h.manager.Create(&settings)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if h.sched != nil {
		if err := h.sched.Register(sup); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid restart_cron: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, summarize(sup))
}

// Get returns the full detail of one instance.
func (h *InstanceHandler) Get(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":       sup.Settings(),
		"state":          sup.State().String(),
		"players":        sup.Players(),
		"rcon_active":    sup.RCONActive(),
		"uptime_seconds": int64(sup.Uptime().Seconds()),
	})
}

// Delete removes a stopped instance. Pass files=true to also remove the
// instance directory.
func (h *InstanceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	removeFiles := c.Query("files") == "true"

	if h.sched != nil {
		h.sched.Unregister(id)
	}
	if err := h.manager.Delete(id, removeFiles); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Start launches the instance process. Pass block=true to wait until the
// instance reports ready.
func (h *InstanceHandler) Start(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := sup.Start(causedBy(c), c.Query("block") == "true"); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sup.State().String()})
}

// Stop requests a graceful shutdown. Pass block=true to wait for exit.
func (h *InstanceHandler) Stop(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := sup.Stop(causedBy(c), c.Query("block") == "true"); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sup.State().String()})
}

// Restart stops then starts the instance.
func (h *InstanceHandler) Restart(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := sup.Restart(causedBy(c), c.Query("block") == "true"); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sup.State().String()})
}

// Kill forcibly terminates the instance process.
func (h *InstanceHandler) Kill(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := sup.Kill(causedBy(c)); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sup.State().String()})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// Command writes a console command to the instance.
func (h *InstanceHandler) Command(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}
	if err := sup.SendCommand(req.Command, causedBy(c)); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// State returns just the lifecycle state.
func (h *InstanceHandler) State(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": sup.State().String()})
}

// Monitor returns a resource usage snapshot.
func (h *InstanceHandler) Monitor(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sup.Monitor())
}

// Players lists the currently connected players.
func (h *InstanceHandler) Players(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": sup.Players()})
}

// Events returns the recent event history for the instance, newest first.
func (h *InstanceHandler) Events(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	evs, err := h.db.ListEvents(sup.ID(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// Metrics returns stored resource samples for the instance, newest first.
func (h *InstanceHandler) Metrics(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	samples, err := h.db.ListMetrics(sup.ID(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": samples})
}

func (h *InstanceHandler) lookup(c *gin.Context) (*instance.Supervisor, bool) {
	sup, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sup, true
}

func causedBy(c *gin.Context) events.CausedBy {
	if username := c.GetString("username"); username != "" {
		return events.User("", username)
	}
	return events.Unknown()
}

// statusFor maps domain error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case instance.IsKind(err, instance.KindInvalidTransition),
		instance.IsKind(err, instance.KindInvalidState),
		instance.IsKind(err, instance.KindResourceBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
