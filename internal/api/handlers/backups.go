package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mc-instance-manager/internal/backup"
	"github.com/yourusername/mc-instance-manager/internal/instance"
)

// BackupHandler exposes backup operations over HTTP. Archives are created
// from and restored into the instance directory; restores require the
// instance to be stopped so the server is not running on the files.
type BackupHandler struct {
	manager *instance.Manager
	backups *backup.Manager
}

// NewBackupHandler creates a backup handler.
func NewBackupHandler(manager *instance.Manager, backups *backup.Manager) *BackupHandler {
	return &BackupHandler{manager: manager, backups: backups}
}

// List returns the stored backups of one instance, newest first.
func (h *BackupHandler) List(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	files, err := h.backups.List(sup.ID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": files})
}

// Create archives the instance directory. Backing up a running instance is
// allowed but the archive may catch the world mid-save; clients that want a
// consistent snapshot should stop the instance first.
func (h *BackupHandler) Create(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	file, err := h.backups.Create(sup.ID(), sup.Dir())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, file)
}

// Restore unpacks a stored backup into the instance directory. The instance
// must be stopped.
func (h *BackupHandler) Restore(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if sup.State() != instance.StateStopped {
		c.JSON(http.StatusConflict, gin.H{"error": "instance must be stopped before restoring a backup"})
		return
	}
	if err := h.backups.Restore(sup.ID(), c.Param("name"), sup.Dir()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes one stored backup.
func (h *BackupHandler) Delete(c *gin.Context) {
	sup, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := h.backups.Delete(sup.ID(), c.Param("name")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BackupHandler) lookup(c *gin.Context) (*instance.Supervisor, bool) {
	sup, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sup, true
}
