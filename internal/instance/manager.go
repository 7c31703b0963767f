package instance

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/hooks"
	"github.com/yourusername/mc-instance-manager/internal/ports"
)

// Manager owns the set of supervisors on this host. It is the only component
// that creates, restores and deletes instances; lifecycle operations on an
// existing instance go straight to its supervisor.
type Manager struct {
	instancesDir string
	runtimesDir  string

	bus   *events.Bus
	ports *ports.Coordinator
	db    *database.DB
	hooks hooks.Runner

	mu        sync.RWMutex
	instances map[string]*Supervisor
}

// NewManager builds an empty manager. Call Restore to load instances already
// present on disk.
func NewManager(cfg *config.Config, bus *events.Bus, coordinator *ports.Coordinator,
	db *database.DB, hookRunner hooks.Runner) *Manager {
	return &Manager{
		instancesDir: cfg.Storage.InstancesDir,
		runtimesDir:  cfg.Storage.RuntimesDir,
		bus:          bus,
		ports:        coordinator,
		db:           db,
		hooks:        hookRunner,
		instances:    make(map[string]*Supervisor),
	}
}

// Restore scans the instances directory and re-registers every instance that
// has a readable settings file. A broken instance directory is logged and
// skipped, never fatal.
func (m *Manager) Restore() error {
	entries, err := os.ReadDir(m.instancesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(m.instancesDir, 0755)
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.instancesDir, entry.Name())
		settings, err := config.LoadInstanceSettings(dir)
		if err != nil {
			slog.Warn("skipping unreadable instance directory", "dir", dir, "error", err)
			continue
		}
		if err := m.ports.Allocate(settings.Port, settings.ID); err != nil {
			slog.Warn("skipping instance, port already reserved",
				"instance", settings.Name, "port", settings.Port, "error", err)
			continue
		}

		sup := NewSupervisor(settings, dir, m.runtimesDir, m.bus, m.ports, m.hooks)
		m.mu.Lock()
		m.instances[settings.ID] = sup
		m.mu.Unlock()
		slog.Info("restored instance", "instance", settings.Name, "id", settings.ID)
	}
	return nil
}

// Create registers a new instance: identity, port reservation, directory,
// settings file and database row. Partial failures roll back what was done.
func (m *Manager) Create(settings *config.InstanceSettings) (*Supervisor, error) {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	if err := settings.Validate(); err != nil {
		return nil, wrapError(KindInvalidState, err)
	}

	if err := m.ports.Allocate(settings.Port, settings.ID); err != nil {
		return nil, wrapError(KindResourceBusy, err)
	}

	dir := filepath.Join(m.instancesDir, settings.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		m.ports.Deallocate(settings.Port)
		return nil, wrapError(KindIOFailure, err)
	}
	if err := settings.Save(dir); err != nil {
		m.ports.Deallocate(settings.Port)
		_ = os.RemoveAll(dir)
		return nil, wrapError(KindIOFailure, err)
	}

	if err := m.db.InsertInstance(database.InstanceRecord{
		ID:      settings.ID,
		Name:    settings.Name,
		Port:    settings.Port,
		Flavour: settings.Flavour.Kind,
		Version: settings.Version,
	}); err != nil {
		m.ports.Deallocate(settings.Port)
		_ = os.RemoveAll(dir)
		return nil, wrapError(KindInternal, err)
	}

	sup := NewSupervisor(settings, dir, m.runtimesDir, m.bus, m.ports, m.hooks)
	m.mu.Lock()
	m.instances[settings.ID] = sup
	m.mu.Unlock()

	slog.Info("created instance", "instance", settings.Name, "id", settings.ID, "port", settings.Port)
	return sup, nil
}

// Get returns the supervisor for an instance id.
func (m *Manager) Get(id string) (*Supervisor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sup, ok := m.instances[id]
	if !ok {
		return nil, newError(KindInvalidState, "no such instance %q", id)
	}
	return sup, nil
}

// List returns all supervisors in no particular order.
func (m *Manager) List() []*Supervisor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Supervisor, 0, len(m.instances))
	for _, sup := range m.instances {
		out = append(out, sup)
	}
	return out
}

// Delete removes a stopped instance: registry entry, port reservation,
// database row and, when removeFiles is set, the instance directory.
func (m *Manager) Delete(id string, removeFiles bool) error {
	sup, err := m.Get(id)
	if err != nil {
		return err
	}
	if st := sup.State(); st != StateStopped {
		return newError(KindInvalidState, "cannot delete instance while %s", st)
	}

	sup.MarkDeleted()

	if err := m.db.DeleteInstance(id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()

	if removeFiles {
		if err := os.RemoveAll(sup.Dir()); err != nil {
			return wrapError(KindIOFailure, err)
		}
	}
	slog.Info("deleted instance", "id", id, "removed_files", removeFiles)
	return nil
}

// StopAll gracefully stops every non-stopped instance, blocking until all of
// them report Stopped. Used during daemon shutdown.
func (m *Manager) StopAll(causedBy events.CausedBy) {
	var wg sync.WaitGroup
	for _, sup := range m.List() {
		if sup.State() == StateStopped {
			continue
		}
		wg.Add(1)
		go func(sup *Supervisor) {
			defer wg.Done()
			if err := sup.Stop(causedBy, true); err != nil {
				slog.Warn("failed to stop instance during shutdown",
					"instance", sup.Name(), "error", err)
			}
		}(sup)
	}
	wg.Wait()
}
