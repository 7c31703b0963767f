package instance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/hooks"
	"github.com/yourusername/mc-instance-manager/internal/ports"
)

func newTestManager(t *testing.T) (*Manager, *config.Config) {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DataDir = root
	cfg.Storage.InstancesDir = filepath.Join(root, "instances")
	cfg.Storage.RuntimesDir = filepath.Join(root, "runtimes")

	db, err := database.NewDB(filepath.Join(root, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	return NewManager(cfg, bus, ports.NewCoordinator(), db, hooks.ScriptRunner{}), cfg
}

func managerSettings(name string, port int) *config.InstanceSettings {
	return &config.InstanceSettings{
		Name:    name,
		Port:    port,
		Flavour: config.FlavourConfig{Kind: "vanilla"},
		Version: "1.20.1",
	}
}

func TestCreateAssignsIdentityAndPersists(t *testing.T) {
	m, cfg := newTestManager(t)

	sup, err := m.Create(managerSettings("survival", 25565))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sup.ID() == "" {
		t.Error("no id assigned")
	}
	if sup.State() != StateStopped {
		t.Errorf("new instance state is %s", sup.State())
	}

	// Settings file written into the instance directory.
	dir := filepath.Join(cfg.Storage.InstancesDir, sup.ID())
	if _, err := os.Stat(filepath.Join(dir, config.SettingsFileName)); err != nil {
		t.Errorf("settings file missing: %v", err)
	}

	got, err := m.Get(sup.ID())
	if err != nil || got != sup {
		t.Errorf("Get returned %v, %v", got, err)
	}
	if len(m.List()) != 1 {
		t.Errorf("List length %d", len(m.List()))
	}
}

func TestCreateRejectsDuplicatePort(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Create(managerSettings("a", 25565)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := m.Create(managerSettings("b", 25565))
	if !IsKind(err, KindResourceBusy) {
		t.Errorf("expected resource busy, got %v", err)
	}
}

func TestCreateValidatesSettings(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Create(&config.InstanceSettings{Name: "x", Port: 25565}); err == nil {
		t.Error("expected validation failure without flavour")
	}
	if _, err := m.Create(managerSettings("", 25566)); err == nil {
		t.Error("expected validation failure without name")
	}
}

func TestDeleteRemovesInstance(t *testing.T) {
	m, _ := newTestManager(t)

	sup, err := m.Create(managerSettings("survival", 25565))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dir := sup.Dir()

	if err := m.Delete(sup.ID(), true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(sup.ID()); err == nil {
		t.Error("instance still resolvable after delete")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("instance directory still present: %v", err)
	}

	// The port is free again.
	if _, err := m.Create(managerSettings("replacement", 25565)); err != nil {
		t.Errorf("port not released on delete: %v", err)
	}
}

func TestDeleteUnknownInstance(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Delete("nope", false); err == nil {
		t.Error("expected error for unknown instance")
	}
}

func TestRestoreReloadsInstancesFromDisk(t *testing.T) {
	m, cfg := newTestManager(t)

	sup, err := m.Create(managerSettings("survival", 25565))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := sup.ID()

	// A second manager over the same directories finds the instance again.
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	m2 := NewManager(cfg, bus, ports.NewCoordinator(), m.db, hooks.ScriptRunner{})
	if err := m2.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := m2.Get(id)
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if restored.Settings().Name != "survival" {
		t.Errorf("restored name %q", restored.Settings().Name)
	}
	// The restored instance holds its port reservation.
	if _, err := m2.Create(managerSettings("clash", 25565)); !IsKind(err, KindResourceBusy) {
		t.Errorf("expected port conflict after restore, got %v", err)
	}
}

func TestRestoreSkipsBrokenDirectories(t *testing.T) {
	m, cfg := newTestManager(t)

	broken := filepath.Join(cfg.Storage.InstancesDir, "broken")
	if err := os.MkdirAll(broken, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(broken, config.SettingsFileName), []byte("{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.Restore(); err != nil {
		t.Fatalf("Restore should not fail on broken dirs: %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("broken directory produced an instance")
	}
}
