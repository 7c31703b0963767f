package backup

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// Manager creates, restores and prunes instance backups against one
// destination. It works on instance directories; lifecycle checks (only
// restoring into a stopped instance, for example) belong to the caller.
type Manager struct {
	dest      Destination
	retention int // per-instance archives to keep, 0 keeps everything
}

// NewManager wires a manager to a destination.
func NewManager(dest Destination, retention int) *Manager {
	return &Manager{dest: dest, retention: retention}
}

// Create archives the instance directory and stores it, then enforces the
// retention budget for that instance.
func (m *Manager) Create(instanceID, dir string) (File, error) {
	name := fmt.Sprintf("%s-%s.tar.gz", instanceID, time.Now().UTC().Format("2006-01-02_15-04-05"))

	// Stage the archive in a temp file so its final size is known before
	// upload; S3 and SFTP both want it.
	tmp, err := os.CreateTemp("", "backup-*.tar.gz")
	if err != nil {
		return File{}, fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	fileCount, err := WriteArchive(dir, tmp)
	if err != nil {
		return File{}, err
	}
	info, err := tmp.Stat()
	if err != nil {
		return File{}, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return File{}, err
	}

	if err := m.dest.Store(name, tmp, info.Size()); err != nil {
		return File{}, err
	}
	slog.Info("backup created", "instance", instanceID, "name", name,
		"files", fileCount, "bytes", info.Size(), "destination", m.dest.Type())

	if err := m.enforceRetention(instanceID); err != nil {
		slog.Warn("backup retention enforcement failed", "instance", instanceID, "error", err)
	}

	return File{Name: name, SizeBytes: info.Size(), CreatedAt: time.Now().UTC()}, nil
}

// Restore unpacks a stored archive into the instance directory, overwriting
// existing files.
func (m *Manager) Restore(instanceID, name, dir string) error {
	if !strings.HasPrefix(name, instanceID+"-") {
		return fmt.Errorf("backup %q does not belong to instance %s", name, instanceID)
	}

	tmp, err := os.CreateTemp("", "restore-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := m.dest.Retrieve(name, tmp); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return err
	}
	if err := ExtractArchive(tmp, dir); err != nil {
		return err
	}
	slog.Info("backup restored", "instance", instanceID, "name", name)
	return nil
}

// List returns the stored archives of one instance, newest first.
func (m *Manager) List(instanceID string) ([]File, error) {
	all, err := m.dest.List()
	if err != nil {
		return nil, err
	}

	var files []File
	for _, f := range all {
		if strings.HasPrefix(f.Name, instanceID+"-") {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

// Delete removes one archive of the instance.
func (m *Manager) Delete(instanceID, name string) error {
	if !strings.HasPrefix(name, instanceID+"-") {
		return fmt.Errorf("backup %q does not belong to instance %s", name, instanceID)
	}
	return m.dest.Delete(name)
}

func (m *Manager) enforceRetention(instanceID string) error {
	if m.retention <= 0 {
		return nil
	}
	files, err := m.List(instanceID)
	if err != nil {
		return err
	}
	for _, f := range files[min(m.retention, len(files)):] {
		if err := m.dest.Delete(f.Name); err != nil {
			return err
		}
		slog.Info("pruned old backup", "instance", instanceID, "name", f.Name)
	}
	return nil
}
