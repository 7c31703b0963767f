package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalDestination stores archives in a directory on this host.
type LocalDestination struct {
	dir string
}

// NewLocalDestination creates a destination rooted at dir.
func NewLocalDestination(dir string) *LocalDestination {
	if dir == "" {
		dir = "./data/backups"
	}
	return &LocalDestination{dir: dir}
}

func (d *LocalDestination) Store(name string, r io.Reader, sizeBytes int64) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	target := filepath.Join(d.dir, name)
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	if sizeBytes > 0 && written != sizeBytes {
		os.Remove(target)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d", sizeBytes, written)
	}
	return nil
}

func (d *LocalDestination) Retrieve(name string, w io.Writer) error {
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	return nil
}

func (d *LocalDestination) Delete(name string) error {
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	return nil
}

func (d *LocalDestination) List() ([]File, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return files, nil
}

func (d *LocalDestination) Type() string { return "local" }
