package backup

import (
	"fmt"
	"io"
	"time"
)

// Destination is a storage backend for finished archives.
type Destination interface {
	// Store writes one archive under the given name.
	Store(name string, r io.Reader, sizeBytes int64) error

	// Retrieve streams a stored archive to w.
	Retrieve(name string, w io.Writer) error

	// Delete removes a stored archive.
	Delete(name string) error

	// List returns every stored archive.
	List() ([]File, error)

	// Type returns the backend identifier.
	Type() string
}

// File is one stored archive.
type File struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// DestinationConfig selects and parameterizes a backend.
type DestinationConfig struct {
	Type string `yaml:"type" json:"type"` // local, sftp, s3
	Path string `yaml:"path" json:"path"`

	SFTPHost       string `yaml:"sftp_host,omitempty" json:"sftp_host,omitempty"`
	SFTPPort       int    `yaml:"sftp_port,omitempty" json:"sftp_port,omitempty"`
	SFTPUsername   string `yaml:"sftp_username,omitempty" json:"sftp_username,omitempty"`
	SFTPPassword   string `yaml:"sftp_password,omitempty" json:"-"`
	SFTPKeyPath    string `yaml:"sftp_key_path,omitempty" json:"sftp_key_path,omitempty"`
	KnownHostsPath string `yaml:"known_hosts_path,omitempty" json:"known_hosts_path,omitempty"`

	S3Bucket    string `yaml:"s3_bucket,omitempty" json:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty" json:"s3_region,omitempty"`
	S3AccessKey string `yaml:"s3_access_key,omitempty" json:"-"`
	S3SecretKey string `yaml:"s3_secret_key,omitempty" json:"-"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty" json:"s3_endpoint,omitempty"`
}

// NewDestination builds the backend named by the config.
func NewDestination(cfg DestinationConfig) (Destination, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalDestination(cfg.Path), nil
	case "sftp":
		return NewSFTPDestination(cfg)
	case "s3":
		return NewS3Destination(cfg)
	default:
		return nil, fmt.Errorf("unsupported backup destination type %q", cfg.Type)
	}
}
