package backup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPDestination stores archives on a remote host over SFTP.
type SFTPDestination struct {
	cfg        DestinationConfig
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewSFTPDestination connects to the remote host and ensures the base
// directory exists.
func NewSFTPDestination(cfg DestinationConfig) (*SFTPDestination, error) {
	d := &SFTPDestination{cfg: cfg}
	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SFTPDestination) connect() error {
	hostKeyCallback, err := d.hostKeyCallback()
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            d.cfg.SFTPUsername,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}

	switch {
	case d.cfg.SFTPKeyPath != "":
		keyData, err := os.ReadFile(d.cfg.SFTPKeyPath)
		if err != nil {
			return fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return fmt.Errorf("failed to parse ssh key: %w", err)
		}
		sshConfig.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case d.cfg.SFTPPassword != "":
		sshConfig.Auth = []ssh.AuthMethod{ssh.Password(d.cfg.SFTPPassword)}
	default:
		return fmt.Errorf("no authentication method configured for sftp destination")
	}

	port := d.cfg.SFTPPort
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", d.cfg.SFTPHost, port)

	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacketUnchecked(131072),
		sftp.UseConcurrentWrites(true),
	)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to create sftp client: %w", err)
	}

	if err := sftpClient.MkdirAll(d.cfg.Path); err != nil {
		sftpClient.Close()
		sshClient.Close()
		return fmt.Errorf("failed to create remote backup directory: %w", err)
	}

	d.sshClient = sshClient
	d.sftpClient = sftpClient
	slog.Info("sftp backup destination ready", "addr", addr, "path", d.cfg.Path)
	return nil
}

func (d *SFTPDestination) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.cfg.KnownHostsPath == "" {
		// Without a known_hosts file the host key cannot be pinned.
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(d.cfg.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// Close tears down both connections.
func (d *SFTPDestination) Close() error {
	if d.sftpClient != nil {
		d.sftpClient.Close()
	}
	if d.sshClient != nil {
		d.sshClient.Close()
	}
	return nil
}

func (d *SFTPDestination) Store(name string, r io.Reader, sizeBytes int64) error {
	target := path.Join(d.cfg.Path, name)

	f, err := d.sftpClient.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		d.sftpClient.Remove(target)
		return fmt.Errorf("failed to write remote file: %w", err)
	}
	if sizeBytes > 0 && written != sizeBytes {
		d.sftpClient.Remove(target)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d", sizeBytes, written)
	}
	return nil
}

func (d *SFTPDestination) Retrieve(name string, w io.Writer) error {
	f, err := d.sftpClient.Open(path.Join(d.cfg.Path, name))
	if err != nil {
		return fmt.Errorf("failed to open remote file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read remote file: %w", err)
	}
	return nil
}

func (d *SFTPDestination) Delete(name string) error {
	if err := d.sftpClient.Remove(path.Join(d.cfg.Path, name)); err != nil {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}
	return nil
}

func (d *SFTPDestination) List() ([]File, error) {
	entries, err := d.sftpClient.ReadDir(d.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, File{
			Name:      entry.Name(),
			SizeBytes: entry.Size(),
			CreatedAt: entry.ModTime(),
		})
	}
	return files, nil
}

func (d *SFTPDestination) Type() string { return "sftp" }
