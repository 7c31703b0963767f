package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the per-instance settings file written into each
// instance directory.
const SettingsFileName = "instance.yaml"

// InstanceSettings represents one game-server instance configuration
type InstanceSettings struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Port        int           `yaml:"port" json:"port"`
	Flavour     FlavourConfig `yaml:"flavour" json:"flavour"`
	Version     string        `yaml:"version" json:"version"`
	MinRAMMB    int           `yaml:"min_ram_mb" json:"min_ram_mb"`
	MaxRAMMB    int           `yaml:"max_ram_mb" json:"max_ram_mb"`
	JavaCmd     string        `yaml:"java_cmd,omitempty" json:"java_cmd,omitempty"`
	JreMajor    int           `yaml:"jre_major_version,omitempty" json:"jre_major_version,omitempty"`
	CmdArgs     []string      `yaml:"cmd_args,omitempty" json:"cmd_args,omitempty"`
	CustomCmd   string        `yaml:"custom_cmd,omitempty" json:"custom_cmd,omitempty"`
	RCON        RCONConfig    `yaml:"rcon" json:"rcon"`
	RestartCron string        `yaml:"restart_cron,omitempty" json:"restart_cron,omitempty"`
	StopCommand string        `yaml:"stop_command,omitempty" json:"stop_command,omitempty"`
	HasStarted  bool          `yaml:"has_started" json:"has_started"`
}

// FlavourConfig identifies the server software variant and its build
// coordinates. Kind is one of: vanilla, fabric, paper, forge, neoforge.
type FlavourConfig struct {
	Kind             string `yaml:"kind" json:"kind"`
	BuildVersion     string `yaml:"build_version,omitempty" json:"build_version,omitempty"`
	LoaderVersion    string `yaml:"loader_version,omitempty" json:"loader_version,omitempty"`
	InstallerVersion string `yaml:"installer_version,omitempty" json:"installer_version,omitempty"`
}

// RCONConfig contains remote-console settings
type RCONConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
}

// ShutdownCommand returns the console command used for graceful shutdown.
func (s *InstanceSettings) ShutdownCommand() string {
	if s.StopCommand != "" {
		return s.StopCommand
	}
	return "stop"
}

// Validate checks the settings for obvious misconfiguration.
func (s *InstanceSettings) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("instance id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("instance name is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("instance port %d out of range", s.Port)
	}
	switch s.Flavour.Kind {
	case "vanilla", "fabric", "paper", "forge", "neoforge":
	case "":
		return fmt.Errorf("flavour kind is required")
	default:
		return fmt.Errorf("unknown flavour kind %q", s.Flavour.Kind)
	}
	if s.RCON.Enabled {
		if s.RCON.Port <= 0 || s.RCON.Port > 65535 {
			return fmt.Errorf("rcon port %d out of range", s.RCON.Port)
		}
		if s.RCON.Password == "" {
			return fmt.Errorf("rcon enabled but password not set")
		}
	}
	return nil
}

// LoadInstanceSettings reads the settings file from an instance directory.
func LoadInstanceSettings(dir string) (*InstanceSettings, error) {
	path := filepath.Join(dir, SettingsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance settings: %w", err)
	}

	var settings InstanceSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse instance settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance settings: %w", err)
	}

	return &settings, nil
}

// Save writes the settings file into the instance directory.
func (s *InstanceSettings) Save(dir string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal instance settings: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write instance settings: %w", err)
	}
	return nil
}
