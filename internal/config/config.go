// Package config resolves the store configuration from defaults, an
// optional YAML file and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/kvstore"
	"github.com/princespaghetti/dirkv/internal/platform"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".dirkv"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
)

// Environment variables consulted by Load.
const (
	EnvLocation          = "DIRKV_LOCATION"
	EnvFolder            = "DIRKV_FOLDER"
	EnvExcludeFromBackup = "DIRKV_EXCLUDE_FROM_BACKUP"
	EnvConfigFile        = "DIRKV_CONFIG"
)

// File is the on-disk configuration. Unset fields keep their defaults.
type File struct {
	Location          string `yaml:"location,omitempty"`
	Folder            string `yaml:"folder,omitempty"`
	ExcludeFromBackup *bool  `yaml:"exclude_from_backup,omitempty"`

	// Platform and PlatformVersion override host detection.
	Platform        string `yaml:"platform,omitempty"`
	PlatformVersion int    `yaml:"platform_version,omitempty"`
}

// Settings is the fully resolved configuration.
type Settings struct {
	Store    kvstore.Config
	Platform platform.Identity

	// Path is the config file that was read, or "" if none existed.
	Path string
}

// DefaultPath returns ~/.dirkv/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// Load resolves Settings. path selects the config file; when empty,
// EnvConfigFile and then DefaultPath are used. A missing file is not an
// error. Precedence is environment over file over defaults.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	file, found, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !found && explicit {
		return nil, fmt.Errorf("%w: config file %s does not exist", kverrors.ErrInvalidConfig, path)
	}

	s := &Settings{Platform: platform.Detect()}
	if found {
		s.Path = path
	}

	location := file.Location
	if location == "" {
		location, err = platform.DocumentDir()
		if err != nil {
			return nil, fmt.Errorf("resolve document directory: %w", err)
		}
	}
	s.Store = kvstore.DefaultConfig(location)
	if file.Folder != "" {
		s.Store.Folder = file.Folder
	}
	if file.ExcludeFromBackup != nil {
		s.Store.IncludeInBackup = !*file.ExcludeFromBackup
	}
	if file.Platform != "" {
		s.Platform.Family = platform.ParseFamily(file.Platform)
	}
	if file.PlatformVersion != 0 {
		s.Platform.Version = file.PlatformVersion
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvLocation); v != "" {
		s.Store.Location = v
	}
	if v := os.Getenv(EnvFolder); v != "" {
		s.Store.Folder = v
	}
	if v := os.Getenv(EnvExcludeFromBackup); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", kverrors.ErrInvalidConfig, EnvExcludeFromBackup, v)
		}
		s.Store.IncludeInBackup = !b
	}
	if v := os.Getenv(platform.EnvFamily); v != "" {
		s.Platform.Family = platform.ParseFamily(v)
	}
	if v := os.Getenv(platform.EnvVersion); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			s.Platform.Version = n
		}
	}
	return nil
}

func readFile(path string) (File, bool, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, false, nil
		}
		return f, false, fmt.Errorf("failed to read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, true, nil
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, false, fmt.Errorf("%w: failed to parse %s: %v", kverrors.ErrInvalidConfig, path, err)
	}
	return f, true, nil
}

// Save writes f to path, creating the parent directory.
func Save(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
