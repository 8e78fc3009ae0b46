package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Sidecar is the small per-user config file that survives storage migrations.
// When the user relocates the storage root through the API, the new path is
// recorded here so the next start picks it up.
type Sidecar struct {
	StorageDir string `yaml:"storage_dir"`
}

func sidecarPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".acmtrack", "config.yaml"), nil
}

// LoadSidecar reads the sidecar file. A missing file yields a zero value, not
// an error.
func LoadSidecar() (Sidecar, error) {
	path, err := sidecarPath()
	if err != nil {
		return Sidecar{}, err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Sidecar{}, nil
	}
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar config: %w", err)
	}
	var sidecar Sidecar
	if err := yaml.Unmarshal(content, &sidecar); err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar config: %w", err)
	}
	return sidecar, nil
}

// SaveSidecar writes the sidecar file, creating its directory if needed.
func SaveSidecar(sidecar Sidecar) error {
	path, err := sidecarPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	content, err := yaml.Marshal(&sidecar)
	if err != nil {
		return fmt.Errorf("encode sidecar config: %w", err)
	}
	return os.WriteFile(path, content, 0o644)
}
