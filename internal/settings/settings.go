// Package settings persists the plugin's user settings in GIMP's per-user
// config directory, alongside the other 3.0 plugin state. The store keeps
// a working copy in memory so a read-only config directory degrades to
// session-only settings instead of an error.
package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

const (
	configFileName  = "dream-background-remover-config.json"
	gimpVersion     = "3.0"
	filePermissions = 0o600
)

// Model keys accepted by the settings file, mapped to the Replicate model
// identifier the client submits.
const (
	ModelKey851Labs = "851-labs"
	ModelKeyBria    = "bria"

	DefaultModelKey = ModelKey851Labs
)

var modelVersions = map[string]string{
	ModelKey851Labs: "851-labs/background-remover:a029dff38972b5fda4ec5d75d7d1cd25aeff621d2cf4946a41055d7db66b80bc",
	ModelKeyBria:    "bria/remove-background",
}

var modelDisplayNames = map[string]string{
	ModelKey851Labs: "851 Labs Background Remover (Default)",
	ModelKeyBria:    "Bria Remove Background",
}

// ModelVersion resolves a model key to the full Replicate identifier,
// falling back to the default model for unknown keys.
func ModelVersion(key string) string {
	if v, ok := modelVersions[key]; ok {
		return v
	}
	return modelVersions[DefaultModelKey]
}

// ModelDisplayName returns a user-facing name for a model key.
func ModelDisplayName(key string) string {
	if v, ok := modelDisplayNames[key]; ok {
		return v
	}
	return key
}

// KnownModel reports whether a model key is one the plugin ships.
func KnownModel(key string) bool {
	_, ok := modelVersions[key]
	return ok
}

// Settings is the persisted shape. Field names match the original config
// file so existing installs keep their key.
type Settings struct {
	APIKey        string `json:"api_key"`
	Mode          string `json:"mode"`
	APIKeyVisible bool   `json:"api_key_visible"`
	Model         string `json:"model"`
}

func defaults() Settings {
	return Settings{
		Mode:  "layer",
		Model: DefaultModelKey,
	}
}

// JobMode maps the persisted short mode ("layer"/"file") to the job mode.
func (s Settings) JobMode() model.Mode {
	if s.Mode == "file" {
		return model.ModeCreateFile
	}
	return model.ModeCreateLayer
}

// Store loads and saves settings at a fixed path.
type Store struct {
	mu      sync.Mutex
	path    string
	current Settings
	loaded  bool
}

// NewStore creates a store at path; an empty path uses the platform's
// GIMP config directory.
func NewStore(path string) *Store {
	if path == "" {
		path = defaultPath()
	}
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the current settings. Disk is read once; a missing or
// corrupt file yields defaults.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.current
	}
	s.current = readFile(s.path)
	s.loaded = true
	return s.current
}

// Save updates the in-memory settings and attempts to persist them with
// owner-only permissions. The in-memory copy is updated even when the
// write fails, so the session keeps working.
func (s *Store) Save(st Settings) error {
	if st.Mode != "layer" && st.Mode != "file" {
		return fmt.Errorf("invalid mode: %q", st.Mode)
	}
	if !KnownModel(st.Model) {
		log.Printf("[Settings] Unknown model %q, using default %q", st.Model, DefaultModelKey)
		st.Model = DefaultModelKey
	}

	s.mu.Lock()
	s.current = st
	s.loaded = true
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	// WriteFile permissions only apply on create; tighten pre-existing files.
	if err := os.Chmod(s.path, filePermissions); err != nil {
		log.Printf("[Settings] Could not set permissions on %s: %v", s.path, err)
	}
	return nil
}

func readFile(path string) Settings {
	st := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Settings] Failed to read settings file: %v", err)
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("[Settings] Invalid JSON in settings file: %v", err)
		return defaults()
	}
	if st.Mode != "layer" && st.Mode != "file" {
		st.Mode = "layer"
	}
	if !KnownModel(st.Model) {
		st.Model = DefaultModelKey
	}
	return st
}

func defaultPath() string {
	var dir string
	switch runtime.GOOS {
	case "windows":
		appdata := os.Getenv("APPDATA")
		if appdata == "" {
			home, _ := os.UserHomeDir()
			appdata = filepath.Join(home, "AppData", "Roaming")
		}
		dir = filepath.Join(appdata, "GIMP", gimpVersion)
	case "darwin":
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, "Library", "Application Support", "GIMP", gimpVersion)
	default:
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config", "GIMP", gimpVersion)
	}
	return filepath.Join(dir, configFileName)
}
