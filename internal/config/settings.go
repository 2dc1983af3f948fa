package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Network NetworkSettings `json:"network"`
	Merge   MergeSettings   `json:"merge"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir"`
	BatchWorkers       int    `json:"batch_workers"`
	FrameParallelism   int    `json:"frame_parallelism"`
}

// NetworkSettings contains network parameters.
type NetworkSettings struct {
	UserAgent     string        `json:"user_agent"`
	RefererOrigin string        `json:"referer_origin"`
	ProxyURL      string        `json:"proxy_url"`
	SkipTLSVerify bool          `json:"skip_tls_verify"`
	HTTPTimeout   time.Duration `json:"http_timeout"`
	MaxRetries    int           `json:"max_retries"`
	RetryBackoff  time.Duration `json:"retry_backoff"`
}

// MergeSettings contains settings for the external merge tool.
type MergeSettings struct {
	FFmpegPath   string        `json:"ffmpeg_path"`
	MergeTimeout time.Duration `json:"merge_timeout"`
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	defaultDir := filepath.Join(homeDir, "Downloads")

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			BatchWorkers:       types.DefaultBatchWorkers,
			FrameParallelism:   types.DefaultFrameParallelism,
		},
		Network: NetworkSettings{
			UserAgent:     "", // Empty means use default UA
			RefererOrigin: "",
			HTTPTimeout:   types.DefaultHTTPTimeout,
			MaxRetries:    types.DefaultMaxRetries,
			RetryBackoff:  types.DefaultRetryBackoff,
		},
		Merge: MergeSettings{
			FFmpegPath:   "", // Empty means resolve "ffmpeg" on PATH
			MergeTimeout: types.DefaultMergeTimeout,
		},
	}
}

// GetConfigDir returns the directory holding kfget's settings file.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kfget")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".kfget"
	}
	return filepath.Join(homeDir, ".config", "kfget")
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	path := GetSettingsPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings.
func (s *Settings) ToRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		UserAgent:           s.Network.UserAgent,
		RefererOrigin:       s.Network.RefererOrigin,
		ProxyURL:            s.Network.ProxyURL,
		SkipTLSVerification: s.Network.SkipTLSVerify,
		FFmpegPath:          s.Merge.FFmpegPath,
		HTTPTimeout:         s.Network.HTTPTimeout,
		MergeTimeout:        s.Merge.MergeTimeout,
		MaxRetries:          s.Network.MaxRetries,
		RetryBackoff:        s.Network.RetryBackoff,
		BatchWorkers:        s.General.BatchWorkers,
		FrameParallelism:    s.General.FrameParallelism,
	}
}
