package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if settings.General.DefaultDownloadDir == "" {
			t.Error("Default download directory should not be empty")
		}
		if !strings.Contains(strings.ToLower(settings.General.DefaultDownloadDir), "downloads") {
			t.Errorf("Default download dir should contain 'Downloads', got: %s", settings.General.DefaultDownloadDir)
		}
		if settings.General.BatchWorkers <= 0 {
			t.Errorf("BatchWorkers should be positive, got: %d", settings.General.BatchWorkers)
		}
		if settings.General.FrameParallelism <= 0 {
			t.Errorf("FrameParallelism should be positive, got: %d", settings.General.FrameParallelism)
		}
	})

	t.Run("NetworkSettings", func(t *testing.T) {
		// UserAgent can be empty (means use default)
		if settings.Network.HTTPTimeout <= 0 {
			t.Error("HTTPTimeout should be positive")
		}
		if settings.Network.MaxRetries <= 0 {
			t.Error("MaxRetries should be positive")
		}
		if settings.Network.RetryBackoff <= 0 {
			t.Error("RetryBackoff should be positive")
		}
	})

	t.Run("MergeSettings", func(t *testing.T) {
		// FFmpegPath can be empty (means resolve on PATH)
		if settings.Merge.MergeTimeout <= 0 {
			t.Error("MergeTimeout should be positive")
		}
	})
}

func TestSaveAndLoadSettings(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	settings := DefaultSettings()
	settings.General.BatchWorkers = 7
	settings.Network.UserAgent = "test-agent"
	settings.Merge.FFmpegPath = "/opt/ffmpeg/bin/ffmpeg"

	if err := SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if loaded.General.BatchWorkers != 7 {
		t.Errorf("BatchWorkers = %d, want 7", loaded.General.BatchWorkers)
	}
	if loaded.Network.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %q", loaded.Network.UserAgent)
	}
	if loaded.Merge.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", loaded.Merge.FFmpegPath)
	}

	// No leftover temp file from the atomic write.
	if _, err := os.Stat(GetSettingsPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp settings file left behind")
	}
}

func TestLoadSettingsMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if loaded.General.BatchWorkers != types.DefaultBatchWorkers {
		t.Errorf("BatchWorkers = %d, want default", loaded.General.BatchWorkers)
	}
}

func TestLoadSettingsFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	// A partial settings file from an older version.
	partial := `{"network": {"user_agent": "old-agent"}}`
	path := filepath.Join(dir, "kfget", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if loaded.Network.UserAgent != "old-agent" {
		t.Errorf("UserAgent = %q, want old-agent", loaded.Network.UserAgent)
	}
	if loaded.General.BatchWorkers != types.DefaultBatchWorkers {
		t.Errorf("missing fields should fall back to defaults, BatchWorkers = %d", loaded.General.BatchWorkers)
	}
}

func TestLoadSettingsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "kfget", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(); err == nil {
		t.Error("LoadSettings should fail on invalid JSON")
	}
}

func TestSettingsJSONShape(t *testing.T) {
	data, err := json.Marshal(DefaultSettings())
	if err != nil {
		t.Fatalf("marshal settings: %v", err)
	}
	for _, key := range []string{`"general"`, `"network"`, `"merge"`, `"batch_workers"`, `"ffmpeg_path"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("settings JSON missing %s: %s", key, data)
		}
	}
}

func TestToRuntimeConfig(t *testing.T) {
	settings := DefaultSettings()
	settings.Network.ProxyURL = "socks5://127.0.0.1:1080"
	settings.Network.HTTPTimeout = 42 * time.Second

	rc := settings.ToRuntimeConfig()
	if rc.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Errorf("ProxyURL = %q", rc.ProxyURL)
	}
	if rc.GetHTTPTimeout() != 42*time.Second {
		t.Errorf("HTTPTimeout = %v", rc.GetHTTPTimeout())
	}
	if rc.GetBatchWorkers() != types.DefaultBatchWorkers {
		t.Errorf("BatchWorkers = %d", rc.GetBatchWorkers())
	}
}
