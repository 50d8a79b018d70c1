package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TRENDCAST_PORT", "")
	t.Setenv("TRENDCAST_DATA_DIR", "")

	cfg, info, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 8501 {
		t.Fatalf("port = %d, want 8501", cfg.Server.Port)
	}
	if info.PortSpecified {
		t.Fatalf("port should not be marked as specified")
	}
	if cfg.Forecast.Frequency != "M" {
		t.Fatalf("frequency = %q, want M", cfg.Forecast.Frequency)
	}
}

func TestLoadConfigOverridesAndPortDetection(t *testing.T) {
	t.Setenv("TRENDCAST_PORT", "")
	t.Setenv("TRENDCAST_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9000

[session]
ttl = "30m"

[validation]
workers = 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !info.PortSpecified {
		t.Fatalf("expected port to be marked as specified")
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if got := cfg.SessionTTL(); got != 30*time.Minute {
		t.Fatalf("ttl = %s, want 30m", got)
	}
	if cfg.Validation.Workers != 3 {
		t.Fatalf("workers = %d, want 3", cfg.Validation.Workers)
	}
	// 未配置的段保留默认值
	if cfg.Forecast.NChangepoints != 25 {
		t.Fatalf("n_changepoints = %d, want 25", cfg.Forecast.NChangepoints)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TRENDCAST_PORT", "7777")
	t.Setenv("TRENDCAST_DATA_DIR", "/tmp/trendcast-data")

	cfg, info, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 7777 || !info.PortSpecified {
		t.Fatalf("env port not applied: %d %v", cfg.Server.Port, info.PortSpecified)
	}
	if cfg.Data.DataDir != "/tmp/trendcast-data" {
		t.Fatalf("data dir = %q", cfg.Data.DataDir)
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := ParseDuration("bogus", time.Second); got != time.Second {
		t.Fatalf("got %s, want fallback", got)
	}
	if got := ParseDuration("-5m", time.Second); got != time.Second {
		t.Fatalf("negative duration should fall back, got %s", got)
	}
	if got := ParseDuration("90s", time.Second); got != 90*time.Second {
		t.Fatalf("got %s, want 90s", got)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("TRENDCAST_PORT", "")
	t.Setenv("TRENDCAST_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 1234
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 1234 {
		t.Fatalf("port = %d, want 1234", loaded.Server.Port)
	}
}

func TestEnsureDataDirAbsolute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Data.DataDir = filepath.Join(t.TempDir(), "a", "b")
	dir, err := EnsureDataDir(cfg)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if dir != cfg.Data.DataDir {
		t.Fatalf("dir = %q, want %q", dir, cfg.Data.DataDir)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
}

func TestPortSpecifiedIgnoresOtherSections(t *testing.T) {
	if portSpecified([]byte("[forecast]\nport = 1\n")) {
		t.Fatalf("port outside [server] must not count")
	}
	if !portSpecified([]byte("[server]\nport = 0\n")) {
		t.Fatalf("explicit zero port should count as specified")
	}
}
