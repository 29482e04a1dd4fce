package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadFromFilesDefaults(t *testing.T) {
	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", config.Server.Port)
	}
	if config.Browser.BaseURL != "https://app.jazz.co" {
		t.Errorf("Browser.BaseURL = %q, want app.jazz.co", config.Browser.BaseURL)
	}
	if config.Browser.Headless {
		t.Error("Browser.Headless = true, want false by default")
	}
	if config.Downloads.OutputDir != "./resumes" {
		t.Errorf("Downloads.OutputDir = %q, want ./resumes", config.Downloads.OutputDir)
	}
	if config.JazzHR.RequestsPerMinute != 80 {
		t.Errorf("JazzHR.RequestsPerMinute = %d, want 80", config.JazzHR.RequestsPerMinute)
	}
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[server]
port = 9000

[browser]
headless = true
login_wait = "30s"
`)
	override := writeConfigFile(t, "override.toml", `
[server]
port = 9100
`)

	config, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}

	if config.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100 from later file", config.Server.Port)
	}
	if !config.Browser.Headless {
		t.Error("Browser.Headless = false, want true from base file")
	}
	if config.Browser.LoginWait != 30*time.Second {
		t.Errorf("Browser.LoginWait = %v, want 30s", config.Browser.LoginWait)
	}
	// Untouched values keep their defaults
	if config.Downloads.PruneSchedule != "@every 10m" {
		t.Errorf("Downloads.PruneSchedule = %q, want default", config.Downloads.PruneSchedule)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles("does-not-exist.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromFilesInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, "bad.toml", `
[server]
port = -1
`)
	if _, err := LoadFromFiles(path); err == nil {
		t.Fatal("expected validation error for negative port")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HARVEST_SERVER_PORT", "9500")
	t.Setenv("HARVEST_BROWSER_HEADLESS", "true")
	t.Setenv("HARVEST_LOG_OUTPUT", "stdout, file")
	t.Setenv("JAZZHR_API_KEY", "test-key")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles() error = %v", err)
	}

	if config.Server.Port != 9500 {
		t.Errorf("Server.Port = %d, want 9500 from env", config.Server.Port)
	}
	if !config.Browser.Headless {
		t.Error("Browser.Headless = false, want true from env")
	}
	if len(config.Logging.Output) != 2 || config.Logging.Output[0] != "stdout" || config.Logging.Output[1] != "file" {
		t.Errorf("Logging.Output = %v, want [stdout file]", config.Logging.Output)
	}
	if config.JazzHR.APIKey != "test-key" {
		t.Errorf("JazzHR.APIKey = %q, want test-key", config.JazzHR.APIKey)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	headless := true
	ApplyFlagOverrides(config, 7000, "0.0.0.0", &headless)

	if config.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", config.Server.Port)
	}
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", config.Server.Host)
	}
	if !config.Browser.Headless {
		t.Error("Browser.Headless = false, want true from flag")
	}

	// Zero values leave the config untouched
	ApplyFlagOverrides(config, 0, "", nil)
	if config.Server.Port != 7000 || config.Server.Host != "0.0.0.0" || !config.Browser.Headless {
		t.Error("zero-value overrides should not change the config")
	}
}
