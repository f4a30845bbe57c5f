package startup

import (
	"path/filepath"
	"testing"
	"time"
)

// setRequiredDirs points the hard-requirement directories at temp space so
// LoadConfig does not touch the real filesystem roots.
func setRequiredDirs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("BLOB_DIR", filepath.Join(dir, "blobs"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "database"))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := setRequiredDirs(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("Port = %s, want 8080", config.Port)
	}
	if config.StageTimeout != 5*time.Minute {
		t.Errorf("StageTimeout = %v, want 5m", config.StageTimeout)
	}
	if config.MinArtifactBytes != 512 {
		t.Errorf("MinArtifactBytes = %d, want 512", config.MinArtifactBytes)
	}
	if config.MaxDeferrals != 5 {
		t.Errorf("MaxDeferrals = %d, want 5", config.MaxDeferrals)
	}
	if len(config.RetryBackoffs) != 3 {
		t.Errorf("RetryBackoffs = %v, want 3 steps", config.RetryBackoffs)
	}
	if config.AIEnabled {
		t.Error("AI enabled by default")
	}
	if !config.MetricsEnabled {
		t.Error("metrics disabled by default")
	}
	if config.DatabasePath != filepath.Join(config.DatabaseDir, "assets.db") {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
	if config.BlobDir != filepath.Join(dir, "blobs") {
		t.Errorf("BlobDir = %s", config.BlobDir)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredDirs(t)
	t.Setenv("PORT", "9999")
	t.Setenv("STAGE_TIMEOUT", "90s")
	t.Setenv("MIN_ARTIFACT_BYTES", "4096")
	t.Setenv("PIPELINE_WORKERS", "3")
	t.Setenv("METRICS_ENABLED", "false")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.Port != "9999" {
		t.Errorf("Port = %s", config.Port)
	}
	if config.StageTimeout != 90*time.Second {
		t.Errorf("StageTimeout = %v", config.StageTimeout)
	}
	if config.MinArtifactBytes != 4096 {
		t.Errorf("MinArtifactBytes = %d", config.MinArtifactBytes)
	}
	if config.Workers != 3 {
		t.Errorf("Workers = %d", config.Workers)
	}
	if config.MetricsEnabled {
		t.Error("METRICS_ENABLED=false ignored")
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	setRequiredDirs(t)
	t.Setenv("STAGE_TIMEOUT", "not-a-duration")
	t.Setenv("MIN_ARTIFACT_BYTES", "minus five")
	t.Setenv("PIPELINE_WORKERS", "zero")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.StageTimeout != 5*time.Minute {
		t.Errorf("StageTimeout = %v, want default", config.StageTimeout)
	}
	if config.MinArtifactBytes != 512 {
		t.Errorf("MinArtifactBytes = %d, want default", config.MinArtifactBytes)
	}
	if config.Workers != 0 {
		t.Errorf("Workers = %d, want automatic sizing", config.Workers)
	}
}

func TestLoadConfigAIRequiresBaseURL(t *testing.T) {
	setRequiredDirs(t)
	t.Setenv("AI_ENABLED", "true")
	t.Setenv("AI_BASE_URL", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.AIEnabled {
		t.Error("AI enabled without a base URL")
	}

	t.Setenv("AI_BASE_URL", "http://ai.internal:9000")
	config, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !config.AIEnabled {
		t.Error("AI disabled despite base URL")
	}
	if config.AIBaseURL != "http://ai.internal:9000" {
		t.Errorf("AIBaseURL = %s", config.AIBaseURL)
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
