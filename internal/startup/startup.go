package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"asset-pipeline/internal/logging"

	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	DataDir     string
	BlobDir     string
	DatabaseDir string
	Port        string

	Workers          int
	StageTimeout     time.Duration
	RetryBackoffs    []time.Duration
	MaxDeferrals     int
	MinArtifactBytes int64

	AIEnabled bool
	AIBaseURL string
	AIAPIKey  string

	MetricsEnabled  bool
	LogHealthChecks bool

	// Derived paths
	DatabasePath string

	// Feature flags based on tool/directory availability
	VideoPreviewsEnabled bool
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Info("Loaded configuration overrides from .env")
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	blobDir := getEnv("BLOB_DIR", "/blobs")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	workersStr := getEnv("PIPELINE_WORKERS", "")
	stageTimeoutStr := getEnv("STAGE_TIMEOUT", "5m")
	minArtifactStr := getEnv("MIN_ARTIFACT_BYTES", "512")
	aiEnabled := getEnvBool("AI_ENABLED", false)
	aiBaseURL := getEnv("AI_BASE_URL", "")
	aiAPIKey := getEnv("AI_API_KEY", "")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  DATA_DIR:           %s", dataDir)
	logging.Info("  BLOB_DIR:           %s", blobDir)
	logging.Info("  DATABASE_DIR:       %s", databaseDir)
	logging.Info("  PORT:               %s", port)
	logging.Info("  STAGE_TIMEOUT:      %s", stageTimeoutStr)
	logging.Info("  MIN_ARTIFACT_BYTES: %s", minArtifactStr)
	logging.Info("  AI_ENABLED:         %v", aiEnabled)
	logging.Info("  METRICS_ENABLED:    %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	stageTimeout, err := time.ParseDuration(stageTimeoutStr)
	if err != nil || stageTimeout <= 0 {
		logging.Warn("  Invalid STAGE_TIMEOUT, using default: 5m")
		stageTimeout = 5 * time.Minute
	}

	minArtifactBytes, err := strconv.ParseInt(minArtifactStr, 10, 64)
	if err != nil || minArtifactBytes < 0 {
		logging.Warn("  Invalid MIN_ARTIFACT_BYTES, using default: 512")
		minArtifactBytes = 512
	}

	workers := 0
	if workersStr != "" {
		if n, err := strconv.Atoi(workersStr); err == nil && n > 0 {
			workers = n
		} else {
			logging.Warn("  Invalid PIPELINE_WORKERS %q, using automatic sizing", workersStr)
		}
	}

	if aiEnabled && aiBaseURL == "" {
		logging.Warn("  AI_ENABLED set but AI_BASE_URL empty; AI stages will be skipped")
		aiEnabled = false
	}

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	blobDir, err = filepath.Abs(blobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	config := &Config{
		DataDir:     dataDir,
		BlobDir:     blobDir,
		DatabaseDir: databaseDir,
		Port:        port,

		Workers:          workers,
		StageTimeout:     stageTimeout,
		RetryBackoffs:    []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second},
		MaxDeferrals:     5,
		MinArtifactBytes: minArtifactBytes,

		AIEnabled: aiEnabled,
		AIBaseURL: aiBaseURL,
		AIAPIKey:  aiAPIKey,

		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,

		DatabasePath: filepath.Join(databaseDir, "assets.db"),
	}

	// Blob and database directories are hard requirements
	if err := ensureWritableDir(blobDir, "blob"); err != nil {
		return nil, err
	}
	if err := ensureWritableDir(databaseDir, "database"); err != nil {
		return nil, err
	}
	if err := ensureWritableDir(dataDir, "data"); err != nil {
		logging.Warn("  Data directory issue: %v", err)
	}

	// Video previews need ffmpeg on PATH
	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg not available: %v", err)
		logging.Warn("  Video previews will be skipped")
		config.VideoPreviewsEnabled = false
	} else {
		logging.Info("  [OK] FFmpeg is available")
		config.VideoPreviewsEnabled = true
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:       ENABLED (required)")
	logging.Info("    Blob store:     ENABLED (required)")
	logging.Info("    Video previews: %s", enabledString(config.VideoPreviewsEnabled))
	logging.Info("    AI enrichment:  %s", enabledString(config.AIEnabled))
	logging.Info("    Metrics:        %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func ensureWritableDir(path, name string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory %s: %w", name, path, err)
	}
	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("%s directory %s is not writable: %w", name, path, err)
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("  failed to remove test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	_, err := exec.LookPath("ffmpeg")
	return err
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("  Invalid boolean for %s: %q, using default %v", key, value, fallback)
		return fallback
	}
	return parsed
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogServerStarted logs successful server startup
func LogServerStarted(port string, elapsed time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER READY")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Listening on port %s (startup took %v)", port, elapsed)
}

// LogShutdownInitiated logs the start of graceful shutdown
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN (%s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Info("  %s...", step)
}

// LogShutdownStepComplete logs completion of a shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs completion of graceful shutdown
func LogShutdownComplete() {
	logging.Info("  Shutdown complete")
}
