package common

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production" - controls debug endpoints
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Workspace   WorkspaceConfig  `toml:"workspace"`
	Processing  ProcessingConfig `toml:"processing"`
	Export      ExportConfig     `toml:"export"`
	Tools       ToolsConfig      `toml:"tools"`
	Retention   RetentionConfig  `toml:"retention"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig holds review store settings
type SQLiteConfig struct {
	Path          string `toml:"path"`            // Database file path
	WALMode       bool   `toml:"wal_mode"`        // Enable WAL journaling
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // Lock wait before SQLITE_BUSY
	CacheSizeMB   int    `toml:"cache_size_mb"`
}

// BadgerConfig holds task queue store settings
type BadgerConfig struct {
	Path           string `toml:"path"`             // Queue database directory
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete queue data on startup (tests only)
}

type QueueConfig struct {
	Name              string `toml:"name"`               // Key prefix in Badger
	PollInterval      string `toml:"poll_interval"`      // How often the consumer polls, e.g. "1s"
	VisibilityTimeout string `toml:"visibility_timeout"` // Redelivery window for in-flight units
	MaxReceive        int    `toml:"max_receive"`        // Delivery attempts before dead-letter (1 + retries)
	RetryDelay        string `toml:"retry_delay"`        // Delay before a failed unit becomes visible again
}

// PollIntervalDuration parses the poll interval, defaulting to 1s
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration parses the visibility timeout, defaulting to 5m
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RetryDelayDuration parses the retry delay, defaulting to 30s
func (q *QueueConfig) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(q.RetryDelay)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WorkspaceConfig describes the owned storage layout:
// uploads/job_{id}/, thumbnails/, output/.
type WorkspaceConfig struct {
	Dir       string `toml:"dir"`
	OutputDir string `toml:"output_dir"` // Export destination; defaults under Dir when empty
}

type ProcessingConfig struct {
	WorkerThreads     int      `toml:"worker_threads"`      // 0 = logical CPU count
	BatchCommitSize   int      `toml:"batch_commit_size"`   // Files per store transaction
	ErrorThreshold    float64  `toml:"error_threshold"`     // Halt when error rate exceeds this
	MinSample         int      `toml:"min_sample"`          // Files processed before the threshold applies
	MinValidYear      int      `toml:"min_valid_year"`      // Sanity floor for timestamp candidates
	ClusterWindowSecs float64  `toml:"cluster_window_secs"` // Timestamp gap that splits similarity clusters
	Timezone          string   `toml:"timezone"`            // IANA zone for naive EXIF/filename dates
	AllowedExtensions []string `toml:"allowed_extensions"`
}

type ExportConfig struct {
	DeleteWorkingCopies bool `toml:"delete_working_copies"` // Remove uploads/job_{id} after successful export
}

// ToolsConfig locates the external utilities. Empty values resolve from PATH.
type ToolsConfig struct {
	ExifToolPath   string `toml:"exiftool_path"`
	FFmpegPath     string `toml:"ffmpeg_path"`
	ProbeTimeout   string `toml:"probe_timeout"`   // Wall-clock timeout per subprocess call
	HealthSchedule string `toml:"health_schedule"` // Cron spec for the queue health check
}

type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`  // Cron spec for the cleanup sweep
	MaxAge   string `toml:"max_age"`   // Terminal jobs older than this are removed
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in mediaparser.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/mediaparser.db",
				WALMode:       true,
				BusyTimeoutMS: 5000,
				CacheSizeMB:   64,
			},
			Badger: BadgerConfig{
				Path: "./data/queue",
			},
		},
		Queue: QueueConfig{
			Name:              "mediaparser_jobs",
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxReceive:        3, // first delivery + 2 retries
			RetryDelay:        "30s",
		},
		Workspace: WorkspaceConfig{
			Dir: "./workspace",
		},
		Processing: ProcessingConfig{
			WorkerThreads:     0, // auto-detect
			BatchCommitSize:   10,
			ErrorThreshold:    0.10,
			MinSample:         10,
			MinValidYear:      2000,
			ClusterWindowSecs: 5,
			Timezone:          "America/New_York",
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".heic", ".heif", ".webp",
				".tif", ".tiff", ".bmp",
				".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".3gp",
			},
		},
		Tools: ToolsConfig{
			ExifToolPath:   "exiftool",
			FFmpegPath:     "ffmpeg",
			ProbeTimeout:   "30s",
			HealthSchedule: "0 */5 * * * *", // every 5 minutes
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Schedule: "0 0 3 * * *", // 3am daily
			MaxAge:   "720h",        // 30 days
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration in priority order:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones; env overrides everything.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MEDIAPARSER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MEDIAPARSER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Processing configuration
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		config.Processing.Timezone = tz
	}
	if workers := os.Getenv("WORKER_THREADS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Processing.WorkerThreads = w
		}
	}
	if batch := os.Getenv("BATCH_COMMIT_SIZE"); batch != "" {
		if b, err := strconv.Atoi(batch); err == nil {
			config.Processing.BatchCommitSize = b
		}
	}
	if threshold := os.Getenv("ERROR_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Processing.ErrorThreshold = t
		}
	}
	if sample := os.Getenv("MIN_SAMPLE"); sample != "" {
		if s, err := strconv.Atoi(sample); err == nil {
			config.Processing.MinSample = s
		}
	}
	if year := os.Getenv("MIN_VALID_YEAR"); year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			config.Processing.MinValidYear = y
		}
	}
	if window := os.Getenv("CLUSTER_WINDOW_SECONDS"); window != "" {
		if w, err := strconv.ParseFloat(window, 64); err == nil {
			config.Processing.ClusterWindowSecs = w
		}
	}

	// Tools configuration
	if path := os.Getenv("METADATA_TOOL_PATH"); path != "" {
		config.Tools.ExifToolPath = path
	}
	if path := os.Getenv("FFMPEG_PATH"); path != "" {
		config.Tools.FFmpegPath = path
	}

	// Workspace configuration
	if dir := os.Getenv("WORKSPACE_DIR"); dir != "" {
		config.Workspace.Dir = dir
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		config.Workspace.OutputDir = dir
	}

	// Storage configuration
	if path := os.Getenv("MEDIAPARSER_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("MEDIAPARSER_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("MEDIAPARSER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MEDIAPARSER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// runtime failures deep inside a job.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Processing.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Processing.Timezone, err)
	}
	if c.Processing.ErrorThreshold < 0 || c.Processing.ErrorThreshold > 1 {
		return fmt.Errorf("error_threshold must be in [0,1], got %v", c.Processing.ErrorThreshold)
	}
	if c.Processing.BatchCommitSize < 1 {
		return fmt.Errorf("batch_commit_size must be >= 1, got %d", c.Processing.BatchCommitSize)
	}
	if c.Processing.ClusterWindowSecs <= 0 {
		return fmt.Errorf("cluster_window_secs must be > 0, got %v", c.Processing.ClusterWindowSecs)
	}
	if _, err := time.ParseDuration(c.Tools.ProbeTimeout); err != nil {
		return fmt.Errorf("invalid probe_timeout %q: %w", c.Tools.ProbeTimeout, err)
	}
	return nil
}

// Location resolves the configured display/default timezone.
// Validate guarantees this cannot fail after load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Processing.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Workers resolves the worker pool size
func (c *Config) Workers() int {
	if c.Processing.WorkerThreads > 0 {
		return c.Processing.WorkerThreads
	}
	return runtime.NumCPU()
}

// ProbeTimeout resolves the subprocess timeout
func (c *Config) ProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.ProbeTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ClusterWindow resolves the similarity cluster window
func (c *Config) ClusterWindow() time.Duration {
	return time.Duration(c.Processing.ClusterWindowSecs * float64(time.Second))
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
