package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// PipelineConfig holds karaoke pipeline configuration
type PipelineConfig struct {
	TempDir      string
	FFmpegPath   string
	FFprobePath  string
	SpleeterPath string
	WhisperPath  string
	// Inputs longer than this are transcribed with the tiny model on a
	// downsampled copy.
	LongAudioSeconds float64
	// Inputs longer than this get an advisory warning on the run.
	WarnDurationSeconds float64
	// Uploads over this size get an advisory warning, not a rejection.
	WarnUploadBytes int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("defaults failed to unmarshal: %v", err))
	}
	return &config
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "5m")
	viper.SetDefault("server.writeTimeout", "5m")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.maxUploadBytes", 500*1024*1024) // 500MB hard cap

	// Pipeline defaults
	viper.SetDefault("pipeline.tempDir", "/tmp/puretone")
	viper.SetDefault("pipeline.ffmpegPath", "ffmpeg")
	viper.SetDefault("pipeline.ffprobePath", "ffprobe")
	viper.SetDefault("pipeline.spleeterPath", "spleeter")
	viper.SetDefault("pipeline.whisperPath", "whisper")
	viper.SetDefault("pipeline.longAudioSeconds", 180.0)
	viper.SetDefault("pipeline.warnDurationSeconds", 300.0)
	viper.SetDefault("pipeline.warnUploadBytes", 100*1024*1024) // 100MB

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "puretone-karaoke")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
