package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains UDP server configuration
type ServerConfig struct {
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
	Workers     int    `yaml:"workers"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio stream parameters
type AudioConfig struct {
	SampleRate       int     `yaml:"sample_rate"`
	MaxBufferSeconds float64 `yaml:"max_buffer_seconds"` // utterance ring capacity
	SessionTimeout   int     `yaml:"session_timeout"`    // seconds of inactivity
	MaxGap           int     `yaml:"max_gap"`            // reorderer gap before packets are declared lost
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold          float32 `yaml:"threshold"`
	EnergyThreshold    float64 `yaml:"energy_threshold"`     // dB-like floor for ambient energy
	SpeechDebounceTime float64 `yaml:"speech_debounce_time"` // seconds
	SilenceLimit       float64 `yaml:"silence_limit"`        // seconds
	ModelResetInterval float64 `yaml:"model_reset_interval"` // seconds, 0 disables
	EnergyWindow       int     `yaml:"energy_window"`        // readings in the ambient window
}

// SegmenterConfig contains utterance segmentation configuration
type SegmenterConfig struct {
	PreRoll         float64 `yaml:"pre_roll"`         // seconds
	QuickRejection  float64 `yaml:"quick_rejection"`  // seconds
	VoiceTimeout    float64 `yaml:"voice_timeout"`    // seconds
	MinUtterance    float64 `yaml:"min_utterance"`    // seconds
	InterimInterval float64 `yaml:"interim_interval"` // seconds, 0 disables interim results
}

// TranscriptionConfig contains transcription backend configuration
type TranscriptionConfig struct {
	Backend       string `yaml:"backend"` // "http" or "openai"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Warmup        bool   `yaml:"warmup"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.MaxBufferSeconds <= 0 {
		return fmt.Errorf("max_buffer_seconds must be positive, got %f", a.MaxBufferSeconds)
	}

	if a.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", a.SessionTimeout)
	}

	if a.MaxGap < 1 {
		return fmt.Errorf("max_gap must be at least 1, got %d", a.MaxGap)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.EnergyThreshold < 0 {
		return fmt.Errorf("energy_threshold cannot be negative, got %f", v.EnergyThreshold)
	}

	if v.SpeechDebounceTime <= 0 {
		return fmt.Errorf("speech_debounce_time must be positive, got %f", v.SpeechDebounceTime)
	}

	if v.SilenceLimit <= 0 {
		return fmt.Errorf("silence_limit must be positive, got %f", v.SilenceLimit)
	}

	if v.ModelResetInterval < 0 {
		return fmt.Errorf("model_reset_interval cannot be negative, got %f", v.ModelResetInterval)
	}

	return nil
}

// Validate validates segmenter configuration
func (s *SegmenterConfig) Validate() error {
	if s.PreRoll < 0 {
		return fmt.Errorf("pre_roll cannot be negative, got %f", s.PreRoll)
	}

	if s.QuickRejection < 0 {
		return fmt.Errorf("quick_rejection cannot be negative, got %f", s.QuickRejection)
	}

	if s.VoiceTimeout <= 0 {
		return fmt.Errorf("voice_timeout must be positive, got %f", s.VoiceTimeout)
	}

	if s.MinUtterance < 0 {
		return fmt.Errorf("min_utterance cannot be negative, got %f", s.MinUtterance)
	}

	if s.InterimInterval < 0 {
		return fmt.Errorf("interim_interval cannot be negative, got %f", s.InterimInterval)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Backend {
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http backend")
		}
	case "openai":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai backend")
		}
	default:
		return fmt.Errorf("backend must be 'http' or 'openai', got '%s'", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSessionTimeoutDuration returns the session timeout as a time.Duration
func (a *AudioConfig) GetSessionTimeoutDuration() time.Duration {
	return time.Duration(a.SessionTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
