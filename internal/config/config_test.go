package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			UDPPort:     4444,
			BindAddress: "0.0.0.0",
			BufferSize:  65536,
			Workers:     4,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Audio: AudioConfig{
			SampleRate:       16000,
			MaxBufferSeconds: 60.0,
			SessionTimeout:   300,
			MaxGap:           20,
		},
		VAD: VADConfig{
			Threshold:          0.5,
			EnergyThreshold:    40.0,
			SpeechDebounceTime: 0.3,
			SilenceLimit:       0.3,
			ModelResetInterval: 5.0,
			EnergyWindow:       10,
		},
		Segmenter: SegmenterConfig{
			PreRoll:         0.3,
			QuickRejection:  0.3,
			VoiceTimeout:    0.4,
			MinUtterance:    0.5,
			InterimInterval: 0.7,
		},
		Transcription: TranscriptionConfig{
			Backend:       "http",
			Endpoint:      "https://api.example.com/v1/audio/transcriptions",
			APIKey:        "test-key",
			Model:         "whisper-1",
			Language:      "en",
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.UDPPort = 70000 },
			expectError: true,
			errorMsg:    "udp_port must be between 1 and 65535",
		},
		{
			name:        "invalid audio sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 4000 },
			expectError: true,
			errorMsg:    "sample_rate must be between 8000 and 48000",
		},
		{
			name:        "invalid VAD threshold",
			mutate:      func(c *Config) { c.VAD.Threshold = 1.5 },
			expectError: true,
			errorMsg:    "threshold must be between 0 and 1",
		},
		{
			name:        "negative pre-roll",
			mutate:      func(c *Config) { c.Segmenter.PreRoll = -0.1 },
			expectError: true,
			errorMsg:    "pre_roll cannot be negative",
		},
		{
			name:        "zero voice timeout",
			mutate:      func(c *Config) { c.Segmenter.VoiceTimeout = 0 },
			expectError: true,
			errorMsg:    "voice_timeout must be positive",
		},
		{
			name:        "unknown transcription backend",
			mutate:      func(c *Config) { c.Transcription.Backend = "grpc" },
			expectError: true,
			errorMsg:    "backend must be 'http' or 'openai'",
		},
		{
			name: "http backend requires endpoint",
			mutate: func(c *Config) {
				c.Transcription.Backend = "http"
				c.Transcription.Endpoint = ""
			},
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "openai backend requires api key",
			mutate: func(c *Config) {
				c.Transcription.Backend = "openai"
				c.Transcription.APIKey = ""
			},
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  udp_port: 4444
  bind_address: "0.0.0.0"
  buffer_size: 65536
  workers: 4
http:
  port: 8080
  address: "0.0.0.0"
  enabled: true
audio:
  sample_rate: 16000
  max_buffer_seconds: 60.0
  session_timeout: 300
  max_gap: 20
vad:
  threshold: 0.5
  energy_threshold: 40.0
  speech_debounce_time: 0.3
  silence_limit: 0.3
  model_reset_interval: 5.0
  energy_window: 10
segmenter:
  pre_roll: 0.3
  quick_rejection: 0.3
  voice_timeout: 0.4
  min_utterance: 0.5
  interim_interval: 0.7
transcription:
  backend: "http"
  endpoint: "https://api.example.com/v1/audio/transcriptions"
  api_key: "test-key"
  model: "whisper-1"
  language: "en"
  timeout: 30
  max_retries: 3
  max_concurrent: 10
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  udp_port: 4444
  bind_address: "0.0.0.0"
  buffer_size: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
server:
  udp_port: 4444
  # missing bind_address
`,
			expectError: true,
			errorMsg:    "bind_address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	audio := AudioConfig{
		SessionTimeout: 300,
	}

	if audio.GetSessionTimeoutDuration() != 300*time.Second {
		t.Errorf("Expected 300 seconds, got %v", audio.GetSessionTimeoutDuration())
	}

	transcription := TranscriptionConfig{
		Timeout: 30,
	}

	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}
}

func TestServerConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config ServerConfig
		valid  bool
	}{
		{
			name: "valid config",
			config: ServerConfig{
				UDPPort:     4444,
				BindAddress: "0.0.0.0",
				BufferSize:  65536,
				Workers:     4,
			},
			valid: true,
		},
		{
			name: "port too low",
			config: ServerConfig{
				UDPPort:     0,
				BindAddress: "0.0.0.0",
				BufferSize:  65536,
				Workers:     4,
			},
			valid: false,
		},
		{
			name: "port too high",
			config: ServerConfig{
				UDPPort:     70000,
				BindAddress: "0.0.0.0",
				BufferSize:  65536,
				Workers:     4,
			},
			valid: false,
		},
		{
			name: "empty bind address",
			config: ServerConfig{
				UDPPort:     4444,
				BindAddress: "",
				BufferSize:  65536,
				Workers:     4,
			},
			valid: false,
		},
		{
			name: "buffer too small",
			config: ServerConfig{
				UDPPort:     4444,
				BindAddress: "0.0.0.0",
				BufferSize:  512,
				Workers:     4,
			},
			valid: false,
		},
		{
			name: "no workers",
			config: ServerConfig{
				UDPPort:     4444,
				BindAddress: "0.0.0.0",
				BufferSize:  65536,
				Workers:     0,
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name: "valid json to stdout",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			valid: true,
		},
		{
			name: "valid text to stderr",
			config: LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stderr",
			},
			valid: true,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "trace",
				Format: "json",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > len(substr) && findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
