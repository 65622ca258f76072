package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/donggyun112/PipeChat-server/internal/audio"
)

// HTTPConfig configures the HTTP transcription backend.
type HTTPConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	SampleRate    int
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// HTTPBackend sends utterance audio as multipart WAV uploads to a
// Whisper-compatible HTTP endpoint, with bounded concurrency and retry on
// transient failures.
type HTTPBackend struct {
	config     HTTPConfig
	httpClient *http.Client
	semaphore  chan struct{}

	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// BackendStats reports transcription request accounting.
type BackendStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewHTTPBackend creates an HTTP transcription backend.
func NewHTTPBackend(config HTTPConfig) (*HTTPBackend, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPBackend{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads the samples as a WAV file and parses the verbose JSON
// response. Transient failures are retried with exponential backoff.
func (b *HTTPBackend) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	select {
	case b.semaphore <- struct{}{}:
		defer func() { <-b.semaphore }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	wav, err := audio.EncodeWAV(samples, b.config.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode audio: %w", err)
	}

	startTime := time.Now()
	b.incrementTotalRequests()

	var lastErr error
	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			b.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		result, err := b.doRequest(ctx, wav, opts)
		if err == nil {
			b.incrementSuccessRequests()
			b.updateAvgResponseTime(time.Since(startTime))
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	b.incrementFailedRequests()
	return Result{}, fmt.Errorf("transcription failed after %d attempts: %w", b.config.MaxRetries+1, lastErr)
}

func (b *HTTPBackend) doRequest(ctx context.Context, wav []byte, opts Options) (Result, error) {
	body, contentType, err := b.createMultipartRequest(wav, opts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.config.Endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	if b.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Result{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return result, nil
}

func (b *HTTPBackend) createMultipartRequest(wav []byte, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := fmt.Sprintf("%s.wav", uuid.New().String())
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
	}
	if b.config.Model != "" {
		fields["model"] = b.config.Model
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError reports whether a request should be retried: 5xx server
// errors, rate limiting and network-level failures.
func isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "HTTP error 5") {
		return true
	}
	if strings.Contains(errStr, "HTTP error 429") {
		return true
	}
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

func (b *HTTPBackend) incrementTotalRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
}

func (b *HTTPBackend) incrementSuccessRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successRequests++
}

func (b *HTTPBackend) incrementFailedRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failedRequests++
}

func (b *HTTPBackend) incrementTotalRetries() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRetries++
}

func (b *HTTPBackend) updateAvgResponseTime(responseTime time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.avgResponseTime == 0 {
		b.avgResponseTime = responseTime
	} else {
		b.avgResponseTime = (b.avgResponseTime + responseTime) / 2
	}
}

// Stats returns current request accounting.
func (b *HTTPBackend) Stats() BackendStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	successRate := float64(0)
	if b.totalRequests > 0 {
		successRate = float64(b.successRequests) / float64(b.totalRequests) * 100
	}

	return BackendStats{
		TotalRequests:   b.totalRequests,
		SuccessRequests: b.successRequests,
		FailedRequests:  b.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    b.totalRetries,
		AvgResponseTime: b.avgResponseTime,
		ActiveRequests:  len(b.semaphore),
	}
}

// Close waits for all active requests to complete.
func (b *HTTPBackend) Close() error {
	for i := 0; i < b.config.MaxConcurrent; i++ {
		b.semaphore <- struct{}{}
	}
	return nil
}
