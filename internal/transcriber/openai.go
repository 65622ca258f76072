package transcriber

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/donggyun112/PipeChat-server/internal/audio"
)

// OpenAIConfig configures the OpenAI Whisper API backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	SampleRate int
}

// OpenAIBackend recognizes speech through the OpenAI audio transcription
// API, requesting verbose JSON so segment timestamps are available.
type OpenAIBackend struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIBackend creates an OpenAI transcription backend.
func NewOpenAIBackend(config OpenAIConfig) (*OpenAIBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	return &OpenAIBackend{
		client: openai.NewClient(config.APIKey),
		config: config,
	}, nil
}

// Transcribe uploads the samples as WAV and maps the verbose response into
// a segment-carrying result.
func (b *OpenAIBackend) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	wav, err := audio.EncodeWAV(samples, b.config.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode audio: %w", err)
	}

	req := openai.AudioRequest{
		Model:    b.config.Model,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
		Language: opts.Language,
		Prompt:   opts.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := b.client.CreateTranscription(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	result := Result{Text: resp.Text}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return result, nil
}
