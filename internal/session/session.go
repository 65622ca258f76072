package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/donggyun112/PipeChat-server/internal/audio"
	"github.com/donggyun112/PipeChat-server/internal/metrics"
	"github.com/donggyun112/PipeChat-server/internal/segment"
	"github.com/donggyun112/PipeChat-server/internal/transcriber"
	"github.com/donggyun112/PipeChat-server/internal/transcript"
	"github.com/donggyun112/PipeChat-server/internal/vad"
)

// promptContextChars bounds the trailing confirmed-text context passed to
// the recognizer as a prompt.
const promptContextChars = 200

// Config contains per-session parameters.
type Config struct {
	ID         uint32
	ClientID   string
	Language   string
	SampleRate int

	VAD       vad.Config
	Segmenter segment.Config
	MaxGap    uint32 // reorderer gap tolerance in packets
}

// Session is one client's streaming pipeline: packet reorderer, voice
// detector, utterance segmenter and event dispatcher. All feeding goes
// through a single mutex, so a session may be fed from one goroutine while
// the HTTP API reads its state from others.
type Session struct {
	id         uint32
	clientID   string
	language   string
	sampleRate int

	detector   *vad.Detector
	segmenter  *segment.Segmenter
	dispatcher *Dispatcher
	reorderer  *audio.Reorderer

	logger  *slog.Logger
	metrics *metrics.Metrics

	startTime    time.Time
	lastActivity time.Time

	confirmed  []transcript.Span
	packets    uint64
	bytes      uint64
	eventCount map[transcript.EventKind]uint64
	finished   bool

	mu sync.Mutex
}

// Info is a session snapshot for monitoring and the HTTP API.
type Info struct {
	ID           uint32    `json:"id"`
	ClientID     string    `json:"client_id"`
	Language     string    `json:"language"`
	SampleRate   int       `json:"sample_rate"`
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	StreamTime   float64   `json:"stream_time"`
	Packets      uint64    `json:"packets"`
	Bytes        uint64    `json:"bytes"`
	Utterances   uint64    `json:"utterances"`
	Finals       uint64    `json:"finals"`
	Interims     uint64    `json:"interims"`
	SpeakingNow  bool      `json:"speaking_now"`
	Transcript   string    `json:"transcript"`
}

// New creates a session. The scorer must be a fresh instance; its recurrent
// state is owned by this session alone.
func New(config Config, trans transcriber.Transcriber, scorer vad.FrameScorer, m *metrics.Metrics, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.Uint64("session_id", uint64(config.ID)))

	detector, err := vad.NewDetector(config.VAD, scorer)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	s := &Session{
		id:           config.ID,
		clientID:     config.ClientID,
		language:     config.Language,
		sampleRate:   config.SampleRate,
		detector:     detector,
		dispatcher:   NewDispatcher(),
		reorderer:    audio.NewReorderer(config.MaxGap),
		logger:       logger,
		metrics:      m,
		startTime:    time.Now(),
		lastActivity: time.Now(),
		eventCount:   make(map[transcript.EventKind]uint64),
	}

	if m != nil && trans != nil {
		trans = &meteredTranscriber{inner: trans, metrics: m}
	}

	// The prompt closure runs inside the feed path, under the session lock.
	segmenter, err := segment.NewSegmenter(config.Segmenter, trans, s.promptLocked, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmenter: %w", err)
	}
	s.segmenter = segmenter

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uint32 {
	return s.id
}

// Dispatcher returns the session's event dispatcher for subscriptions.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// FeedPacket accepts one sequence-numbered PCM packet, restoring order
// before feeding the pipeline.
func (s *Session) FeedPacket(ctx context.Context, seq uint32, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.reorderer.Stats().Lost
	deliverable := s.reorderer.Push(seq, payload)
	if lost := s.reorderer.Stats().Lost - before; lost > 0 {
		s.logger.Warn("audio packets lost",
			slog.Uint64("count", lost),
			slog.Uint64("seq", uint64(seq)))
		if s.metrics != nil {
			s.metrics.RecordPacketsLost(lost)
		}
	}

	for _, data := range deliverable {
		s.feedLocked(ctx, audio.DecodePCM16(data), len(data))
	}
}

// Feed accepts raw little-endian PCM16 bytes in order.
func (s *Session) Feed(ctx context.Context, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedLocked(ctx, audio.DecodePCM16(data), len(data))
}

// FeedSamples accepts normalized samples in order.
func (s *Session) FeedSamples(ctx context.Context, samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedLocked(ctx, samples, len(samples)*2)
}

func (s *Session) feedLocked(ctx context.Context, samples []float32, byteLen int) {
	if s.finished || len(samples) == 0 {
		return
	}
	s.lastActivity = time.Now()
	s.packets++
	s.bytes += uint64(byteLen)

	decision, transitions := s.detector.Process(samples)
	if s.metrics != nil {
		s.metrics.RecordVADChunk(decision.Voiced)
	}
	for _, tr := range transitions {
		s.logger.Debug("speech transition",
			slog.String("to", tr.To.String()),
			slog.Float64("stream_time", tr.Time),
			slog.Float64("energy", tr.Energy))
		if s.metrics != nil {
			s.metrics.RecordSpeechTransition(tr.To.String())
		}
	}

	before := s.segmenter.Stats()
	events := s.segmenter.Process(ctx, samples, decision.Voiced)
	if s.metrics != nil {
		after := s.segmenter.Stats()
		if after.UtterancesOpened > before.UtterancesOpened {
			s.metrics.RecordUtteranceOpened()
		}
		if after.QuickRejections > before.QuickRejections {
			s.metrics.RecordQuickRejection()
		}
	}
	s.handleEventsLocked(events)
}

// Finish force-finalizes any open utterance and seals the session. It is
// idempotent; repeated calls return the accumulated transcript.
func (s *Session) Finish(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.handleEventsLocked(s.segmenter.Finish(ctx))
		s.finished = true
	}
	return s.transcriptLocked()
}

// Transcript returns the space-joined confirmed utterance texts so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptLocked()
}

// Confirmed returns a copy of the confirmed utterance spans.
func (s *Session) Confirmed() []transcript.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcript.Span, len(s.confirmed))
	copy(out, s.confirmed)
	return out
}

// LastActivity returns the time of the most recent feed.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info returns a monitoring snapshot.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		ID:           s.id,
		ClientID:     s.clientID,
		Language:     s.language,
		SampleRate:   s.sampleRate,
		StartTime:    s.startTime,
		LastActivity: s.lastActivity,
		StreamTime:   s.segmenter.StreamTime(),
		Packets:      s.packets,
		Bytes:        s.bytes,
		Utterances:   s.segmenter.Stats().UtterancesOpened,
		Finals:       s.eventCount[transcript.EventFinal],
		Interims:     s.eventCount[transcript.EventInterim],
		SpeakingNow:  s.detector.State() == vad.StateSpeaking,
		Transcript:   s.transcriptLocked(),
	}
}

func (s *Session) handleEventsLocked(events []transcript.Event) {
	for _, ev := range events {
		s.eventCount[ev.Kind]++
		if ev.Kind == transcript.EventFinal {
			s.confirmed = append(s.confirmed, transcript.Span{
				Start: ev.Start,
				End:   ev.End,
				Text:  ev.Text,
			})
		}
		if s.metrics != nil {
			s.metrics.RecordEvent(string(ev.Kind), ev.End-ev.Start)
		}
		s.dispatcher.Publish(ev)
	}
}

func (s *Session) transcriptLocked() string {
	texts := make([]string, len(s.confirmed))
	for i, span := range s.confirmed {
		texts[i] = span.Text
	}
	return strings.Join(texts, " ")
}

// meteredTranscriber records request counts and latency around the wrapped
// backend.
type meteredTranscriber struct {
	inner   transcriber.Transcriber
	metrics *metrics.Metrics
}

func (t *meteredTranscriber) Transcribe(ctx context.Context, samples []float32, opts transcriber.Options) (transcriber.Result, error) {
	start := time.Now()
	result, err := t.inner.Transcribe(ctx, samples, opts)
	t.metrics.RecordTranscription(time.Since(start).Seconds(), err)
	return result, err
}

// promptLocked returns the trailing confirmed text as recognition context.
// Called by the segmenter inside the feed path, with the session lock held.
func (s *Session) promptLocked() string {
	text := s.transcriptLocked()
	runes := []rune(text)
	if len(runes) > promptContextChars {
		runes = runes[len(runes)-promptContextChars:]
	}
	return string(runes)
}
