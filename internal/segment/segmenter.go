package segment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/donggyun112/PipeChat-server/internal/audio"
	"github.com/donggyun112/PipeChat-server/internal/transcriber"
	"github.com/donggyun112/PipeChat-server/internal/transcript"
)

// minInterimAudio is the least buffered utterance audio worth an interim
// recognition pass.
const minInterimAudio = 1.0

// Config contains segmenter parameters. Times are in seconds of stream time.
type Config struct {
	SampleRate       int
	PreRoll          float64 // history seeded into a new utterance
	QuickRejection   float64 // utterances dropping to silence sooner are discarded
	VoiceTimeout     float64 // continuous silence that finalizes an utterance
	MinUtterance     float64 // shorter utterances classify as short
	InterimInterval  float64 // minimum spacing between interim attempts
	MaxBufferSeconds float64 // audio history cap
	Language         string
}

// PromptFunc supplies trailing confirmed-text context for final recognition.
type PromptFunc func() string

// Stats reports segmenter counters.
type Stats struct {
	UtterancesOpened uint64 `json:"utterances_opened"`
	QuickRejections  uint64 `json:"quick_rejections"`
	Interims         uint64 `json:"interims"`
	Finals           uint64 `json:"finals"`
	Shorts           uint64 `json:"shorts"`
	Empties          uint64 `json:"empties"`
	Filtered         uint64 `json:"filtered"`
	Invalids         uint64 `json:"invalids"`
}

type utterance struct {
	id      string
	samples []float32
	// startTime is adjusted backward by the pre-roll actually obtained.
	startTime float64
	// openTime is the stream time speech was detected, excluding pre-roll;
	// quick rejection measures against it.
	openTime     float64
	silenceSince float64 // -1 while voiced
}

// Segmenter owns the utterance lifecycle for one session. It is driven
// chunk-by-chunk with the combined voice decision, invokes the transcriber
// synchronously for interim and final recognition, and reconciles
// hypotheses through a HypothesisBuffer.
//
// Segmenter is not safe for concurrent use; the owning session feeds it
// from a single goroutine.
type Segmenter struct {
	config Config
	trans  transcriber.Transcriber
	hyp    *transcript.HypothesisBuffer
	filter *transcript.Filter
	ring   *audio.Ring
	prompt PromptFunc
	logger *slog.Logger

	samples uint64 // total samples consumed, the stream clock
	current *utterance

	lastInterimAttempt float64
	lastInterimText    string

	stats Stats
}

// NewSegmenter creates a segmenter around the given transcriber. prompt may
// be nil when no prior-context biasing is wanted.
func NewSegmenter(config Config, trans transcriber.Transcriber, prompt PromptFunc, logger *slog.Logger) (*Segmenter, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if trans == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if config.MaxBufferSeconds <= 0 {
		config.MaxBufferSeconds = 60
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Segmenter{
		config: config,
		trans:  trans,
		hyp:    transcript.NewHypothesisBuffer(),
		filter: transcript.NewFilter(),
		ring:   audio.NewRing(config.SampleRate, config.MaxBufferSeconds),
		prompt: prompt,
		logger: logger,
	}, nil
}

// Process consumes one chunk with its combined voice decision and returns
// any transcript events produced. Transcriber failures are logged and
// absorbed; they never propagate to the caller.
func (s *Segmenter) Process(ctx context.Context, chunk []float32, voiced bool) []transcript.Event {
	chunkStart := s.now()
	s.samples += uint64(len(chunk))
	now := s.now()

	s.ring.Append(chunk)

	if s.current == nil {
		if voiced {
			s.open(chunkStart, now)
		}
		return nil
	}

	s.current.samples = append(s.current.samples, chunk...)

	if voiced {
		s.current.silenceSince = -1
	} else {
		if s.current.silenceSince < 0 {
			s.current.silenceSince = now
		}

		// Quick noise rejection: speech that drops out almost immediately
		// is discarded without a transcription call.
		if now-s.current.openTime < s.config.QuickRejection {
			s.logger.Debug("utterance quick-rejected",
				slog.String("utterance_id", s.current.id),
				slog.Float64("duration", now-s.current.openTime))
			s.stats.QuickRejections++
			s.current = nil
			return nil
		}

		if now-s.current.silenceSince >= s.config.VoiceTimeout {
			return s.finalize(ctx, now)
		}
	}

	if ev, ok := s.interim(ctx, now); ok {
		return []transcript.Event{ev}
	}
	return nil
}

// Finish force-finalizes any open utterance through the normal
// classification path, guaranteeing buffered audio is not dropped at
// session teardown.
func (s *Segmenter) Finish(ctx context.Context) []transcript.Event {
	if s.current == nil {
		return nil
	}
	return s.finalize(ctx, s.now())
}

// Open reports whether an utterance is currently open.
func (s *Segmenter) Open() bool {
	return s.current != nil
}

// StreamTime returns the stream clock in seconds.
func (s *Segmenter) StreamTime() float64 {
	return s.now()
}

// Stats returns current segmenter counters.
func (s *Segmenter) Stats() Stats {
	return s.stats
}

func (s *Segmenter) now() float64 {
	return float64(s.samples) / float64(s.config.SampleRate)
}

// open starts a new utterance seeded with pre-roll history so the onset is
// not clipped. chunkStart is the stream time of the triggering chunk's
// first sample.
func (s *Segmenter) open(chunkStart, now float64) {
	chunkDur := now - chunkStart
	seed := s.ring.Tail(s.config.PreRoll + chunkDur)

	u := &utterance{
		id:           uuid.New().String(),
		samples:      seed,
		startTime:    now - audio.Duration(len(seed), s.config.SampleRate),
		openTime:     chunkStart,
		silenceSince: -1,
	}
	s.current = u
	s.hyp.Reset()
	s.lastInterimText = ""
	s.stats.UtterancesOpened++

	s.logger.Debug("utterance opened",
		slog.String("utterance_id", u.id),
		slog.Float64("start_time", u.startTime),
		slog.Float64("pre_roll", u.openTime-u.startTime))
}

// interim runs a periodic recognition pass over the partial utterance and
// emits an interim event when the provisional text changed.
func (s *Segmenter) interim(ctx context.Context, now float64) (transcript.Event, bool) {
	if s.config.InterimInterval <= 0 {
		return transcript.Event{}, false
	}
	if now-s.lastInterimAttempt < s.config.InterimInterval {
		return transcript.Event{}, false
	}
	if audio.Duration(len(s.current.samples), s.config.SampleRate) < minInterimAudio {
		return transcript.Event{}, false
	}
	s.lastInterimAttempt = now

	result, err := s.trans.Transcribe(ctx, s.current.samples, transcriber.Options{
		Language: s.config.Language,
	})
	if err != nil {
		s.logger.Warn("interim transcription failed",
			slog.String("utterance_id", s.current.id),
			slog.String("error", err.Error()))
		return transcript.Event{}, false
	}

	s.hyp.Insert(result.Words(), s.current.startTime)
	s.hyp.Flush(false)

	text := joinNonEmpty(s.hyp.CommittedText(), s.hyp.ProvisionalText())
	if text == "" || text == s.lastInterimText {
		return transcript.Event{}, false
	}
	s.lastInterimText = text
	s.stats.Interims++

	return transcript.Event{
		Kind:        transcript.EventInterim,
		UtteranceID: s.current.id,
		Text:        text,
		Start:       s.current.startTime,
		End:         now,
	}, true
}

// finalize closes the current utterance and classifies the outcome in
// strict priority: short, invalid, empty, filtered, final.
func (s *Segmenter) finalize(ctx context.Context, now float64) []transcript.Event {
	u := s.current
	s.current = nil

	event := transcript.Event{
		UtteranceID: u.id,
		Start:       u.startTime,
		End:         now,
	}

	// The short cutoff measures the whole buffered span, pre-roll included.
	if now-u.startTime < s.config.MinUtterance {
		event.Kind = transcript.EventShort
		s.stats.Shorts++
		s.logger.Debug("utterance too short",
			slog.String("utterance_id", u.id),
			slog.Float64("duration", now-u.startTime))
		return []transcript.Event{event}
	}

	opts := transcriber.Options{Language: s.config.Language}
	if s.prompt != nil {
		opts.Prompt = s.prompt()
	}

	result, err := s.trans.Transcribe(ctx, u.samples, opts)
	if err != nil {
		event.Kind = transcript.EventInvalid
		s.stats.Invalids++
		s.logger.Warn("final transcription failed",
			slog.String("utterance_id", u.id),
			slog.String("error", err.Error()))
		return []transcript.Event{event}
	}

	if result.IsEmpty() {
		event.Kind = transcript.EventEmpty
		s.stats.Empties++
		return []transcript.Event{event}
	}

	s.hyp.Insert(result.Words(), u.startTime)
	s.hyp.Flush(true)
	text := s.hyp.CommittedText()

	if reason, rejected := s.filter.Reject(text); rejected {
		event.Kind = transcript.EventFiltered
		s.stats.Filtered++
		s.logger.Debug("utterance filtered",
			slog.String("utterance_id", u.id),
			slog.String("reason", reason),
			slog.String("text", text))
		return []transcript.Event{event}
	}

	event.Kind = transcript.EventFinal
	event.Text = text
	s.stats.Finals++
	s.ring.Clear()

	s.logger.Info("utterance finalized",
		slog.String("utterance_id", u.id),
		slog.Float64("start", event.Start),
		slog.Float64("end", event.End),
		slog.Int("chars", len(text)))
	return []transcript.Event{event}
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
