package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/donggyun112/PipeChat-server/internal/audio"
	"github.com/donggyun112/PipeChat-server/internal/metrics"
	"github.com/donggyun112/PipeChat-server/internal/segment"
	"github.com/donggyun112/PipeChat-server/internal/transcriber"
	"github.com/donggyun112/PipeChat-server/internal/transcript"
	"github.com/donggyun112/PipeChat-server/internal/vad"
)

type fakeTranscriber struct {
	mu         sync.Mutex
	results    []transcriber.Result
	calls      int
	lastPrompt string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []float32, opts transcriber.Options) (transcriber.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = opts.Prompt
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	if idx < 0 {
		return transcriber.Result{}, nil
	}
	return f.results[idx], nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSessionConfig() Config {
	return Config{
		ID:         42,
		ClientID:   "test-client",
		Language:   "en",
		SampleRate: 16000,
		VAD: vad.Config{
			SampleRate:   16000,
			Threshold:    0.5,
			DebounceTime: 0.3,
			SilenceLimit: 0.3,
		},
		Segmenter: segment.Config{
			SampleRate:       16000,
			PreRoll:          0.3,
			QuickRejection:   0.3,
			VoiceTimeout:     0.4,
			MinUtterance:     0.5,
			MaxBufferSeconds: 60,
			Language:         "en",
		},
		MaxGap: 20,
	}
}

func speechChunk() []float32 {
	c := make([]float32, 512)
	for i := range c {
		c[i] = 0.5
	}
	return c
}

func silenceChunk() []float32 {
	return make([]float32, 512)
}

func feedSpeechThenSilence(s *Session) {
	ctx := context.Background()
	for i := 0; i < 31; i++ {
		s.FeedSamples(ctx, speechChunk())
	}
	for i := 0; i < 20; i++ {
		s.FeedSamples(ctx, silenceChunk())
	}
}

func TestSessionEndToEnd(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "hello world"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var events []transcript.Event
	s.Dispatcher().SubscribeAll(func(ev transcript.Event) {
		events = append(events, ev)
	})

	feedSpeechThenSilence(s)

	finals := 0
	for _, ev := range events {
		if ev.Kind == transcript.EventFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("Expected 1 final event, got %d (events: %+v)", finals, events)
	}

	if got := s.Transcript(); got != "hello world" {
		t.Errorf("Expected transcript 'hello world', got %q", got)
	}

	confirmed := s.Confirmed()
	if len(confirmed) != 1 {
		t.Fatalf("Expected 1 confirmed span, got %d", len(confirmed))
	}
	if confirmed[0].Text != "hello world" {
		t.Errorf("Expected confirmed text 'hello world', got %q", confirmed[0].Text)
	}
	if confirmed[0].End <= confirmed[0].Start {
		t.Errorf("Expected positive span duration, got [%f, %f]", confirmed[0].Start, confirmed[0].End)
	}
}

func TestSessionKindSubscription(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "only finals"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var finals []transcript.Event
	s.Dispatcher().Subscribe(transcript.EventFinal, func(ev transcript.Event) {
		finals = append(finals, ev)
	})

	feedSpeechThenSilence(s)

	if len(finals) != 1 {
		t.Fatalf("Expected 1 final delivered to kind subscriber, got %d", len(finals))
	}
	if finals[0].Kind != transcript.EventFinal {
		t.Errorf("Expected final kind, got %s", finals[0].Kind)
	}
}

func TestSessionPromptCarriesContext(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "first part"}, {Text: "second part"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	feedSpeechThenSilence(s)
	feedSpeechThenSilence(s)

	if got := s.Transcript(); got != "first part second part" {
		t.Errorf("Expected accumulated transcript, got %q", got)
	}
	if fake.lastPrompt != "first part" {
		t.Errorf("Expected second final to carry prior context as prompt, got %q", fake.lastPrompt)
	}
}

func TestSessionFinishDrains(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "cut off"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// One second of speech, never followed by silence.
	ctx := context.Background()
	for i := 0; i < 31; i++ {
		s.FeedSamples(ctx, speechChunk())
	}

	text := s.Finish(ctx)
	if text != "cut off" {
		t.Errorf("Expected drained transcript 'cut off', got %q", text)
	}

	// Finished sessions ignore further audio.
	calls := fake.callCount()
	for i := 0; i < 31; i++ {
		s.FeedSamples(ctx, speechChunk())
	}
	if fake.callCount() != calls {
		t.Error("Expected no transcription calls after finish")
	}

	// Finish is idempotent.
	if again := s.Finish(ctx); again != "cut off" {
		t.Errorf("Expected repeated finish to return same transcript, got %q", again)
	}
}

func TestSessionFeedPacketReorders(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "ordered"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	speech := audio.EncodePCM16(speechChunk())

	// Out of order: 0, 2, 1. All three must be delivered.
	s.FeedPacket(ctx, 0, speech)
	s.FeedPacket(ctx, 2, speech)
	s.FeedPacket(ctx, 1, speech)

	info := s.Info()
	if info.Packets != 3 {
		t.Errorf("Expected 3 chunks fed after reordering, got %d", info.Packets)
	}
	if info.Bytes != uint64(3*len(speech)) {
		t.Errorf("Expected %d bytes counted, got %d", 3*len(speech), info.Bytes)
	}
}

func TestSessionInfo(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "snapshot"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	feedSpeechThenSilence(s)

	info := s.Info()
	if info.ID != 42 || info.ClientID != "test-client" {
		t.Errorf("Unexpected identity in info: %+v", info)
	}
	if info.Utterances != 1 {
		t.Errorf("Expected 1 utterance, got %d", info.Utterances)
	}
	if info.Finals != 1 {
		t.Errorf("Expected 1 final, got %d", info.Finals)
	}
	if info.StreamTime <= 0 {
		t.Errorf("Expected positive stream time, got %f", info.StreamTime)
	}
	if info.Transcript != "snapshot" {
		t.Errorf("Expected transcript in info, got %q", info.Transcript)
	}
}

// Registers against the default Prometheus registry, so metrics are created
// once for the whole test binary.
func TestSessionRecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics()

	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "counted"}}}
	s, err := New(testSessionConfig(), fake, vad.NewEnergyScorer(), m, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	feedSpeechThenSilence(s)

	if got := testutil.ToFloat64(m.UtterancesOpened); got != 1 {
		t.Errorf("Expected 1 utterance opened counted, got %f", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionRequests); got != 1 {
		t.Errorf("Expected 1 transcription request counted, got %f", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionFailures); got != 0 {
		t.Errorf("Expected 0 transcription failures, got %f", got)
	}

	// A generous rejection window discards the whole utterance on the first
	// silent chunk, without a transcription call.
	cfg := testSessionConfig()
	cfg.ID = 43
	cfg.Segmenter.QuickRejection = 2.0
	rejected := &fakeTranscriber{}
	s2, err := New(cfg, rejected, vad.NewEnergyScorer(), m, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	feedSpeechThenSilence(s2)

	if got := testutil.ToFloat64(m.QuickRejections); got != 1 {
		t.Errorf("Expected 1 quick rejection counted, got %f", got)
	}
	if got := testutil.ToFloat64(m.UtterancesOpened); got != 2 {
		t.Errorf("Expected 2 utterances opened counted, got %f", got)
	}
	if rejected.callCount() != 0 {
		t.Errorf("Expected no transcription calls for rejected utterance, got %d", rejected.callCount())
	}
}

func TestManagerLifecycle(t *testing.T) {
	fake := &fakeTranscriber{results: []transcriber.Result{{Text: "managed"}}}
	mgr, err := NewManager(ManagerConfig{
		SessionTimeout: time.Minute,
		Language:       "en",
		SampleRate:     16000,
		MaxGap:         20,
		VAD: vad.Config{
			Threshold:    0.5,
			DebounceTime: 0.3,
			SilenceLimit: 0.3,
		},
		Segmenter: segment.Config{
			PreRoll:          0.3,
			QuickRejection:   0.3,
			VoiceTimeout:     0.4,
			MinUtterance:     0.5,
			MaxBufferSeconds: 60,
		},
	}, fake, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	sess, err := mgr.CreateSession(7, "client-a", "", 0)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", mgr.Count())
	}

	// Repeated hello reuses the session.
	again, err := mgr.CreateSession(7, "client-a", "", 0)
	if err != nil {
		t.Fatalf("Repeated CreateSession failed: %v", err)
	}
	if again != sess {
		t.Error("Expected repeated create to return the existing session")
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected still 1 session, got %d", mgr.Count())
	}

	if _, ok := mgr.GetSession(7); !ok {
		t.Error("Expected to find session 7")
	}
	if _, ok := mgr.GetSession(8); ok {
		t.Error("Expected no session 8")
	}

	feedSpeechThenSilence(sess)

	text, existed := mgr.RemoveSession(context.Background(), 7)
	if !existed {
		t.Fatal("Expected session to exist on remove")
	}
	if text != "managed" {
		t.Errorf("Expected drained transcript 'managed', got %q", text)
	}
	if mgr.Count() != 0 {
		t.Errorf("Expected 0 sessions after remove, got %d", mgr.Count())
	}

	if _, existed := mgr.RemoveSession(context.Background(), 7); existed {
		t.Error("Expected second remove to report missing session")
	}

	mgr.Stop(context.Background())
}

func TestManagerWarmup(t *testing.T) {
	fake := &fakeTranscriber{}
	mgr, err := NewManager(ManagerConfig{
		SampleRate: 16000,
		Warmup:     true,
		VAD: vad.Config{
			Threshold:    0.5,
			DebounceTime: 0.3,
			SilenceLimit: 0.3,
		},
		Segmenter: segment.Config{MaxBufferSeconds: 60},
	}, fake, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	if fake.callCount() != 1 {
		t.Errorf("Expected 1 warmup transcription call, got %d", fake.callCount())
	}
}
