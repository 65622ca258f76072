package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the streaming speech-to-text
// service.
type Metrics struct {
	// UDP ingest metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	ParseErrors      prometheus.Counter
	PacketsLost      prometheus.Counter

	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram

	// VAD metrics
	VADChunksProcessed prometheus.Counter
	VADVoicedChunks    prometheus.Counter
	SpeechTransitions  *prometheus.CounterVec

	// Utterance metrics
	UtterancesOpened prometheus.Counter
	QuickRejections  prometheus.Counter
	UtteranceLength  prometheus.Histogram
	EventsEmitted    *prometheus.CounterVec

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_packets_received_total",
			Help: "Total number of UDP packets received",
		}),
		PacketsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_packets_processed_total",
			Help: "Total number of UDP packets successfully processed",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_parse_errors_total",
			Help: "Total number of packet parsing errors",
		}),
		PacketsLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_packets_lost_total",
			Help: "Total number of audio packets declared lost by the reorderer",
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_sessions",
			Help: "Current number of active streaming sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_session_duration_seconds",
			Help:    "Duration of streaming sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		VADChunksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_vad_chunks_processed_total",
			Help: "Total number of audio chunks run through voice detection",
		}),
		VADVoicedChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_vad_voiced_chunks_total",
			Help: "Total number of chunks with a voiced decision",
		}),
		SpeechTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_speech_transitions_total",
			Help: "Total number of debounced speaking-state transitions",
		}, []string{"to"}),

		UtterancesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_utterances_opened_total",
			Help: "Total number of utterances opened",
		}),
		QuickRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_utterance_quick_rejections_total",
			Help: "Total number of utterances discarded as short noise bursts",
		}),
		UtteranceLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_utterance_duration_seconds",
			Help:    "Duration of finalized utterances in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to 32s
		}),
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_transcript_events_total",
			Help: "Total number of transcript events emitted by kind",
		}, []string{"kind"}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_requests_total",
			Help: "Total number of transcription requests issued",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_errors_total",
			Help: "Total number of HTTP error responses",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the packets received counter.
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed increments the packets processed counter.
func (m *Metrics) RecordPacketProcessed() {
	m.PacketsProcessed.Inc()
}

// RecordParseError increments the parse errors counter.
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordPacketsLost adds to the lost packet counter.
func (m *Metrics) RecordPacketsLost(n uint64) {
	m.PacketsLost.Add(float64(n))
}

// SetActiveSessions sets the current number of active sessions.
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed increments the sessions destroyed counter and
// records the session duration.
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordVADChunk counts one detection decision.
func (m *Metrics) RecordVADChunk(voiced bool) {
	m.VADChunksProcessed.Inc()
	if voiced {
		m.VADVoicedChunks.Inc()
	}
}

// RecordSpeechTransition counts one debounced state transition.
func (m *Metrics) RecordSpeechTransition(to string) {
	m.SpeechTransitions.WithLabelValues(to).Inc()
}

// RecordUtteranceOpened increments the utterances opened counter.
func (m *Metrics) RecordUtteranceOpened() {
	m.UtterancesOpened.Inc()
}

// RecordQuickRejection increments the quick rejection counter.
func (m *Metrics) RecordQuickRejection() {
	m.QuickRejections.Inc()
}

// RecordEvent counts one transcript event by kind, recording utterance
// duration for finals.
func (m *Metrics) RecordEvent(kind string, durationSeconds float64) {
	m.EventsEmitted.WithLabelValues(kind).Inc()
	if kind == "final" {
		m.UtteranceLength.Observe(durationSeconds)
	}
}

// RecordTranscription records one transcription request outcome.
func (m *Metrics) RecordTranscription(durationSeconds float64, err error) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if err != nil {
		m.TranscriptionFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error response.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
