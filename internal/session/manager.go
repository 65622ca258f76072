package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/donggyun112/PipeChat-server/internal/metrics"
	"github.com/donggyun112/PipeChat-server/internal/segment"
	"github.com/donggyun112/PipeChat-server/internal/transcriber"
	"github.com/donggyun112/PipeChat-server/internal/vad"
)

// cleanupInterval is how often idle sessions are checked.
const cleanupInterval = 30 * time.Second

// warmupSeconds of silence are pushed through the transcriber at startup so
// the first real utterance does not pay model load time.
const warmupSeconds = 0.5

// ScorerFactory builds a fresh frame scorer per session; model state is
// never shared across sessions.
type ScorerFactory func() vad.FrameScorer

// ManagerConfig contains configuration for the session manager.
type ManagerConfig struct {
	SessionTimeout time.Duration
	Language       string
	SampleRate     int
	MaxGap         uint32

	VAD       vad.Config
	Segmenter segment.Config

	Warmup bool
}

// Manager owns all active sessions: creation from hello packets, lookup for
// the ingest and HTTP servers, inactivity cleanup and drain-on-remove.
type Manager struct {
	sessions map[uint32]*Session
	mu       sync.RWMutex

	config  ManagerConfig
	trans   transcriber.Transcriber
	scorers ScorerFactory
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
func NewManager(config ManagerConfig, trans transcriber.Transcriber, scorers ScorerFactory, m *metrics.Metrics, logger *slog.Logger) (*Manager, error) {
	if trans == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if scorers == nil {
		scorers = func() vad.FrameScorer { return vad.NewEnergyScorer() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		sessions: make(map[uint32]*Session),
		config:   config,
		trans:    trans,
		scorers:  scorers,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	if config.Warmup {
		mgr.warmup()
	}

	go mgr.cleanupRoutine()

	return mgr, nil
}

// CreateSession creates a session for the given identity, or returns the
// existing one when the client repeats its hello.
func (m *Manager) CreateSession(id uint32, clientID, language string, sampleRate int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.sessions[id]; exists {
		m.logger.Warn("session already exists, reusing",
			slog.Uint64("session_id", uint64(id)),
			slog.String("client_id", clientID))
		return existing, nil
	}

	if language == "" {
		language = m.config.Language
	}
	if sampleRate <= 0 {
		sampleRate = m.config.SampleRate
	}

	vadConfig := m.config.VAD
	vadConfig.SampleRate = sampleRate
	segConfig := m.config.Segmenter
	segConfig.SampleRate = sampleRate
	segConfig.Language = language

	sess, err := New(Config{
		ID:         id,
		ClientID:   clientID,
		Language:   language,
		SampleRate: sampleRate,
		VAD:        vadConfig,
		Segmenter:  segConfig,
		MaxGap:     m.config.MaxGap,
	}, m.trans, m.scorers(), m.metrics, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.sessions[id] = sess
	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
		m.metrics.SetActiveSessions(len(m.sessions))
	}

	m.logger.Info("session created",
		slog.Uint64("session_id", uint64(id)),
		slog.String("client_id", clientID),
		slog.String("language", language),
		slog.Int("sample_rate", sampleRate))

	return sess, nil
}

// GetSession retrieves an existing session.
func (m *Manager) GetSession(id uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, exists := m.sessions[id]
	return sess, exists
}

// Sessions returns a snapshot of all active sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RemoveSession drains a session through Finish and removes it. It returns
// the final transcript and whether the session existed.
func (m *Manager) RemoveSession(ctx context.Context, id uint32) (string, bool) {
	m.mu.Lock()
	sess, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return "", false
	}

	text := sess.Finish(ctx)
	info := sess.Info()
	if m.metrics != nil {
		m.metrics.RecordSessionDestroyed(time.Since(info.StartTime).Seconds())
		m.metrics.SetActiveSessions(remaining)
	}

	m.logger.Info("session removed",
		slog.Uint64("session_id", uint64(id)),
		slog.String("client_id", info.ClientID),
		slog.Float64("stream_seconds", info.StreamTime),
		slog.Uint64("finals", info.Finals),
		slog.Int("transcript_chars", len(text)))

	return text, true
}

// Stop drains every session and stops the cleanup routine.
func (m *Manager) Stop(ctx context.Context) {
	m.logger.Info("stopping session manager")

	m.mu.Lock()
	ids := make([]uint32, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.RemoveSession(ctx, id)
	}

	m.cancel()
	<-m.cleanup

	m.logger.Info("session manager stopped", slog.Int("drained_sessions", len(ids)))
}

// warmup pushes a short block of silence through the transcriber so model
// loading happens before the first client. Failure is non-fatal.
func (m *Manager) warmup() {
	rate := m.config.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	samples := make([]float32, int(warmupSeconds*float64(rate)))

	ctx, cancel := context.WithTimeout(m.ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := m.trans.Transcribe(ctx, samples, transcriber.Options{Language: m.config.Language}); err != nil {
		m.logger.Warn("transcriber warmup failed", slog.String("error", err.Error()))
		return
	}
	m.logger.Info("transcriber warmed up", slog.Duration("took", time.Since(start)))
}

func (m *Manager) cleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	m.logger.Info("session cleanup routine started",
		slog.Duration("timeout", m.config.SessionTimeout),
		slog.Duration("check_interval", cleanupInterval))

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *Manager) cleanupExpired() {
	now := time.Now()

	m.mu.RLock()
	expired := make([]uint32, 0)
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActivity()) > m.config.SessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.logger.Info("cleaning up idle sessions", slog.Int("count", len(expired)))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, id := range expired {
		m.RemoveSession(ctx, id)
	}
}
