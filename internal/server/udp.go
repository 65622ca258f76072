package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/donggyun112/PipeChat-server/internal/config"
	"github.com/donggyun112/PipeChat-server/internal/metrics"
	"github.com/donggyun112/PipeChat-server/internal/protocol"
	"github.com/donggyun112/PipeChat-server/internal/session"
)

// UDPServer handles incoming audio packets from capture clients
type UDPServer struct {
	conn       *net.UDPConn
	config     *config.ServerConfig
	logger     *slog.Logger
	sessionMgr *session.Manager
	metrics    *metrics.Metrics

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Packet processing
	packetChan chan *incomingPacket

	// Counters mirrored into Prometheus via metrics
	packetsReceived  uint64
	packetsProcessed uint64
	parseErrors      uint64
	mu               sync.RWMutex
}

// incomingPacket represents a received UDP packet with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// NewUDPServer creates a new UDP server instance
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, sessionMgr *session.Manager, m *metrics.Metrics) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		config:     cfg,
		logger:     logger,
		sessionMgr: sessionMgr,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		packetChan: make(chan *incomingPacket, 1000),
	}
}

// Start begins listening for UDP packets
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
		slog.Int("workers", s.config.Workers),
	)

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.packetProcessor(i)
	}

	s.wg.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the UDP server
func (s *UDPServer) Stop() error {
	s.logger.Info("Stopping UDP server...")

	s.cancel()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	close(s.packetChan)
	s.wg.Wait()

	s.mu.RLock()
	packetsReceived := s.packetsReceived
	packetsProcessed := s.packetsProcessed
	parseErrors := s.parseErrors
	s.mu.RUnlock()

	s.logger.Info("UDP server stopped",
		slog.Uint64("packets_received", packetsReceived),
		slog.Uint64("packets_processed", packetsProcessed),
		slog.Uint64("parse_errors", parseErrors),
	)

	return nil
}

// receiveLoop is the main packet receiving loop
func (s *UDPServer) receiveLoop() {
	defer s.wg.Done()

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
			// Continue to receive packets
		}

		// Read deadline lets the loop notice cancellation periodically.
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordPacketReceived()
		}

		// Copy out of the reusable read buffer.
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.packetChan <- packet:
		default:
			s.logger.Warn("Packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (s *UDPServer) packetProcessor(workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Packet processor started", slog.Int("worker_id", workerID))

	for packet := range s.packetChan {
		s.handlePacket(packet, workerID)
	}

	s.logger.Debug("Packet processor stopped", slog.Int("worker_id", workerID))
}

// handlePacket processes a single incoming packet
func (s *UDPServer) handlePacket(packet *incomingPacket, workerID int) {
	parsedPacket, err := protocol.ParsePacket(packet.data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordParseError()
		}

		s.logger.Error("Failed to parse packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	s.mu.Lock()
	s.packetsProcessed++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordPacketProcessed()
	}

	switch parsedPacket.Header.PacketType {
	case protocol.PacketTypeHello:
		s.processHelloPacket(parsedPacket.Header, parsedPacket.Hello, workerID)
	case protocol.PacketTypeAudio:
		s.processAudioPacket(parsedPacket.Header, parsedPacket.Audio, workerID)
	case protocol.PacketTypeBye:
		s.processByePacket(parsedPacket.Header, workerID)
	}
}

// processHelloPacket handles session announcements
func (s *UDPServer) processHelloPacket(header *protocol.Header, payload *protocol.HelloPayload, workerID int) {
	s.logger.Debug("Processing hello packet",
		slog.Uint64("session_id", uint64(header.SessionID)),
		slog.String("client_id", payload.GetClientID()),
		slog.String("language", payload.GetLanguage()),
		slog.Uint64("sample_rate", uint64(payload.SampleRate)),
		slog.Int("worker_id", workerID),
	)

	sess, err := s.sessionMgr.CreateSession(header.SessionID, payload.GetClientID(), payload.GetLanguage(), int(payload.SampleRate))
	if err != nil {
		s.logger.Error("Failed to create session",
			slog.Uint64("session_id", uint64(header.SessionID)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	s.logger.Info("Hello packet processed",
		slog.Uint64("session_id", uint64(sess.ID())),
		slog.String("client_id", payload.GetClientID()),
		slog.Int("worker_id", workerID),
	)
}

// processAudioPacket routes sequenced audio into the owning session
func (s *UDPServer) processAudioPacket(header *protocol.Header, payload *protocol.AudioPayload, workerID int) {
	sess, exists := s.sessionMgr.GetSession(header.SessionID)
	if !exists {
		s.logger.Warn("Received audio packet for unknown session",
			slog.Uint64("session_id", uint64(header.SessionID)),
			slog.Uint64("sequence", uint64(payload.Sequence)),
			slog.Int("audio_size", len(payload.PCMData)),
			slog.Int("worker_id", workerID),
		)
		return
	}

	sess.FeedPacket(s.ctx, payload.Sequence, payload.PCMData)

	s.logger.Debug("Audio packet processed",
		slog.Uint64("session_id", uint64(header.SessionID)),
		slog.Uint64("sequence", uint64(payload.Sequence)),
		slog.Int("audio_size", len(payload.PCMData)),
		slog.Int("worker_id", workerID),
	)
}

// processByePacket drains and removes the session
func (s *UDPServer) processByePacket(header *protocol.Header, workerID int) {
	transcript, removed := s.sessionMgr.RemoveSession(s.ctx, header.SessionID)
	if !removed {
		s.logger.Warn("Received bye for unknown session",
			slog.Uint64("session_id", uint64(header.SessionID)),
			slog.Int("worker_id", workerID),
		)
		return
	}

	s.logger.Info("Session closed by client",
		slog.Uint64("session_id", uint64(header.SessionID)),
		slog.Int("transcript_chars", len(transcript)),
		slog.Int("worker_id", workerID),
	)
}

// GetStatistics returns current server statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		PacketsReceived:  s.packetsReceived,
		PacketsProcessed: s.packetsProcessed,
		ParseErrors:      s.parseErrors,
		ActiveSessions:   uint64(s.sessionMgr.Count()),
		QueueSize:        uint64(len(s.packetChan)),
		QueueCapacity:    uint64(cap(s.packetChan)),
	}
}

// ServerStatistics represents server performance metrics
type ServerStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsProcessed uint64 `json:"packets_processed"`
	ParseErrors      uint64 `json:"parse_errors"`
	ActiveSessions   uint64 `json:"active_sessions"`
	QueueSize        uint64 `json:"queue_size"`
	QueueCapacity    uint64 `json:"queue_capacity"`
}
