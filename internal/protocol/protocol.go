package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire constants
const (
	// Packet types
	PacketTypeHello = 0x01
	PacketTypeAudio = 0x02
	PacketTypeBye   = 0x03

	// Packet structure sizes
	HeaderSize             = 8  // 1 + 2 + 4 + 1 bytes
	HelloPayloadSize       = 48 // 32 + 8 + 4 + 4 bytes
	AudioPayloadHeaderSize = 4  // Sequence number (4 bytes)

	// String field sizes in hello payload
	ClientIDSize  = 32
	LanguageSize  = 8
	RateSize      = 4
	TimestampSize = 4

	// MaxPacketSize caps the total packet length a single datagram may carry.
	MaxPacketSize = 65535
)

// Header represents the 8-byte packet header
// Layout: [PacketType:1][PacketLen:2][SessionID:4][Flags:1]
type Header struct {
	PacketType uint8  // 0x01=Hello, 0x02=Audio, 0x03=Bye
	PacketLen  uint16 // Total packet size (header + payload)
	SessionID  uint32 // Unique session identifier chosen by the client
	Flags      uint8  // Reserved, must be zero
}

// HelloPayload represents the 48-byte session open payload
// Layout: [ClientID:32][Language:8][SampleRate:4][Timestamp:4]
type HelloPayload struct {
	ClientID   [ClientIDSize]byte // Null-terminated string (32 bytes)
	Language   [LanguageSize]byte // Null-terminated string (8 bytes)
	SampleRate uint32             // Samples per second (4 bytes)
	Timestamp  uint32             // Unix timestamp (4 bytes)
}

// AudioPayload represents the audio packet payload
// Layout: [Sequence:4][PCMData:N]
type AudioPayload struct {
	Sequence uint32 // Packet sequence number
	PCMData  []byte // 16-bit little-endian PCM audio (variable length)
}

// ParsedPacket represents a fully parsed packet
type ParsedPacket struct {
	Header *Header
	Hello  *HelloPayload // Only set for hello packets
	Audio  *AudioPayload // Only set for audio packets
}

// ParseHeader parses the 8-byte packet header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		PacketType: data[0],
		PacketLen:  binary.BigEndian.Uint16(data[1:3]),
		SessionID:  binary.BigEndian.Uint32(data[3:7]),
		Flags:      data[7],
	}

	return header, nil
}

// ParseHelloPayload parses the 48-byte session open payload
func ParseHelloPayload(data []byte) (*HelloPayload, error) {
	if len(data) < HelloPayloadSize {
		return nil, fmt.Errorf("hello payload too short: expected %d bytes, got %d",
			HelloPayloadSize, len(data))
	}

	payload := &HelloPayload{}
	copy(payload.ClientID[:], data[0:ClientIDSize])
	copy(payload.Language[:], data[ClientIDSize:ClientIDSize+LanguageSize])

	rateOffset := ClientIDSize + LanguageSize
	payload.SampleRate = binary.BigEndian.Uint32(data[rateOffset : rateOffset+RateSize])
	payload.Timestamp = binary.BigEndian.Uint32(data[rateOffset+RateSize : rateOffset+RateSize+TimestampSize])

	return payload, nil
}

// ParseAudioPayload parses the audio packet payload (4-byte sequence + PCM data)
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("audio payload too short: expected at least %d bytes, got %d",
			AudioPayloadHeaderSize, len(data))
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	if len(data) > AudioPayloadHeaderSize {
		payload.PCMData = make([]byte, len(data)-AudioPayloadHeaderSize)
		copy(payload.PCMData, data[AudioPayloadHeaderSize:])
	}

	return payload, nil
}

// ParsePacket parses a complete packet (header + payload)
func ParsePacket(data []byte) (*ParsedPacket, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("packet too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeHello:
		payload, err := ParseHelloPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hello payload: %w", err)
		}
		packet.Hello = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		packet.Audio = payload

	case PacketTypeBye:
		// Bye carries no payload beyond the header.

	default:
		return nil, fmt.Errorf("unknown packet type: 0x%02x", header.PacketType)
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.Flags != 0 {
		return fmt.Errorf("invalid flags: 0x%02x", header.Flags)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	payloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeHello:
		if payloadSize != HelloPayloadSize {
			return fmt.Errorf("hello packet payload size mismatch: expected %d, got %d",
				HelloPayloadSize, payloadSize)
		}
	case PacketTypeAudio:
		if payloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio packet payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, payloadSize)
		}
	case PacketTypeBye:
		if payloadSize != 0 {
			return fmt.Errorf("bye packet must carry no payload, got %d bytes", payloadSize)
		}
	}

	return nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeHello || ptype == PacketTypeAudio || ptype == PacketTypeBye
}

// EncodeHello builds a hello packet announcing a new session.
func EncodeHello(sessionID uint32, clientID, language string, sampleRate uint32, timestamp uint32) ([]byte, error) {
	if len(clientID) > ClientIDSize {
		return nil, fmt.Errorf("client id too long: %d bytes (maximum %d)", len(clientID), ClientIDSize)
	}
	if len(language) > LanguageSize {
		return nil, fmt.Errorf("language too long: %d bytes (maximum %d)", len(language), LanguageSize)
	}

	buf := make([]byte, HeaderSize+HelloPayloadSize)
	writeHeader(buf, PacketTypeHello, sessionID)

	copy(buf[HeaderSize:HeaderSize+ClientIDSize], clientID)
	copy(buf[HeaderSize+ClientIDSize:HeaderSize+ClientIDSize+LanguageSize], language)

	rateOffset := HeaderSize + ClientIDSize + LanguageSize
	binary.BigEndian.PutUint32(buf[rateOffset:], sampleRate)
	binary.BigEndian.PutUint32(buf[rateOffset+RateSize:], timestamp)

	return buf, nil
}

// EncodeAudio builds an audio packet carrying one sequenced PCM chunk.
func EncodeAudio(sessionID uint32, sequence uint32, pcm []byte) ([]byte, error) {
	total := HeaderSize + AudioPayloadHeaderSize + len(pcm)
	if total > MaxPacketSize {
		return nil, fmt.Errorf("audio packet too large: %d bytes (maximum %d)", total, MaxPacketSize)
	}

	buf := make([]byte, total)
	writeHeader(buf, PacketTypeAudio, sessionID)
	binary.BigEndian.PutUint32(buf[HeaderSize:], sequence)
	copy(buf[HeaderSize+AudioPayloadHeaderSize:], pcm)

	return buf, nil
}

// EncodeBye builds a header-only packet closing a session.
func EncodeBye(sessionID uint32) []byte {
	buf := make([]byte, HeaderSize)
	writeHeader(buf, PacketTypeBye, sessionID)
	return buf
}

func writeHeader(buf []byte, packetType uint8, sessionID uint32) {
	buf[0] = packetType
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(buf)))
	binary.BigEndian.PutUint32(buf[3:7], sessionID)
	buf[7] = 0
}

// ExtractString extracts a null-terminated string from a fixed-size byte array
func ExtractString(buf []byte) string {
	nullPos := len(buf)
	for i, b := range buf {
		if b == 0 {
			nullPos = i
			break
		}
	}
	return string(buf[:nullPos])
}

// GetClientID extracts the client ID as a string
func (h *HelloPayload) GetClientID() string {
	return ExtractString(h.ClientID[:])
}

// GetLanguage extracts the language code as a string
func (h *HelloPayload) GetLanguage() string {
	return ExtractString(h.Language[:])
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var packetType string

	switch h.PacketType {
	case PacketTypeHello:
		packetType = "Hello"
	case PacketTypeAudio:
		packetType = "Audio"
	case PacketTypeBye:
		packetType = "Bye"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, SessionID:%d}", packetType, h.PacketLen, h.SessionID)
}

// String returns a human-readable representation of the hello payload
func (h *HelloPayload) String() string {
	return fmt.Sprintf("HelloPayload{ClientID:%q, Language:%q, SampleRate:%d, Timestamp:%d}",
		h.GetClientID(), h.GetLanguage(), h.SampleRate, h.Timestamp)
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, PCMLen:%d}", a.Sequence, len(a.PCMData))
}
