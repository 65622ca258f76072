// Package protocol implements the binary ingest framing used on the UDP
// audio port. It handles header parsing and validation, hello payload
// extraction, sequenced audio payload processing, and packet encoding for
// clients.
package protocol
