// Package transcriber defines the speech recognition boundary of the
// pipeline. It provides the Transcriber interface, word extraction from
// segment or bare-text results, an HTTP backend for self-hosted Whisper
// servers and an OpenAI API backend.
package transcriber
