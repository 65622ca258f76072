// Package server implements the UDP ingest server and the HTTP API.
// It handles concurrent packet processing, routing audio into streaming
// sessions, and monitoring/management endpoints.
package server
