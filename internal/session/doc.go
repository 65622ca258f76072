// Package session composes the detection, segmentation and reconciliation
// pipeline into per-client streaming sessions, dispatches transcript events
// to subscribers, and manages session lifecycle with inactivity cleanup.
package session
