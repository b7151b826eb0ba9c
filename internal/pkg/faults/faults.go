// Package faults holds the shared failure vocabulary of the backend.
// Callers classify with errors.Is / errors.As; wrapping sites add
// context with fmt.Errorf("...: %w", ...).
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Frame extraction.
var (
	// ErrMediaDecode means the payload could not be decoded at all
	// (unsupported codec, truncated container).
	ErrMediaDecode = errors.New("media decode failed")
	// ErrTimeout means a bounded wait elapsed before the operation
	// finished.
	ErrTimeout = errors.New("operation timed out")
	// ErrRenderTargetUnavailable means the rasterization backend could
	// not be acquired (missing ffmpeg/ffprobe binaries).
	ErrRenderTargetUnavailable = errors.New("render target unavailable")
)

// Upload.
var (
	// ErrQuotaExceeded means the payload is larger than the storage
	// backend accepts. Surfaced distinctly so the UI can explain the
	// size limit instead of a generic failure.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrTransientNetwork marks a transfer failure worth retrying on
	// the uploader's backoff schedule.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrAuthExpired means the storage credential lapsed mid-transfer.
	// The uploader refreshes once and retries once.
	ErrAuthExpired = errors.New("storage credential expired")
)

// Transcription.
var (
	ErrAssetUnreachable  = errors.New("asset unreachable")
	ErrMissingCredential = errors.New("provider credential missing")
	ErrProvider          = errors.New("transcription provider error")
	ErrPollTimeout       = errors.New("transcription poll timed out")
)

// Compression.
var ErrNoSupportedCodec = errors.New("no supported codec")

// Generic.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
)

// PartialCascadeFailure reports an event-gallery cascade delete that
// removed some objects but not all. The record must not appear fully
// clean to the caller.
type PartialCascadeFailure struct {
	EventID    string
	FailedKeys []string
	Causes     []error
}

func (e *PartialCascadeFailure) Error() string {
	return fmt.Sprintf("cascade delete for event %s left %d objects behind: %s",
		e.EventID, len(e.FailedKeys), strings.Join(e.FailedKeys, ", "))
}

func (e *PartialCascadeFailure) Unwrap() []error { return e.Causes }
