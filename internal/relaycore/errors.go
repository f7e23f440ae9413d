package relaycore

import "errors"

// Sentinel errors returned by the live stream core's public surface.
// Recording operations never propagate these directly to callers outside
// the package; they return a (bool, string) pair instead, whose message is
// the sentinel's text for precondition failures. I/O failures (directory
// creation, file open) report their own formatted message instead.
var (
	// ErrAlreadyRecording is returned by StartRecording when a recording is
	// already in progress for this stream.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrNotRecording is returned by StopRecording when no recording is active.
	ErrNotRecording = errors.New("not recording")

	// ErrNotOnAir is returned by StartRecording when the stream is not ONAir.
	ErrNotOnAir = errors.New("not on air")

	// ErrNoRecordedFolders is returned when no recording destination is configured.
	ErrNoRecordedFolders = errors.New("no recorded folders configured")

	// ErrChannelNotFound is returned when the channel collaborator has no
	// record for this stream's display channel id.
	ErrChannelNotFound = errors.New("channel not found")
)
