// Package encoder launches and watches the external transcoder subprocess
// that produces a live stream's MPEG-TS bytes. The core only depends on the
// narrow Supervisor/Task contract defined here; the subprocess's ffmpeg
// command line and stdout framing are this package's concern, not the
// core's.
package encoder

import "context"

// Core is the callback surface a running Task drives. relaycore implements
// it with a thin adapter over its LiveStream; encoder never imports
// relaycore to avoid a cycle.
type Core interface {
	SetStatus(status, detail string, quiet bool) bool
	Status() string
	ClientCount() int
	WriteStreamData(chunk []byte)
	WriteRawRecordingChunk(chunk []byte)
	PushPSIArchiveChunk(chunk []byte)
	StreamDataWrittenAt() int64 // unix nanos
	DisconnectAll()
}

// Task is a handle to one running encoder supervision goroutine. Stop
// cancels the subprocess and blocks until its output loop has exited.
type Task interface {
	Stop()
	Done() <-chan struct{}
}

// Supervisor spawns and supervises the encoder child process for a single
// live stream. Run starts the child, pumps its stdout into
// Core.WriteStreamData, and drives Standby -> ONAir -> freeze detection ->
// Restart/Offline. The supervisor holds no tuner handle itself; the core
// locks the stream's tuner (if any) when it enters ONAir.
type Supervisor interface {
	Run(ctx context.Context, core Core) Task
}
