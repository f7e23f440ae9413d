// Package relaycore implements the live broadcast stream multiplexer: the
// singleton-per-(channel,quality) orchestrator that supervises an encoder,
// fans its output out to attached clients with bounded buffering and
// liveness-based eviction, and optionally tees the stream to disk alongside
// a PSI/SI archive.
package relaycore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/relaycore/internal/channel"
	"github.com/jmylchreest/relaycore/internal/config"
	"github.com/jmylchreest/relaycore/internal/encoder"
	"github.com/jmylchreest/relaycore/internal/psiarchive"
	"github.com/jmylchreest/relaycore/internal/relaylog"
	"github.com/jmylchreest/relaycore/internal/tuner"
)

// Status is one of the five states the live stream state machine can be
// in.
type Status string

const (
	StatusOffline Status = "Offline"
	StatusStandby Status = "Standby"
	StatusONAir   Status = "ONAir"
	StatusIdling  Status = "Idling"
	StatusRestart Status = "Restart"
)

// RecordingMode selects which byte stream the recording tee writes.
type RecordingMode string

const (
	RecordingModeRaw     RecordingMode = "raw"
	RecordingModeEncoded RecordingMode = "encoded"
)

// StatusSnapshot is the read-only view returned by GetStatus; it is the
// only read-side surface HTTP handlers consume.
type StatusSnapshot struct {
	Status             Status
	Detail             string
	StartedAt          time.Time
	UpdatedAt          time.Time
	ClientCount        int
	IsRecording        bool
	RecordingStart     time.Time
	RecordingFilePath  string
	RecordingSessionID string
}

// LiveStream is keyed uniquely by (ChannelID, Quality); the Registry
// guarantees at most one instance per key exists process-wide.
type LiveStream struct {
	ChannelID string
	Quality   string

	registry *Registry
	cfg      config.RelayCoreConfig
	logger   *slog.Logger

	supervisor      encoder.Supervisor
	channelProvider channel.Provider
	tuner           tuner.Tuner // nil when no hardware tuner backs this stream

	mu        sync.Mutex
	status    Status
	detail    string
	startedAt time.Time
	updatedAt time.Time
	clients   []*LiveStreamClient

	encoderTask   encoder.Task
	encoderCancel context.CancelFunc

	isRecording        bool
	recordingMode      RecordingMode
	recordingFilePath  string
	recordingFile      *os.File
	recordingStartTime time.Time
	recordingSessionID string
	psiArchiver        *psiarchive.Archiver
	psiArchivePath     string

	streamDataWrittenAt atomic.Int64 // unix nanos; read lock-free by the encoder's freeze watcher
}

func newLiveStream(channelID, quality string, registry *Registry) *LiveStream {
	ls := &LiveStream{
		ChannelID:       channelID,
		Quality:         quality,
		registry:        registry,
		cfg:             registry.cfg,
		logger:          relaylog.WithComponent(registry.logger, "relaycore"),
		supervisor:      registry.supervisorFactory(channelID, quality),
		channelProvider: registry.channelProvider,
		tuner:           registry.tunerFactory(channelID, quality),
		status:          StatusOffline,
	}
	ls.logger = relaylog.WithStream(ls.logger, ls.key())
	return ls
}

func (ls *LiveStream) key() string {
	return fmt.Sprintf("%s|%s", ls.ChannelID, ls.Quality)
}

// Connect attaches a new viewer, cold-starting the encoder if this is the
// first connection and reclaiming an Idling sibling's tuner if needed.
func (ls *LiveStream) Connect(ctx context.Context, kind ClientKind) *LiveStreamClient {
	ls.mu.Lock()
	currentStatus := ls.status

	coldStart := currentStatus == StatusOffline
	if coldStart {
		ls.setStatusLocked(StatusStandby, "cold start", false)
	}
	ls.mu.Unlock()

	if coldStart {
		ls.preemptSibling()
		ls.launchEncoder(ctx)
	}

	ls.mu.Lock()
	client := newLiveStreamClient(ls.key(), kind, ls.cfg.ClientMailboxSize, time.Now())
	ls.clients = append(ls.clients, client)
	wasIdling := currentStatus == StatusIdling
	ls.mu.Unlock()

	if wasIdling {
		ls.SetStatus(string(StatusONAir), "client reconnected while idling", false)
	}

	return client
}

// preemptSibling implements the tuner-reclaim spin loop: up to
// TunerPreemptAttempts short spins looking for a sibling stream in Idling,
// reclaiming the first one found. It stops early once no sibling is ONAir,
// since nothing further will ever become Idling.
func (ls *LiveStream) preemptSibling() {
	attempts := ls.cfg.TunerPreemptAttempts
	interval := ls.cfg.TunerPreemptInterval.Duration()
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	for i := 0; i < attempts; i++ {
		if ls.reclaimOneIdlingSibling() {
			return
		}
		if !ls.registry.anySiblingONAir(ls) {
			return
		}
		time.Sleep(interval)
	}
}

func (ls *LiveStream) reclaimOneIdlingSibling() bool {
	for _, sibling := range ls.registry.GetIdlingLiveStreams() {
		if sibling == ls {
			continue
		}
		sibling.mu.Lock()
		if sibling.status != StatusIdling {
			sibling.mu.Unlock()
			continue
		}
		t := sibling.tuner
		sibling.setStatusLocked(StatusOffline, "tuner reclaimed", false)
		sibling.mu.Unlock()

		if t != nil {
			if err := t.Unlock(); err != nil {
				sibling.logger.Warn("failed to unlock reclaimed tuner", "error", err)
			}
		}
		return true
	}
	return false
}

func (ls *LiveStream) launchEncoder(ctx context.Context) {
	ls.mu.Lock()
	if ls.encoderTask != nil {
		ls.mu.Unlock()
		return
	}
	encoderCtx, cancel := context.WithCancel(ctx)
	ls.encoderCancel = cancel
	ls.mu.Unlock()

	task := ls.supervisor.Run(encoderCtx, (*liveStreamCore)(ls))

	ls.mu.Lock()
	ls.encoderTask = task
	ls.mu.Unlock()
}

// Disconnect removes client from the stream. Removal is tolerant of an
// already-removed client and has no status side effects.
func (ls *LiveStream) Disconnect(client *LiveStreamClient) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i, c := range ls.clients {
		if c == client {
			ls.clients = append(ls.clients[:i], ls.clients[i+1:]...)
			return
		}
	}
}

// DisconnectAll evicts every attached client, signaling end-of-stream to
// each so their reader loops exit cleanly.
func (ls *LiveStream) DisconnectAll() {
	ls.mu.Lock()
	clients := ls.clients
	ls.clients = nil
	ls.mu.Unlock()

	for _, c := range clients {
		c.writeStreamData(mailboxItem{end: true})
	}
}

// WriteStreamData broadcasts chunk to every attached client, evicting any
// client that has gone stale (no read in ClientReadTimeout), and tees the
// chunk to the recording file when a recording is active in encoded mode.
func (ls *LiveStream) WriteStreamData(chunk []byte) {
	ls.mu.Lock()
	clients := make([]*LiveStreamClient, len(ls.clients))
	copy(clients, ls.clients)
	readTimeout := ls.cfg.ClientReadTimeout.Duration()
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	ls.mu.Unlock()

	now := time.Now()
	var stale []*LiveStreamClient
	for _, c := range clients {
		if now.Sub(c.LastReadAt()) > readTimeout {
			stale = append(stale, c)
			continue
		}
		c.writeStreamData(mailboxItem{chunk: chunk})
	}
	for _, c := range stale {
		ls.Disconnect(c)
	}

	if len(chunk) > 0 {
		ls.streamDataWrittenAt.Store(now.UnixNano())
	}

	ls.mu.Lock()
	recording := ls.isRecording && ls.recordingMode == RecordingModeEncoded
	ls.mu.Unlock()
	if recording {
		if err := ls.appendRecordingChunk(chunk); err != nil {
			ls.logger.Warn("recording write failed, stopping recording", "error", err)
			ls.StopRecording()
		}
	}
}

// WriteRawRecordingChunk tees chunk to the recording file when a recording
// is active in raw mode.
func (ls *LiveStream) WriteRawRecordingChunk(chunk []byte) {
	ls.mu.Lock()
	active := ls.isRecording && ls.recordingMode == RecordingModeRaw
	ls.mu.Unlock()
	if !active {
		return
	}
	if err := ls.appendRecordingChunk(chunk); err != nil {
		ls.logger.Warn("raw recording write failed, stopping recording", "error", err)
		ls.StopRecording()
	}
}

func (ls *LiveStream) appendRecordingChunk(chunk []byte) error {
	ls.mu.Lock()
	f := ls.recordingFile
	ls.mu.Unlock()
	if f == nil {
		return nil
	}
	_, err := f.Write(chunk)
	return err
}

// PushPSIArchiveChunk forwards chunk to the running PSI/SI archiver, if
// any is attached to this stream's recording session.
func (ls *LiveStream) PushPSIArchiveChunk(chunk []byte) {
	ls.mu.Lock()
	archiver := ls.psiArchiver
	ls.mu.Unlock()
	if archiver == nil || !archiver.Running() {
		return
	}
	archiver.Push(chunk)
}

// StreamDataWrittenAt returns the instant of the last non-empty chunk
// broadcast. Exported so HTTP diagnostics and tests can read it directly
// rather than only through the encoder.Core adapter.
func (ls *LiveStream) StreamDataWrittenAt() time.Time {
	return time.Unix(0, ls.streamDataWrittenAt.Load())
}

// Tuner returns the tuner handle backing this stream, or nil if this
// collaborator isn't wired (e.g. an IP-only upstream with no hardware
// tuner).
func (ls *LiveStream) Tuner() tuner.Tuner { return ls.tuner }

// HasTuner reports whether a tuner handle is attached.
func (ls *LiveStream) HasTuner() bool { return ls.tuner != nil }

// ClientCount returns the number of currently attached clients.
func (ls *LiveStream) ClientCount() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.clients)
}

// liveStreamCore adapts *LiveStream to encoder.Core without exposing the
// whole LiveStream surface to the encoder package (avoids an import cycle
// and keeps the supervisor's dependency narrow).
type liveStreamCore LiveStream

func (c *liveStreamCore) ls() *LiveStream { return (*LiveStream)(c) }

func (c *liveStreamCore) SetStatus(status, detail string, quiet bool) bool {
	return c.ls().SetStatus(status, detail, quiet)
}
func (c *liveStreamCore) Status() string {
	return string(c.ls().GetStatus().Status)
}
func (c *liveStreamCore) ClientCount() int             { return c.ls().ClientCount() }
func (c *liveStreamCore) WriteStreamData(chunk []byte) { c.ls().WriteStreamData(chunk) }
func (c *liveStreamCore) WriteRawRecordingChunk(chunk []byte) {
	c.ls().WriteRawRecordingChunk(chunk)
}
func (c *liveStreamCore) PushPSIArchiveChunk(chunk []byte) { c.ls().PushPSIArchiveChunk(chunk) }
func (c *liveStreamCore) StreamDataWrittenAt() int64 {
	return c.ls().streamDataWrittenAt.Load()
}
func (c *liveStreamCore) DisconnectAll() { c.ls().DisconnectAll() }
