package relaycore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/relaycore/internal/psiarchive"
	"github.com/jmylchreest/relaycore/internal/recording"
	"github.com/jmylchreest/relaycore/pkg/ulidgen"
)

// StartRecording begins teeing the stream to disk. The core never raises
// for recording operations; it returns a (success, message) pair instead.
func (ls *LiveStream) StartRecording() (bool, string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.status != StatusONAir {
		return false, ErrNotOnAir.Error()
	}
	if ls.isRecording {
		return false, ErrAlreadyRecording.Error()
	}
	if len(ls.cfg.RecordedFolders) == 0 {
		return false, ErrNoRecordedFolders.Error()
	}

	dir := ls.cfg.RecordedFolders[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Sprintf("creating recording directory: %v", err)
	}

	title, channelName := ls.currentProgramTitleAndChannelName()
	start := time.Now()
	filename := recording.BuildFilename(channelName, title, start)
	path := filepath.Join(dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Sprintf("opening recording file: %v", err)
	}

	ls.recordingFile = f
	ls.recordingFilePath = path
	ls.isRecording = true
	ls.recordingStartTime = start
	ls.recordingMode = RecordingModeRaw
	ls.recordingSessionID = ulidgen.New()
	ls.psiArchivePath = recording.PSCSibling(path)

	ls.logger.Info("recording started",
		"recording_session_id", ls.recordingSessionID,
		"path", path,
	)

	archiver := &psiarchive.Archiver{
		BinaryPath:  ls.cfg.PSIArchiverPath,
		StopTimeout: ls.cfg.PSIArchiverStopTimeout.Duration(),
		Logger:      ls.logger,
	}
	serviceID := ls.channelServiceID()
	if err := archiver.Start(serviceID, ls.psiArchivePath); err != nil {
		ls.logger.Warn("psi archiver failed to start, recording continues without it", "error", err)
	} else {
		ls.psiArchiver = archiver
	}

	ls.registerRecordingFile(path)

	return true, "recording started"
}

// StopRecording ends an active recording. It is idempotent and resets
// every recording field regardless of close errors.
func (ls *LiveStream) StopRecording() (bool, string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if !ls.isRecording {
		return false, ErrNotRecording.Error()
	}

	if ls.psiArchiver != nil {
		ls.psiArchiver.Stop()
	}

	if ls.recordingFile != nil {
		_ = ls.recordingFile.Close()
	}

	path := ls.recordingFilePath
	sessionID := ls.recordingSessionID
	ls.isRecording = false
	ls.recordingMode = ""
	ls.recordingFile = nil
	ls.recordingFilePath = ""
	ls.recordingStartTime = time.Time{}
	ls.recordingSessionID = ""
	ls.psiArchiver = nil
	ls.psiArchivePath = ""

	ls.logger.Info("recording stopped", "recording_session_id", sessionID, "path", path)

	ls.unregisterRecordingFile(path)

	return true, "recording stopped"
}

func (ls *LiveStream) currentProgramTitleAndChannelName() (title, channelName string) {
	if ls.channelProvider == nil {
		return "", ls.ChannelID
	}
	ch, ok := ls.channelProvider.Get(ls.ChannelID)
	if !ok || ch == nil {
		ls.logger.Warn("falling back to channel id for recording filename", "error", ErrChannelNotFound)
		return "", ls.ChannelID
	}
	current, _ := ls.channelProvider.CurrentAndNextProgram(ls.ChannelID)
	if current != nil {
		title = current.Title
	}
	return title, ch.Name
}

func (ls *LiveStream) channelServiceID() int {
	if ls.channelProvider == nil {
		return 0
	}
	ch, ok := ls.channelProvider.Get(ls.ChannelID)
	if !ok || ch == nil {
		return 0
	}
	return ch.ServiceID
}

// registerRecordingFile/unregisterRecordingFile are best-effort calls to
// the external recorded-file registry collaborator; failures are warnings,
// never fatal to the recording itself.
func (ls *LiveStream) registerRecordingFile(path string) {
	if ls.registry == nil || ls.registry.fileRegistry == nil {
		return
	}
	if err := ls.registry.fileRegistry.RegisterRecordingFile(path); err != nil {
		ls.logger.Warn("failed to register in-progress recording file", "path", path, "error", err)
	}
}

func (ls *LiveStream) unregisterRecordingFile(path string) {
	if ls.registry == nil || ls.registry.fileRegistry == nil || path == "" {
		return
	}
	if err := ls.registry.fileRegistry.UnregisterRecordingFile(path); err != nil {
		ls.logger.Warn("failed to unregister recording file", "path", path, "error", err)
	}
}
