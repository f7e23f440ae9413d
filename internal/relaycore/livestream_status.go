package relaycore

import "time"

// SetStatus transitions the stream to status with the given detail
// message, enforcing every state machine guard. It returns true iff the
// state was actually changed.
func (ls *LiveStream) SetStatus(status, detail string, quiet bool) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.setStatusLocked(Status(status), detail, quiet)
}

// setStatusLocked must be called with ls.mu held.
func (ls *LiveStream) setStatusLocked(status Status, detail string, quiet bool) bool {
	if status == ls.status && detail == ls.detail {
		return false
	}
	if (status == StatusOffline || status == StatusRestart) && status == ls.status {
		return false
	}
	if ls.status == StatusOffline && status == StatusRestart {
		return false
	}

	from := ls.status
	now := time.Now()

	enteringStandby := status == StatusStandby && (from == StatusOffline || from == StatusRestart)
	if enteringStandby {
		ls.startedAt = now
		ls.streamDataWrittenAt.Store(now.UnixNano())
	}

	if from == StatusStandby && status == StatusONAir {
		ls.logger.Info("stream startup complete", "startup_duration", now.Sub(ls.startedAt).String())
	}

	ls.status = status
	ls.detail = detail
	ls.updatedAt = now

	if ls.tuner != nil {
		switch status {
		case StatusIdling:
			if err := ls.tuner.Unlock(); err != nil {
				ls.logger.Warn("failed to unlock tuner on entering Idling", "error", err)
			}
		case StatusONAir:
			if err := ls.tuner.Lock(); err != nil {
				ls.logger.Warn("failed to lock tuner on entering ONAir", "error", err)
			}
		}
	}

	if !quiet {
		ls.logger.Info("status transition", "from", from, "to", status, "detail", detail)
	}

	return true
}

// GetStatus returns a point-in-time snapshot of the stream's state.
func (ls *LiveStream) GetStatus() StatusSnapshot {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return StatusSnapshot{
		Status:             ls.status,
		Detail:             ls.detail,
		StartedAt:          ls.startedAt,
		UpdatedAt:          ls.updatedAt,
		ClientCount:        len(ls.clients),
		IsRecording:        ls.isRecording,
		RecordingStart:     ls.recordingStartTime,
		RecordingFilePath:  ls.recordingFilePath,
		RecordingSessionID: ls.recordingSessionID,
	}
}
