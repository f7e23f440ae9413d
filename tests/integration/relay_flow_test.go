package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/relaycore/internal/channel"
	"github.com/jmylchreest/relaycore/internal/config"
	"github.com/jmylchreest/relaycore/internal/encoder"
	"github.com/jmylchreest/relaycore/internal/relaycore"
	"github.com/jmylchreest/relaycore/internal/tuner"
)

// fakeSupervisor hands the test a handle to the encoder.Core so the test can
// drive the encoder side of the state machine directly, without spawning a
// real subprocess.
type fakeSupervisor struct {
	mu      sync.Mutex
	runCh   chan encoder.Core
	lastRun encoder.Core
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{runCh: make(chan encoder.Core, 8)}
}

func (f *fakeSupervisor) Run(_ context.Context, core encoder.Core) encoder.Task {
	f.mu.Lock()
	f.lastRun = core
	f.mu.Unlock()
	f.runCh <- core
	return &fakeTask{done: make(chan struct{})}
}

func (f *fakeSupervisor) waitForRun(t *testing.T) encoder.Core {
	t.Helper()
	select {
	case c := <-f.runCh:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never ran")
		return nil
	}
}

type fakeTask struct{ done chan struct{} }

func (t *fakeTask) Stop()                 { close(t.done) }
func (t *fakeTask) Done() <-chan struct{} { return t.done }

// fakeTuner records lock/unlock calls from the tuner-reclaim path.
type fakeTuner struct {
	mu     sync.Mutex
	locked bool
}

func (f *fakeTuner) Lock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = true
	return nil
}

func (f *fakeTuner) Unlock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	return nil
}

func (f *fakeTuner) isLocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

type fakeChannelProvider struct {
	ch      *channel.Channel
	current *channel.Program
}

func (f *fakeChannelProvider) Get(channelID string) (*channel.Channel, bool) {
	if f.ch == nil {
		return nil, false
	}
	return f.ch, true
}

func (f *fakeChannelProvider) CurrentAndNextProgram(channelID string) (current, next *channel.Program) {
	return f.current, nil
}

func testConfig(recordedFolder string) config.RelayCoreConfig {
	return config.RelayCoreConfig{
		ClientMailboxSize:      8,
		ClientReadTimeout:      config.Duration(100 * time.Millisecond),
		OnAirFreezeTimeout:     config.Duration(50 * time.Millisecond),
		StandbyFreezeTimeout:   config.Duration(200 * time.Millisecond),
		TunerPreemptAttempts:   10,
		TunerPreemptInterval:   config.Duration(5 * time.Millisecond),
		PSIArchiverStopTimeout: config.Duration(50 * time.Millisecond),
		PSIArchiverPath:        "psisiarc",
		RecordedFolders:        []string{recordedFolder},
		SweepInterval:          config.Duration(0),
	}
}

// TestLiveStreamFullFlow drives a single (channel, quality) live stream
// through its full lifecycle against fake encoder and tuner collaborators:
// cold start, first connect, tuner preemption from an idling sibling,
// viewer broadcast, recording start/stop with a session id, last-viewer
// idling, and a full disconnect-all teardown.
func TestLiveStreamFullFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	supervisors := map[string]*fakeSupervisor{}
	tuners := map[string]*fakeTuner{
		"ch1|1080p": {},
		"ch2|1080p": {},
	}

	reg := relaycore.NewRegistry(
		testConfig(dir),
		logger,
		&fakeChannelProvider{
			ch:      &channel.Channel{ID: "ch1", Name: "News Channel", ServiceID: 7},
			current: &channel.Program{Title: "Evening Bulletin"},
		},
		func(channelID, quality string) encoder.Supervisor {
			key := channelID + "|" + quality
			s := newFakeSupervisor()
			supervisors[key] = s
			return s
		},
		func(channelID, quality string) tuner.Tuner {
			key := channelID + "|" + quality
			if tu, ok := tuners[key]; ok {
				return tu
			}
			return nil
		},
		nil,
	)

	var sibling *relaycore.LiveStream

	t.Run("sibling_goes_idling_and_is_reclaimed", func(t *testing.T) {
		sibling = reg.Get("ch2", "1080p")
		client := sibling.Connect(context.Background(), relaycore.ClientKindMpegts)
		core := supervisors["ch2|1080p"].waitForRun(t)
		core.SetStatus(string(relaycore.StatusONAir), "encoder running", false)
		core.WriteStreamData([]byte("\x47sibling-data"))
		require.Equal(t, relaycore.StatusONAir, sibling.GetStatus().Status)

		sibling.Disconnect(client)
		sibling.SetStatus(string(relaycore.StatusIdling), "no clients", false)
		require.Equal(t, relaycore.StatusIdling, sibling.GetStatus().Status)
		assert.False(t, tuners["ch2|1080p"].isLocked())
	})

	var stream *relaycore.LiveStream
	var core encoder.Core

	t.Run("cold_connect_reclaims_sibling_tuner", func(t *testing.T) {
		stream = reg.Get("ch1", "1080p")
		_ = stream.Connect(context.Background(), relaycore.ClientKindMpegts)
		core = supervisors["ch1|1080p"].waitForRun(t)

		require.Eventually(t, func() bool {
			return sibling.GetStatus().Status == relaycore.StatusOffline
		}, time.Second, 5*time.Millisecond, "sibling should be reclaimed to Offline")
		assert.False(t, tuners["ch2|1080p"].isLocked())

		core.SetStatus(string(relaycore.StatusONAir), "encoder running", false)
		require.Equal(t, relaycore.StatusONAir, stream.GetStatus().Status)
	})

	var viewer *relaycore.LiveStreamClient

	t.Run("broadcast_reaches_viewer", func(t *testing.T) {
		viewer = stream.Connect(context.Background(), relaycore.ClientKindMpegts)
		core.WriteStreamData([]byte("\x47payload"))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		chunk, ok, err := viewer.ReadStreamData(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("\x47payload"), chunk)
	})

	t.Run("recording_lifecycle_writes_named_file_and_session_id", func(t *testing.T) {
		started, msg := stream.StartRecording()
		require.True(t, started, msg)
		require.NotEmpty(t, stream.GetStatus().RecordingSessionID)

		core.WriteRawRecordingChunk([]byte("raw-bytes"))

		stopped, msg := stream.StopRecording()
		require.True(t, stopped, msg)

		snap := stream.GetStatus()
		assert.Empty(t, snap.RecordingFilePath)
		assert.False(t, snap.IsRecording)
		assert.Empty(t, snap.RecordingSessionID)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Name(), "News Channel")
		assert.Contains(t, entries[0].Name(), "Evening Bulletin")

		data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
		require.NoError(t, err)
		assert.Equal(t, "raw-bytes", string(data))
	})

	t.Run("idling_then_full_teardown", func(t *testing.T) {
		stream.SetStatus(string(relaycore.StatusIdling), "no clients", false)
		require.Equal(t, relaycore.StatusIdling, stream.GetStatus().Status)

		stream.DisconnectAll()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, ok, err := viewer.ReadStreamData(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "disconnected client should observe end of stream")
	})
}
