package relaycore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/relaycore/internal/channel"
	"github.com/jmylchreest/relaycore/internal/config"
	"github.com/jmylchreest/relaycore/internal/encoder"
	"github.com/jmylchreest/relaycore/internal/tuner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.RelayCoreConfig {
	return config.RelayCoreConfig{
		ClientMailboxSize:      8,
		ClientReadTimeout:      config.Duration(50 * time.Millisecond),
		OnAirFreezeTimeout:     config.Duration(50 * time.Millisecond),
		StandbyFreezeTimeout:   config.Duration(200 * time.Millisecond),
		TunerPreemptAttempts:   8,
		TunerPreemptInterval:   config.Duration(5 * time.Millisecond),
		PSIArchiverStopTimeout: config.Duration(50 * time.Millisecond),
		PSIArchiverPath:        "psisiarc",
		RecordedFolders:        []string{},
		SweepInterval:          config.Duration(0),
	}
}

// fakeSupervisor never spawns a real process; it hands the test a handle to
// the Core so the test can drive WriteStreamData/SetStatus/DisconnectAll
// itself, exactly as a real encoder goroutine would.
type fakeSupervisor struct {
	mu      sync.Mutex
	lastRun encoder.Core
	runCh   chan encoder.Core
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

func (f *fakeSupervisor) waitForRun(t interface{ Fatal(...any) }) encoder.Core {
	select {
	case c := <-f.runCh:
		return c
	case <-time.After(time.Second):
		t.Fatal("supervisor never ran")
		return nil
	}
}

type fakeTask struct {
	done chan struct{}
}

func (t *fakeTask) Stop()                 { close(t.done) }
func (t *fakeTask) Done() <-chan struct{} { return t.done }

// fakeTuner records lock/unlock calls.
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

// fakeChannelProvider returns a fixed channel/program for every lookup.
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

func (f *fakeChannelProvider) CurrentAndNextProgram(channelID string) (*channel.Program, *channel.Program) {
	return f.current, nil
}

// newTestRegistry wires a Registry whose every sibling stream shares one
// fakeSupervisor factory, keyed so the test can retrieve the supervisor it
// gave to a particular (channel, quality).
func newTestRegistry(cfg config.RelayCoreConfig, supervisors map[string]*fakeSupervisor, tuners map[string]*fakeTuner) *Registry {
	return NewRegistry(
		cfg,
		testLogger(),
		&fakeChannelProvider{},
		func(channelID, quality string) encoder.Supervisor {
			key := channelID + "|" + quality
			if s, ok := supervisors[key]; ok {
				return s
			}
			s := newFakeSupervisor()
			supervisors[key] = s
			return s
		},
		func(channelID, quality string) tuner.Tuner {
			key := channelID + "|" + quality
			if tuners == nil {
				return nil
			}
			if tu, ok := tuners[key]; ok {
				return tu
			}
			return nil
		},
		nil,
	)
}
