package encoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// freezeChecker reports whether a process (identified by pid) still looks
// alive. Production wiring uses gopsutil (process.PidExists plus a
// zombie check on Process.Status); tests substitute a fake.
type freezeChecker interface {
	IsRunning(pid int32) (bool, error)
}

// ProcessSupervisor is the default Supervisor: it spawns name with args,
// pumps stdout in fixed-size chunks into Core, and watches
// Core.StreamDataWrittenAt against onAirFreeze/standbyFreeze to decide when
// to transition the stream to Restart: a ticker comparing a last-activity
// timestamp against a threshold rather than relying on the child's exit
// code alone, since a wedged encoder often keeps running without
// producing output.
type ProcessSupervisor struct {
	Name string
	Args []string

	ChunkSize     int
	OnAirFreeze   time.Duration
	StandbyFreeze time.Duration
	PollInterval  time.Duration

	Checker freezeChecker

	Logger *slog.Logger
}

type processTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *processTask) Stop()                 { t.cancel(); <-t.done }
func (t *processTask) Done() <-chan struct{} { return t.done }

// Run implements Supervisor.
func (s *ProcessSupervisor) Run(ctx context.Context, core Core) Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &processTask{cancel: cancel, done: make(chan struct{})}

	go s.run(ctx, core, t)

	return t
}

// run drives one live stream's encoder across its full lifetime: it spawns
// successive generations of the child process, respawning in place whenever
// a generation is killed for freezing, until the child exits on its own or
// ctx is canceled by Task.Stop/shutdown.
func (s *ProcessSupervisor) run(ctx context.Context, core Core, t *processTask) {
	defer close(t.done)
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		frozen, launchErr := s.runGeneration(ctx, core)
		if launchErr != nil {
			logger.Error("encoder: failed to start process", "error", launchErr)
			core.SetStatus("Offline", fmt.Sprintf("encoder launch failed: %v", launchErr), false)
			return
		}
		if frozen {
			core.SetStatus("Standby", "encoder restarted after freeze", false)
			continue
		}

		core.DisconnectAll()
		if !contextIsDone(ctx) {
			core.SetStatus("Offline", "encoder exited", false)
		}
		return
	}
}

// runGeneration spawns and supervises a single encoder child process. It
// returns frozen=true when watchFreeze killed this generation after
// detecting no output within the freeze threshold, so run can spawn a fresh
// generation instead of treating the exit as terminal. launchErr is set
// only when the child never started.
func (s *ProcessSupervisor) runGeneration(ctx context.Context, core Core) (frozen bool, launchErr error) {
	genCtx, genCancel := context.WithCancel(ctx)
	defer genCancel()

	cmd := exec.CommandContext(genCtx, s.Name, s.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, err
	}
	if err := cmd.Start(); err != nil {
		return false, err
	}

	var frozenFlag atomic.Bool

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		s.pumpStdout(stdout, core)
	}()

	go func() {
		defer wg.Done()
		if s.watchFreeze(genCtx, core, int32(cmd.Process.Pid)) {
			frozenFlag.Store(true)
			genCancel()
		}
	}()

	go func() {
		defer wg.Done()
		s.watchIdle(genCtx, core)
	}()

	_ = cmd.Wait()
	// The child has exited (on its own or because a watcher killed it):
	// stop this generation's watchers so wg.Wait can return.
	genCancel()
	wg.Wait()

	return frozenFlag.Load(), nil
}

func contextIsDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *ProcessSupervisor) pumpStdout(stdout io.Reader, core Core) {
	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	r := bufio.NewReaderSize(stdout, chunkSize)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if core.Status() == "Standby" {
				core.SetStatus("ONAir", "first chunk received", false)
			}
			core.WriteStreamData(chunk)
			core.WriteRawRecordingChunk(chunk)
			core.PushPSIArchiveChunk(chunk)
		}
		if err != nil {
			return
		}
	}
}

// watchFreeze trips a Restart when no chunk has been written within the
// status-appropriate freeze threshold (ONAir/Idling use the shorter
// onAirFreeze window since the encoder is expected to still be producing
// output; Standby uses the longer one while the encoder warms up), and
// exits early if the gopsutil-backed checker reports the child has already
// died. It returns true iff it tripped a freeze, so the caller knows to
// kill and respawn this generation rather than treat the exit as terminal.
func (s *ProcessSupervisor) watchFreeze(ctx context.Context, core Core, pid int32) bool {
	interval := s.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.Checker != nil {
				if running, err := s.Checker.IsRunning(pid); err == nil && !running {
					return false
				}
			}

			threshold := s.OnAirFreeze
			if threshold <= 0 {
				threshold = 5 * time.Second
			}
			if core.Status() == "Standby" {
				threshold = s.StandbyFreeze
				if threshold <= 0 {
					threshold = 20 * time.Second
				}
			}

			writtenAt := time.Unix(0, core.StreamDataWrittenAt())
			if time.Since(writtenAt) > threshold {
				core.SetStatus("Restart", "no chunk written within freeze threshold", false)
				return true
			}
		}
	}
}

// watchIdle transitions ONAir -> Idling once the last client has
// disconnected. Disconnect itself has no status side effects; detecting
// the empty-client condition and acting on it is this loop's job.
func (s *ProcessSupervisor) watchIdle(ctx context.Context, core Core) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if core.Status() == "ONAir" && core.ClientCount() == 0 {
				core.SetStatus("Idling", "no clients attached", false)
			}
		}
	}
}
