package relaycore

import (
	"testing"
	"time"

	"github.com/jmylchreest/relaycore/internal/config"
)

func TestRegistry_StartSweep_NoopWithZeroInterval(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = config.Duration(0)
	reg := newTestRegistry(cfg, map[string]*fakeSupervisor{}, nil)

	stop := reg.StartSweep()
	defer stop()
	// Nothing to assert beyond "does not panic" -- a zero interval must not
	// schedule a cron job at all.
}

func TestRegistry_StartSweep_RunsWithoutPanicking(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = config.Duration(5 * time.Millisecond)
	reg := newTestRegistry(cfg, map[string]*fakeSupervisor{}, nil)
	reg.Get("gr011", "1080p")

	stop := reg.StartSweep()
	time.Sleep(20 * time.Millisecond)
	stop()
}
