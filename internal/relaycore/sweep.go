package relaycore

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartSweep schedules a periodic heartbeat over the registry using
// robfig/cron: every cfg.SweepInterval it logs aggregate viewer/stream
// counts. This is a diagnostics backstop, not part of the state machine
// itself — eviction and freeze detection happen inline in WriteStreamData
// and the encoder supervisor respectively. Returns a stop function.
func (r *Registry) StartSweep() (stop func()) {
	interval := r.cfg.SweepInterval.Duration()
	if interval <= 0 {
		return func() {}
	}

	c := cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %s", interval)
	_, err := c.AddFunc(spec, r.logSweepSnapshot)
	if err != nil {
		r.logger.Error("relaycore: failed to schedule sweep", "error", err)
		return func() {}
	}
	c.Start()
	return func() { <-c.Stop().Done() }
}

func (r *Registry) logSweepSnapshot() {
	streams := r.GetAllLiveStreams()
	onAir := 0
	idling := 0
	viewers := 0
	for _, ls := range streams {
		snap := ls.GetStatus()
		viewers += snap.ClientCount
		switch snap.Status {
		case StatusONAir:
			onAir++
		case StatusIdling:
			idling++
		}
	}
	r.logger.Debug("relaycore sweep",
		"total_streams", len(streams),
		"onair", onAir,
		"idling", idling,
		"viewers", viewers,
	)
}
