package relaycore

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/relaycore/internal/channel"
	"github.com/jmylchreest/relaycore/internal/config"
	"github.com/jmylchreest/relaycore/internal/encoder"
	"github.com/jmylchreest/relaycore/internal/tuner"
)

// RecordedFileRegistry is the external recorded-file registry
// collaborator: it is told when a live capture starts and stops so
// downstream post-scan jobs skip the in-progress file.
type RecordedFileRegistry interface {
	RegisterRecordingFile(path string) error
	UnregisterRecordingFile(path string) error
}

// SupervisorFactory builds the encoder.Supervisor that will run for a given
// (channelID, quality) live stream.
type SupervisorFactory func(channelID, quality string) encoder.Supervisor

// TunerFactory resolves the tuner.Tuner backing a (channelID, quality)
// stream, or returns nil when no hardware tuner is involved.
type TunerFactory func(channelID, quality string) tuner.Tuner

// Registry is the process-wide singleton-per-(channel,quality) store of
// LiveStream instances: a single mutex-protected map with get-or-create
// semantics, never torn down for the life of the process.
type Registry struct {
	cfg               config.RelayCoreConfig
	logger            *slog.Logger
	channelProvider   channel.Provider
	supervisorFactory SupervisorFactory
	tunerFactory      TunerFactory
	fileRegistry      RecordedFileRegistry

	mu      sync.Mutex
	streams map[string]*LiveStream
}

// NewRegistry constructs a Registry. tunerFactory and fileRegistry may be
// nil; supervisorFactory and channelProvider must not be.
func NewRegistry(
	cfg config.RelayCoreConfig,
	logger *slog.Logger,
	channelProvider channel.Provider,
	supervisorFactory SupervisorFactory,
	tunerFactory TunerFactory,
	fileRegistry RecordedFileRegistry,
) *Registry {
	if tunerFactory == nil {
		tunerFactory = func(string, string) tuner.Tuner { return nil }
	}
	return &Registry{
		cfg:               cfg,
		logger:            logger,
		channelProvider:   channelProvider,
		supervisorFactory: supervisorFactory,
		tunerFactory:      tunerFactory,
		fileRegistry:      fileRegistry,
		streams:           make(map[string]*LiveStream),
	}
}

// Get returns the singleton LiveStream for (channelID, quality), creating
// it on first access. Repeated calls with the same key always return the
// same instance.
func (r *Registry) Get(channelID, quality string) *LiveStream {
	key := fmt.Sprintf("%s|%s", channelID, quality)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ls, ok := r.streams[key]; ok {
		return ls
	}
	ls := newLiveStream(channelID, quality, r)
	r.streams[key] = ls
	return ls
}

// GetAllLiveStreams returns a snapshot of every registered stream.
func (r *Registry) GetAllLiveStreams() []*LiveStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*LiveStream, 0, len(r.streams))
	for _, ls := range r.streams {
		out = append(out, ls)
	}
	return out
}

// GetONAirLiveStreams returns every stream currently ONAir.
func (r *Registry) GetONAirLiveStreams() []*LiveStream {
	return r.filterByStatus(StatusONAir)
}

// GetIdlingLiveStreams returns every stream currently Idling.
func (r *Registry) GetIdlingLiveStreams() []*LiveStream {
	return r.filterByStatus(StatusIdling)
}

func (r *Registry) filterByStatus(status Status) []*LiveStream {
	var out []*LiveStream
	for _, ls := range r.GetAllLiveStreams() {
		if ls.GetStatus().Status == status {
			out = append(out, ls)
		}
	}
	return out
}

// GetViewerCount sums client_count across every stream sharing channelID,
// regardless of quality.
func (r *Registry) GetViewerCount(channelID string) int {
	total := 0
	for _, ls := range r.GetAllLiveStreams() {
		if ls.ChannelID == channelID {
			total += ls.ClientCount()
		}
	}
	return total
}

// anySiblingONAir reports whether any other registered stream is ONAir,
// used by Connect's preemption loop to stop spinning early once nothing
// will ever become Idling.
func (r *Registry) anySiblingONAir(except *LiveStream) bool {
	for _, ls := range r.GetAllLiveStreams() {
		if ls == except {
			continue
		}
		if ls.GetStatus().Status == StatusONAir {
			return true
		}
	}
	return false
}
