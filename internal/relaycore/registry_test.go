package relaycore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GetReturnsSameInstance(t *testing.T) {
	reg := newTestRegistry(testConfig(), map[string]*fakeSupervisor{}, nil)

	a := reg.Get("gr011", "1080p")
	b := reg.Get("gr011", "1080p")
	assert.Same(t, a, b)

	c := reg.Get("gr011", "720p")
	assert.NotSame(t, a, c)
}

func TestRegistry_Queries(t *testing.T) {
	supervisors := map[string]*fakeSupervisor{}
	reg := newTestRegistry(testConfig(), supervisors, nil)

	a := reg.Get("gr011", "1080p")
	a.Connect(context.Background(), ClientKindMpegts)
	coreA := supervisors["gr011|1080p"].waitForRun(t)
	coreA.SetStatus(string(StatusONAir), "first chunk received", false)
	coreA.WriteStreamData([]byte("\x47chunk"))

	b := reg.Get("gr011", "720p")
	b.Connect(context.Background(), ClientKindMpegts)

	assert.Len(t, reg.GetAllLiveStreams(), 2)
	assert.Len(t, reg.GetONAirLiveStreams(), 1)
	assert.Equal(t, 2, reg.GetViewerCount("gr011"))
}
