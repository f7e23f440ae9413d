package channel

import "sync"

// MemoryProvider is an in-memory Provider, used by cmd/relaycored when no
// database collaborator is configured and by tests as a fixture.
type MemoryProvider struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	programs map[string][2]*Program // [current, next]
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		channels: make(map[string]*Channel),
		programs: make(map[string][2]*Program),
	}
}

// Put registers channel metadata and current/next programs under ch.ID.
func (m *MemoryProvider) Put(ch *Channel, current, next *Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
	m.programs[ch.ID] = [2]*Program{current, next}
}

// Get implements Provider.
func (m *MemoryProvider) Get(channelID string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[channelID]
	return ch, ok
}

// CurrentAndNextProgram implements Provider.
func (m *MemoryProvider) CurrentAndNextProgram(channelID string) (*Program, *Program) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pair, ok := m.programs[channelID]
	if !ok {
		return nil, nil
	}
	return pair[0], pair[1]
}
