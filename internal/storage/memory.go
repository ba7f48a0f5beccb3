package storage

import (
	"context"
	"sync"
)

// MemoryGateway is a process-local Gateway. Reads and writes are counted so
// callers can observe caching behavior.
type MemoryGateway struct {
	mu     sync.Mutex
	data   map[string][]byte
	reads  int
	writes int
}

var _ Gateway = (*MemoryGateway)(nil)

func NewMemory() *MemoryGateway {
	return &MemoryGateway{data: make(map[string][]byte)}
}

func memoryKey(guildID, scope, key string) string {
	return guildID + "/" + scope + "/" + key
}

func (g *MemoryGateway) GetRaw(ctx context.Context, guildID, scope, key string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	value, ok := g.data[memoryKey(guildID, scope, key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (g *MemoryGateway) SetRaw(ctx context.Context, guildID, scope, key string, value []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes++
	stored := make([]byte, len(value))
	copy(stored, value)
	g.data[memoryKey(guildID, scope, key)] = stored
	return nil
}

// Counts returns the number of reads and writes served so far.
func (g *MemoryGateway) Counts() (reads, writes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads, g.writes
}
