package api

import (
	"sort"
	"sync"

	"github.com/ssargent/drlog/pkg/stream"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the status server
type ServerConfig struct {
	Addr string
	// APIKey protects /api/v1 when set
	APIKey string
	// SegmentDir is the file sink directory listed by /api/v1/segments
	SegmentDir string
}

// TableInfo describes a replicated table
type TableInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Schema    string `json:"schema"`
}

// StatsBoard holds the latest published stats of each partition stream.
// Streams are owned by one goroutine each and publish snapshots here; the
// HTTP handlers only ever read the board.
type StatsBoard struct {
	mu    sync.RWMutex
	stats map[int32]stream.Stats
}

// NewStatsBoard creates an empty board
func NewStatsBoard() *StatsBoard {
	return &StatsBoard{stats: make(map[int32]stream.Stats)}
}

// Publish replaces the snapshot of st.PartitionID
func (b *StatsBoard) Publish(st stream.Stats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats[st.PartitionID] = st
}

// StreamStats returns every snapshot ordered by partition
func (b *StatsBoard) StreamStats() []stream.Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]stream.Stats, 0, len(b.stats))
	for _, st := range b.stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartitionID < out[j].PartitionID })
	return out
}

// Partition returns the snapshot of one partition
func (b *StatsBoard) Partition(partitionID int32) (stream.Stats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.stats[partitionID]
	return st, ok
}
