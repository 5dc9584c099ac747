package api

import (
	"context"

	"github.com/ssargent/drlog/pkg/stream"
)

// StatsProvider supplies stream snapshots to the handlers
type StatsProvider interface {
	// StreamStats returns the latest stats of every partition
	StreamStats() []stream.Stats

	// Partition returns the latest stats of one partition
	Partition(partitionID int32) (stream.Stats, bool)
}

// ServerStarter defines the interface for starting the status server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled
	StartServer(ctx context.Context, server *Server) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
