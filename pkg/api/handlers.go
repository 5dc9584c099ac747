package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/sink"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, s.streams.StreamStats())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	partition, err := strconv.ParseInt(chi.URLParam(r, "partition"), 10, 32)
	if err != nil {
		sendError(w, "Invalid partition id", http.StatusBadRequest)
		return
	}

	st, ok := s.streams.Partition(int32(partition))
	if !ok {
		sendError(w, "Partition not found", http.StatusNotFound)
		return
	}
	sendSuccess(w, st)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables := s.tables.Tables()
	out := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableInfo{
			Name:      t.Name(),
			Signature: strconv.FormatUint(t.Signature(), 16),
			Schema:    t.Schema().String(),
		})
	}
	sendSuccess(w, out)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	if s.config.SegmentDir == "" {
		sendError(w, "No file sink configured", http.StatusNotFound)
		return
	}

	segments, err := sink.ListSegments(s.config.SegmentDir)
	if errors.Is(err, fs.ErrNotExist) {
		sendSuccess(w, []sink.Segment{})
		return
	}
	if err != nil {
		s.logger.Error("list segments failed", zap.String("dir", s.config.SegmentDir), zap.Error(err))
		sendError(w, "Failed to list segments", http.StatusInternalServerError)
		return
	}
	if segments == nil {
		segments = []sink.Segment{}
	}
	sendSuccess(w, segments)
}
