package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/catalog"
	"github.com/ssargent/drlog/pkg/codec"
	"github.com/ssargent/drlog/pkg/sink"
	"github.com/ssargent/drlog/pkg/stream"
	"github.com/ssargent/drlog/pkg/tuple"
)

func setupTestServer(t *testing.T, config ServerConfig) (*Server, *StatsBoard) {
	t.Helper()
	schema, err := tuple.NewSchema(
		tuple.Column{Name: "id", Type: tuple.BigInt},
		tuple.Column{Name: "note", Type: tuple.Varchar, Nullable: true},
	)
	require.NoError(t, err)
	tables := catalog.NewRegistry()
	_, err = tables.Register("events", schema)
	require.NoError(t, err)

	board := NewStatsBoard()
	board.Publish(stream.Stats{PartitionID: 2, Mode: "active", USO: 75, CommittedUSO: 75, LastCommittedSpHandle: 10})
	board.Publish(stream.Stats{PartitionID: 1, Mode: "disabled"})

	return NewServer(board, tables, config, prometheus.NewRegistry(), nil), board
}

func doRequest(t *testing.T, h http.Handler, path string, header map[string]string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp APIResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestServer_Health(t *testing.T) {
	server, _ := setupTestServer(t, ServerConfig{})
	w, resp := doRequest(t, server.Router(), "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"status": "healthy"}, resp.Data)
}

func TestServer_Streams(t *testing.T) {
	server, board := setupTestServer(t, ServerConfig{})
	h := server.Router()

	w, resp := doRequest(t, h, "/api/v1/streams", nil)
	require.Equal(t, http.StatusOK, w.Code)
	streams := resp.Data.([]interface{})
	require.Len(t, streams, 2)
	assert.Equal(t, float64(1), streams[0].(map[string]interface{})["partition_id"])

	w, resp = doRequest(t, h, "/api/v1/streams/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(75), st["uso"])
	assert.Equal(t, float64(10), st["last_committed_sp_handle"])

	board.Publish(stream.Stats{PartitionID: 2, USO: 150, CommittedUSO: 150, LastCommittedSpHandle: 20})
	_, resp = doRequest(t, h, "/api/v1/streams/2", nil)
	assert.Equal(t, float64(20), resp.Data.(map[string]interface{})["last_committed_sp_handle"])

	w, resp = doRequest(t, h, "/api/v1/streams/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)

	w, _ = doRequest(t, h, "/api/v1/streams/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Tables(t *testing.T) {
	server, _ := setupTestServer(t, ServerConfig{})
	w, resp := doRequest(t, server.Router(), "/api/v1/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)

	tables := resp.Data.([]interface{})
	require.Len(t, tables, 1)
	table := tables[0].(map[string]interface{})
	assert.Equal(t, "events", table["name"])
	assert.Equal(t, "id BIGINT, note VARCHAR NULL", table["schema"])
	assert.NotEmpty(t, table["signature"])
}

func TestServer_Segments(t *testing.T) {
	t.Run("no file sink", func(t *testing.T) {
		server, _ := setupTestServer(t, ServerConfig{})
		w, _ := doRequest(t, server.Router(), "/api/v1/segments", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing directory", func(t *testing.T) {
		server, _ := setupTestServer(t, ServerConfig{SegmentDir: filepath.Join(t.TempDir(), "none")})
		w, resp := doRequest(t, server.Router(), "/api/v1/segments", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, resp.Data)
	})

	t.Run("lists segments", func(t *testing.T) {
		dir := t.TempDir()
		f, err := sink.NewFile(sink.FileConfig{Dir: dir})
		require.NoError(t, err)

		data := make([]byte, codec.EndTxnSize)
		codec.EndTxn{SpHandle: 1}.Put(data)
		b, err := block.New(0, len(data))
		require.NoError(t, err)
		_, err = b.Append(data)
		require.NoError(t, err)
		b.Seal()
		require.NoError(t, f.PushBlock(5, b, true, true))
		require.NoError(t, f.Close())

		server, _ := setupTestServer(t, ServerConfig{SegmentDir: dir})
		w, resp := doRequest(t, server.Router(), "/api/v1/segments", nil)
		require.Equal(t, http.StatusOK, w.Code)
		segments := resp.Data.([]interface{})
		require.Len(t, segments, 1)
		assert.Equal(t, float64(5), segments[0].(map[string]interface{})["partition"])
		assert.Equal(t, float64(codec.EndTxnSize), segments[0].(map[string]interface{})["size"])
	})
}

func TestServer_APIKey(t *testing.T) {
	server, _ := setupTestServer(t, ServerConfig{APIKey: "secret"})
	h := server.Router()

	w, _ := doRequest(t, h, "/api/v1/streams", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doRequest(t, h, "/api/v1/streams", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// metrics stay open for scraping
	w, _ = doRequest(t, h, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	server, _ := setupTestServer(t, ServerConfig{})
	h := server.Router()

	doRequest(t, h, "/api/v1/health", nil)
	w, _ := doRequest(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `drlog_http_requests_total{endpoint="/api/v1/health",method="GET",status_code="200"} 1`)
	assert.Contains(t, string(body), `drlog_health_checks_total{status="success"} 1`)
}

func TestDefaultServerStarter_StopsOnCancel(t *testing.T) {
	server, _ := setupTestServer(t, ServerConfig{Addr: "127.0.0.1:0"})
	starter := NewServerFactory().CreateServerStarter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- starter.StartServer(ctx, server) }()
	cancel()

	assert.NoError(t, <-done)
}
