package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mapfuse/internal/config"
	"github.com/banshee-data/mapfuse/internal/fusion"
	"github.com/banshee-data/mapfuse/internal/fusion/storage/sqlite"
	"github.com/banshee-data/mapfuse/internal/testutil"
	"github.com/banshee-data/mapfuse/internal/trace"
)

func headerLine(t *testing.T, h *trace.Header) []byte {
	t.Helper()
	obj, err := trace.EncodeHeader(h)
	require.NoError(t, err)
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	return b
}

func traceBody(t *testing.T, h *trace.Header, packets ...*trace.Packet) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(headerLine(t, h))
	buf.WriteByte('\n')
	for _, p := range packets {
		buf.Write(testutil.WireLine(t, p))
		buf.WriteByte('\n')
	}
	return &buf
}

func newTestServer(t *testing.T, store *sqlite.SnapshotStore, cfg *config.TuningConfig) *httptest.Server {
	t.Helper()
	srv := NewServer(fusion.NewEngine(fusion.ModeLenient), store, cfg)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestServer_TraceIngestAndSnapshot(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	h := testutil.Header(5, 10, 2)
	body := traceBody(t, h,
		testutil.GeometryPacket(t, "m1", 1, []int32{2}, []int16{7}),
		testutil.GeometryPacket(t, "m1", 2, []int32{2}, []int16{9}),
		testutil.SemanticsPacket(t, "m1", 3, []int32{2, 2, 2}, []uint16{0, 1, 0}, nil),
	)

	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats IngestStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, 1, stats.Headers)
	assert.Equal(t, 3, stats.Accepted)
	assert.Zero(t, stats.Rejected)
	assert.Zero(t, stats.BadLines)

	resp, err = http.Get(ts.URL + "/api/snapshot?submap_id=m1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap fusion.Snapshot
	decodeBody(t, resp, &snap)
	assert.Equal(t, []int32{0, 0, 10, 0, 0}, snap.Lq)
	assert.Equal(t, []uint16{0, 0, 0, 0, 0}, snap.Labels)
	assert.Len(t, snap.Fingerprint, 64)
}

func TestServer_LenientIngestCountsBadLines(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	body := traceBody(t, testutil.Header(3, 10, 2),
		testutil.GeometryPacket(t, "m1", 1, []int32{0}, []int16{3}),
	)
	body.WriteString("{not json}\n")
	// Valid wire form carrying an out-of-range voxel index; dropped by the
	// engine, not the reader.
	body.Write(testutil.WireLine(t, testutil.GeometryPacket(t, "m1", 2, []int32{99}, []int16{1})))
	body.WriteByte('\n')

	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats IngestStats
	decodeBody(t, resp, &stats)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.BadLines)
}

func TestServer_StrictIngestRejectsWholeTrace(t *testing.T) {
	t.Parallel()

	strict := true
	cfg := config.Defaults()
	cfg.Strict = &strict
	ts := newTestServer(t, nil, cfg)

	body := traceBody(t, testutil.Header(3, 10, 2))
	body.WriteString("{not json}\n")

	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_PacketIngestRejectsBadCRC(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	line := testutil.WireLine(t, testutil.GeometryPacket(t, "m1", 1, []int32{0}, []int16{1}))
	// Flip the version field after the CRC was computed.
	tampered := bytes.Replace(line, []byte(`"version":1`), []byte(`"version":2`), 1)
	require.NotEqual(t, line, tampered)

	resp, err := http.Post(ts.URL+"/api/packet", "application/json", bytes.NewReader(tampered))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_PacketIngestAcceptsSingleRecords(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	resp, err := http.Post(ts.URL+"/api/packet", "application/json",
		bytes.NewReader(headerLine(t, testutil.Header(3, 10, 2))))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line := testutil.WireLine(t, testutil.GeometryPacket(t, "m1", 1, []int32{1}, []int16{4}))
	resp, err = http.Post(ts.URL+"/api/packet", "application/json", bytes.NewReader(line))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/fingerprint?submap_id=m1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fp map[string]string
	decodeBody(t, resp, &fp)
	assert.Equal(t, "m1", fp["submap_id"])
	assert.Len(t, fp["fingerprint"], 64)
}

func TestServer_SnapshotRequiresSubmapID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/api/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/snapshot?submap_id=absent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PersistWithoutStoreIs503(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil, nil)

	resp, err := http.Post(ts.URL+"/api/persist?submap_id=m1", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_ExportWritesArchiveToConfiguredDir(t *testing.T) {
	t.Parallel()

	exportDir := t.TempDir()
	cfg := config.Defaults()
	cfg.ExportDir = &exportDir
	ts := newTestServer(t, nil, cfg)

	body := traceBody(t, testutil.Header(3, 10, 2),
		testutil.GeometryPacket(t, "m1", 1, []int32{0}, []int16{3}),
	)
	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/export?submap_id=m1", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var exported map[string]string
	decodeBody(t, resp, &exported)
	require.Equal(t, exportDir, filepath.Dir(exported["path"]))

	snap, err := fusion.ReadArchive(exported["path"])
	require.NoError(t, err)
	assert.Equal(t, exported["fingerprint"], snap.Fingerprint)
	assert.Equal(t, []int32{3, 0, 0}, snap.Lq)
}

func TestServer_PersistOnFinalizeStoresSnapshot(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api_autopersist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.MigrateUp(db, "../fusion/storage/sqlite/migrations"))
	store := sqlite.NewSnapshotStore(db)

	persist := true
	cfg := config.Defaults()
	cfg.PersistOnFinalize = &persist
	ts := newTestServer(t, store, cfg)

	body := traceBody(t, testutil.Header(3, 10, 2),
		testutil.GeometryPacket(t, "m1", 1, []int32{1}, []int16{4}),
	)
	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/snapshot?submap_id=m1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	records, err := store.ListRecords("m1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "on_finalize", records[0].SnapshotReason)
}

func TestServer_PersistAndListSnapshots(t *testing.T) {
	t.Parallel()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.MigrateUp(db, "../fusion/storage/sqlite/migrations"))
	store := sqlite.NewSnapshotStore(db)

	ts := newTestServer(t, store, nil)

	body := traceBody(t, testutil.Header(3, 10, 2),
		testutil.GeometryPacket(t, "m1", 1, []int32{0}, []int16{3}),
	)
	resp, err := http.Post(ts.URL+"/api/trace", "application/x-ndjson", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/persist?submap_id=m1", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var persisted map[string]string
	decodeBody(t, resp, &persisted)
	assert.NotEmpty(t, persisted["snapshot_id"])

	resp, err = http.Get(ts.URL + "/api/snapshots?submap_id=m1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Snapshots []*sqlite.SnapshotRecord `json:"snapshots"`
	}
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Snapshots, 1)
	assert.Equal(t, persisted["snapshot_id"], listing.Snapshots[0].SnapshotID)
	assert.Equal(t, "manual", listing.Snapshots[0].SnapshotReason)
}
