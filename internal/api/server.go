// Package api exposes the fusion engine over HTTP. It is a transport shim:
// packets are decoded and integrity-checked by the trace package and merged
// by the fusion engine; no merge logic lives here.
package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/banshee-data/mapfuse/internal/config"
	"github.com/banshee-data/mapfuse/internal/fusion"
	"github.com/banshee-data/mapfuse/internal/fusion/storage/sqlite"
	"github.com/banshee-data/mapfuse/internal/httputil"
	"github.com/banshee-data/mapfuse/internal/trace"
)

// Server wires the ingest and export endpoints to an engine and an optional
// snapshot store.
type Server struct {
	engine *fusion.Engine
	store  *sqlite.SnapshotStore // nil when running without persistence
	cfg    *config.TuningConfig
}

// NewServer creates a Server. store may be nil; persistence endpoints then
// report 503.
func NewServer(engine *fusion.Engine, store *sqlite.SnapshotStore, cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &Server{engine: engine, store: store, cfg: cfg}
}

// RegisterRoutes attaches all API handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/trace", s.handleTraceIngest)
	mux.HandleFunc("POST /api/packet", s.handlePacketIngest)
	mux.HandleFunc("GET /api/submaps", s.handleSubmaps)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/fingerprint", s.handleFingerprint)
	mux.HandleFunc("POST /api/persist", s.handlePersist)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshotRecords)
}

// IngestStats summarizes one trace upload.
type IngestStats struct {
	Headers  int `json:"headers"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	BadLines int `json:"bad_lines"`
}

// handleTraceIngest consumes a JSONL trace body and submits every record to
// the engine. Bad lines are dropped and counted in lenient mode; in strict
// mode the first failure aborts the upload.
func (s *Server) handleTraceIngest(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, *s.cfg.MaxTraceBodyBytes)
	defer body.Close()

	stats, err := s.ingest(body)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	log.Printf("[API] trace ingested: headers=%d accepted=%d rejected=%d bad_lines=%d",
		stats.Headers, stats.Accepted, stats.Rejected, stats.BadLines)
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) ingest(body io.Reader) (*IngestStats, error) {
	strict := *s.cfg.Strict
	stats := &IngestStats{}
	reader := trace.NewReader(body)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if strict {
				return nil, fmt.Errorf("trace rejected: %w", err)
			}
			stats.BadLines++
			log.Printf("[API] dropped bad trace line: %v", err)
			continue
		}

		var res fusion.Result
		switch {
		case rec.Header != nil:
			stats.Headers++
			res = s.engine.SubmitHeader(rec.Header)
		case rec.Packet != nil:
			res = s.engine.Submit(rec.Packet)
		}
		if res.Accepted() {
			if rec.Packet != nil {
				stats.Accepted++
			}
			continue
		}
		stats.Rejected++
		if err := s.engine.Err(); err != nil {
			return nil, fmt.Errorf("merge aborted: %w", err)
		}
		if strict {
			return nil, fmt.Errorf("trace rejected at line %d: %s", rec.Line, res.Reason)
		}
	}
	return stats, nil
}

// handlePacketIngest consumes one JSON record (packet or header).
func (s *Server) handlePacketIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64*1024*1024))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	obj, err := trace.ParseObject(body)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := trace.VerifyCRC(obj); err != nil {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	typ, err := trace.RecordType(obj)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var res fusion.Result
	switch typ {
	case trace.TypeHeader:
		h, err := trace.DecodeHeader(obj)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		res = s.engine.SubmitHeader(h)
	case trace.TypePacket:
		p, err := trace.DecodePacket(obj)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		res = s.engine.Submit(p)
	}

	if !res.Accepted() {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"status": "rejected",
			"reason": res.Reason,
		})
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "accepted"})
}

func (s *Server) handleSubmaps(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"submaps": s.engine.Submaps(),
		"dropped": s.engine.Dropped(),
	})
}

// finalizeFromQuery resolves the submap_id query parameter into a snapshot.
func (s *Server) finalizeFromQuery(w http.ResponseWriter, r *http.Request) *fusion.Snapshot {
	submapID := r.URL.Query().Get("submap_id")
	if submapID == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "submap_id query parameter is required")
		return nil
	}
	snap, err := s.engine.Finalize(submapID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusNotFound, err.Error())
		return nil
	}
	return snap
}

// maybePersist stores a finalized snapshot when the persist_on_finalize
// tuning switch is set and a store is configured. Persistence here is
// best-effort: a store failure is logged, not surfaced to the reader.
func (s *Server) maybePersist(snap *fusion.Snapshot) {
	if s.store == nil || !*s.cfg.PersistOnFinalize {
		return
	}
	id, err := s.store.Insert(snap, "on_finalize")
	if err != nil {
		log.Printf("[API] persist on finalize failed for submap %s: %v", snap.SubmapID, err)
		return
	}
	log.Printf("[API] persisted snapshot %s for submap %s (on_finalize)", id, snap.SubmapID)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap := s.finalizeFromQuery(w, r); snap != nil {
		s.maybePersist(snap)
		httputil.WriteJSONOK(w, snap)
	}
}

// handleExport finalizes a submap and writes its archive under the
// configured export directory.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.finalizeFromQuery(w, r)
	if snap == nil {
		return
	}
	path, err := fusion.WriteArchive(*s.cfg.ExportDir, snap)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.maybePersist(snap)
	log.Printf("[API] exported submap %s -> %s", snap.SubmapID, path)
	httputil.WriteJSONOK(w, map[string]string{
		"submap_id":   snap.SubmapID,
		"path":        path,
		"fingerprint": snap.Fingerprint,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if snap := s.finalizeFromQuery(w, r); snap != nil {
		httputil.WriteJSONOK(w, fusion.Summarize(snap))
	}
}

func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	if snap := s.finalizeFromQuery(w, r); snap != nil {
		httputil.WriteJSONOK(w, map[string]string{
			"submap_id":   snap.SubmapID,
			"fingerprint": snap.Fingerprint,
		})
	}
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	snap := s.finalizeFromQuery(w, r)
	if snap == nil {
		return
	}
	id, err := s.store.Insert(snap, "manual")
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[API] persisted snapshot %s for submap %s (fingerprint=%s)", id, snap.SubmapID, snap.Fingerprint)
	httputil.WriteJSONOK(w, map[string]string{
		"snapshot_id": id,
		"fingerprint": snap.Fingerprint,
	})
}

func (s *Server) handleSnapshotRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	records, err := s.store.ListRecords(r.URL.Query().Get("submap_id"))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"snapshots": records})
}
