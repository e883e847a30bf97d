// Package monitor serves debugging visualisations of merged submap state.
// Endpoints here render throwaway HTML charts for eyeballing a merge; they
// carry no auth and no merge logic.
package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/mapfuse/internal/fusion"
)

// WebServer exposes the monitor endpoints over an engine.
type WebServer struct {
	engine *fusion.Engine
}

// NewWebServer creates a monitor web server.
func NewWebServer(engine *fusion.Engine) *WebServer {
	return &WebServer{engine: engine}
}

// RegisterRoutes attaches the monitor handlers to mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/occupancy", ws.handleOccupancyChart)
}

func (ws *WebServer) writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// handleOccupancyChart renders a quick bar chart (HTML) of clamped log-odds
// per voxel for one submap using go-echarts.
// Query params:
//   - submap_id (required)
//   - max_points (optional; default 4000) to reduce payload size
func (ws *WebServer) handleOccupancyChart(w http.ResponseWriter, r *http.Request) {
	submapID := r.URL.Query().Get("submap_id")
	if submapID == "" {
		ws.writeError(w, http.StatusBadRequest, "submap_id query parameter is required")
		return
	}
	snap, err := ws.engine.Finalize(submapID)
	if err != nil {
		ws.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	maxPoints := 4000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints.
	stride := 1
	if snap.NVox > maxPoints {
		stride = (snap.NVox + maxPoints - 1) / maxPoints
	}

	axis := make([]string, 0, snap.NVox/stride+1)
	data := make([]opts.BarData, 0, snap.NVox/stride+1)
	for i := 0; i < snap.NVox; i += stride {
		axis = append(axis, strconv.Itoa(i))
		data = append(data, opts.BarData{Value: snap.Lq[i]})
	}

	summary := fusion.Summarize(snap)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Submap Occupancy (clamped log-odds)",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Submap %s", submapID),
			Subtitle: fmt.Sprintf("n_vox=%d stride=%d mean_occ=%.4f fingerprint=%s",
				snap.NVox, stride, summary.MeanOccupancy, snap.Fingerprint[:16]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(axis)
	bar.AddSeries("clamped log-odds", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		ws.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
