// Command gen-trace writes a small dataset-free packet trace (JSONL) for
// protocol sanity checks. Each line is one JSON object: a single header
// followed by geometry, semantics and occasional skeleton packets, every
// record carrying a CRC over its canonical encoding.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mapfuse/internal/trace"
)

var (
	out      = flag.String("out", "trace/trace_demo.jsonl", "Output trace path")
	nVox     = flag.Int("n_vox", 20000, "Voxels per submap")
	nPackets = flag.Int("n_packets", 200, "Packets to generate")
	seed     = flag.Int64("seed", 0, "RNG seed")
	qScale   = flag.Int("q_scale", 100, "Quantization scale")
	lmax     = flag.Float64("lmax", 6.0, "Log-odds clamp bound (unquantized)")
	nClasses = flag.Int("n_classes", 20, "Semantic class count")
	nSubmaps = flag.Int("n_submaps", 4, "Distinct submap ids")
	nRobots  = flag.Int("n_robots", 2, "Distinct robot ids")
)

func main() {
	flag.Parse()

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create output dir: %v", err)
		}
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("failed to create trace file: %v", err)
	}
	defer f.Close()

	w := trace.NewWriter(f)
	rng := rand.New(rand.NewSource(*seed))
	lines := generate(w, rng)
	if err := w.Flush(); err != nil {
		log.Fatalf("failed to flush trace: %v", err)
	}
	fmt.Printf("[OK] wrote %d lines -> %s\n", lines, *out)
}

func generate(w *trace.Writer, rng *rand.Rand) int {
	lmaxQ := int32(math.Round(*lmax * float64(*qScale)))
	header := &trace.Header{
		FormatVersion: "0.1.0",
		NVox:          *nVox,
		LmaxQ:         lmaxQ,
		QScale:        *qScale,
		NClasses:      *nClasses,
	}
	if err := w.WriteHeader(header); err != nil {
		log.Fatalf("failed to write header: %v", err)
	}
	lines := 1

	// A small set of hot voxels gets half of every update so repeated-index
	// accumulation actually happens in generated traces.
	nHot := *nVox / 50
	if nHot < 200 {
		nHot = 200
	}
	if nHot > *nVox {
		nHot = *nVox
	}
	hot := rng.Perm(*nVox)[:nHot]

	version := int64(0)
	stamp0 := time.Now().UnixMilli()

	for t := 0; t < *nPackets; t++ {
		version++
		p := &trace.Packet{
			SubmapID: fmt.Sprintf("%d", rng.Intn(*nSubmaps)),
			RobotID:  rng.Intn(*nRobots),
			Version:  version,
			Stamp:    stamp0 + int64(t),
		}

		// Occasionally emit a skeleton update.
		if t%20 == 0 {
			p.Layer = trace.LayerSkeleton
			raw, err := json.Marshal(map[string]string{
				"kind": trace.KindSkeleton,
				"text": fmt.Sprintf("backbone update v%d", version),
			})
			if err != nil {
				log.Fatalf("failed to build skeleton payload: %v", err)
			}
			p.Payload = trace.SkeletonPayload{Raw: raw}
			writePacket(w, p)
			lines++
			continue
		}

		nUpd := 80 + rng.Intn(120)
		indices := make([]int32, nUpd)
		for i := range indices {
			if i < nUpd/2 {
				indices[i] = int32(hot[rng.Intn(len(hot))])
			} else {
				indices[i] = int32(rng.Intn(*nVox))
			}
		}

		if t%3 != 0 {
			p.Layer = trace.LayerGeometry
			deltas := make([]int16, nUpd)
			for i := range deltas {
				if rng.Float64() < 0.7 {
					deltas[i] = int16(30 + rng.Intn(90))
				} else {
					deltas[i] = int16(-(5 + rng.Intn(25)))
				}
			}
			p.Payload = trace.GeometryDelta{Indices: indices, DeltaQ: deltas}
		} else {
			p.Layer = trace.LayerSemantics
			classes := make([]uint16, nUpd)
			for i := range classes {
				classes[i] = uint16(rng.Intn(*nClasses))
			}
			p.Payload = trace.SemanticsDelta{Indices: indices, Classes: classes}
		}
		writePacket(w, p)
		lines++
	}
	return lines
}

func writePacket(w *trace.Writer, p *trace.Packet) {
	if err := w.WritePacket(p); err != nil {
		log.Fatalf("failed to write packet: %v", err)
	}
}
