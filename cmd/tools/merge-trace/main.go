// Command merge-trace folds a JSONL trace through the fusion engine and
// prints per-submap fingerprints and summary statistics. With -check it
// re-merges seeded shuffles of the same packet set and asserts that every
// permutation converges to identical fingerprints.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"

	"github.com/banshee-data/mapfuse/internal/fusion"
	"github.com/banshee-data/mapfuse/internal/security"
	"github.com/banshee-data/mapfuse/internal/trace"
)

var (
	tracePath = flag.String("trace", "", "Input trace path (required)")
	shuffle   = flag.Bool("shuffle", false, "Shuffle packets before merging")
	seed      = flag.Int64("seed", 0, "Shuffle seed")
	outDir    = flag.String("out", "", "Export snapshot archives to this directory")
	check     = flag.Int("check", 0, "Verify N extra shuffled merges converge identically")
	strict    = flag.Bool("strict", false, "Abort on the first bad packet")
)

func main() {
	flag.Parse()
	if *tracePath == "" {
		fmt.Fprintf(os.Stderr, "usage: merge-trace -trace <trace.jsonl> [-shuffle] [-seed N] [-check N] [-out dir]\n")
		os.Exit(2)
	}

	if *outDir != "" {
		if err := security.ValidateExportPath(*outDir); err != nil {
			log.Fatalf("export directory rejected: %v", err)
		}
	}

	header, packets, err := loadTrace(*tracePath)
	if err != nil {
		log.Fatalf("failed to load trace: %v", err)
	}

	order := packets
	if *shuffle {
		order = shuffled(*seed, packets)
	}
	snapshots := merge(header, order)

	for _, id := range sortedKeys(snapshots) {
		snap := snapshots[id]
		sum := fusion.Summarize(snap)
		fmt.Printf("submap %-8s fingerprint=%s\n", id, snap.Fingerprint)
		fmt.Printf("  packets=%d occ_bin_mean=%.4f unique_sem=%d\n",
			sum.PacketsApplied, sum.MeanOccupancy, sum.DistinctLabels)
		if *outDir != "" {
			path, err := fusion.WriteArchive(*outDir, snap)
			if err != nil {
				log.Fatalf("failed to export submap %s: %v", id, err)
			}
			fmt.Printf("  exported -> %s\n", path)
		}
	}

	if *check > 0 {
		for i := 1; i <= *check; i++ {
			again := merge(header, shuffled(*seed+int64(i), packets))
			for id, snap := range snapshots {
				if again[id] == nil || again[id].Fingerprint != snap.Fingerprint {
					log.Fatalf("[FAIL] permutation %d diverged for submap %s", i, id)
				}
			}
		}
		fmt.Printf("[OK] %d shuffled merges converged to identical fingerprints\n", *check)
	}
}

func loadTrace(path string) (*trace.Header, []*trace.Packet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var header *trace.Header
	var packets []*trace.Packet
	reader := trace.NewReader(f)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if *strict {
				return nil, nil, err
			}
			log.Printf("[merge-trace] dropped bad line: %v", err)
			continue
		}
		switch {
		case rec.Header != nil:
			header = rec.Header
		case rec.Packet != nil:
			packets = append(packets, rec.Packet)
		}
	}
	if header == nil {
		return nil, nil, fmt.Errorf("missing header in trace")
	}
	return header, packets, nil
}

func merge(header *trace.Header, packets []*trace.Packet) map[string]*fusion.Snapshot {
	mode := fusion.ModeLenient
	if *strict {
		mode = fusion.ModeStrict
	}
	engine := fusion.NewEngine(mode)
	if res := engine.SubmitHeader(header); !res.Accepted() {
		log.Fatalf("header rejected: %s", res.Reason)
	}
	for _, p := range packets {
		if res := engine.Submit(p); !res.Accepted() {
			if err := engine.Err(); err != nil {
				log.Fatalf("merge aborted: %v", err)
			}
		}
	}
	snapshots, err := engine.FinalizeAll()
	if err != nil {
		log.Fatalf("finalize failed: %v", err)
	}
	return snapshots
}

func shuffled(seed int64, packets []*trace.Packet) []*trace.Packet {
	out := make([]*trace.Packet, len(packets))
	copy(out, packets)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func sortedKeys(m map[string]*fusion.Snapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
