// Command trace-validate checks a JSONL trace line by line: valid JSON,
// required fields present with correct kinds, and a CRC matching the
// canonical encoding of the object without its "crc" field.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/mapfuse/internal/trace"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: trace-validate <trace.jsonl>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open trace: %v", err)
	}
	defer f.Close()

	reader := trace.NewReader(f)
	var ok, bad, headers int
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			bad++
			fmt.Fprintf(os.Stderr, "[FAIL] %v\n", err)
			continue
		}
		if rec.Header != nil {
			headers++
		}
		ok++
	}

	if headers == 0 {
		fmt.Fprintf(os.Stderr, "[FAIL] trace has no header record\n")
		os.Exit(1)
	}
	if bad > 0 {
		fmt.Fprintf(os.Stderr, "[FAIL] %d bad line(s), %d valid: %s\n", bad, ok, path)
		os.Exit(1)
	}
	fmt.Printf("[OK] validated %d lines (%d header): %s\n", ok, headers, path)
}
