package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	mrand "math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/sim"
)

type sweep string

const (
	sweepWeight sweep = "weight"
	sweepBER    sweep = "ber"
)

// cell is one (code, channel setting) point of the evaluation grid.
type cell struct {
	Code   fec.Params
	Sweep  sweep
	Weight int
	BER    float64
}

type agg struct {
	Runs        int
	Successes   int
	Miscorrects int // converged to a codeword other than the one sent
	Exhausted   int
	Iterations  int
	Flipped     int
	EncTotal    time.Duration
	DecTotal    time.Duration
}

type result struct {
	cell
	agg
}

func parseCodes(s string) ([]fec.Params, error) {
	if s == "all" {
		return fec.Codes(), nil
	}
	var out []fec.Params
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, err := fec.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func buildCells(codes []fec.Params, weights []int, bers []float64) ([]cell, error) {
	var cells []cell
	for _, p := range codes {
		for _, w := range weights {
			if w < 0 || w > p.N {
				return nil, fmt.Errorf("invalid weight %d for %s", w, p.Name)
			}
			cells = append(cells, cell{Code: p, Sweep: sweepWeight, Weight: w})
		}
		for _, b := range bers {
			if b < 0 || b > 1 {
				return nil, fmt.Errorf("invalid ber %g", b)
			}
			cells = append(cells, cell{Code: p, Sweep: sweepBER, BER: b})
		}
	}
	return cells, nil
}

// runCell encodes random data, corrupts it and decodes it runs times.
func runCell(ctx context.Context, c cell, runs, maxIter int, seed int64) (agg, error) {
	code, err := fec.New(c.Code)
	if err != nil {
		return agg{}, err
	}
	rng := mrand.New(mrand.NewSource(seed))
	var ch sim.Channel
	switch c.Sweep {
	case sweepWeight:
		ch = sim.NewFixedWeight(c.Weight, seed)
	default:
		ch = sim.NewBSC(c.BER, seed)
	}
	dec := fec.NewDecoder(code, maxIter)
	data := make([]byte, c.Code.DataLen())
	cw := make([]byte, c.Code.OutputLen())

	a := agg{Runs: runs}
	for run := 0; run < runs; run++ {
		if run%256 == 0 && ctx.Err() != nil {
			return a, ctx.Err()
		}
		rng.Read(data)

		encStart := time.Now()
		if err := code.EncodeInto(cw, data); err != nil {
			return a, err
		}
		a.EncTotal += time.Since(encStart)

		rx := ch.Transmit(cw)
		a.Flipped += fec.HammingDistance(cw, rx)

		decStart := time.Now()
		res, err := dec.Decode(rx)
		a.DecTotal += time.Since(decStart)
		if err != nil {
			return a, err
		}
		a.Iterations += res.Iterations
		switch {
		case res.Status == fec.Exhausted:
			a.Exhausted++
		case bytes.Equal(res.Data, data):
			a.Successes++
		default:
			a.Miscorrects++
		}
	}
	return a, nil
}

func main() {
	var (
		runs     = flag.Int("runs", 10000, "runs per (code, channel setting)")
		codesStr = flag.String("codes", "qc512,qc1536,qc2048,qc4096", "comma-separated code names or \"all\"")
		weights  = flag.IntSlice("weights", []int{1, 2, 4, 6, 8, 12, 16}, "fixed error weights to sweep")
		bers     = flag.Float64Slice("ber", []float64{0.0005, 0.001, 0.002, 0.005}, "bit error rates to sweep")
		maxIter  = flag.Int("max-iterations", 20, "decoder flip budget")
		outPath  = flag.String("out", "docs/reports/ldpc_eval_report.md", "output markdown report path")
		seed     = flag.Int64("seed", 42, "random seed")
		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "concurrent cells")
	)
	flag.Parse()

	codes, err := parseCodes(*codesStr)
	if err != nil {
		fatalf("%v", err)
	}
	cells, err := buildCells(codes, *weights, *bers)
	if err != nil {
		fatalf("%v", err)
	}
	if *runs <= 0 {
		fatalf("invalid runs %d", *runs)
	}

	results := make([]result, len(cells))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, *workers))
	for i, c := range cells {
		i, c := i, c
		g.Go(func() error {
			a, err := runCell(ctx, c, *runs, *maxIter, *seed+int64(i))
			if err != nil {
				return fmt.Errorf("%s %s: %w", c.Code.Name, label(c), err)
			}
			results[i] = result{cell: c, agg: a}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}

	if err := ensureDir(*outPath); err != nil {
		fatalf("%v", err)
	}
	ts := time.Now().Format("20060102_150405")
	jsonPath := strings.TrimSuffix(*outPath, ".md") + "_" + ts + ".json"
	mdPath := strings.TrimSuffix(*outPath, ".md") + "_" + ts + ".md"
	if err := writeJSON(jsonPath, results); err != nil {
		fatalf("write json: %v", err)
	}
	if err := writeMarkdown(mdPath, results, *maxIter); err != nil {
		fatalf("write md: %v", err)
	}
	fmt.Printf("Report written: %s\nJSON: %s\n", mdPath, jsonPath)
}

func label(c cell) string {
	if c.Sweep == sweepWeight {
		return fmt.Sprintf("w=%d", c.Weight)
	}
	return fmt.Sprintf("ber=%g", c.BER)
}

// expectedFlips is the mean channel weight of a BER cell.
func expectedFlips(c cell) float64 {
	return math.Round(c.BER*float64(c.Code.N)*100) / 100
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
