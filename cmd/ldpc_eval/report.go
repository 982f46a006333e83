package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/francoispqt/gojay"
)

type jsonRecord result

func (r *jsonRecord) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("code", r.Code.Name)
	enc.IntKey("n", r.Code.N)
	enc.IntKey("k", r.Code.K)
	enc.StringKey("sweep", string(r.Sweep))
	if r.Sweep == sweepWeight {
		enc.IntKey("weight", r.Weight)
	} else {
		enc.Float64Key("ber", r.BER)
	}
	enc.IntKey("runs", r.Runs)
	enc.IntKey("successes", r.Successes)
	enc.IntKey("miscorrections", r.Miscorrects)
	enc.IntKey("exhausted", r.Exhausted)
	enc.IntKey("iterations_total", r.Iterations)
	enc.IntKey("flipped_total", r.Flipped)
	enc.Int64Key("enc_ms_total", r.EncTotal.Milliseconds())
	enc.Int64Key("dec_ms_total", r.DecTotal.Milliseconds())
}

func (r *jsonRecord) IsNil() bool { return r == nil }

type jsonRecords []result

func (rs jsonRecords) MarshalJSONArray(enc *gojay.Encoder) {
	for i := range rs {
		enc.Object((*jsonRecord)(&rs[i]))
	}
}

func (rs jsonRecords) IsNil() bool { return len(rs) == 0 }

type jsonReport struct{ records jsonRecords }

func (r *jsonReport) MarshalJSONObject(enc *gojay.Encoder) {
	enc.ArrayKey("records", r.records)
}

func (r *jsonReport) IsNil() bool { return r == nil }

func writeJSON(path string, res []result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := gojay.BorrowEncoder(f)
	defer enc.Release()
	return enc.EncodeObject(&jsonReport{records: res})
}

func successRate(a agg) float64 {
	if a.Runs == 0 {
		return 0
	}
	return 100 * float64(a.Successes) / float64(a.Runs)
}

func writeMarkdown(path string, res []result, maxIter int) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	byCode := map[string][]result{}
	var names []string
	ns := map[string]int{}
	for _, r := range res {
		if _, ok := byCode[r.Code.Name]; !ok {
			names = append(names, r.Code.Name)
			ns[r.Code.Name] = r.Code.N
		}
		byCode[r.Code.Name] = append(byCode[r.Code.Name], r)
	}
	sort.Slice(names, func(i, j int) bool { return ns[names[i]] < ns[names[j]] })

	fmt.Fprintf(f, "# LDPC Bit-Flip Decoder Evaluation\n\n")
	fmt.Fprintf(f, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(f, "Decoder budget: %d iterations.\n\n", maxIter)

	for _, name := range names {
		rows := byCode[name]
		p := rows[0].Code
		fmt.Fprintf(f, "## %s (n=%d, k=%d, w=%d, radius=%d)\n\n", p.Name, p.N, p.K, p.ColumnWeight, p.CorrectionRadius())

		for _, sw := range []sweep{sweepWeight, sweepBER} {
			var sel []result
			for _, r := range rows {
				if r.Sweep == sw {
					sel = append(sel, r)
				}
			}
			if len(sel) == 0 {
				continue
			}
			if sw == sweepWeight {
				sort.Slice(sel, func(i, j int) bool { return sel[i].Weight < sel[j].Weight })
				fmt.Fprintf(f, "### Success Rate by Error Weight\n\n")
				fmt.Fprintf(f, "| Weight | Success (%%) | Miscorrected | Exhausted | Avg Iterations |\n")
			} else {
				sort.Slice(sel, func(i, j int) bool { return sel[i].BER < sel[j].BER })
				fmt.Fprintf(f, "### Success Rate by Bit Error Rate\n\n")
				fmt.Fprintf(f, "| BER (mean flips) | Success (%%) | Miscorrected | Exhausted | Avg Iterations |\n")
			}
			fmt.Fprintf(f, "|---:|---:|---:|---:|---:|\n")
			for _, r := range sel {
				col := fmt.Sprintf("%d", r.Weight)
				if sw == sweepBER {
					col = fmt.Sprintf("%g (%.2f)", r.BER, expectedFlips(r.cell))
				}
				avg := 0.0
				if r.Runs > 0 {
					avg = float64(r.Iterations) / float64(r.Runs)
				}
				fmt.Fprintf(f, "| %s | %.2f | %d | %d | %.2f |\n", col, successRate(r.agg), r.Miscorrects, r.Exhausted, avg)
			}
			fmt.Fprintf(f, "\n")
		}

		fmt.Fprintf(f, "### Timing (ms)\n\n")
		fmt.Fprintf(f, "| Stage | Total | Avg/Run |\n")
		fmt.Fprintf(f, "|---|---:|---:|\n")
		var enc, dec time.Duration
		var runs int
		for _, r := range rows {
			enc += r.EncTotal
			dec += r.DecTotal
			runs += r.Runs
		}
		if runs > 0 {
			fmt.Fprintf(f, "| Encoding | %d | %.4f |\n", enc.Milliseconds(), float64(enc.Microseconds())/1000/float64(runs))
			fmt.Fprintf(f, "| Decoding | %d | %.4f |\n", dec.Milliseconds(), float64(dec.Microseconds())/1000/float64(runs))
		}
		fmt.Fprintf(f, "\n")
	}

	fmt.Fprintf(f, "---\n\n")
	fmt.Fprintf(f, "Notes:\n\n- Weight sweeps flip exactly w distinct bits per codeword; BER sweeps flip each bit independently.\n- Miscorrected counts decodes whose syndrome cleared on a different codeword.\n- Weights up to the correction radius always decode.\n")
	return nil
}
