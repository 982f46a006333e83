package fec

import (
	"errors"
	"fmt"
	"sort"
)

// Params describes a systematic quasi-cyclic LDPC code with parity-check matrix H = [A | I].
// Information bit i = a*Circulant + b participates in check g*Circulant + (b + a*g) mod Circulant
// for every group g < ColumnWeight; parity bit j participates in check j only.
type Params struct {
	Name         string
	K            int // information bits
	N            int // codeword bits
	ColumnWeight int // checks per information bit
	Circulant    int // checks per group
}

// Built-in codes. QC2048 matches the k=1024, n=2048 rate-1/2 sizing of the TM2048 code.
var (
	QC256  = Params{Name: "qc256", K: 128, N: 256, ColumnWeight: 4, Circulant: 32}
	QC512  = Params{Name: "qc512", K: 256, N: 512, ColumnWeight: 4, Circulant: 64}
	QC1536 = Params{Name: "qc1536", K: 1024, N: 1536, ColumnWeight: 4, Circulant: 128}
	QC2048 = Params{Name: "qc2048", K: 1024, N: 2048, ColumnWeight: 8, Circulant: 128}
	QC4096 = Params{Name: "qc4096", K: 2048, N: 4096, ColumnWeight: 8, Circulant: 256}
)

// DefaultParams is the code used when none is configured.
var DefaultParams = QC2048

var registry = map[string]Params{
	QC256.Name:  QC256,
	QC512.Name:  QC512,
	QC1536.Name: QC1536,
	QC2048.Name: QC2048,
	QC4096.Name: QC4096,
}

// Lookup returns the built-in code with the given name.
func Lookup(name string) (Params, error) {
	p, ok := registry[name]
	if !ok {
		return Params{}, fmt.Errorf("fec: unknown code %q (known: %v)", name, Names())
	}
	return p, nil
}

// Names lists the built-in codes ordered by codeword length.
func Names() []string {
	all := Codes()
	out := make([]string, len(all))
	for i, p := range all {
		out[i] = p.Name
	}
	return out
}

// Codes returns the built-in codes ordered by codeword length, then information length.
func Codes() []Params {
	out := make([]Params, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N < out[j].N
		}
		return out[i].K < out[j].K
	})
	return out
}

// M returns the number of parity checks (and parity bits).
func (p Params) M() int { return p.N - p.K }

// Rate returns k/n.
func (p Params) Rate() float64 { return float64(p.K) / float64(p.N) }

// DataLen returns the information length in bytes.
func (p Params) DataLen() int { return p.K / 8 }

// OutputLen returns the codeword and decode output length in bytes.
func (p Params) OutputLen() int { return p.N / 8 }

// WorkspaceLen returns the decode scratch size in bytes: one counter per codeword bit
// followed by the packed syndrome.
func (p Params) WorkspaceLen() int { return p.N + p.M()/8 }

// CorrectionRadius is the number of bit errors the bit-flipping decoder always corrects.
func (p Params) CorrectionRadius() int { return p.ColumnWeight / 2 }

// Validate checks the structural constraints the construction relies on.
func (p Params) Validate() error {
	if p.K <= 0 || p.N <= p.K {
		return errors.New("fec: need 0 < K < N")
	}
	if p.K%8 != 0 || p.N%8 != 0 {
		return errors.New("fec: K and N must be multiples of 8")
	}
	if p.ColumnWeight < 2 || p.ColumnWeight > 255 {
		return errors.New("fec: column weight must be in [2,255]")
	}
	if p.Circulant <= 0 || p.K%p.Circulant != 0 {
		return errors.New("fec: circulant size must divide K")
	}
	if p.M() != p.ColumnWeight*p.Circulant {
		return fmt.Errorf("fec: N-K=%d must equal column weight * circulant = %d", p.M(), p.ColumnWeight*p.Circulant)
	}
	// Two information bits may share at most one check.
	if (p.ColumnWeight-1)*(p.K/p.Circulant-1) >= p.Circulant {
		return fmt.Errorf("fec: circulant %d too small for %d groups of %d blocks", p.Circulant, p.ColumnWeight, p.K/p.Circulant)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("%s(k=%d,n=%d,w=%d)", p.Name, p.K, p.N, p.ColumnWeight)
}
