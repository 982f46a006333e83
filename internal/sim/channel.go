// Package sim emulates a noisy link by flipping bits in codewords. It is a test and demo harness,
// not part of the production data path.
package sim

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Flip XORs Mask into byte Index of a codeword.
type Flip struct {
	Index int
	Mask  byte
}

// Pattern is a set of flips. Flips on the same byte combine by XOR.
type Pattern []Flip

// Weight returns the number of bits the pattern changes.
func (p Pattern) Weight() int {
	w := 0
	for _, m := range p.merged() {
		w += bits.OnesCount8(m)
	}
	return w
}

func (p Pattern) merged() map[int]byte {
	m := make(map[int]byte, len(p))
	for _, f := range p {
		m[f.Index] ^= f.Mask
	}
	return m
}

// Apply XORs the pattern into cw in place.
func (p Pattern) Apply(cw []byte) error {
	for _, f := range p {
		if f.Index < 0 || f.Index >= len(cw) {
			return fmt.Errorf("sim: flip at byte %d outside %d-byte codeword", f.Index, len(cw))
		}
	}
	for _, f := range p {
		cw[f.Index] ^= f.Mask
	}
	return nil
}

// String renders the pattern in the form accepted by ParsePattern.
func (p Pattern) String() string {
	m := p.merged()
	idx := make([]int, 0, len(m))
	for i, mask := range m {
		if mask != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	parts := make([]string, len(idx))
	for k, i := range idx {
		parts[k] = fmt.Sprintf("%d:0x%02x", i, m[i])
	}
	return strings.Join(parts, ",")
}

// Corrupt returns a copy of cw with p applied; cw is left untouched.
func Corrupt(cw []byte, p Pattern) ([]byte, error) {
	out := append([]byte(nil), cw...)
	if err := p.Apply(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParsePattern parses "byte:mask,byte:mask". Masks accept any Go integer literal (0x01, 0b1000_0000, 128).
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out Pattern
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idxStr, maskStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("sim: bad flip %q, want byte:mask", part)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("sim: bad byte index in %q", part)
		}
		mask, err := strconv.ParseUint(strings.TrimSpace(maskStr), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("sim: bad mask in %q: %w", part, err)
		}
		out = append(out, Flip{Index: idx, Mask: byte(mask)})
	}
	return out, nil
}

// RandomPattern draws weight distinct bit positions in an nbytes codeword.
func RandomPattern(rng *rand.Rand, nbytes, weight int) (Pattern, error) {
	nbits := nbytes * 8
	if weight < 0 || weight > nbits {
		return nil, errors.New("sim: weight out of range")
	}
	out := make(Pattern, 0, weight)
	for _, pos := range rng.Perm(nbits)[:weight] {
		out = append(out, Flip{Index: pos >> 3, Mask: 0x80 >> uint(pos&7)})
	}
	return out, nil
}

// Diff returns the pattern that turns a into b; both must have the same length.
func Diff(a, b []byte) Pattern {
	var out Pattern
	for i := 0; i < len(a) && i < len(b); i++ {
		if x := a[i] ^ b[i]; x != 0 {
			out = append(out, Flip{Index: i, Mask: x})
		}
	}
	return out
}

// Channel transmits one codeword and returns what the receiver sees. Implementations
// never modify their input.
type Channel interface {
	Transmit(cw []byte) []byte
}

// Noiseless delivers codewords unchanged.
type Noiseless struct{}

func (Noiseless) Transmit(cw []byte) []byte { return append([]byte(nil), cw...) }

// Fixed applies the same pattern to every codeword; flips outside the codeword are dropped.
type Fixed struct {
	Pattern Pattern
}

func (f Fixed) Transmit(cw []byte) []byte {
	out := append([]byte(nil), cw...)
	for _, fl := range f.Pattern {
		if fl.Index >= 0 && fl.Index < len(out) {
			out[fl.Index] ^= fl.Mask
		}
	}
	return out
}

// FixedWeight flips exactly Weight random bits per codeword.
type FixedWeight struct {
	Weight int
	rng    *rand.Rand
}

func NewFixedWeight(weight int, seed int64) *FixedWeight {
	return &FixedWeight{Weight: weight, rng: rand.New(rand.NewSource(seed))}
}

func (f *FixedWeight) Transmit(cw []byte) []byte {
	out := append([]byte(nil), cw...)
	w := f.Weight
	if w > len(cw)*8 {
		w = len(cw) * 8
	}
	p, _ := RandomPattern(f.rng, len(cw), w)
	_ = p.Apply(out)
	return out
}

// BSC is a binary symmetric channel: every bit flips independently with probability BER.
type BSC struct {
	b *Bernoulli
}

func NewBSC(ber float64, seed int64) *BSC {
	return &BSC{b: NewBernoulli(ber, rand.New(rand.NewSource(seed)))}
}

// BER returns the configured bit error rate.
func (c *BSC) BER() float64 { return c.b.P() }

func (c *BSC) Transmit(cw []byte) []byte {
	out := append([]byte(nil), cw...)
	if c.b.P() <= 0 {
		return out
	}
	for i := 0; i < len(out)*8; i++ {
		if c.b.Hit() {
			out[i>>3] ^= 0x80 >> uint(i&7)
		}
	}
	return out
}
