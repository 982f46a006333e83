package fec

import "fmt"

// Code holds the sparse parity-check structure for one Params. It is immutable
// after New and safe for concurrent use; decode scratch lives in caller buffers.
type Code struct {
	p Params
	// check -> variables, information bits ascending then the parity bit
	checkStart []int32
	checkVars  []int32
	// variable -> checks
	varStart  []int32
	varChecks []int32
}

// New builds the code described by p.
func New(p Params) (*Code, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := p.M()
	c := p.Circulant
	w := p.ColumnWeight
	rowDeg := p.K/c + 1

	checkStart := make([]int32, m+1)
	for r := 0; r <= m; r++ {
		checkStart[r] = int32(r * rowDeg)
	}
	checkVars := make([]int32, m*rowDeg)
	fill := make([]int32, m)
	varStart := make([]int32, p.N+1)
	varChecks := make([]int32, p.K*w+m)

	for i := 0; i < p.K; i++ {
		a, b := i/c, i%c
		varStart[i] = int32(i * w)
		for g := 0; g < w; g++ {
			r := g*c + (b+a*g)%c
			varChecks[i*w+g] = int32(r)
			checkVars[checkStart[r]+fill[r]] = int32(i)
			fill[r]++
		}
	}
	for j := 0; j < m; j++ {
		v := p.K + j
		varStart[v] = int32(p.K*w + j)
		varChecks[p.K*w+j] = int32(j)
		checkVars[checkStart[j]+fill[j]] = int32(v)
		fill[j]++
	}
	varStart[p.N] = int32(p.K*w + m)

	for r := 0; r < m; r++ {
		if int(fill[r]) != rowDeg {
			return nil, fmt.Errorf("fec: check %d has degree %d, want %d", r, fill[r], rowDeg)
		}
	}
	return &Code{p: p, checkStart: checkStart, checkVars: checkVars, varStart: varStart, varChecks: varChecks}, nil
}

// MustNew is New for the built-in codes; it panics on invalid params.
func MustNew(p Params) *Code {
	c, err := New(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Params returns the code descriptor.
func (c *Code) Params() Params { return c.p }

// checkMembers returns the variables of check r.
func (c *Code) checkMembers(r int) []int32 {
	return c.checkVars[c.checkStart[r]:c.checkStart[r+1]]
}

// varMembers returns the checks variable v participates in.
func (c *Code) varMembers(v int) []int32 {
	return c.varChecks[c.varStart[v]:c.varStart[v+1]]
}

func (c *Code) degree(v int) int { return int(c.varStart[v+1] - c.varStart[v]) }

// checkParity returns the XOR of all codeword bits in check r.
func (c *Code) checkParity(cw []byte, r int) byte {
	var x byte
	for _, v := range c.checkMembers(r) {
		x ^= bitAt(cw, int(v))
	}
	return x
}

// Encode returns the N/8-byte systematic codeword for data. Data shorter than K/8 bytes
// is padded with zero bits.
func (c *Code) Encode(data []byte) ([]byte, error) {
	cw := make([]byte, c.p.OutputLen())
	if err := c.EncodeInto(cw, data); err != nil {
		return nil, err
	}
	return cw, nil
}

// EncodeInto writes the codeword for data into dst, which must be OutputLen bytes.
func (c *Code) EncodeInto(dst, data []byte) error {
	if len(data) > c.p.DataLen() {
		return fmt.Errorf("%w: data is %d bytes, %s carries %d", ErrFormat, len(data), c.p.Name, c.p.DataLen())
	}
	if len(dst) != c.p.OutputLen() {
		return fmt.Errorf("%w: codeword buffer is %d bytes, want %d", ErrFormat, len(dst), c.p.OutputLen())
	}
	clear(dst)
	copy(dst, data)
	for r := 0; r < c.p.M(); r++ {
		members := c.checkMembers(r)
		var x byte
		for _, v := range members[:len(members)-1] {
			x ^= bitAt(dst, int(v))
		}
		if x == 1 {
			setBit(dst, c.p.K+r)
		}
	}
	return nil
}

// Syndrome returns the packed check results for cw: bit r is set when check r fails.
func (c *Code) Syndrome(cw []byte) ([]byte, error) {
	if len(cw) != c.p.OutputLen() {
		return nil, fmt.Errorf("%w: codeword is %d bytes, want %d", ErrFormat, len(cw), c.p.OutputLen())
	}
	s := make([]byte, c.p.M()/8)
	for r := 0; r < c.p.M(); r++ {
		if c.checkParity(cw, r) == 1 {
			setBit(s, r)
		}
	}
	return s, nil
}

// UnsatisfiedChecks counts the failing checks of cw; cw must be OutputLen bytes.
func (c *Code) UnsatisfiedChecks(cw []byte) int {
	n := 0
	for r := 0; r < c.p.M(); r++ {
		n += int(c.checkParity(cw, r))
	}
	return n
}

// Check reports whether cw is a codeword.
func (c *Code) Check(cw []byte) bool {
	if len(cw) != c.p.OutputLen() {
		return false
	}
	for r := 0; r < c.p.M(); r++ {
		if c.checkParity(cw, r) == 1 {
			return false
		}
	}
	return true
}
