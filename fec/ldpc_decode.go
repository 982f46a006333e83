package fec

import "fmt"

// Status tags a decode result.
type Status int

const (
	// Converged means every parity check holds on the output.
	Converged Status = iota
	// Exhausted means the decoder stopped with checks still failing; the output is best effort.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of Decode.
type Result struct {
	Status      Status
	Iterations  int    // bits flipped
	Unsatisfied int    // checks failing on the output, recomputed after decoding
	Data        []byte // first K/8 bytes of the output buffer
}

// Err returns nil for a converged result and an ErrNonConvergence wrap otherwise.
func (r Result) Err() error {
	if r.Status == Converged {
		return nil
	}
	return fmt.Errorf("%w: %d checks failing after %d iterations", ErrNonConvergence, r.Unsatisfied, r.Iterations)
}

// DecodeBitFlip runs serial bit-flipping on received, writing the corrected codeword into output.
// Each iteration flips the single bit with the largest (unsatisfied - satisfied) check count,
// lowest index first on ties, considering only bits where most of their checks fail. It stops when
// the syndrome clears, no bit qualifies, or maxIterations flips were made, and returns the flip count.
// The return value does not say whether decoding converged; use Decode for that.
func (c *Code) DecodeBitFlip(received, output, workspace []byte, maxIterations int) (int, error) {
	n, m := c.p.N, c.p.M()
	if len(received) != c.p.OutputLen() {
		return 0, fmt.Errorf("%w: received %d bytes, want %d", ErrFormat, len(received), c.p.OutputLen())
	}
	if len(output) != c.p.OutputLen() {
		return 0, fmt.Errorf("%w: output buffer is %d bytes, want %d", ErrFormat, len(output), c.p.OutputLen())
	}
	if len(workspace) < c.p.WorkspaceLen() {
		return 0, fmt.Errorf("%w: workspace is %d bytes, want %d", ErrFormat, len(workspace), c.p.WorkspaceLen())
	}
	if maxIterations < 0 {
		maxIterations = 0
	}

	copy(output, received)
	counts := workspace[:n]
	synd := workspace[n : n+m/8]
	clear(counts)
	clear(synd)

	unsat := 0
	for r := 0; r < m; r++ {
		if c.checkParity(output, r) == 0 {
			continue
		}
		setBit(synd, r)
		unsat++
		for _, v := range c.checkMembers(r) {
			counts[v]++
		}
	}

	iter := 0
	for unsat > 0 && iter < maxIterations {
		best, bestScore := -1, 0
		for v := 0; v < n; v++ {
			score := 2*int(counts[v]) - c.degree(v)
			if score > bestScore {
				best, bestScore = v, score
			}
		}
		if best < 0 {
			break
		}
		flipBit(output, best)
		iter++
		for _, r := range c.varMembers(best) {
			wasFailing := bitAt(synd, int(r)) == 1
			flipBit(synd, int(r))
			members := c.checkMembers(int(r))
			if wasFailing {
				unsat--
				for _, v := range members {
					counts[v]--
				}
			} else {
				unsat++
				for _, v := range members {
					counts[v]++
				}
			}
		}
	}
	return iter, nil
}

// Decode runs DecodeBitFlip and then recomputes the syndrome of output from scratch
// to tag the result. Result.Data aliases output.
func (c *Code) Decode(received, output, workspace []byte, maxIterations int) (Result, error) {
	iters, err := c.DecodeBitFlip(received, output, workspace, maxIterations)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Iterations:  iters,
		Unsatisfied: c.UnsatisfiedChecks(output),
		Data:        output[:c.p.DataLen()],
	}
	if res.Unsatisfied == 0 {
		res.Status = Converged
	} else {
		res.Status = Exhausted
	}
	return res, nil
}

// Decoder owns a workspace and output buffer sized for one code and reuses them across calls.
// It is not safe for concurrent use.
type Decoder struct {
	code          *Code
	workspace     []byte
	output        []byte
	MaxIterations int
}

// NewDecoder allocates the buffers for code once.
func NewDecoder(code *Code, maxIterations int) *Decoder {
	p := code.Params()
	return &Decoder{
		code:          code,
		workspace:     make([]byte, p.WorkspaceLen()),
		output:        make([]byte, p.OutputLen()),
		MaxIterations: maxIterations,
	}
}

// Code returns the decoder's code.
func (d *Decoder) Code() *Code { return d.code }

// Decode corrects received. Result.Data is only valid until the next call.
func (d *Decoder) Decode(received []byte) (Result, error) {
	return d.code.Decode(received, d.output, d.workspace, d.MaxIterations)
}
