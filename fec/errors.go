package fec

import "errors"

var (
	// ErrFormat reports a data, codeword or buffer of the wrong length.
	ErrFormat = errors.New("fec: bad length")
	// ErrNonConvergence reports a decode that exhausted its iteration budget with checks still failing.
	ErrNonConvergence = errors.New("fec: decoder did not converge")
)
