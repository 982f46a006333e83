// Package link moves fixed-size codewords between two endpoints. It is the transport
// collaborator of the pipeline: it never inspects or reorders codeword bytes.
package link

import (
	"context"
	"errors"
)

var (
	ErrClosed  = errors.New("link: closed")
	ErrTimeout = errors.New("link: timeout")
)

//go:generate mockgen -package mocks -destination ../internal/mocks/mock_link.go github.com/observe-l/seclink/link Link

// Link sends and receives whole codewords within the caller's deadline.
type Link interface {
	Send(ctx context.Context, codeword []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Channel corrupts a codeword in transit. A nil Channel is noiseless.
type Channel interface {
	Transmit(codeword []byte) []byte
}

// ctxErr maps a finished context to the link error taxonomy.
func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
