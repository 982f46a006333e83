package pipeline

import (
	"context"
	"fmt"
)

// Link is the transport the pipeline hands codewords to.
type Link interface {
	Send(ctx context.Context, codeword []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Send seals plaintext and transmits the codeword on l.
func (p *Pipeline) Send(ctx context.Context, l Link, plaintext []byte) (Sealed, error) {
	s, err := p.Seal(plaintext)
	if err != nil {
		return Sealed{}, err
	}
	if err := l.Send(ctx, s.Codeword); err != nil {
		return s, fmt.Errorf("pipeline: send: %w", err)
	}
	p.log.WithField("bytes", len(s.Codeword)).Debug("codeword sent")
	return s, nil
}

// Receive waits for one codeword on l and opens it.
func (p *Pipeline) Receive(ctx context.Context, l Link, plaintextLen int) (Opened, error) {
	cw, err := l.Receive(ctx)
	if err != nil {
		return Opened{}, fmt.Errorf("pipeline: receive: %w", err)
	}
	return p.Open(cw, plaintextLen)
}
