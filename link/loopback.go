package link

import (
	"context"
	"sync"
)

// Loopback is an in-process link: everything sent is queued for Receive after passing
// through the optional channel model.
type Loopback struct {
	channel Channel
	queue   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

var _ Link = (*Loopback)(nil)

func NewLoopback(depth int, channel Channel) *Loopback {
	if depth <= 0 {
		depth = 1
	}
	return &Loopback{channel: channel, queue: make(chan []byte, depth), done: make(chan struct{})}
}

func (l *Loopback) Send(ctx context.Context, codeword []byte) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	var out []byte
	if l.channel != nil {
		out = l.channel.Transmit(codeword)
	} else {
		out = append([]byte(nil), codeword...)
	}
	select {
	case l.queue <- out:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctxErr(ctx)
	}
}

func (l *Loopback) Receive(ctx context.Context) ([]byte, error) {
	select {
	case cw := <-l.queue:
		return cw, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctxErr(ctx)
	}
}

func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
