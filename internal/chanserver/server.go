// Package chanserver runs the channel model as a gRPC service so that a sender and a receiver in
// different processes exchange codewords through an emulated noisy link.
package chanserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/sim"
)

var (
	ErrBadRate = errors.New("chanserver: bit error rate must be within [0, 1]")
	ErrEmpty   = errors.New("chanserver: empty codeword")
)

// Server corrupts every transmitted codeword with a binary symmetric channel and queues it for
// the next Receive.
type Server struct {
	log *logrus.Logger

	mu      sync.Mutex
	channel *sim.BSC
	seed    int64
	gen     int64
	frames  int
	flipped int

	queue chan []byte
}

// New returns a server with the given initial bit error rate. depth bounds the number of codewords
// waiting for a receiver.
func New(ber float64, seed int64, depth int, log *logrus.Logger) (*Server, error) {
	if ber < 0 || ber > 1 {
		return nil, ErrBadRate
	}
	if depth <= 0 {
		depth = 16
	}
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		log:     log,
		channel: sim.NewBSC(ber, seed),
		seed:    seed,
		queue:   make(chan []byte, depth),
	}, nil
}

// Configure swaps in a fresh channel with the new bit error rate.
func (s *Server) Configure(ctx context.Context, ber float64) error {
	if ber < 0 || ber > 1 {
		return fmt.Errorf("%w: got %g", ErrBadRate, ber)
	}
	s.mu.Lock()
	s.gen++
	s.channel = sim.NewBSC(ber, s.seed+s.gen)
	s.mu.Unlock()
	s.log.WithField("ber", ber).Info("channel configured")
	return nil
}

// BER returns the current bit error rate.
func (s *Server) BER() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.BER()
}

// Stats returns how many codewords passed through and how many bits were flipped in total.
func (s *Server) Stats() (frames, flipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.flipped
}

// Transmit corrupts cw and queues the result, blocking while the queue is full.
func (s *Server) Transmit(ctx context.Context, cw []byte) error {
	if len(cw) == 0 {
		return ErrEmpty
	}
	s.mu.Lock()
	out := s.channel.Transmit(cw)
	flips := fec.HammingDistance(cw, out)
	s.frames++
	s.flipped += flips
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"bytes": len(cw), "flipped": flips}).Debug("codeword transmitted")
	select {
	case s.queue <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the oldest queued codeword, waiting until one arrives or ctx is done.
func (s *Server) Receive(ctx context.Context) ([]byte, error) {
	select {
	case cw := <-s.queue:
		return cw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
