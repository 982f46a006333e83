package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/term"
	"github.com/sirupsen/logrus"

	"github.com/observe-l/seclink/internal/linkframe"
)

const (
	DefaultBaud = 115200
	// pollInterval bounds how long one read blocks before Receive rechecks its context.
	pollInterval = 100 * time.Millisecond
)

// SerialConfig describes a UART endpoint.
type SerialConfig struct {
	Device string
	Baud   int
	// CodewordLen is the number of bytes per frame, fixed by the session's code.
	CodewordLen int
	// Timeout applies to Receive when the caller's context has no deadline. Zero waits forever.
	Timeout time.Duration
	Logger  *logrus.Logger
}

type port interface {
	io.ReadWriteCloser
}

// Serial frames codewords with a sync marker on a raw-mode tty.
type Serial struct {
	cfg  SerialConfig
	port port
	log  *logrus.Logger

	wmu sync.Mutex
	rmu sync.Mutex
	sc  *linkframe.Scanner

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Link = (*Serial)(nil)

var supportedBauds = map[int]bool{1200: true, 2400: true, 4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true}

// OpenSerial opens cfg.Device in raw mode at cfg.Baud (115200 when zero).
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.CodewordLen <= 0 {
		return nil, errors.New("link: codeword length not set")
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if !supportedBauds[cfg.Baud] {
		return nil, fmt.Errorf("link: unsupported baud rate %d", cfg.Baud)
	}
	t, err := term.Open(cfg.Device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", cfg.Device, err)
	}
	if err := t.SetSpeed(cfg.Baud); err != nil {
		t.Close()
		return nil, fmt.Errorf("link: set speed %d on %s: %w", cfg.Baud, cfg.Device, err)
	}
	if err := t.SetReadTimeout(pollInterval); err != nil {
		t.Close()
		return nil, fmt.Errorf("link: set read timeout on %s: %w", cfg.Device, err)
	}
	return newSerial(cfg, t), nil
}

func newSerial(cfg SerialConfig, p port) *Serial {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Serial{
		cfg:    cfg,
		port:   p,
		log:    log,
		sc:     linkframe.NewScanner(pollReader{p}, cfg.CodewordLen),
		closed: make(chan struct{}),
	}
}

func (s *Serial) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Send writes one framed codeword.
func (s *Serial) Send(ctx context.Context, codeword []byte) error {
	if len(codeword) != s.cfg.CodewordLen {
		return fmt.Errorf("link: codeword is %d bytes, want %d", len(codeword), s.cfg.CodewordLen)
	}
	if s.isClosed() {
		return ErrClosed
	}
	if ctx.Err() != nil {
		return ctxErr(ctx)
	}
	return s.write(linkframe.Marshal(nil, codeword))
}

func (s *Serial) write(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.port.Write(b); err != nil {
		return fmt.Errorf("link: write %s: %w", s.cfg.Device, err)
	}
	return nil
}

// Receive returns the next codeword, skipping heartbeats and noise between frames.
func (s *Serial) Receive(ctx context.Context) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	for {
		if s.isClosed() {
			return nil, ErrClosed
		}
		if ctx.Err() != nil {
			return nil, ctxErr(ctx)
		}
		cw, err := s.sc.Next()
		switch {
		case err == nil:
			if s.sc.Skipped > 0 {
				s.log.WithField("bytes", s.sc.Skipped).Debug("skipped bytes between frames")
				s.sc.Skipped = 0
			}
			return cw, nil
		case errors.Is(err, errPoll):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrClosed
		default:
			if s.isClosed() {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("link: read %s: %w", s.cfg.Device, err)
		}
	}
}

// Heartbeat writes payload every interval until ctx is done. The scanner on the far side
// discards it.
func (s *Serial) Heartbeat(ctx context.Context, every time.Duration, payload []byte) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closed:
			return nil
		case <-t.C:
			if err := s.write(payload); err != nil {
				return err
			}
			s.log.Debug("heartbeat sent")
		}
	}
}

func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.port.Close()
	})
	return err
}

var errPoll = errors.New("link: read poll expired")

// pollReader turns the tty's (0, nil) read timeout into errPoll so the scanner hands
// control back to Receive.
type pollReader struct{ r io.Reader }

func (p pollReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n == 0 && err == nil {
		return 0, errPoll
	}
	return n, err
}
