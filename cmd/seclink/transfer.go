package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observe-l/seclink/aead"
	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/config"
	"github.com/observe-l/seclink/link"
)

const heartbeatPayload = "hello"

func openLink(cfg config.Config, p fec.Params, log *logrus.Logger) (link.Link, *link.Serial, error) {
	switch {
	case cfg.Link.Serial != "":
		s, err := link.OpenSerial(link.SerialConfig{
			Device:      cfg.Link.Serial,
			Baud:        cfg.Link.Baud,
			CodewordLen: p.OutputLen(),
			Timeout:     cfg.Link.Timeout,
			Logger:      log,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case cfg.Link.Remote != "":
		r, err := link.DialRemote(cfg.Link.Remote)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	}
	return nil, nil, errors.New("no link: pass --serial or --remote")
}

// padMessage fills msg with zero bytes up to n so that every codeword carries the same blob length.
func padMessage(msg []byte, n int) ([]byte, error) {
	if len(msg) > n {
		return nil, fmt.Errorf("message is %d bytes, the link carries %d", len(msg), n)
	}
	out := make([]byte, n)
	copy(out, msg)
	return out, nil
}

func runSend(args []string, stdout io.Writer) error {
	var (
		s settings
		v flagVars
	)
	fs := newFlagSet("send", &s, &v)
	addLinkFlags(fs, &v)
	message := fs.String("message", demoMessage, "plaintext to send")
	count := fs.Int("count", 1, "messages to send")
	interval := fs.Duration("interval", time.Second, "pause between messages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := merge(fs, &s, &v); err != nil {
		return err
	}
	log, err := s.cfg.NewLogger()
	if err != nil {
		return err
	}
	msg, err := padMessage([]byte(*message), s.cfg.MessageLen)
	if err != nil {
		return err
	}
	p, err := s.newPipeline(log)
	if err != nil {
		return err
	}
	l, _, err := openLink(s.cfg, p.Params(), log)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for i := 0; i < *count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
		sent, err := p.Send(ctx, l, msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sent %d-byte codeword (Encoding Time: %v)\n", len(sent.Codeword), sent.Encode)
	}
	return nil
}

func runRecv(args []string, stdout io.Writer) error {
	var (
		s settings
		v flagVars
	)
	fs := newFlagSet("recv", &s, &v)
	addLinkFlags(fs, &v)
	count := fs.Int("count", 0, "messages to receive before exiting, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := merge(fs, &s, &v); err != nil {
		return err
	}
	log, err := s.cfg.NewLogger()
	if err != nil {
		return err
	}
	p, err := s.newPipeline(log)
	if err != nil {
		return err
	}
	l, serial, err := openLink(s.cfg, p.Params(), log)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if serial != nil && s.cfg.Link.Heartbeat > 0 {
		go func() {
			if err := serial.Heartbeat(ctx, s.cfg.Link.Heartbeat, []byte(heartbeatPayload)); err != nil {
				log.WithError(err).Warn("heartbeat stopped")
			}
		}()
	}

	for got := 0; *count == 0 || got < *count; {
		rctx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.Link.Timeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, s.cfg.Link.Timeout)
		}
		o, err := p.Receive(rctx, l, s.cfg.MessageLen)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, link.ErrTimeout):
			log.Debug("no codeword before deadline")
			continue
		case errors.Is(err, link.ErrClosed):
			return err
		case errors.Is(err, fec.ErrNonConvergence), errors.Is(err, aead.ErrAuthenticationFailure), errors.Is(err, fec.ErrFormat):
			log.WithError(err).Warn("dropped codeword")
			continue
		case err != nil:
			return err
		}
		got++
		fmt.Fprintf(stdout, "%s\n", bytes.TrimRight(o.Plaintext, "\x00"))
		log.WithFields(logrus.Fields{
			"iterations": o.Decode.Iterations,
			"decode":     o.DecodeTime,
			"decrypt":    o.DecryptTime,
		}).Info("message received")
	}
	return nil
}
