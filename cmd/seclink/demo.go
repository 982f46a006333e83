package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/observe-l/seclink/internal/sim"
	"github.com/observe-l/seclink/pipeline"
)

var demoMessage = string(bytes.Repeat([]byte("1234567890"), 10))

func runDemo(args []string, stdout io.Writer) error {
	var (
		s settings
		v flagVars
	)
	fs := newFlagSet("demo", &s, &v)
	addChannelFlags(fs, &v)
	message := fs.String("message", demoMessage, "plaintext to send")
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
	ch, err := s.cfg.NewChannel()
	if err != nil {
		return err
	}
	if f, ok := ch.(sim.Fixed); ok {
		log.WithField("pattern", f.Pattern.String()).Debug("fixed corruption pattern")
	}

	rep, runErr := p.Run([]byte(*message), ch)
	if s.json {
		b, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n", b)
	} else {
		printReport(stdout, rep)
	}
	return runErr
}

func printReport(w io.Writer, rep *pipeline.Report) {
	fmt.Fprintf(w, "Encryption Time: %v\n", rep.Encrypt)
	fmt.Fprintf(w, "Encoding Time: %v\n", rep.Encode)
	fmt.Fprintf(w, "Decoding Time: %v\n", rep.Decode)
	fmt.Fprintf(w, "Decryption Time: %v\n", rep.Decrypt)
	fmt.Fprintf(w, "code %s, suite %s: %d-byte message, %d-byte blob, %d-byte codeword\n",
		rep.Code, rep.Suite, rep.PlaintextLen, rep.BlobLen, rep.CodewordLen)
	fmt.Fprintf(w, "channel flipped %d bits; decoder %s after %d iterations\n", rep.FlippedBits, rep.Status, rep.Iterations)
	if rep.OK {
		fmt.Fprintf(w, "round trip ok (%d attempt(s))\n", rep.Attempts)
	} else {
		fmt.Fprintf(w, "round trip FAILED after %d attempt(s): %s\n", rep.Attempts, rep.Err)
	}
}
