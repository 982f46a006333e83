package pipeline

import (
	"bytes"
	"errors"
	"time"

	"github.com/francoispqt/gojay"
	"github.com/sirupsen/logrus"

	"github.com/observe-l/seclink/aead"
	"github.com/observe-l/seclink/fec"
)

var ErrMismatch = errors.New("pipeline: recovered plaintext differs from the original")

// Channel corrupts a codeword between Seal and Open. Implementations must not modify their input.
type Channel interface {
	Transmit(codeword []byte) []byte
}

// Report describes the last attempt of a Run.
type Report struct {
	Code         string
	Suite        string
	PlaintextLen int
	BlobLen      int
	CodewordLen  int
	Attempts     int
	FlippedBits  int // bits the channel changed
	ResidualBits int // bits still wrong in the decoded data block
	Iterations   int
	Unsatisfied  int
	Status       string
	OK           bool
	Err          string

	Encrypt time.Duration
	Encode  time.Duration
	Corrupt time.Duration
	Decode  time.Duration
	Decrypt time.Duration
}

// MarshalJSONObject implements gojay.MarshalerJSONObject.
func (r *Report) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("code", r.Code)
	enc.StringKey("suite", r.Suite)
	enc.IntKey("plaintext_len", r.PlaintextLen)
	enc.IntKey("blob_len", r.BlobLen)
	enc.IntKey("codeword_len", r.CodewordLen)
	enc.IntKey("attempts", r.Attempts)
	enc.IntKey("flipped_bits", r.FlippedBits)
	enc.IntKey("residual_bits", r.ResidualBits)
	enc.IntKey("iterations", r.Iterations)
	enc.IntKey("unsatisfied", r.Unsatisfied)
	enc.StringKey("status", r.Status)
	enc.BoolKey("ok", r.OK)
	enc.StringKeyOmitEmpty("error", r.Err)
	enc.Int64Key("encrypt_ns", r.Encrypt.Nanoseconds())
	enc.Int64Key("encode_ns", r.Encode.Nanoseconds())
	enc.Int64Key("corrupt_ns", r.Corrupt.Nanoseconds())
	enc.Int64Key("decode_ns", r.Decode.Nanoseconds())
	enc.Int64Key("decrypt_ns", r.Decrypt.Nanoseconds())
}

// IsNil implements gojay.MarshalerJSONObject.
func (r *Report) IsNil() bool { return r == nil }

func (r *Report) JSON() ([]byte, error) { return gojay.MarshalJSONObject(r) }

// Run performs one full round trip of plaintext through ch and checks that the recovered
// plaintext equals the original. A decode or authentication failure is retried with a fresh
// nonce up to Config.Retries times. The report is returned even when err is non-nil.
func (p *Pipeline) Run(plaintext []byte, ch Channel) (*Report, error) {
	rep := &Report{
		Code:         p.code.Params().Name,
		Suite:        string(p.cipher.Suite()),
		PlaintextLen: len(plaintext),
		CodewordLen:  p.code.Params().OutputLen(),
	}
	var err error
	for attempt := 1; attempt <= 1+p.cfg.Retries; attempt++ {
		rep.Attempts = attempt
		err = p.runOnce(plaintext, ch, rep)
		if err == nil || !retryable(err) {
			break
		}
		if attempt <= p.cfg.Retries {
			p.log.WithError(err).WithField("attempt", attempt).Warn("retrying with a fresh nonce")
		}
	}
	rep.OK = err == nil
	if err != nil {
		rep.Err = err.Error()
	}
	p.m.observeRun(resultLabel(err))

	p.log.WithFields(logrus.Fields{
		"code":       rep.Code,
		"attempts":   rep.Attempts,
		"flipped":    rep.FlippedBits,
		"iterations": rep.Iterations,
		"status":     rep.Status,
		"ok":         rep.OK,
	}).Info("round trip finished")
	return rep, err
}

func (p *Pipeline) runOnce(plaintext []byte, ch Channel, rep *Report) error {
	*rep = Report{
		Code:         rep.Code,
		Suite:        rep.Suite,
		PlaintextLen: rep.PlaintextLen,
		CodewordLen:  rep.CodewordLen,
		Attempts:     rep.Attempts,
	}
	sealed, err := p.Seal(plaintext)
	if err != nil {
		return err
	}
	rep.BlobLen = len(sealed.Blob)
	rep.Encrypt, rep.Encode = sealed.Encrypt, sealed.Encode

	start := time.Now()
	var rx []byte
	if ch != nil {
		rx = ch.Transmit(sealed.Codeword)
	} else {
		rx = append([]byte(nil), sealed.Codeword...)
	}
	rep.Corrupt = time.Since(start)
	p.m.observeStage(stageCorrupt, rep.Corrupt)
	rep.FlippedBits = fec.HammingDistance(sealed.Codeword, rx)

	opened, err := p.Open(rx, len(plaintext))
	rep.Decode, rep.Decrypt = opened.DecodeTime, opened.DecryptTime
	if opened.Decode.Data != nil {
		rep.Iterations = opened.Decode.Iterations
		rep.Unsatisfied = opened.Decode.Unsatisfied
		rep.Status = opened.Decode.Status.String()
		rep.ResidualBits = fec.HammingDistance(sealed.Codeword[:len(opened.Decode.Data)], opened.Decode.Data)
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(opened.Plaintext, plaintext) {
		return ErrMismatch
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, fec.ErrNonConvergence) || errors.Is(err, aead.ErrAuthenticationFailure)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, fec.ErrNonConvergence):
		return resultNonConvergence
	case errors.Is(err, aead.ErrAuthenticationFailure):
		return resultAuthFailure
	case errors.Is(err, ErrMismatch):
		return resultMismatch
	}
	return resultError
}
