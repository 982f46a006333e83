// Package pipeline chains the cipher and codec stages: encrypt then encode on the way out,
// decode, syndrome check and decrypt on the way in.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/observe-l/seclink/aead"
	"github.com/observe-l/seclink/fec"
)

const DefaultMaxIterations = 20

type Config struct {
	Suite aead.Suite
	Code  fec.Params
	// MaxIterations caps decoder flips per codeword. Negative disables correction.
	MaxIterations int
	// Retries is how many extra attempts Run makes after a decode or authentication failure.
	Retries int
	Logger  *logrus.Logger
	Metrics *Metrics
}

// Pipeline holds one session: a key bound to a suite and a code with its decoder workspace.
// Seal is safe for concurrent use; Open calls are serialized.
type Pipeline struct {
	cfg    Config
	cipher *aead.Cipher
	code   *fec.Code
	log    *logrus.Logger
	m      *Metrics

	mu  sync.Mutex
	dec *fec.Decoder
}

// New fills zero Config fields with defaults (AES-128-GCM, qc2048, 20 iterations).
func New(key []byte, cfg Config) (*Pipeline, error) {
	if cfg.Suite == "" {
		cfg.Suite = aead.AES128GCM
	}
	if cfg.Code.Name == "" {
		cfg.Code = fec.DefaultParams
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Code.DataLen() < aead.Overhead {
		return nil, fmt.Errorf("%w: %s carries %d data bytes, a blob needs at least %d", fec.ErrFormat, cfg.Code.Name, cfg.Code.DataLen(), aead.Overhead)
	}
	cipher, err := aead.New(cfg.Suite, key)
	if err != nil {
		return nil, err
	}
	code, err := fec.New(cfg.Code)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		cipher: cipher,
		code:   code,
		log:    cfg.Logger,
		m:      cfg.Metrics,
		dec:    fec.NewDecoder(code, cfg.MaxIterations),
	}, nil
}

// Params returns the session's code.
func (p *Pipeline) Params() fec.Params { return p.code.Params() }

// MaxPlaintext is the longest message whose blob fits in one codeword.
func (p *Pipeline) MaxPlaintext() int { return p.code.Params().DataLen() - aead.Overhead }

// Sealed is one outgoing message.
type Sealed struct {
	Blob     []byte
	Codeword []byte
	Encrypt  time.Duration
	Encode   time.Duration
}

// Seal encrypts plaintext under a fresh nonce and encodes the blob into one codeword.
func (p *Pipeline) Seal(plaintext []byte) (Sealed, error) {
	if limit := p.MaxPlaintext(); len(plaintext) > limit {
		return Sealed{}, fmt.Errorf("%w: plaintext is %d bytes, %s carries at most %d", fec.ErrFormat, len(plaintext), p.code.Params().Name, limit)
	}
	var s Sealed
	start := time.Now()
	blob, err := p.cipher.Encrypt(plaintext)
	s.Encrypt = time.Since(start)
	if err != nil {
		return Sealed{}, err
	}
	p.m.observeStage(stageEncrypt, s.Encrypt)

	start = time.Now()
	cw, err := p.code.Encode(blob)
	s.Encode = time.Since(start)
	if err != nil {
		return Sealed{}, err
	}
	p.m.observeStage(stageEncode, s.Encode)
	s.Blob, s.Codeword = blob, cw

	if p.log.IsLevelEnabled(logrus.DebugLevel) {
		p.log.WithField("bits", fec.BitString(blob)).Debug("blob")
		p.log.WithField("bits", fec.BitString(cw)).Debug("codeword")
	}
	return s, nil
}

// Opened is the receiver side of one message. Decode is set whenever decoding ran.
type Opened struct {
	Plaintext []byte
	Decode    fec.Result
	// DecodeTime and DecryptTime are zero for stages that did not run.
	DecodeTime  time.Duration
	DecryptTime time.Duration
}

// Open decodes codeword, refuses to decrypt unless every parity check holds, and decrypts a
// blob carrying a plaintextLen-byte message.
func (p *Pipeline) Open(codeword []byte, plaintextLen int) (Opened, error) {
	blobLen := aead.BlobLen(plaintextLen)
	if plaintextLen < 0 || blobLen > p.code.Params().DataLen() {
		return Opened{}, fmt.Errorf("%w: message length %d does not fit %s", fec.ErrFormat, plaintextLen, p.code.Params().Name)
	}

	var o Opened
	p.mu.Lock()
	start := time.Now()
	res, err := p.dec.Decode(codeword)
	o.DecodeTime = time.Since(start)
	if err == nil {
		res.Data = append([]byte(nil), res.Data...)
	}
	p.mu.Unlock()
	if err != nil {
		return Opened{}, err
	}
	o.Decode = res
	p.m.observeDecode(res, o.DecodeTime)

	entry := p.log.WithFields(logrus.Fields{
		"stage":      stageDecode,
		"status":     res.Status.String(),
		"iterations": res.Iterations,
		"elapsed":    o.DecodeTime,
	})
	if p.log.IsLevelEnabled(logrus.DebugLevel) {
		entry.WithField("bits", fec.BitString(codeword)).Debug("received codeword")
	}
	if err := res.Err(); err != nil {
		entry.WithField("unsatisfied", res.Unsatisfied).Warn("decode did not converge")
		return o, err
	}
	entry.Debug("decoded")

	start = time.Now()
	pt, err := p.cipher.Decrypt(res.Data[:blobLen])
	o.DecryptTime = time.Since(start)
	if err != nil {
		return o, err
	}
	p.m.observeStage(stageDecrypt, o.DecryptTime)
	o.Plaintext = pt
	return o, nil
}
