// Package aead implements the cipher stage: authenticated encryption of one message under a
// 128-bit session key with a fresh random 96-bit nonce per call. Blobs are laid out as
// nonce ‖ ciphertext ‖ tag with no length field.
package aead

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tink-crypto/tink-go/v2/aead/subtle"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Suite names an AEAD construction.
type Suite string

const (
	// AES128GCM is AES-128 in GCM mode.
	AES128GCM Suite = "aes-128-gcm"
	// ChaCha20Poly1305 uses a 256-bit key expanded from the session key with HKDF-SHA256.
	ChaCha20Poly1305 Suite = "chacha20-poly1305"
)

const (
	KeySize   = 16
	NonceSize = 12
	TagSize   = 16
	// Overhead is len(blob) - len(plaintext).
	Overhead = NonceSize + TagSize
)

var (
	ErrEncryptionFailure     = errors.New("aead: encryption failed")
	ErrAuthenticationFailure = errors.New("aead: authentication failed")
	ErrFormat                = errors.New("aead: malformed blob")
	ErrNonceReuse            = errors.New("aead: nonce reused under session key")
)

const chachaInfo = "seclink chacha20-poly1305 v1"

// Suites lists the supported suites.
func Suites() []Suite { return []Suite{AES128GCM, ChaCha20Poly1305} }

// ParseSuite maps a configuration string to a Suite.
func ParseSuite(s string) (Suite, error) {
	for _, v := range Suites() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("aead: unknown suite %q", s)
}

// BlobLen returns the blob size for a plaintext of n bytes.
func BlobLen(n int) int { return n + Overhead }

// Nonce returns the nonce prefix of blob.
func Nonce(blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrFormat, len(blob), NonceSize)
	}
	return blob[:NonceSize], nil
}

type sealer interface {
	seal(plaintext []byte) ([]byte, error)
	open(blob []byte) ([]byte, error)
}

// Cipher binds a suite to a session key. It remembers the nonces it produced and refuses
// to emit a blob whose nonce was already used in the session.
type Cipher struct {
	suite Suite
	impl  sealer

	mu   sync.Mutex
	seen map[[NonceSize]byte]struct{}
}

// New validates key and prepares the suite. The Cipher keeps its own copy of key, so the
// caller may zero it afterwards.
func New(suite Suite, key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", ErrEncryptionFailure, len(key), KeySize)
	}
	key = append([]byte(nil), key...)
	var impl sealer
	switch suite {
	case AES128GCM:
		a, err := subtle.NewAESGCM(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
		}
		impl = aesGCM{a}
	case ChaCha20Poly1305:
		k := make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(chachaInfo)), k); err != nil {
			return nil, fmt.Errorf("%w: derive key: %v", ErrEncryptionFailure, err)
		}
		a, err := chacha20poly1305.New(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
		}
		impl = chacha{a}
	default:
		return nil, fmt.Errorf("%w: unknown suite %q", ErrEncryptionFailure, suite)
	}
	return &Cipher{suite: suite, impl: impl, seen: make(map[[NonceSize]byte]struct{})}, nil
}

// Suite returns the configured suite.
func (c *Cipher) Suite() Suite { return c.suite }

// Encrypt returns nonce ‖ ciphertext ‖ tag for plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	blob, err := c.impl.seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	if len(blob) != BlobLen(len(plaintext)) {
		return nil, fmt.Errorf("%w: blob is %d bytes, want %d", ErrEncryptionFailure, len(blob), BlobLen(len(plaintext)))
	}
	var n [NonceSize]byte
	copy(n[:], blob)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[n]; dup {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailure, ErrNonceReuse)
	}
	c.seen[n] = struct{}{}
	return blob, nil
}

// Decrypt splits blob at the nonce and verifies and decrypts the remainder.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrFormat, len(blob), Overhead)
	}
	pt, err := c.impl.open(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	return pt, nil
}

// Encrypt is a one-shot AES-128-GCM encryption under key.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	c, err := New(AES128GCM, key)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(plaintext)
}

// Decrypt is the inverse of Encrypt.
func Decrypt(key, blob []byte) ([]byte, error) {
	c, err := New(AES128GCM, key)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(blob)
}

// aesGCM output is already iv ‖ ct ‖ tag with a 12-byte random iv.
type aesGCM struct{ a *subtle.AESGCM }

func (g aesGCM) seal(pt []byte) ([]byte, error) { return g.a.Encrypt(pt, nil) }

func (g aesGCM) open(blob []byte) ([]byte, error) { return g.a.Decrypt(blob, nil) }

type chacha struct {
	a interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func (c chacha) seal(pt []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, BlobLen(len(pt)))
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.a.Seal(nonce, nonce, pt, nil), nil
}

func (c chacha) open(blob []byte) ([]byte, error) {
	return c.a.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
}
