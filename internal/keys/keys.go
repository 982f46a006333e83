// Package keys provisions the 128-bit session key.
package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/observe-l/seclink/aead"
)

// EnvVar names the environment variable consulted when no key flag is given.
const EnvVar = "SECLINK_KEY"

// Demo is the fixed key of the original demonstration program. Commands use it only on request.
var Demo = []byte("0123456789abcdef")

var ErrNoKey = errors.New("keys: no key supplied")

// Parse accepts 32 hex digits or exactly 16 raw bytes.
func Parse(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*aead.KeySize {
		k, err := hex.DecodeString(s)
		if err == nil {
			return k, nil
		}
	}
	if len(s) == aead.KeySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("keys: want %d hex digits or %d bytes, got %d characters", 2*aead.KeySize, aead.KeySize, len(s))
}

// Source is where Resolve looks for key material.
type Source struct {
	Flag   string
	Getenv func(string) string
	// Prompt reads a line without echo; nil disables prompting.
	Prompt func() ([]byte, error)
}

// Resolve tries the flag, then the environment, then the prompt.
func Resolve(src Source) ([]byte, error) {
	if src.Flag != "" {
		return Parse(src.Flag)
	}
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvVar); v != "" {
		k, err := Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvVar, err)
		}
		return k, nil
	}
	if src.Prompt == nil {
		return nil, ErrNoKey
	}
	line, err := src.Prompt()
	if err != nil {
		return nil, fmt.Errorf("keys: prompt: %w", err)
	}
	defer Zero(line)
	return Parse(string(bytes.TrimSpace(line)))
}

// TerminalPrompt reads the key from the controlling terminal without echo.
func TerminalPrompt(w io.Writer) func() ([]byte, error) {
	return func() ([]byte, error) {
		fmt.Fprint(w, "session key (32 hex digits): ")
		defer fmt.Fprintln(w)
		if term.IsTerminal(int(syscall.Stdin)) {
			return term.ReadPassword(int(syscall.Stdin))
		}
		tty, err := os.Open("/dev/tty")
		if err != nil {
			if runtime.GOOS == "windows" {
				return nil, fmt.Errorf("stdin is not a terminal; set %s", EnvVar)
			}
			return nil, fmt.Errorf("stdin is piped and /dev/tty is not available; set %s", EnvVar)
		}
		defer tty.Close()
		return term.ReadPassword(int(tty.Fd()))
	}
}

// Zero overwrites b.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
