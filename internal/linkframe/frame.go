// Package linkframe delimits fixed-size codewords on an unframed byte stream such as a UART.
//
// Layout per frame:
//
//	ASM       4B  0x1ACFFC1D attached sync marker
//	CODEWORD  nB  fixed by the session's code
//
// Bytes between frames (heartbeats, line noise) are skipped by the Scanner.
package linkframe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ASM is the attached sync marker.
var ASM = [4]byte{0x1A, 0xCF, 0xFC, 0x1D}

const MarkerLen = len(ASM)

// Marshal appends marker and codeword to b.
func Marshal(b, codeword []byte) []byte {
	b = append(b, ASM[:]...)
	return append(b, codeword...)
}

// Scanner reads frames of a fixed codeword size.
type Scanner struct {
	r      *bufio.Reader
	size   int
	window  uint32
	filled  int
	pending int
	// Skipped counts bytes discarded while hunting for a marker.
	Skipped int
}

func NewScanner(r io.Reader, size int) *Scanner {
	return &Scanner{r: bufio.NewReader(r), size: size}
}

var asmWord = uint32(ASM[0])<<24 | uint32(ASM[1])<<16 | uint32(ASM[2])<<8 | uint32(ASM[3])

// Next returns the next codeword. The marker hunt survives read errors, so Next may be called
// again after a timeout; a frame interrupted mid-codeword is dropped.
func (s *Scanner) Next() ([]byte, error) {
	if s.size <= 0 {
		return nil, errors.New("linkframe: codeword size not set")
	}
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		s.window = s.window<<8 | uint32(c)
		s.pending++
		if s.filled < MarkerLen {
			s.filled++
		}
		if s.filled < MarkerLen || s.window != asmWord {
			continue
		}
		s.Skipped += s.pending - MarkerLen
		s.window, s.filled, s.pending = 0, 0, 0
		cw := make([]byte, s.size)
		if _, err := io.ReadFull(s.r, cw); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, fmt.Errorf("linkframe: truncated frame: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("linkframe: partial frame dropped: %w", err)
		}
		return cw, nil
	}
}
