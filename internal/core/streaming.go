package core

// streaming.go provides the reader chain applied to every table source.
//
//   - BOMSkippingReader drops a leading UTF-8 byte order mark
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks bytes consumed for logging
//
// WrapSource applies all three in that order. Memory use stays at the size of
// the read buffer no matter how large the source is.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader. The first call discards a leading BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		} else if err != nil && err != io.EOF {
			return 0, err
		}
	}
	return r.br.Read(p)
}

// sanitizeChunk is how many source bytes UTF8Sanitizer pulls per fill.
const sanitizeChunk = 4096

// UTF8Sanitizer wraps an io.Reader and replaces each invalid UTF-8 byte
// with '?'. Multi-byte sequences split across source reads are carried over
// rather than being treated as invalid.
type UTF8Sanitizer struct {
	reader io.Reader
	raw    []byte // carried incomplete rune, then fresh input
	out    []byte // sanitized bytes not yet returned
	err    error
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{reader: r, raw: make([]byte, 0, sanitizeChunk+utf8.UTFMax)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads one chunk from the source and sanitizes it into out.
func (s *UTF8Sanitizer) fill() {
	carry := len(s.raw)
	buf := s.raw[:carry+sanitizeChunk]
	n, err := s.reader.Read(buf[carry:])
	data := buf[:carry+n]
	if err != nil {
		s.err = err
	}

	if utf8.Valid(data) {
		s.out = append(s.out[:0], data...)
		s.raw = s.raw[:0]
		return
	}

	atEOF := s.err != nil
	s.out = s.out[:0]
	i := 0
	for i < len(data) {
		if !atEOF && !utf8.FullRune(data[i:]) {
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, '?')
		} else {
			s.out = append(s.out, data[i:i+size]...)
		}
		i += size
	}
	s.raw = append(s.raw[:0], data[i:]...)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapSource strips the BOM, then sanitizes UTF-8, then counts bytes.
func WrapSource(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
}
