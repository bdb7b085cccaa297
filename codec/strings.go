package codec

import (
	"io"
)

// ReadFixedString reads a fixed-width, null-padded field (used by v2
// label hostname/timezone) and returns the content up to the first null
// byte, or the full width if no null is present.
func ReadFixedString(r io.Reader, width int) (string, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	for i, c := range buf {
		if c == 0 {
			return string(buf[:i]), nil
		}
	}

	return string(buf), nil
}

// WriteFixedString writes s into a null-padded field of the given width,
// truncating s if it is longer than width.
func WriteFixedString(w io.Writer, s string, width int) error {
	buf := make([]byte, width)
	n := copy(buf, s)
	for i := n; i < width; i++ {
		buf[i] = 0
	}

	_, err := w.Write(buf)
	return err
}

// ReadLengthPrefixedString reads a v3-style field whose length in bytes is
// given by n (already decoded from the fixed header).
func ReadLengthPrefixedString(r io.Reader, n uint16) (string, error) {
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}
