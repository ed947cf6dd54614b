package journal

import (
	"bytes"
	"errors"
	"io"
)

const readChunkSize = 64 * 1024

// scanBackward calls fn with every non-empty line of r[0:end], newest first,
// until fn returns false. end must fall on a line boundary. The slice passed
// to fn is only valid for the duration of the call.
func scanBackward(r io.ReaderAt, end int64, chunkSize int, fn func(line []byte) bool) error {
	var carry []byte
	pos := end
	for pos > 0 {
		n := int64(chunkSize)
		if pos < n {
			n = pos
		}
		pos -= n
		buf := make([]byte, n, int(n)+len(carry))
		if _, err := r.ReadAt(buf, pos); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		buf = append(buf, carry...)
		for {
			i := bytes.LastIndexByte(buf, '\n')
			if i < 0 {
				break
			}
			if line := buf[i+1:]; len(line) > 0 {
				if !fn(line) {
					return nil
				}
			}
			buf = buf[:i]
		}
		carry = buf
	}
	if len(carry) > 0 {
		fn(carry)
	}
	return nil
}

// lastLineEnd returns the offset just past the final newline in r[0:size],
// or 0 when there is none.
func lastLineEnd(r io.ReaderAt, size int64, chunkSize int) (int64, error) {
	buf := make([]byte, chunkSize)
	pos := size
	for pos > 0 {
		n := int64(chunkSize)
		if pos < n {
			n = pos
		}
		pos -= n
		if _, err := r.ReadAt(buf[:n], pos); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			return pos + int64(i) + 1, nil
		}
	}
	return 0, nil
}
