package blobstore

import (
	"bytes"
	"io"
)

// seekable returns r unchanged when it can already seek, otherwise buffers
// it. size is a capacity hint; a negative size means unknown.
func seekable(r io.Reader, size int64) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}
