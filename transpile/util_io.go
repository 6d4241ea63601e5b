package transpile

import (
	"bytes"
	"io"
)

// newLimitedRollingBufferWriter returns a writer keeping roughly the last sizeLimit bytes written to buf.
func newLimitedRollingBufferWriter(buf *bytes.Buffer, sizeLimit int) io.Writer {
	return &limitedRollingBuffer{
		buf:      buf,
		maxBytes: sizeLimit,
	}
}

type limitedRollingBuffer struct {
	buf      *bytes.Buffer
	maxBytes int
}

func (lb *limitedRollingBuffer) Write(p []byte) (n int, err error) {
	lb.buf.Write(p)
	if lb.buf.Len() > lb.maxBytes {
		current := lb.buf.Bytes()
		trimmed := current[len(current)-(lb.maxBytes/2):]
		lb.buf.Reset()
		lb.buf.WriteString("...")
		lb.buf.Write(trimmed)
	}
	return len(p), nil
}
