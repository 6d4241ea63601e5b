package transpile

import (
	"crypto/sha1"
	"runtime"

	"github.com/mtraver/base91"
	"golang.org/x/sync/errgroup"
)

const ErrorLogPrefix = "!! "

// ErrGroupLimitCPU returns an errgroup limited to NumCPU.
func ErrGroupLimitCPU() *errgroup.Group {
	errGroup := &errgroup.Group{}
	errGroup.SetLimit(runtime.NumCPU())
	return errGroup
}

// digestKey returns a printable key for the concatenated parts. Parts are length prefixed so that different
// splits of the same bytes produce different keys.
func digestKey(parts ...[]byte) string {
	h := sha1.New()
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		_, _ = h.Write(size[:])
		_, _ = h.Write(p)
	}
	return base91.StdEncoding.EncodeToString(h.Sum(nil))
}
