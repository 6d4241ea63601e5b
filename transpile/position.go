package transpile

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a half-open byte span [Start, Start+Length) over the original text of one source file.
type Range struct {
	Start  int
	Length int
}

// End returns the exclusive end offset.
func (r Range) End() int {
	return r.Start + r.Length
}

// Empty reports if the range is a pure insertion point.
func (r Range) Empty() bool {
	return r.Length == 0
}

// Contains reports whether o lies within r. An insertion point at either boundary of r is contained.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End() <= r.End()
}

// Overlaps reports whether the two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return !r.Empty() && !o.Empty() && r.Start < o.End() && o.Start < r.End()
}

// Slice returns the portion of text covered by the range.
func (r Range) Slice(text string) string {
	return text[r.Start:r.End()]
}

func (r Range) String() string {
	return "[" + strconv.Itoa(r.Start) + "," + strconv.Itoa(r.End()) + ")"
}

// Src is a decoded compiler location of the form "start:length:fileIndex".
type Src struct {
	Start     int
	Length    int
	FileIndex int
}

// Range returns the byte range portion of the location.
func (s Src) Range() Range {
	return Range{Start: s.Start, Length: s.Length}
}

// ParseSrc decodes a compiler location string.
func ParseSrc(src string) (Src, error) {
	parts := strings.Split(src, ":")
	if len(parts) != 3 {
		return Src{}, fmt.Errorf("%w: %q", ErrMalformedLocation, src)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Src{}, fmt.Errorf("%w: %q: %v", ErrMalformedLocation, src, err)
		}
		vals[i] = v
	}
	if vals[0] < 0 || vals[1] < 0 || vals[2] < 0 {
		return Src{}, fmt.Errorf("%w: %q has negative component", ErrMalformedLocation, src)
	}
	return Src{Start: vals[0], Length: vals[1], FileIndex: vals[2]}, nil
}

// Bounds returns the byte range of any AST node carrying a location.
func Bounds(node Node) (Range, error) {
	if node == nil {
		return Range{}, fmt.Errorf("%w: nil node", ErrMalformedLocation)
	}
	src, err := ParseSrc(node.Src())
	if err != nil {
		return Range{}, err
	}
	return src.Range(), nil
}

