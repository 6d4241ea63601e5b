package transpile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// scopedHelper is the ReadHelper given to a computed payload. It observes only edits committed before the
// payload's own edit, in every file.
type scopedHelper struct {
	t      *Transform
	fs     *fileState
	owner  Range
	before uint64
}

// outerRange returns the span whose edge insertions are materialized outside a read of fs.
func (h *scopedHelper) outerRange(fs *fileState) Range {
	if fs != h.fs {
		return Range{}
	}
	return h.owner
}

func (h *scopedHelper) Read(node Node) (string, error) {
	fs, r, err := h.t.locate(node.Src())
	if err != nil {
		return "", err
	}
	return h.t.compose(fs, r, h.before, h.outerRange(fs))
}

func (h *scopedHelper) ReadRange(r Range) (string, error) {
	if r.Start < 0 || r.Length < 0 || r.End() > len(h.fs.unit.Original) {
		return "", fmt.Errorf("%s: %w: %s", h.fs.unit.Path, ErrInvalidRange, r)
	}
	return h.t.compose(h.fs, r, h.before, h.owner)
}

// covers reports whether edit a swallows edit b when both are materialized. A non-empty edit covers any
// edit inside it, an insertion only when strictly inside. Of two edits with identical non-empty ranges, the
// later one covers the earlier.
func covers(a, b Range, aLater bool) bool {
	if a.Empty() {
		return false
	} else if b.Empty() {
		return a.Start < b.Start && b.Start < a.End()
	} else if !a.Contains(b) {
		return false
	}
	return a != b || aLater
}

// compose reconstructs the current text of r using the edits committed before the given sequence number.
// When r lies within the non-empty outer range, insertions on the edges of outer are left out: they stay in
// front of or behind the edit owning outer once materialized.
func (t *Transform) compose(fs *fileState, r Range, before uint64, outer Range) (string, error) {
	edits := fs.edits[:fs.window(before)]
	edgeOwned := !outer.Empty() && outer.Contains(r)

	var contained []int
	for i, e := range edits {
		switch {
		case e.Empty():
			if edgeOwned && (e.Start == outer.Start || e.Start == outer.End()) {
				continue
			} else if r.Start <= e.Start && e.Start <= r.End() {
				contained = append(contained, i)
			}
		case r.Contains(e.Range):
			contained = append(contained, i)
		case e.Overlaps(r) && !e.Contains(r):
			return "", fmt.Errorf("%s: %w: read %s straddles %q edit %s",
				fs.unit.Path, ErrUnreadableRange, r, e.Kind, e.Range)
		}
	}
	if len(contained) == 0 {
		return r.Slice(fs.unit.Original), nil
	}
	if err := checkConflicts(fs, contained); err != nil {
		return "", err
	}

	top := make([]int, 0, len(contained))
	for _, i := range contained {
		covered := false
		for _, j := range contained {
			if i != j && covers(edits[j].Range, edits[i].Range, j > i) {
				covered = true
				break
			}
		}
		if !covered {
			top = append(top, i)
		}
	}
	// insertions sit before the text starting at their offset, ties otherwise keep commit order
	slices.SortStableFunc(top, func(a, b int) int {
		ea, eb := edits[a], edits[b]
		if ea.Start != eb.Start {
			return ea.Start - eb.Start
		} else if ea.Empty() != eb.Empty() {
			if ea.Empty() {
				return -1
			}
			return 1
		}
		return a - b
	})

	var sb strings.Builder
	cursor := r.Start
	for _, i := range top {
		e := edits[i]
		sb.WriteString(fs.unit.Original[cursor:e.Start])
		text, err := t.resolve(fs, i)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		cursor = e.End()
	}
	sb.WriteString(fs.unit.Original[cursor:r.End()])
	return sb.String(), nil
}

// checkConflicts fails if any two non-empty edits overlap without one containing the other.
func checkConflicts(fs *fileState, indexes []int) error {
	spans := bulk.SliceFilterInto(make([]int, 0, len(indexes)), func(i int) bool {
		return !fs.edits[i].Empty()
	}, indexes)
	slices.SortStableFunc(spans, func(a, b int) int {
		return fs.edits[a].Start - fs.edits[b].Start
	})
	for x, i := range spans {
		a := fs.edits[i]
		for _, j := range spans[x+1:] {
			b := fs.edits[j]
			if b.Start >= a.End() {
				break
			} else if a.Contains(b.Range) || b.Contains(a.Range) {
				continue
			}
			first, second := a, b
			if j < i {
				first, second = b, a
			}
			return &ConflictError{Path: fs.unit.Path, First: first.Transformation, Second: second.Transformation}
		}
	}
	return nil
}

// resolve returns the payload text of the edit at index i. Computed payloads are evaluated once, the edits
// visible to them never change after commit.
func (t *Transform) resolve(fs *fileState, i int) (string, error) {
	e := fs.edits[i]
	if !e.Payload.IsComputed() {
		return e.Payload.text, nil
	}
	fs.memoMu.Lock()
	text, ok := fs.memo[i]
	fs.memoMu.Unlock()
	if ok {
		return text, nil
	}

	text, err := e.Payload.compute(&scopedHelper{t: t, fs: fs, owner: e.Range, before: e.seq})
	if err != nil {
		return "", fmt.Errorf("%s: %q edit %s: %w", fs.unit.Path, e.Kind, e.Range, err)
	}
	fs.memoMu.Lock()
	fs.memo[i] = text
	fs.memoMu.Unlock()
	return text, nil
}
