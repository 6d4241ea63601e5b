package transpile

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/go-analyze/bulk"
)

// SourceUnit is one compiled file: its path, AST root and immutable original text.
type SourceUnit struct {
	// Path is the path the compiler reported for the file.
	Path string
	// Index is the compiler's global source index, the third component of every location in the file.
	Index int
	// AST is the root SourceUnit node.
	AST Node
	// Original is the file text as supplied to the compiler.
	Original string
}

// TransformOptions configures a Transform.
type TransformOptions struct {
	// Exclude matches files which are readable by passes but never transformed nor returned from Results.
	Exclude func(path string) bool
}

type committedEdit struct {
	Transformation
	seq uint64
}

type fileState struct {
	unit     *SourceUnit
	excluded bool
	edits    []committedEdit // in commit order, seq ascending
	memoMu   sync.Mutex
	memo     map[int]string // computed payload text by edit index
}

// window returns how many of the file's edits were committed before the given sequence number.
func (fs *fileState) window(before uint64) int {
	return sort.Search(len(fs.edits), func(i int) bool {
		return fs.edits[i].seq >= before
	})
}

type declaration struct {
	node Node
	unit *SourceUnit
}

// Transform owns the compiled sources and accumulates the edits of successive passes. Edits are always
// expressed in original coordinates; current text is reconstructed on demand.
type Transform struct {
	files   map[string]*fileState
	order   []string // sorted file paths
	byIndex map[int]*fileState
	decls   map[int]declaration
	seq     uint64 // next commit sequence number
}

// NewTransform builds the source unit set from the compiler output, recovering each file's text from the
// compiler input.
func NewTransform(input *SolcInput, output *SolcOutput, opts TransformOptions) (*Transform, error) {
	if input == nil || output == nil {
		return nil, fmt.Errorf("compiler input and output are required")
	}
	t := &Transform{
		files:   make(map[string]*fileState, len(output.Sources)),
		byIndex: make(map[int]*fileState, len(output.Sources)),
		decls:   make(map[int]declaration),
	}
	for path, src := range output.Sources {
		in, ok := input.Sources[path]
		if !ok {
			return nil, fmt.Errorf("source %s missing from compiler input", path)
		} else if src.AST == nil {
			return nil, fmt.Errorf("source %s has no AST in compiler output", path)
		}
		if _, dup := t.byIndex[src.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate source index %d for %s", ErrMalformedLocation, src.ID, path)
		}
		fs := &fileState{
			unit: &SourceUnit{
				Path:     path,
				Index:    src.ID,
				AST:      src.AST,
				Original: in.Content,
			},
			excluded: opts.Exclude != nil && opts.Exclude(path),
			memo:     make(map[int]string),
		}
		t.files[path] = fs
		t.byIndex[src.ID] = fs
		for n := range Walk(src.AST) {
			if id := n.ID(); id >= 0 && n.Type() != "" {
				t.decls[id] = declaration{node: n, unit: fs.unit}
			}
		}
	}
	t.order = bulk.MapKeysSlice(t.files)
	slices.Sort(t.order)
	return t, nil
}

// Units returns every source unit, including excluded ones, sorted by path.
func (t *Transform) Units() []*SourceUnit {
	units := make([]*SourceUnit, len(t.order))
	for i, path := range t.order {
		units[i] = t.files[path].unit
	}
	return units
}

// Excluded reports whether the file at path is excluded from transformation.
func (t *Transform) Excluded(path string) bool {
	fs, ok := t.files[path]
	return ok && fs.excluded
}

// Apply runs the pass over every included source unit, in path order. The pass's edits become visible to
// reads only after the pass drained for all files; if the pass fails nothing is committed.
func (t *Transform) Apply(pass Transformer) error {
	pending := make(map[string][]Transformation)
	for _, path := range t.order {
		fs := t.files[path]
		if fs.excluded {
			continue
		}
		tools := &Tools{Unit: fs.unit, OriginalSource: fs.unit.Original, t: t}
		for tr, err := range pass(fs.unit, tools) {
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if tr.Start < 0 || tr.Length < 0 || tr.End() > len(fs.unit.Original) {
				return fmt.Errorf("%s: %w: %q %s exceeds length %d",
					path, ErrInvalidRange, tr.Kind, tr.Range, len(fs.unit.Original))
			}
			pending[path] = append(pending[path], tr)
		}
	}
	for _, path := range t.order {
		fs := t.files[path]
		for _, tr := range pending[path] {
			fs.edits = append(fs.edits, committedEdit{Transformation: tr, seq: t.seq})
			t.seq++
		}
	}
	return nil
}

// Resolve decodes a compiler location into its source unit and byte range.
func (t *Transform) Resolve(src string) (*SourceUnit, Range, error) {
	fs, r, err := t.locate(src)
	if err != nil {
		return nil, Range{}, err
	}
	return fs.unit, r, nil
}

func (t *Transform) locate(src string) (*fileState, Range, error) {
	s, err := ParseSrc(src)
	if err != nil {
		return nil, Range{}, err
	}
	fs, ok := t.byIndex[s.FileIndex]
	if !ok {
		return nil, Range{}, fmt.Errorf("%w: %q references unknown file index %d", ErrMalformedLocation, src, s.FileIndex)
	}
	r := s.Range()
	if r.End() > len(fs.unit.Original) {
		return nil, Range{}, fmt.Errorf("%w: %q exceeds %s length %d", ErrMalformedLocation, src, fs.unit.Path, len(fs.unit.Original))
	}
	return fs, r, nil
}

// Read returns the current text of a node: its original text with every committed edit inside it applied.
func (t *Transform) Read(node Node) (string, error) {
	fs, r, err := t.locate(node.Src())
	if err != nil {
		return "", err
	}
	return t.compose(fs, r, t.seq, Range{})
}

// ReadRange returns the current text of a range in the named file.
func (t *Transform) ReadRange(path string, r Range) (string, error) {
	fs, ok := t.files[path]
	if !ok {
		return "", fmt.Errorf("unknown source %s", path)
	}
	if r.Start < 0 || r.Length < 0 || r.End() > len(fs.unit.Original) {
		return "", fmt.Errorf("%s: %w: %s", path, ErrInvalidRange, r)
	}
	return t.compose(fs, r, t.seq, Range{})
}

// Results materializes the final text of every included file. Files are composed concurrently; no edit is
// committed during materialization, so composition only reads shared state.
func (t *Transform) Results() (map[string]string, error) {
	results := make(map[string]string, len(t.order))
	var mu sync.Mutex
	errGroup := ErrGroupLimitCPU()
	for _, path := range t.order {
		fs := t.files[path]
		if fs.excluded {
			continue
		}
		errGroup.Go(func() error {
			text, err := t.compose(fs, Range{Length: len(fs.unit.Original)}, t.seq, Range{})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[path] = text
			return nil
		})
	}
	if err := errGroup.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Committed returns the number of edits committed so far.
func (t *Transform) Committed() int {
	return int(t.seq)
}

// EditCounts returns the number of committed edits per kind across included files.
func (t *Transform) EditCounts() map[string]int {
	var kinds []string
	for _, path := range t.order {
		for _, e := range t.files[path].edits {
			kinds = append(kinds, e.Kind)
		}
	}
	return bulk.SliceToCounts(kinds)
}

// Tools is handed to each pass invocation.
type Tools struct {
	// Unit is the source unit being transformed.
	Unit *SourceUnit
	// OriginalSource is the unit's original text.
	OriginalSource string

	t *Transform
}

// Read returns the current text of any node, in any file, reflecting every committed edit.
func (tl *Tools) Read(node Node) (string, error) {
	return tl.t.Read(node)
}

// ReadRange returns the current text of a range in the unit being transformed.
func (tl *Tools) ReadRange(r Range) (string, error) {
	return tl.t.ReadRange(tl.Unit.Path, r)
}

// ReadOriginal returns a node's text before any edits.
func (tl *Tools) ReadOriginal(node Node) (string, error) {
	fs, r, err := tl.t.locate(node.Src())
	if err != nil {
		return "", err
	}
	return r.Slice(fs.unit.Original), nil
}

// Resolve decodes a compiler location.
func (tl *Tools) Resolve(src string) (*SourceUnit, Range, error) {
	return tl.t.Resolve(src)
}

// Declaration returns the node with the given id, and the unit declaring it.
func (tl *Tools) Declaration(id int) (Node, *SourceUnit, bool) {
	d, ok := tl.t.decls[id]
	return d.node, d.unit, ok
}

// Contract returns the contract definition with the given id.
func (tl *Tools) Contract(id int) (Node, bool) {
	d, ok := tl.t.decls[id]
	if !ok || d.node.Type() != "ContractDefinition" {
		return nil, false
	}
	return d.node, true
}

// UnitByPath returns the source unit for a path.
func (tl *Tools) UnitByPath(path string) (*SourceUnit, bool) {
	fs, ok := tl.t.files[path]
	if !ok {
		return nil, false
	}
	return fs.unit, true
}

// Units returns every source unit of the compilation, sorted by path.
func (tl *Tools) Units() []*SourceUnit {
	return tl.t.Units()
}

// IsExcluded reports whether the file at path is excluded from transformation.
func (tl *Tools) IsExcluded(path string) bool {
	return tl.t.Excluded(path)
}
