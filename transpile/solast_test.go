package transpile

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// solFile builds a compiler style AST for a source text, locating node ranges by searching the text.
type solFile struct {
	t     *testing.T
	path  string
	index int
	text  string
	ids   *int
	nodes []Node // top level nodes in source order
}

type solProject struct {
	t      *testing.T
	nextID int
	files  []*solFile
}

func newSolProject(t *testing.T) *solProject {
	t.Helper()
	return &solProject{t: t, nextID: 1}
}

func (p *solProject) file(path, text string) *solFile {
	f := &solFile{t: p.t, path: path, index: len(p.files), text: text, ids: &p.nextID}
	p.files = append(p.files, f)
	return f
}

func (p *solProject) compile() (*SolcInput, *SolcOutput) {
	input := &SolcInput{Language: "Solidity", Sources: make(map[string]SolcInputSource)}
	output := &SolcOutput{Sources: make(map[string]SolcOutputSource)}
	for _, f := range p.files {
		input.Sources[f.path] = SolcInputSource{Content: f.text}
		output.Sources[f.path] = SolcOutputSource{ID: f.index, AST: f.unit()}
	}
	return input, output
}

func (p *solProject) transform(exclude ...string) *Transform {
	input, output := p.compile()
	tr, err := NewTransform(input, output, TransformOptions{Exclude: func(path string) bool {
		for _, e := range exclude {
			if e == path {
				return true
			}
		}
		return false
	}})
	require.NoError(p.t, err)
	return tr
}

func (f *solFile) unit() Node {
	nodes := make([]any, len(f.nodes))
	for i, n := range f.nodes {
		nodes[i] = n
	}
	return Node{
		"id":           f.id(),
		"nodeType":     "SourceUnit",
		"src":          f.src(Range{Length: len(f.text)}),
		"absolutePath": f.path,
		"nodes":        nodes,
	}
}

func (f *solFile) id() int {
	id := *f.ids
	*f.ids++
	return id
}

func (f *solFile) src(r Range) string {
	return strconv.Itoa(r.Start) + ":" + strconv.Itoa(r.Length) + ":" + strconv.Itoa(f.index)
}

// find returns the range of the first occurrence of sub at or after from.
func (f *solFile) find(sub string, from int) Range {
	f.t.Helper()
	i := strings.Index(f.text[from:], sub)
	require.GreaterOrEqual(f.t, i, 0, "%q not found after %d", sub, from)
	return Range{Start: from + i, Length: len(sub)}
}

// block returns the range from the first occurrence of prefix after from, through the brace closing the first
// block after it.
func (f *solFile) block(prefix string, from int) Range {
	f.t.Helper()
	start := f.find(prefix, from).Start
	open := strings.IndexByte(f.text[start:], '{')
	require.GreaterOrEqual(f.t, open, 0)
	depth := 0
	for i := start + open; i < len(f.text); i++ {
		switch f.text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Range{Start: start, Length: i + 1 - start}
			}
		}
	}
	f.t.Fatalf("unbalanced block for %q", prefix)
	return Range{}
}

func (f *solFile) node(nodeType string, r Range, fields ...any) Node {
	n := Node{"id": f.id(), "nodeType": nodeType, "src": f.src(r)}
	for i := 0; i+1 < len(fields); i += 2 {
		n[fields[i].(string)] = fields[i+1]
	}
	return n
}

func bounds(t *testing.T, n Node) Range {
	t.Helper()
	r, err := Bounds(n)
	require.NoError(t, err)
	return r
}

func appendChild(parent Node, key string, child Node) {
	list, _ := parent[key].([]any)
	parent[key] = append(list, child)
}

func (f *solFile) pragma() Node {
	n := f.node("PragmaDirective", f.match(regexp.MustCompile(`pragma [^;]*;`)))
	f.nodes = append(f.nodes, n)
	return n
}

func (f *solFile) match(re *regexp.Regexp) Range {
	f.t.Helper()
	loc := re.FindStringIndex(f.text)
	require.NotNil(f.t, loc, "pattern %s not found", re)
	return Range{Start: loc[0], Length: loc[1] - loc[0]}
}

// importFile adds an import directive of the form `import "<file>";` or `import {A, B as C} from "<file>";`.
func (f *solFile) importFile(file string, target *solFile, aliases ...[2]string) Node {
	f.t.Helper()
	re := regexp.MustCompile(`import [^;]*"` + regexp.QuoteMeta(file) + `"[^;]*;`)
	r := f.match(re)
	n := f.node("ImportDirective", r, "file", file, "absolutePath", target.path, "unitAlias", "")
	var symbols []any
	for _, a := range aliases {
		foreign := f.node("Identifier", f.find(a[0], r.Start), "name", a[0])
		alias := map[string]any{"foreign": foreign, "local": nil}
		if a[1] != "" {
			alias["local"] = a[1]
		}
		symbols = append(symbols, alias)
	}
	n["symbolAliases"] = symbols
	f.nodes = append(f.nodes, n)
	return n
}

// contract adds a contract definition named name, with the given kind.
func (f *solFile) contract(kind, name string) Node {
	f.t.Helper()
	r := f.block(kind+" "+name+" ", 0)
	nameRange := f.find(name, r.Start+len(kind))
	n := f.node("ContractDefinition", r,
		"name", name,
		"contractKind", kind,
		"nameLocation", f.src(nameRange),
		"baseContracts", []any{},
		"nodes", []any{})
	n["linearizedBaseContracts"] = []any{float64(n.ID())}
	f.nodes = append(f.nodes, n)
	return n
}

// linearize sets the linearization of c, most derived first, c itself is prepended.
func linearize(c Node, bases ...Node) {
	ids := []any{float64(c.ID())}
	for _, b := range bases {
		ids = append(ids, float64(b.ID()))
	}
	c["linearizedBaseContracts"] = ids
}

func (f *solFile) identifierPath(name string, from int, decl Node) Node {
	return f.node("IdentifierPath", f.find(name, from), "name", name, "referencedDeclaration", float64(decl.ID()))
}

func (f *solFile) identifier(name string, from int, decl Node) Node {
	return f.node("Identifier", f.find(name, from), "name", name, "referencedDeclaration", float64(decl.ID()))
}

// literals returns expression nodes for each argument text, searched in order after from.
func (f *solFile) literals(from int, args []string) []any {
	nodes := make([]any, len(args))
	for i, a := range args {
		r := f.find(a, from)
		nodes[i] = f.node("Literal", r, "value", a)
		from = r.End()
	}
	return nodes
}

// inherit adds base to the inheritance list of c. Without args the specifier has no argument list.
func (f *solFile) inherit(c, base Node, args ...string) Node {
	f.t.Helper()
	cr := bounds(f.t, c)
	headEnd := cr.Start + strings.IndexByte(f.text[cr.Start:], '{')
	name := f.identifierPath(base.Name(), cr.Start+len("contract ")+len(c.Name()), base)
	nr := bounds(f.t, name)
	require.Less(f.t, nr.End(), headEnd)
	specRange := nr
	spec := f.node("InheritanceSpecifier", specRange, "baseName", name, "arguments", nil)
	if len(args) > 0 {
		closing := strings.IndexByte(f.text[nr.End():], ')')
		specRange.Length = nr.End() + closing + 1 - nr.Start
		spec["src"] = f.src(specRange)
		spec["arguments"] = f.literals(nr.End(), args)
	}
	appendChild(c, "baseContracts", spec)
	return spec
}

// constructor adds the constructor found inside c, declaring the given parameter names.
func (f *solFile) constructor(c Node, params ...string) Node {
	f.t.Helper()
	cr := bounds(f.t, c)
	r := f.block("constructor(", cr.Start)
	paramsRange := f.find("(", r.Start)
	paramsRange.Length = strings.IndexByte(f.text[paramsRange.Start:], ')') + 1
	var decls []any
	from := paramsRange.Start
	for _, p := range params {
		pr := f.find(p, from)
		decls = append(decls, f.node("VariableDeclaration", pr, "name", p))
		from = pr.End()
	}
	bodyStart := strings.IndexByte(f.text[paramsRange.End():], '{') + paramsRange.End()
	body := f.node("Block", Range{Start: bodyStart, Length: r.End() - bodyStart}, "statements", []any{})
	ctor := f.node("FunctionDefinition", r,
		"name", "",
		"kind", "constructor",
		"parameters", f.node("ParameterList", paramsRange, "parameters", decls),
		"modifiers", []any{},
		"body", body)
	appendChild(c, "nodes", ctor)
	return ctor
}

// modifier adds a base constructor invocation to the constructor header.
func (f *solFile) modifier(ctor, base Node, args ...string) Node {
	f.t.Helper()
	params := bounds(f.t, ctor.Child("parameters"))
	name := f.identifierPath(base.Name(), params.End(), base)
	nr := bounds(f.t, name)
	r := nr
	mod := f.node("ModifierInvocation", r, "modifierName", name, "arguments", nil)
	if len(args) > 0 {
		closing := strings.IndexByte(f.text[nr.End():], ')')
		r.Length = nr.End() + closing + 1 - nr.Start
		mod["src"] = f.src(r)
		mod["arguments"] = f.literals(nr.End(), args)
	}
	appendChild(ctor, "modifiers", mod)
	return mod
}

// stateVar adds a state variable declared by decl (without the trailing semicolon) to c. The value is
// searched after the assignment.
func (f *solFile) stateVar(c Node, name, decl, value string) Node {
	f.t.Helper()
	r := f.find(decl, bounds(f.t, c).Start)
	v := f.node("VariableDeclaration", r,
		"name", name,
		"stateVariable", true,
		"constant", false,
		"mutability", "mutable")
	if value != "" {
		eq := f.find("=", r.Start)
		v["value"] = f.node("Literal", f.find(value, eq.End()), "value", value)
	}
	appendChild(c, "nodes", v)
	return v
}
