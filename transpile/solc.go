package transpile

import (
	"encoding/json"
	"iter"
	"maps"
	"slices"
	"strconv"
)

// SolcInput is the subset of the compiler standard-JSON input needed to recover source text.
type SolcInput struct {
	Language string                     `json:"language"`
	Sources  map[string]SolcInputSource `json:"sources"`
	// Settings is carried through untouched so the input can be handed back to the compiler.
	Settings json.RawMessage `json:"settings,omitempty"`
}

// SolcInputSource holds the literal text of one file.
type SolcInputSource struct {
	Content string `json:"content"`
}

// SolcOutput is the subset of the compiler standard-JSON output holding the AST forest.
type SolcOutput struct {
	Contracts map[string]map[string]json.RawMessage `json:"contracts,omitempty"`
	Sources   map[string]SolcOutputSource            `json:"sources"`
	Errors    []SolcError                            `json:"errors,omitempty"`
}

// SolcOutputSource pairs a file's global source index with its AST root.
type SolcOutputSource struct {
	ID  int  `json:"id"`
	AST Node `json:"ast"`
}

// SolcError is a diagnostic reported by the compiler.
type SolcError struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	FormattedMessage string `json:"formattedMessage"`
	Message          string `json:"message"`
}

// Node is a decoded compiler AST object. Every node has "id", "nodeType" and "src" keys, the remaining keys
// depend on the node type.
type Node map[string]any

// ID returns the compiler assigned node id, or -1 if absent.
func (n Node) ID() int {
	if id, ok := n.Int("id"); ok {
		return id
	}
	return -1
}

// Type returns the node type, for example "ContractDefinition".
func (n Node) Type() string {
	return n.Str("nodeType")
}

// Src returns the raw location string.
func (n Node) Src() string {
	return n.Str("src")
}

// Name returns the "name" field.
func (n Node) Name() string {
	return n.Str("name")
}

// Str returns a string field, or "" if absent or of another type.
func (n Node) Str(key string) string {
	s, _ := n[key].(string)
	return s
}

// Bool returns a boolean field, false if absent.
func (n Node) Bool(key string) bool {
	b, _ := n[key].(bool)
	return b
}

// Int returns an integer field.
func (n Node) Int(key string) (int, bool) {
	return toInt(n[key])
}

// Ints returns an integer list field.
func (n Node) Ints(key string) []int {
	list, _ := n[key].([]any)
	if list == nil {
		if ints, ok := n[key].([]int); ok {
			return ints
		}
		return nil
	}
	result := make([]int, 0, len(list))
	for _, v := range list {
		if i, ok := toInt(v); ok {
			result = append(result, i)
		}
	}
	return result
}

// Has reports if the key is present with a non-null value.
func (n Node) Has(key string) bool {
	v, ok := n[key]
	return ok && v != nil
}

// Child returns a single child node field, or nil.
func (n Node) Child(key string) Node {
	return asNode(n[key])
}

// Children returns a node list field. Null and absent lists both return nil.
func (n Node) Children(key string) []Node {
	switch list := n[key].(type) {
	case []Node:
		return list
	case []any:
		result := make([]Node, 0, len(list))
		for _, v := range list {
			if child := asNode(v); child != nil {
				result = append(result, child)
			}
		}
		return result
	}
	return nil
}

// ReferencedDeclaration returns the id a reference node points to.
func (n Node) ReferencedDeclaration() (int, bool) {
	return n.Int("referencedDeclaration")
}

func asNode(v any) Node {
	switch c := v.(type) {
	case Node:
		return c
	case map[string]any:
		return c
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	}
	return 0, false
}

// Walk visits root and every node below it, depth first. Keys are visited in sorted order so the traversal
// is deterministic.
func Walk(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walkNode(root, yield)
	}
}

func walkNode(n Node, yield func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !yield(n) {
		return false
	}
	for _, k := range slices.Sorted(maps.Keys(n)) {
		switch v := n[k].(type) {
		case map[string]any:
			if !walkNode(v, yield) {
				return false
			}
		case Node:
			if !walkNode(v, yield) {
				return false
			}
		case []Node:
			for _, c := range v {
				if !walkNode(c, yield) {
					return false
				}
			}
		case []any:
			for _, e := range v {
				if c := asNode(e); c != nil {
					if !walkNode(c, yield) {
						return false
					}
				}
			}
		}
	}
	return true
}

// FindAll yields every node below root (inclusive) with one of the given node types, in source order.
func FindAll(root Node, nodeTypes ...string) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		type located struct {
			node  Node
			start int
		}
		var found []located
		for n := range Walk(root) {
			if !slices.Contains(nodeTypes, n.Type()) {
				continue
			}
			start := -1
			if src, err := ParseSrc(n.Src()); err == nil {
				start = src.Start
			}
			found = append(found, located{node: n, start: start})
		}
		slices.SortStableFunc(found, func(a, b located) int {
			return a.start - b.start
		})
		for _, f := range found {
			if !yield(f.node) {
				return
			}
		}
	}
}

// constructorOf returns the contract's constructor definition, or nil.
func constructorOf(contract Node) Node {
	for _, n := range contract.Children("nodes") {
		if n.Type() != "FunctionDefinition" {
			continue
		}
		if n.Str("kind") == "constructor" || n.Bool("isConstructor") {
			return n
		}
	}
	return nil
}

// constructorParams returns the parameter declarations of the contract's constructor, nil if none.
func constructorParams(contract Node) []Node {
	ctor := constructorOf(contract)
	if ctor == nil {
		return nil
	}
	return ctor.Child("parameters").Children("parameters")
}

// isInstantiable reports whether a contract definition produces initializer functions. Interfaces and
// libraries do not; abstract contracts do, since derived contracts call into their initializers.
func isInstantiable(contract Node) bool {
	return contract.Str("contractKind") == "contract"
}
