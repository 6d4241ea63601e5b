package transpile

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

var immutableRe = regexp.MustCompile(`\s+immutable\b`)

// contractStateVars yields the state variables of every instantiable contract in the unit.
func contractStateVars(unit *SourceUnit) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for contract := range FindAll(unit.AST, "ContractDefinition") {
			if !isInstantiable(contract) {
				continue
			}
			for _, n := range contract.Children("nodes") {
				if n.Type() == "VariableDeclaration" && n.Bool("stateVariable") && !yield(n) {
					return
				}
			}
		}
	}
}

// RemoveStateVarInits removes the initial value of non-constant state variables. The values are assigned by
// the generated unchained initializer instead.
func RemoveStateVarInits(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for v := range contractStateVars(unit) {
			if !v.Has("value") || v.Bool("constant") || v.Str("mutability") == "constant" {
				continue
			}
			declRange, err := Bounds(v)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			valueRange, err := Bounds(v.Child("value"))
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if valueRange.Start < declRange.Start || valueRange.End() > len(tools.OriginalSource) {
				yield(Transformation{}, fmt.Errorf("%w: value of %s outside its declaration", ErrMalformedLocation, v.Name()))
				return
			}
			head := tools.OriginalSource[declRange.Start:valueRange.Start]
			eq := strings.LastIndexByte(head, '=')
			if eq < 0 {
				yield(Transformation{}, fmt.Errorf("assignment of state variable %s not found", v.Name()))
				return
			}
			start := declRange.Start + len(strings.TrimRight(head[:eq], " \t\r\n"))
			if !yield(Remove(Range{Start: start, Length: valueRange.End() - start}, KindRemoveStateVarInit), nil) {
				return
			}
		}
	}
}

// RemoveImmutable drops the immutable keyword, immutable variables can not be assigned in an initializer.
func RemoveImmutable(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for v := range contractStateVars(unit) {
			if v.Str("mutability") != "immutable" {
				continue
			}
			r, err := Bounds(v)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			loc := immutableRe.FindStringIndex(r.Slice(tools.OriginalSource))
			if loc == nil {
				continue
			}
			if !yield(Remove(Range{Start: r.Start + loc[0], Length: loc[1] - loc[0]}, KindRemoveImmutable), nil) {
				return
			}
		}
	}
}
