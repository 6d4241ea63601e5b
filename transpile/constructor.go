package transpile

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// initializer holds the pieces of the generated "__X_init" and "__X_init_unchained" function pair.
type initializer struct {
	name      string
	params    string
	argNames  []string
	baseCalls []string
	assigns   []string
	body      string
}

// render produces the generated functions. When standalone the text is inserted directly after the contract's
// opening brace, otherwise it replaces a constructor that is already indented in place.
func (in *initializer) render(standalone bool) string {
	var sb strings.Builder
	if standalone {
		sb.WriteString("\n" + indentUnit)
	}
	fmt.Fprintf(&sb, "function __%s_init(%s) internal initializer {\n", in.name, in.params)
	for _, call := range in.baseCalls {
		sb.WriteString(indentUnit + indentUnit + call + "\n")
	}
	fmt.Fprintf(&sb, "%s%s__%s_init_unchained(%s);\n", indentUnit, indentUnit, in.name, strings.Join(in.argNames, ", "))
	sb.WriteString(indentUnit + "}\n\n" + indentUnit)
	fmt.Fprintf(&sb, "function __%s_init_unchained(%s) internal initializer {\n", in.name, in.params)
	for _, assign := range in.assigns {
		sb.WriteString(indentUnit + indentUnit + assign + "\n")
	}
	if in.body != "" {
		sb.WriteString(in.body + "\n")
	}
	sb.WriteString(indentUnit + "}")
	return sb.String()
}

// TransformConstructor replaces the constructor of every contract with an initializer function pair. Contracts
// without a constructor get the pair inserted at the top of their body. Base initializer arguments, state
// variable initial values and the constructor body are all read when the edit is materialized, so edits of
// earlier passes inside them are preserved.
func TransformConstructor(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for contract := range FindAll(unit.AST, "ContractDefinition") {
			if !isInstantiable(contract) {
				continue
			}
			tr, err := constructorTransformation(contract, tools)
			if !yield(tr, err) || err != nil {
				return
			}
		}
	}
}

func constructorTransformation(contract Node, tools *Tools) (Transformation, error) {
	name := contract.Name()
	stateVars := bulk.SliceFilter(func(n Node) bool {
		return n.Type() == "VariableDeclaration" && n.Bool("stateVariable") &&
			n.Has("value") && !n.Bool("constant") && n.Str("mutability") != "constant"
	}, contract.Children("nodes"))

	// fields shared by both modes, read at materialization time
	prepare := func(h ReadHelper) (*initializer, error) {
		calls, err := baseInitializerCalls(contract, tools, h)
		if err != nil {
			return nil, err
		}
		in := &initializer{name: name, baseCalls: calls}
		for _, v := range stateVars {
			value, err := h.Read(v.Child("value"))
			if err != nil {
				return nil, err
			}
			in.assigns = append(in.assigns, v.Name()+" = "+value+";")
		}
		return in, nil
	}

	ctor := constructorOf(contract)
	if ctor == nil {
		pos, err := contractBodyStart(contract, tools.OriginalSource)
		if err != nil {
			return Transformation{}, err
		}
		return Transformation{
			Range: Range{Start: pos},
			Kind:  KindTransformConstructor,
			Payload: Computed(func(h ReadHelper) (string, error) {
				in, err := prepare(h)
				if err != nil {
					return "", err
				}
				return in.render(true), nil
			}),
		}, nil
	}

	body := ctor.Child("body")
	if body == nil {
		return Transformation{}, fmt.Errorf("%w: constructor of %s", ErrMissingConstructorBody, name)
	}
	params := ctor.Child("parameters")
	if params == nil {
		return Transformation{}, fmt.Errorf("%w: constructor of %s has no parameter list", ErrMalformedLocation, name)
	}
	ctorRange, err := Bounds(ctor)
	if err != nil {
		return Transformation{}, err
	}
	argNames := bulk.SliceTransform(Node.Name, params.Children("parameters"))
	if slices.Contains(argNames, "") {
		return Transformation{}, fmt.Errorf("%w: constructor of %s", ErrUnnamedParameter, name)
	}
	return Transformation{
		Range: ctorRange,
		Kind:  KindTransformConstructor,
		Payload: Computed(func(h ReadHelper) (string, error) {
			in, err := prepare(h)
			if err != nil {
				return "", err
			}
			paramText, err := h.Read(params)
			if err != nil {
				return "", err
			}
			bodyText, err := h.Read(body)
			if err != nil {
				return "", err
			}
			in.params = stripDelimiters(paramText, '(', ')')
			in.argNames = argNames
			in.body = blockStatements(bodyText)
			return in.render(false), nil
		}),
	}, nil
}

// baseInitializerCalls returns the base initializer invocations for a contract, most-base first. Arguments
// are resolved walking the linearization most-derived first, so a base whose arguments were given by a more
// derived contract is invoked with those arguments and never resolved again further up the chain. At each
// level the inheritance specifier arguments take precedence over constructor modifier invocations. A base
// invoked by the constructor of an intermediate contract is left to that contract's initializer, since the
// arguments may reference the intermediate constructor's parameters. Bases declared in excluded files are
// not called.
func baseInitializerCalls(contract Node, tools *Tools, h ReadHelper) ([]string, error) {
	chain := contract.Ints("linearizedBaseContracts")
	args := make(map[int][]Node)
	delegated := make(map[int]bool)
	resolved := func(id int) bool {
		_, ok := args[id]
		return ok || delegated[id]
	}
	for _, id := range chain {
		level, ok := tools.Contract(id)
		if !ok {
			continue
		}
		for _, spec := range level.Children("baseContracts") {
			target, ok := spec.Child("baseName").ReferencedDeclaration()
			if !ok || resolved(target) {
				continue
			} else if spec.Has("arguments") {
				args[target] = spec.Children("arguments")
			}
		}
		ctor := constructorOf(level)
		if ctor == nil {
			continue
		}
		for _, mod := range ctor.Children("modifiers") {
			target, ok := mod.Child("modifierName").ReferencedDeclaration()
			if !ok || resolved(target) {
				continue
			} else if _, isContract := tools.Contract(target); !isContract {
				continue // a regular modifier
			} else if id != contract.ID() {
				delegated[target] = true
			} else {
				args[target] = mod.Children("arguments")
			}
		}
	}

	var calls []string
	for i := len(chain) - 1; i >= 0; i-- {
		id := chain[i]
		if id == contract.ID() || delegated[id] {
			continue
		}
		base, baseUnit, ok := tools.Declaration(id)
		if !ok || base.Type() != "ContractDefinition" {
			return nil, fmt.Errorf("base contract %d of %s not found", id, contract.Name())
		} else if !isInstantiable(base) || tools.IsExcluded(baseUnit.Path) {
			continue // excluded bases keep their constructor and declare no initializer
		}
		baseArgs, given := args[id]
		if !given && len(constructorParams(base)) > 0 {
			continue // supplied by a more derived contract
		}
		argText := make([]string, 0, len(baseArgs))
		for _, a := range baseArgs {
			text, err := h.Read(a)
			if err != nil {
				return nil, err
			}
			argText = append(argText, text)
		}
		calls = append(calls, fmt.Sprintf("__%s_init(%s);", base.Name(), strings.Join(argText, ", ")))
	}
	return calls, nil
}

// RemoveLeftoverConstructorHead removes a constructor's header through its opening brace. When the
// constructor was already replaced the removal is nested in that edit and has no visible effect.
func RemoveLeftoverConstructorHead(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for contract := range FindAll(unit.AST, "ContractDefinition") {
			ctor := constructorOf(contract)
			if ctor == nil {
				continue
			} else if ctor.Child("body") == nil {
				yield(Transformation{}, fmt.Errorf("%w: constructor of %s", ErrMissingConstructorBody, contract.Name()))
				return
			}
			ctorRange, err := Bounds(ctor)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			end, err := constructorBodyStart(contract.Name(), ctor, tools.OriginalSource)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if !yield(Remove(Range{Start: ctorRange.Start, Length: end - ctorRange.Start}, KindRemoveLeftoverCtor), nil) {
				return
			}
		}
	}
}
