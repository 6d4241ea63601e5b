package transpile

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// PublicInitializerName is the externally callable initializer added to contracts created with "new" or
// requested explicitly.
const PublicInitializerName = "initialize"

// createdContract returns the included contract a NewExpression instantiates.
func createdContract(newExpr Node, tools *Tools) (Node, bool) {
	typeName := newExpr.Child("typeName")
	if typeName == nil || typeName.Type() != "UserDefinedTypeName" {
		return nil, false
	}
	id, ok := typeName.ReferencedDeclaration()
	if !ok {
		if id, ok = typeName.Child("pathNode").ReferencedDeclaration(); !ok {
			return nil, false
		}
	}
	contract, ok := renamedContract(tools, id)
	if !ok || !isInstantiable(contract) {
		return nil, false
	}
	return contract, true
}

// lineIndent returns the leading whitespace of the line containing pos.
func lineIndent(text string, pos int) string {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	end := lineStart
	for end < pos && (text[end] == ' ' || text[end] == '\t') {
		end++
	}
	return text[lineStart:end]
}

// FixNewStatement rewrites assignments creating a contract declared in an included file. Since the
// upgradeable contract has no constructor, `x = new Foo(a, b);` becomes `x = new FooUpgradeable();`
// followed by `x.initialize(a, b);`. Creations in any other position can not be split and fail the pass.
func FixNewStatement(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		handled := make(map[string]bool)
		for stmt := range FindAll(unit.AST, "ExpressionStatement") {
			assign := stmt.Child("expression")
			if assign == nil || assign.Type() != "Assignment" || assign.Str("operator") != "=" {
				continue
			}
			call := assign.Child("rightHandSide")
			if call == nil || call.Type() != "FunctionCall" {
				continue
			}
			newExpr := call.Child("expression")
			if newExpr == nil || newExpr.Type() != "NewExpression" {
				continue
			}
			contract, ok := createdContract(newExpr, tools)
			if !ok {
				continue
			}
			r, err := Bounds(assign)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			handled[newExpr.Src()] = true
			indent := lineIndent(tools.OriginalSource, r.Start)
			if !yield(Transformation{
				Range:   r,
				Kind:    KindFixNewStatement,
				Payload: Computed(newStatementText(assign, call, newExpr, contract, indent)),
			}, nil) {
				return
			}
		}

		for newExpr := range FindAll(unit.AST, "NewExpression") {
			if handled[newExpr.Src()] {
				continue
			} else if contract, ok := createdContract(newExpr, tools); ok {
				yield(Transformation{}, fmt.Errorf("%s: %w: %s must be created in an assignment statement",
					unit.Path, ErrUnsupportedNew, contract.Name()))
				return
			}
		}
	}
}

func newStatementText(assign, call, newExpr, contract Node, indent string) func(ReadHelper) (string, error) {
	return func(h ReadHelper) (string, error) {
		lhs, err := h.Read(assign.Child("leftHandSide"))
		if err != nil {
			return "", err
		}
		name, err := h.Read(newExpr.Child("typeName"))
		if err != nil {
			return "", err
		} else if name == contract.Name() {
			name += UpgradeableSuffix
		}
		args, err := bulk.SliceTransformErr(h.Read, call.Children("arguments"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = new %s();\n%s%s.%s(%s)",
			lhs, name, indent, lhs, PublicInitializerName, strings.Join(args, ", ")), nil
	}
}

// createdContracts returns the ids of contracts instantiated with "new" anywhere in the included files.
func createdContracts(tools *Tools) map[int]struct{} {
	var ids []int
	for _, unit := range tools.Units() {
		if tools.IsExcluded(unit.Path) {
			continue
		}
		for newExpr := range FindAll(unit.AST, "NewExpression") {
			if contract, ok := createdContract(newExpr, tools); ok {
				ids = append(ids, contract.ID())
			}
		}
	}
	return bulk.SliceToSet(ids)
}

// AddRequiredPublicInitializer returns a pass adding a public initialize function, forwarding to the
// contract's __X_init, to every contract in the given files and to every contract created with "new".
// Abstract contracts and contracts already declaring an initialize function are skipped.
func AddRequiredPublicInitializer(paths []string) Transformer {
	return func(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
		return func(yield func(Transformation, error) bool) {
			requested := slices.Contains(paths, unit.Path)
			created := createdContracts(tools)
			for contract := range FindAll(unit.AST, "ContractDefinition") {
				if !isInstantiable(contract) || contract.Bool("abstract") {
					continue
				} else if _, ok := created[contract.ID()]; !ok && !requested {
					continue
				} else if declaresFunction(contract, PublicInitializerName) {
					continue
				}
				tr, err := publicInitializer(contract, tools)
				if !yield(tr, err) || err != nil {
					return
				}
			}
		}
	}
}

func declaresFunction(contract Node, name string) bool {
	for _, n := range contract.Children("nodes") {
		if n.Type() == "FunctionDefinition" && n.Name() == name {
			return true
		}
	}
	return false
}

func publicInitializer(contract Node, tools *Tools) (Transformation, error) {
	name := contract.Name()
	r, err := Bounds(contract)
	if err != nil {
		return Transformation{}, err
	} else if r.Length == 0 || r.End() > len(tools.OriginalSource) || tools.OriginalSource[r.End()-1] != '}' {
		return Transformation{}, fmt.Errorf("%w: closing brace of contract %s", ErrMissingBracePattern, name)
	}

	var params Node
	var argNames []string
	if ctor := constructorOf(contract); ctor != nil {
		if params = ctor.Child("parameters"); params == nil {
			return Transformation{}, fmt.Errorf("%w: constructor of %s has no parameter list", ErrMalformedLocation, name)
		}
		argNames = bulk.SliceTransform(Node.Name, params.Children("parameters"))
		if slices.Contains(argNames, "") {
			return Transformation{}, fmt.Errorf("%w: constructor of %s", ErrUnnamedParameter, name)
		}
	}

	return Transformation{
		Range: Range{Start: r.End() - 1},
		Kind:  KindAddPublicInitializer,
		Payload: Computed(func(h ReadHelper) (string, error) {
			var paramText string
			if params != nil {
				text, err := h.Read(params)
				if err != nil {
					return "", err
				}
				paramText = stripDelimiters(text, '(', ')')
			}
			return fmt.Sprintf("\n%sfunction %s(%s) public virtual initializer {\n%s%s__%s_init(%s);\n%s}\n",
				indentUnit, PublicInitializerName, paramText,
				indentUnit, indentUnit, name, strings.Join(argNames, ", "),
				indentUnit), nil
		}),
	}, nil
}
