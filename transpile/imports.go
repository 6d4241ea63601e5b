package transpile

import (
	"fmt"
	"iter"
	"path/filepath"
	"strconv"
	"strings"
)

// FixImportDirectives points imports of included files at their upgradeable counterparts. The directive is
// rebuilt so imported symbols referring to renamed contracts are renamed as well.
func FixImportDirectives(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for imp := range FindAll(unit.AST, "ImportDirective") {
			target, ok := tools.UnitByPath(imp.Str("absolutePath"))
			if !ok || tools.IsExcluded(target.Path) {
				continue
			}
			r, err := Bounds(imp)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if !yield(Transformation{
				Range:   r,
				Kind:    KindFixImport,
				Payload: Computed(importDirectiveText(imp, target)),
			}, nil) {
				return
			}
		}
	}
}

func importDirectiveText(imp Node, target *SourceUnit) func(ReadHelper) (string, error) {
	contracts := make(map[string]bool)
	for _, n := range target.AST.Children("nodes") {
		if n.Type() == "ContractDefinition" {
			contracts[n.Name()] = true
		}
	}
	file := strconv.Quote(RenamedPath(imp.Str("file")))

	return func(h ReadHelper) (string, error) {
		aliases := imp.Children("symbolAliases")
		if len(aliases) == 0 {
			if alias := imp.Str("unitAlias"); alias != "" {
				return "import " + file + " as " + alias + ";", nil
			}
			return "import " + file + ";", nil
		}

		symbols := make([]string, 0, len(aliases))
		for _, a := range aliases {
			foreign := a.Child("foreign")
			if foreign == nil {
				return "", fmt.Errorf("import of %s has a symbol alias without a name", imp.Str("file"))
			}
			name := foreign.Name()
			if foreign.Src() != "" {
				text, err := h.Read(foreign)
				if err != nil {
					return "", err
				}
				name = text
			}
			if name == foreign.Name() && contracts[name] {
				name += UpgradeableSuffix
			}
			if local := a.Str("local"); local != "" {
				name += " as " + local
			}
			symbols = append(symbols, name)
		}
		return "import {" + strings.Join(symbols, ", ") + "} from " + file + ";", nil
	}
}

// AppendInitializableImport returns a pass importing the Initializable base into every file declaring a
// contract. The import is placed after the last import directive, or after the last pragma.
func AppendInitializableImport(initializablePath string) Transformer {
	return func(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
		return func(yield func(Transformation, error) bool) {
			if unit.Path == initializablePath {
				return
			}
			declaresContract := false
			for contract := range FindAll(unit.AST, "ContractDefinition") {
				if contract.Str("contractKind") == "contract" {
					declaresContract = true
					break
				}
			}
			if !declaresContract {
				return
			}

			rel, err := filepath.Rel(filepath.Dir(unit.Path), initializablePath)
			if err != nil {
				yield(Transformation{}, fmt.Errorf("initializable import: %w", err))
				return
			}
			rel = filepath.ToSlash(rel)
			if !strings.HasPrefix(rel, ".") {
				rel = "./" + rel
			}
			directive := "import " + strconv.Quote(rel) + ";"

			var anchor Node
			for _, n := range unit.AST.Children("nodes") {
				if n.Type() == "ImportDirective" {
					anchor = n
				}
			}
			if anchor == nil {
				for _, n := range unit.AST.Children("nodes") {
					if n.Type() == "PragmaDirective" {
						anchor = n
					}
				}
			}
			if anchor == nil {
				yield(Insert(0, KindAppendInitializable, directive+"\n"), nil)
				return
			}
			r, err := Bounds(anchor)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			yield(Insert(r.End(), KindAppendInitializable, "\n"+directive), nil)
		}
	}
}
