package transpile

import (
	"iter"
	"path"
	"strings"
)

// UpgradeableSuffix is appended to the names of renamed contracts and files.
const UpgradeableSuffix = "Upgradeable"

// RenamedPath returns the output path of a transformed file, "Foo.sol" becomes "FooUpgradeable.sol".
func RenamedPath(p string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + UpgradeableSuffix + ext
}

// renamedContract reports whether a declaration id names a contract declared in an included file.
func renamedContract(tools *Tools, id int) (Node, bool) {
	decl, unit, ok := tools.Declaration(id)
	if !ok || decl.Type() != "ContractDefinition" || tools.IsExcluded(unit.Path) {
		return nil, false
	}
	return decl, true
}

// RenameIdentifiers rewrites every reference to a contract declared in an included file with the upgradeable
// name. Qualified references, where the text differs from the declared name, are left untouched.
func RenameIdentifiers(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for ref := range FindAll(unit.AST, "Identifier", "IdentifierPath", "UserDefinedTypeName") {
			if ref.Type() == "UserDefinedTypeName" && ref.Has("pathNode") {
				continue // the IdentifierPath below is visited
			}
			id, ok := ref.ReferencedDeclaration()
			if !ok {
				continue
			}
			decl, ok := renamedContract(tools, id)
			if !ok {
				continue
			}
			text, err := tools.ReadOriginal(ref)
			if err != nil {
				yield(Transformation{}, err)
				return
			} else if text != decl.Name() {
				continue
			}
			r, err := Bounds(ref)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if !yield(Replace(r, KindRenameIdentifier, decl.Name()+UpgradeableSuffix), nil) {
				return
			}
		}
	}
}

// RenameContractDefinition appends the upgradeable suffix to the declared name of every contract, interface
// and library in the unit.
func RenameContractDefinition(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for contract := range FindAll(unit.AST, "ContractDefinition") {
			r, err := contractNameRange(contract, tools.OriginalSource)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if !yield(Replace(r, KindRenameContract, contract.Name()+UpgradeableSuffix), nil) {
				return
			}
		}
	}
}
