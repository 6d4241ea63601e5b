package transpile

import "iter"

const initializableName = "Initializable"

// PrependInitializableBase makes Initializable the first base of every contract so it is the most base
// contract of each linearization.
func PrependInitializableBase(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for contract := range FindAll(unit.AST, "ContractDefinition") {
			if !isInstantiable(contract) || contract.Name() == initializableName {
				continue
			}
			var tr Transformation
			if bases := contract.Children("baseContracts"); len(bases) > 0 {
				r, err := Bounds(bases[0])
				if err != nil {
					yield(Transformation{}, err)
					return
				}
				tr = Insert(r.Start, KindPrependInitializable, initializableName+", ")
			} else {
				r, err := contractNameRange(contract, tools.OriginalSource)
				if err != nil {
					yield(Transformation{}, err)
					return
				}
				tr = Insert(r.End(), KindPrependInitializable, " is "+initializableName)
			}
			if !yield(tr, nil) {
				return
			}
		}
	}
}

// RemoveInheritanceListArguments strips the constructor arguments from inheritance specifiers, they are
// passed through the generated initializers instead.
func RemoveInheritanceListArguments(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		for spec := range FindAll(unit.AST, "InheritanceSpecifier") {
			if !spec.Has("arguments") {
				continue
			}
			specRange, err := Bounds(spec)
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			nameRange, err := Bounds(spec.Child("baseName"))
			if err != nil {
				yield(Transformation{}, err)
				return
			}
			if nameRange.End() >= specRange.End() {
				continue
			}
			if !yield(Remove(Range{Start: nameRange.End(), Length: specRange.End() - nameRange.End()}, KindRemoveInheritanceArgs), nil) {
				return
			}
		}
	}
}
