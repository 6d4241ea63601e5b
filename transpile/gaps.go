package transpile

import (
	"fmt"
	"iter"
)

// DefaultGapSlots is the storage gap size reserved in each contract.
const DefaultGapSlots = 50

// AddStorageGaps returns a pass reserving a fixed number of storage slots at the end of every contract, so
// state variables can be added by later versions without shifting the layout of derived contracts.
func AddStorageGaps(slots int) Transformer {
	return func(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error] {
		return func(yield func(Transformation, error) bool) {
			if slots <= 0 {
				return
			}
			gap := fmt.Sprintf("\n%suint256[%d] private __gap;\n", indentUnit, slots)
			for contract := range FindAll(unit.AST, "ContractDefinition") {
				if !isInstantiable(contract) {
					continue
				}
				r, err := Bounds(contract)
				if err != nil {
					yield(Transformation{}, err)
					return
				} else if r.Length == 0 || r.End() > len(tools.OriginalSource) || tools.OriginalSource[r.End()-1] != '}' {
					yield(Transformation{}, fmt.Errorf("%w: closing brace of contract %s", ErrMissingBracePattern, contract.Name()))
					return
				}
				if !yield(Insert(r.End()-1, KindAddStorageGap, gap), nil) {
					return
				}
			}
		}
	}
}
