package transpile

import "iter"

// Edit kinds produced by the passes in this package. The kind is diagnostic metadata only.
const (
	KindRenameIdentifier      = "rename-identifier"
	KindRenameContract        = "rename-contract"
	KindPrependInitializable  = "prepend-initializable-base"
	KindFixImport             = "fix-import-directive"
	KindAppendInitializable   = "append-initializable-import"
	KindFixNewStatement       = "fix-new-statement"
	KindAddPublicInitializer  = "add-public-initializer"
	KindTransformConstructor  = "transform-constructor"
	KindRemoveLeftoverCtor    = "remove-leftover-constructor"
	KindRemoveInheritanceArgs = "remove-inheritance-args"
	KindRemoveStateVarInit    = "purge-var-init"
	KindRemoveImmutable       = "remove-immutable"
	KindAddStorageGap         = "add-storage-gap"
)

// ReadHelper resolves AST nodes or explicit ranges to their current text, with every visible edit applied.
type ReadHelper interface {
	// Read returns the current text of the node, in whichever file the node belongs to.
	Read(node Node) (string, error)
	// ReadRange returns the current text of a range within the file being transformed.
	ReadRange(r Range) (string, error)
}

// Payload is the replacement for an edit's range: either literal text, or text computed when the edit is
// materialized.
type Payload struct {
	text    string
	compute func(ReadHelper) (string, error)
}

// Literal returns a payload replacing the range with fixed text.
func Literal(text string) Payload {
	return Payload{text: text}
}

// Computed returns a payload whose text is produced from the read helper at materialization time. The helper
// only observes edits committed before the edit carrying this payload.
func Computed(fn func(ReadHelper) (string, error)) Payload {
	return Payload{compute: fn}
}

// IsComputed reports if the payload is produced lazily.
func (p Payload) IsComputed() bool {
	return p.compute != nil
}

// Transformation is a single edit directive expressed in original file coordinates.
type Transformation struct {
	Range
	Kind    string
	Payload Payload
}

// Replace builds a literal edit replacing r with text.
func Replace(r Range, kind, text string) Transformation {
	return Transformation{Range: r, Kind: kind, Payload: Literal(text)}
}

// Insert builds a literal zero-length edit at pos.
func Insert(pos int, kind, text string) Transformation {
	return Transformation{Range: Range{Start: pos}, Kind: kind, Payload: Literal(text)}
}

// Remove builds an edit deleting r.
func Remove(r Range, kind string) Transformation {
	return Transformation{Range: r, Kind: kind}
}

// Transformer is a rewrite pass. It is invoked once per included source unit and lazily yields the unit's
// edits. Yielding a non-nil error aborts the pass.
type Transformer func(unit *SourceUnit, tools *Tools) iter.Seq2[Transformation, error]

// yieldErr is a helper for transformers that fail before producing edits.
func yieldErr(err error) iter.Seq2[Transformation, error] {
	return func(yield func(Transformation, error) bool) {
		yield(Transformation{}, err)
	}
}
