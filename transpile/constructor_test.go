package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initFunction returns the text of the generated __<name>_init function.
func initFunction(t *testing.T, text, name string) string {
	t.Helper()
	start := strings.Index(text, "function __"+name+"_init(")
	require.GreaterOrEqual(t, start, 0, "init of %s missing", name)
	end := strings.Index(text[start:], "\n    }")
	require.Greater(t, end, 0)
	return text[start : start+end]
}

func transformResult(t *testing.T, p *solProject, passes ...Transformer) map[string]string {
	t.Helper()
	tr := p.transform()
	for _, pass := range passes {
		require.NoError(t, tr.Apply(pass))
	}
	results, err := tr.Results()
	require.NoError(t, err)
	return results
}

func TestTransformConstructor(t *testing.T) {
	t.Parallel()

	t.Run("no_args_base_chain", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "pragma solidity ^0.8.0;\n\n"+
			"contract B {\n    constructor() {\n    }\n}\n\n"+
			"contract C is B {\n}\n")
		f.pragma()
		b := f.contract("contract", "B")
		f.constructor(b)
		c := f.contract("contract", "C")
		f.inherit(c, b)
		linearize(c, b)

		results := transformResult(t, p, TransformConstructor)
		assert.Equal(t, "pragma solidity ^0.8.0;\n\n"+
			"contract B {\n"+
			"    function __B_init() internal initializer {\n"+
			"        __B_init_unchained();\n"+
			"    }\n\n"+
			"    function __B_init_unchained() internal initializer {\n"+
			"    }\n"+
			"}\n\n"+
			"contract C is B {\n"+
			"    function __C_init() internal initializer {\n"+
			"        __B_init();\n"+
			"        __C_init_unchained();\n"+
			"    }\n\n"+
			"    function __C_init_unchained() internal initializer {\n"+
			"    }\n"+
			"}\n", results["C.sol"])
	})

	t.Run("inheritance_argument_threading", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract B {\n    uint256 public x;\n\n"+
			"    constructor(uint256 _x) {\n        x = _x;\n    }\n}\n\n"+
			"contract C is B(5) {\n    constructor(uint256 y) {}\n}\n")
		b := f.contract("contract", "B")
		f.constructor(b, "_x")
		c := f.contract("contract", "C")
		f.inherit(c, b, "5")
		f.constructor(c, "y")
		linearize(c, b)

		results := transformResult(t, p, TransformConstructor)
		assert.Equal(t, "contract B {\n    uint256 public x;\n\n"+
			"    function __B_init(uint256 _x) internal initializer {\n"+
			"        __B_init_unchained(_x);\n"+
			"    }\n\n"+
			"    function __B_init_unchained(uint256 _x) internal initializer {\n"+
			"        x = _x;\n"+
			"    }\n"+
			"}\n\n"+
			"contract C is B(5) {\n"+
			"    function __C_init(uint256 y) internal initializer {\n"+
			"        __B_init(5);\n"+
			"        __C_init_unchained(y);\n"+
			"    }\n\n"+
			"    function __C_init_unchained(uint256 y) internal initializer {\n"+
			"    }\n"+
			"}\n", results["C.sol"])
	})

	t.Run("modifier_argument_fallback", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract B {\n    constructor(uint256 _x) {}\n}\n\n"+
			"contract C is B {\n    constructor() B(7) {}\n}\n")
		b := f.contract("contract", "B")
		f.constructor(b, "_x")
		c := f.contract("contract", "C")
		f.inherit(c, b)
		ctor := f.constructor(c)
		f.modifier(ctor, b, "7")
		linearize(c, b)

		results := transformResult(t, p, TransformConstructor)
		cInit := initFunction(t, results["C.sol"], "C")
		assert.Contains(t, cInit, "        __B_init(7);\n        __C_init_unchained();")
		assert.NotContains(t, results["C.sol"], "B(7)")
	})

	t.Run("specifier_precedes_modifier", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract A {\n    constructor(uint256 a) {}\n}\n\n"+
			"contract B is A {\n    constructor(uint256 b) A(b + 1) {}\n}\n\n"+
			"contract C is B(2) {\n}\n")
		a := f.contract("contract", "A")
		f.constructor(a, "a")
		b := f.contract("contract", "B")
		f.inherit(b, a)
		bCtor := f.constructor(b, "b")
		f.modifier(bCtor, a, "b + 1")
		linearize(b, a)
		c := f.contract("contract", "C")
		f.inherit(c, b, "2")
		linearize(c, b, a)

		results := transformResult(t, p, TransformConstructor)
		bInit := initFunction(t, results["C.sol"], "B")
		assert.Contains(t, bInit, "__A_init(b + 1);\n        __B_init_unchained(b);")
		cInit := initFunction(t, results["C.sol"], "C")
		assert.Equal(t, "function __C_init() internal initializer {\n"+
			"        __B_init(2);\n"+
			"        __C_init_unchained();", cInit)
	})

	t.Run("diamond_single_invocation", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("D.sol", "contract A {\n}\n\ncontract B is A {\n}\n\n"+
			"contract C is A {\n}\n\ncontract D is B, C {\n}\n")
		a := f.contract("contract", "A")
		b := f.contract("contract", "B")
		f.inherit(b, a)
		linearize(b, a)
		c := f.contract("contract", "C")
		f.inherit(c, a)
		linearize(c, a)
		d := f.contract("contract", "D")
		f.inherit(d, b)
		f.inherit(d, c)
		linearize(d, c, b, a)

		results := transformResult(t, p, TransformConstructor)
		dInit := initFunction(t, results["D.sol"], "D")
		assert.Equal(t, 1, strings.Count(dInit, "__A_init("))
		aPos := strings.Index(dInit, "__A_init();")
		bPos := strings.Index(dInit, "__B_init();")
		cPos := strings.Index(dInit, "__C_init();")
		unchainedPos := strings.Index(dInit, "__D_init_unchained();")
		assert.Less(t, aPos, bPos)
		assert.Less(t, bPos, cPos)
		assert.Less(t, cPos, unchainedPos)
	})

	t.Run("state_var_inits_read_current", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract C {\n    uint256 public x = 5;\n    uint256 public constant Y = 1;\n"+
			"    constructor() {\n        x += Y;\n    }\n}\n")
		c := f.contract("contract", "C")
		x := f.stateVar(c, "x", "uint256 public x = 5", "5")
		y := f.stateVar(c, "Y", "uint256 public constant Y = 1", "1")
		y["constant"] = true
		y["mutability"] = "constant"
		f.constructor(c)

		bump := editPass("C.sol", Replace(bounds(t, x.Child("value")), "bump", "6"))
		results := transformResult(t, p, bump, TransformConstructor)
		assert.Equal(t, "contract C {\n    uint256 public x = 6;\n    uint256 public constant Y = 1;\n"+
			"    function __C_init() internal initializer {\n"+
			"        __C_init_unchained();\n"+
			"    }\n\n"+
			"    function __C_init_unchained() internal initializer {\n"+
			"        x = 6;\n"+
			"        x += Y;\n"+
			"    }\n}\n", results["C.sol"])
	})

	t.Run("interfaces_skipped", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("I.sol", "interface I {\n}\n\nlibrary L {\n}\n\ncontract C is I {\n}\n")
		i := f.contract("interface", "I")
		f.contract("library", "L")
		c := f.contract("contract", "C")
		f.inherit(c, i)
		linearize(c, i)

		results := transformResult(t, p, TransformConstructor)
		text := results["I.sol"]
		assert.NotContains(t, text, "__I_init")
		assert.NotContains(t, text, "__L_init")
		assert.Equal(t, "function __C_init() internal initializer {\n        __C_init_unchained();", initFunction(t, text, "C"))
	})

	t.Run("excluded_base_not_called", func(t *testing.T) {
		p := newSolProject(t)
		base := p.file("Base.sol", "contract Base {\n    constructor() {}\n}\n")
		b := base.contract("contract", "Base")
		base.constructor(b)
		f := p.file("C.sol", "contract C is Base {\n}\n")
		c := f.contract("contract", "C")
		f.inherit(c, b)
		linearize(c, b)

		tr := p.transform("Base.sol")
		require.NoError(t, tr.Apply(TransformConstructor))
		text := results(t, tr)["C.sol"]
		assert.NotContains(t, text, "__Base_init")
		assert.Equal(t, "function __C_init() internal initializer {\n        __C_init_unchained();", initFunction(t, text, "C"))
	})

	t.Run("unnamed_parameter", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract C {\n    constructor(uint256 a, uint256) {}\n}\n")
		c := f.contract("contract", "C")
		f.constructor(c, "a", "")

		tr := p.transform()
		err := tr.Apply(TransformConstructor)
		require.ErrorIs(t, err, ErrUnnamedParameter)
		assert.True(t, IsStructuralError(err))
		assert.Equal(t, 0, tr.Committed())
	})

	t.Run("missing_body", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract C {\n    constructor() {}\n}\n")
		c := f.contract("contract", "C")
		ctor := f.constructor(c)
		delete(ctor, "body")

		tr := p.transform()
		err := tr.Apply(TransformConstructor)
		require.ErrorIs(t, err, ErrMissingConstructorBody)
		assert.True(t, IsStructuralError(err))
		require.ErrorIs(t, tr.Apply(RemoveLeftoverConstructorHead), ErrMissingConstructorBody)
	})

	t.Run("missing_contract_brace", func(t *testing.T) {
		p := newSolProject(t)
		f := p.file("C.sol", "contract C {\n}\n")
		c := f.contract("contract", "C")
		c["src"] = f.src(Range{Length: len("contract C")})

		err := p.transform().Apply(TransformConstructor)
		require.ErrorIs(t, err, ErrMissingBracePattern)
		assert.True(t, IsStructuralError(err))
	})

	t.Run("failure_commits_nothing", func(t *testing.T) {
		p := newSolProject(t)
		f1 := p.file("A.sol", "contract A {\n}\n")
		f1.contract("contract", "A")
		f2 := p.file("B.sol", "contract B {\n    constructor() {}\n}\n")
		b := f2.contract("contract", "B")
		delete(f2.constructor(b), "body")

		tr := p.transform()
		require.Error(t, tr.Apply(TransformConstructor))
		assert.Equal(t, 0, tr.Committed())
		results, err := tr.Results()
		require.NoError(t, err)
		assert.Equal(t, "contract A {\n}\n", results["A.sol"])
	})
}

func TestRemoveLeftoverConstructorHead(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) *solProject {
		p := newSolProject(t)
		f := p.file("C.sol", "contract B {\n    constructor(uint256 v) {}\n}\n\n"+
			"contract C is B {\n    uint256 x;\n    constructor(uint256 y) B(y) {\n        x = y;\n    }\n}\n")
		b := f.contract("contract", "B")
		f.constructor(b, "v")
		c := f.contract("contract", "C")
		f.inherit(c, b)
		ctor := f.constructor(c, "y")
		f.modifier(ctor, b, "y")
		linearize(c, b)
		return p
	}

	t.Run("standalone", func(t *testing.T) {
		results := transformResult(t, build(t), RemoveLeftoverConstructorHead)
		assert.Equal(t, "contract B {\n    }\n}\n\n"+
			"contract C is B {\n    uint256 x;\n    \n        x = y;\n    }\n}\n", results["C.sol"])
	})

	t.Run("subsumed_by_constructor_transform", func(t *testing.T) {
		expected := transformResult(t, build(t), TransformConstructor)
		results := transformResult(t, build(t), TransformConstructor, RemoveLeftoverConstructorHead)
		assert.Equal(t, expected, results)
	})
}
