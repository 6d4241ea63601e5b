package transpile

import (
	"fmt"
	"regexp"
	"strings"
)

const indentUnit = "    "

var openBraceRe = regexp.MustCompile(`\{`)

// matchFrom finds the first match of re in text at or after offset from, returning absolute offsets.
func matchFrom(text string, re *regexp.Regexp, from int) (start, end int, ok bool) {
	if from < 0 || from > len(text) {
		return 0, 0, false
	}
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return 0, 0, false
	}
	return from + loc[0], from + loc[1], true
}

// contractNameRange locates the declared name of a contract, interface or library.
func contractNameRange(contract Node, original string) (Range, error) {
	if contract.Has("nameLocation") {
		if s, err := ParseSrc(contract.Str("nameLocation")); err == nil && s.Length > 0 {
			return s.Range(), nil
		}
	}
	start, err := Bounds(contract)
	if err != nil {
		return Range{}, err
	} else if start.End() > len(original) {
		return Range{}, fmt.Errorf("%w: contract %s exceeds source length", ErrMalformedLocation, contract.Name())
	}
	re := regexp.MustCompile(`\b(?:contract|interface|library)\s+(` + regexp.QuoteMeta(contract.Name()) + `)\b`)
	loc := re.FindStringSubmatchIndex(original[start.Start:start.End()])
	if loc == nil {
		return Range{}, fmt.Errorf("name of %s not found in its declaration", contract.Name())
	}
	return Range{Start: start.Start + loc[2], Length: loc[3] - loc[2]}, nil
}

// contractBodyStart returns the offset just past the opening brace of a contract body. The search starts
// after the inheritance list so braces within base constructor arguments are skipped.
func contractBodyStart(contract Node, original string) (int, error) {
	r, err := Bounds(contract)
	if err != nil {
		return 0, err
	}
	from := r.Start
	if name, err := contractNameRange(contract, original); err == nil {
		from = max(from, name.End())
	}
	for _, base := range contract.Children("baseContracts") {
		if br, err := Bounds(base); err == nil {
			from = max(from, br.End())
		}
	}
	_, end, ok := matchFrom(original, openBraceRe, from)
	if !ok || end > r.End() {
		return 0, fmt.Errorf("%w: opening brace of contract %s", ErrMissingBracePattern, contract.Name())
	}
	return end, nil
}

// constructorBodyStart returns the offset just past the opening brace of a constructor body, searching after
// the parameter list and any modifier invocations.
func constructorBodyStart(contractName string, ctor Node, original string) (int, error) {
	r, err := Bounds(ctor)
	if err != nil {
		return 0, err
	}
	from := r.Start
	if pr, err := Bounds(ctor.Child("parameters")); err == nil {
		from = max(from, pr.End())
	}
	for _, mod := range ctor.Children("modifiers") {
		if mr, err := Bounds(mod); err == nil {
			from = max(from, mr.End())
		}
	}
	_, end, ok := matchFrom(original, openBraceRe, from)
	if !ok || end > r.End() {
		return 0, fmt.Errorf("%w: opening brace of constructor in %s", ErrMissingBracePattern, contractName)
	}
	return end, nil
}

// stripDelimiters removes a surrounding pair of delimiters, such as the parentheses of a parameter list.
func stripDelimiters(text string, open, close byte) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= 2 && trimmed[0] == open && trimmed[len(trimmed)-1] == close {
		return trimmed[1 : len(trimmed)-1]
	}
	return trimmed
}

// blockStatements returns the statements of a braced block. Multi-line blocks keep their own indentation,
// a single-line block is re-indented to function body depth.
func blockStatements(block string) string {
	inner := stripDelimiters(block, '{', '}')
	if strings.TrimSpace(inner) == "" {
		return ""
	}
	leading := inner[:len(inner)-len(strings.TrimLeft(inner, " \t\r\n"))]
	if i := strings.IndexByte(leading, '\n'); i >= 0 {
		return strings.TrimRight(inner[i+1:], " \t\r\n")
	}
	return indentUnit + indentUnit + strings.TrimSpace(inner)
}
