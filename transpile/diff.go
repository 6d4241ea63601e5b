package transpile

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// FileDiff returns a unified diff between the original and rewritten text of a file, or "" if unchanged.
func FileDiff(path, original, rewritten string, context int) (string, error) {
	if original == rewritten {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(rewritten),
		FromFile: path,
		ToFile:   RenamedPath(path),
		Context:  context,
	})
}

// ResultDiff concatenates the diffs of every transformed file of a result, in path order.
func ResultDiff(originals map[string]string, result *TranspileResult, context int) (string, error) {
	var sb strings.Builder
	for _, path := range result.Paths() {
		diff, err := FileDiff(path, originals[path], result.Files[path], context)
		if err != nil {
			return "", err
		}
		sb.WriteString(diff)
	}
	return sb.String(), nil
}
