package transpile

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Compiler versions whose AST carries the fields the passes rely on (nameLocation is optional).
const (
	MinSolcVersion = "v0.6.0"
	MaxSolcVersion = "v0.9.0" // exclusive
)

var solcVersionRe = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// NormalizeSolcVersion converts compiler version strings such as "0.8.20+commit.a1b79de6" or
// "Version: 0.8.20" into canonical semver form "v0.8.20".
func NormalizeSolcVersion(version string) (string, error) {
	m := solcVersionRe.FindString(version)
	if m == "" {
		return "", fmt.Errorf("%w: unrecognized version %q", ErrUnsupportedSolc, version)
	}
	v := semver.Canonical("v" + strings.TrimPrefix(m, "v"))
	if v == "" {
		return "", fmt.Errorf("%w: invalid version %q", ErrUnsupportedSolc, version)
	}
	return v, nil
}

// CheckSolcVersion verifies the compiler version is within the supported range, returning its canonical form.
// An empty version is accepted unchecked.
func CheckSolcVersion(version string) (string, error) {
	if version == "" {
		return "", nil
	}
	v, err := NormalizeSolcVersion(version)
	if err != nil {
		return "", err
	} else if semver.Compare(v, MinSolcVersion) < 0 || semver.Compare(v, MaxSolcVersion) >= 0 {
		return "", fmt.Errorf("%w: %s not in [%s, %s)", ErrUnsupportedSolc, v, MinSolcVersion, MaxSolcVersion)
	}
	return v, nil
}
