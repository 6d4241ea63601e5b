package transpile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"
)

// NewSolcExec creates a compiler command run in dir with env applied on top of a filtered environment.
func NewSolcExec(dir string, env []string, solcBinary string, arg ...string) *exec.Cmd {
	cmd := exec.Command(solcBinary, arg...)
	cmd.Dir = dir
	cmd.Env = mergeSafeEnv(env)
	return cmd
}

func mergeSafeEnv(env []string) []string {
	envKeys := make([]string, len(env)) // os values to be overridden
	for i, kv := range env {
		envKeys[i], _, _ = strings.Cut(kv, "=")
	}
	safeEnv := bulk.SliceFilterInPlace(func(envVar string) bool {
		if envVar == "" || envVar == "=" || strings.HasPrefix(envVar, "LD_") {
			return false
		} else if key, _, _ := strings.Cut(envVar, "="); slices.Contains(envKeys, key) {
			return false
		}
		return true
	}, os.Environ())
	return append(safeEnv, env...)
}

// SolcVersion returns the version reported by the compiler binary.
func SolcVersion(dir, solcBinary string) (string, error) {
	out, err := NewSolcExec(dir, nil, solcBinary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("solc --version failed: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Version:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("%w: no version in solc output", ErrUnsupportedSolc)
}

// CompileStandardJSON runs the compiler in standard-JSON mode, requesting the AST of every source. The
// output selection of input is replaced, other settings are kept.
func CompileStandardJSON(dir, solcBinary string, input *SolcInput) (*SolcOutput, error) {
	request := struct {
		Language string                     `json:"language"`
		Sources  map[string]SolcInputSource `json:"sources"`
		Settings map[string]any             `json:"settings"`
	}{
		Language: input.Language,
		Sources:  input.Sources,
		Settings: make(map[string]any),
	}
	if request.Language == "" {
		request.Language = "Solidity"
	}
	if len(input.Settings) > 0 {
		if err := json.Unmarshal(input.Settings, &request.Settings); err != nil {
			return nil, fmt.Errorf("invalid compiler settings: %w", err)
		}
	}
	request.Settings["outputSelection"] = map[string]any{
		"*": map[string]any{"": []string{"ast"}},
	}
	data, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	cmd := NewSolcExec(dir, nil, solcBinary, "--standard-json")
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = newLimitedRollingBufferWriter(&stderr, 64*1024)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("solc failed: %w\n%s", err, limitStringLines(stderr.String(), 20, false))
	}
	var output SolcOutput
	if err := json.Unmarshal(out, &output); err != nil {
		return nil, fmt.Errorf("invalid solc output: %w", err)
	}
	var errs []error
	for _, e := range output.Errors {
		if e.Severity != "error" {
			continue
		} else if msg := strings.TrimSpace(e.FormattedMessage); msg != "" {
			errs = append(errs, errors.New(msg))
		} else {
			errs = append(errs, fmt.Errorf("%s: %s", e.Type, e.Message))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("compilation failed: %w", errors.Join(errs...))
	}
	return &output, nil
}

func limitStringLines(s string, count int, head bool) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= count {
		return s
	} else if head {
		return strings.Join(lines[:count], "\n")
	}
	return strings.Join(lines[len(lines)-count:], "\n")
}
