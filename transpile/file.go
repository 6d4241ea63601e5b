package transpile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileExists reports whether the named file exists.
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}

// outputPath maps a compiler source path to its location under outDir, refusing paths escaping outDir.
func outputPath(outDir, sourcePath string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(RenamedPath(sourcePath)))
	if filepath.IsAbs(rel) {
		rel = strings.TrimLeft(rel, string(filepath.Separator))
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("source path %s is outside of the output directory", sourcePath)
	}
	return filepath.Join(outDir, rel), nil
}

// WriteResults writes each transformed file under outDir with its upgradeable name, returning the written
// paths. Files are written concurrently; every failure is reported.
func WriteResults(outDir string, result *TranspileResult) ([]string, error) {
	paths := result.Paths()
	written := make([]string, len(paths))
	var mu sync.Mutex
	var errs []error
	errGroup := ErrGroupLimitCPU()
	for i, path := range paths {
		errGroup.Go(func() error {
			dest, err := outputPath(outDir, path)
			if err == nil {
				if err = os.MkdirAll(filepath.Dir(dest), 0755); err == nil {
					err = os.WriteFile(dest, []byte(result.Files[path]), 0644)
				}
			}
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				errs = append(errs, fmt.Errorf("write %s: %w", path, err))
				return nil
			}
			written[i] = dest
			return nil
		})
	}
	_ = errGroup.Wait() // errors are collected so every file is attempted
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return written, nil
}

// LoadSolcInput reads a compiler standard-JSON input file.
func LoadSolcInput(path string) (*SolcInput, error) {
	var input SolcInput
	if err := loadJSON(path, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

// LoadSolcOutput reads a compiler standard-JSON output file.
func LoadSolcOutput(path string) (*SolcOutput, error) {
	var output SolcOutput
	if err := loadJSON(path, &output); err != nil {
		return nil, err
	}
	return &output, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	} else if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid json in %s: %w", path, err)
	}
	return nil
}
