package transpile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings of a transpile run.
type Config struct {
	InputFile, OutputFile            string // compiler standard-JSON input, and optionally its output
	SolcBinary, SolcVersion          string
	ProjectDir, OutputDir            string
	ExcludePatterns                  []string // path.Match globs over compiler source paths
	InitializablePath                string
	PublicInitializers               []string // source paths whose contracts get a public initialize function
	GapSlots                         int
	Diff, Verbose                    bool
	ReportJsonFile, ReportChartsFile string
	CacheDir                         string
	CacheMB                          int
	// CustomFlags holds the values of options registered by programs embedding the transpiler through
	// cmd.ParseFlags, all stored as strings.
	CustomFlags map[string]string
}

// Exclude reports whether a source path is left untouched. The Initializable base itself is always excluded.
func (c *Config) Exclude(sourcePath string) bool {
	if c.InitializablePath != "" && sourcePath == c.InitializablePath {
		return true
	}
	for _, pattern := range c.ExcludePatterns {
		if ok, _ := path.Match(pattern, sourcePath); ok {
			return true
		} else if ok, _ := path.Match(pattern, path.Base(sourcePath)); ok {
			return true
		}
	}
	return false
}

// Validate checks the configuration independent of any input.
func (c *Config) Validate() error {
	for _, pattern := range c.ExcludePatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	if c.GapSlots < 0 {
		return errors.New("storage gap slots can not be negative")
	}
	return nil
}

// fingerprint identifies the settings which influence transpile output.
func (c *Config) fingerprint() []byte {
	return []byte(strings.Join(c.ExcludePatterns, ",") + "|" + c.InitializablePath + "|" +
		strings.Join(c.PublicInitializers, ",") + "|" + strconv.Itoa(c.GapSlots))
}

// Pass is a named Transformer.
type Pass struct {
	Name        string
	Transformer Transformer
}

// DefaultPasses returns the passes converting contracts to their upgradeable form, in application order.
// Renames precede constructor synthesis so generated initializers observe the new names, and initial values
// are removed only after the initializers captured them. Creations are split into new and initialize before
// constructor bodies are moved into initializers.
func DefaultPasses(cfg *Config) []Pass {
	passes := []Pass{
		{Name: "rename-identifiers", Transformer: RenameIdentifiers},
		{Name: "rename-contracts", Transformer: RenameContractDefinition},
		{Name: "prepend-initializable", Transformer: PrependInitializableBase},
		{Name: "fix-imports", Transformer: FixImportDirectives},
	}
	if cfg.InitializablePath != "" {
		passes = append(passes, Pass{Name: "import-initializable", Transformer: AppendInitializableImport(cfg.InitializablePath)})
	}
	passes = append(passes,
		Pass{Name: "fix-new-statements", Transformer: FixNewStatement},
		Pass{Name: "public-initializers", Transformer: AddRequiredPublicInitializer(cfg.PublicInitializers)},
		Pass{Name: "transform-constructors", Transformer: TransformConstructor},
		Pass{Name: "remove-constructor-heads", Transformer: RemoveLeftoverConstructorHead},
		Pass{Name: "remove-inheritance-args", Transformer: RemoveInheritanceListArguments},
		Pass{Name: "remove-var-inits", Transformer: RemoveStateVarInits},
		Pass{Name: "remove-immutable", Transformer: RemoveImmutable},
	)
	if cfg.GapSlots > 0 {
		passes = append(passes, Pass{Name: "storage-gaps", Transformer: AddStorageGaps(cfg.GapSlots)})
	}
	return passes
}

// Transpile applies the default passes to a compilation. When store is not nil results are cached by the
// digest of the compiler input and the output affecting settings.
func Transpile(input *SolcInput, output *SolcOutput, cfg *Config, store Storage) (*TranspileResult, error) {
	if input == nil || output == nil {
		return nil, errors.New("compiler input and output are required")
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version, err := CheckSolcVersion(cfg.SolcVersion)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if store != nil {
		store = KeyPrefixStorage(store, version) // AST shape depends on the compiler version
		encodedInput, err := json.Marshal(input.Sources)
		if err != nil {
			return nil, err
		}
		cacheKey = digestKey(encodedInput, cfg.fingerprint())
		if blob, ok, err := store.Load(cacheKey); err != nil {
			log.Printf("%sCache load failed, transpiling: %v", ErrorLogPrefix, err)
		} else if ok {
			if result, err := decodeResult(blob); err != nil {
				log.Printf("%sCache record invalid, transpiling: %v", ErrorLogPrefix, err)
			} else {
				if cfg.Verbose {
					log.Printf("Cache hit: %s", cacheKey)
				}
				return result, nil
			}
		}
	}

	t, err := NewTransform(input, output, TransformOptions{Exclude: cfg.Exclude})
	if err != nil {
		return nil, err
	}
	for _, pass := range DefaultPasses(cfg) {
		before := t.Committed()
		if err := t.Apply(pass.Transformer); err != nil {
			return nil, fmt.Errorf("pass %s failed: %w", pass.Name, err)
		}
		if cfg.Verbose {
			log.Printf("Pass %s: %d edits", pass.Name, t.Committed()-before)
		}
	}
	files, err := t.Results()
	if err != nil {
		return nil, err
	}

	result := &TranspileResult{
		Files:       files,
		EditCounts:  t.EditCounts(),
		SolcVersion: version,
	}
	for _, unit := range t.Units() {
		if t.Excluded(unit.Path) {
			result.Excluded = append(result.Excluded, unit.Path)
		}
	}

	if store != nil {
		if blob, err := encodeResult(result); err != nil {
			log.Printf("%sCache encode failed: %v", ErrorLogPrefix, err)
		} else if err := store.Save(cacheKey, blob); err != nil {
			log.Printf("%sCache save failed: %v", ErrorLogPrefix, err)
		}
	}
	return result, nil
}

// Run executes a complete transpile from the configured files: compile if needed, transpile, then write the
// rewritten sources, diff and reports.
func Run(cfg *Config) error {
	startTime := time.Now()

	input, err := LoadSolcInput(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("failed to load compiler input: %w", err)
	}
	var output *SolcOutput
	if cfg.OutputFile != "" {
		if output, err = LoadSolcOutput(cfg.OutputFile); err != nil {
			return fmt.Errorf("failed to load compiler output: %w", err)
		}
	} else {
		if cfg.SolcVersion == "" {
			if cfg.SolcVersion, err = SolcVersion(cfg.ProjectDir, cfg.SolcBinary); err != nil {
				return err
			}
		}
		if _, err := CheckSolcVersion(cfg.SolcVersion); err != nil {
			return err
		}
		log.Printf("Compiling %d sources with solc %s", len(input.Sources), cfg.SolcVersion)
		if output, err = CompileStandardJSON(cfg.ProjectDir, cfg.SolcBinary, input); err != nil {
			return err
		}
	}

	var store Storage
	if cfg.CacheDir != "" {
		persistent, err := NewBadgerStorage(cfg.CacheDir, cfg.CacheMB)
		if err != nil {
			return err
		}
		store, err = NewCachedStorage(persistent, cfg.CacheMB/4)
		if err != nil {
			_ = persistent.Close()
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("%sCache close failed: %v", ErrorLogPrefix, err)
			}
		}()
	}

	result, err := Transpile(input, output, cfg, store)
	if err != nil {
		return err
	}
	log.Printf("Transpiled %d files with %d edits (%d excluded)", len(result.Files), result.TotalEdits(), len(result.Excluded))

	if cfg.OutputDir != "" {
		written, err := WriteResults(cfg.OutputDir, result)
		if err != nil {
			return err
		}
		for _, p := range written {
			log.Println("Wrote: " + p)
		}
	}
	if cfg.Diff {
		originals := make(map[string]string, len(input.Sources))
		for p, src := range input.Sources {
			originals[p] = src.Content
		}
		diff, err := ResultDiff(originals, result, 3)
		if err != nil {
			return err
		}
		_, _ = os.Stdout.WriteString(diff)
	}

	if cfg.ReportJsonFile != "" || cfg.ReportChartsFile != "" {
		metrics := NewReportMetrics(startTime, result)
		if cfg.ReportJsonFile != "" {
			if err := metrics.WriteToFile(cfg.ReportJsonFile); err != nil {
				return err
			}
			log.Println("Report file wrote: " + cfg.ReportJsonFile)
		}
		if cfg.ReportChartsFile != "" && metrics.TotalEdits > 0 {
			if err := WriteReportCharts(cfg.ReportChartsFile, metrics); err != nil {
				return err
			}
			log.Println("Report file wrote: " + cfg.ReportChartsFile)
		}
	}
	return nil
}
