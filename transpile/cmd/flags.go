package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PatchLens/sol-upgrade-lens/transpile"
)

// CustomFlag defines an extra CLI option for programs embedding the transpiler. Its value is stored in
// Config.CustomFlags under Name.
type CustomFlag struct {
	Name         string
	DefaultValue any
	Usage        string
	Type         string // "string", "int", "bool"
}

// ParseFlags builds Config from standard and custom flags.
func ParseFlags(customFlags []CustomFlag) (*transpile.Config, error) {
	config := &transpile.Config{CustomFlags: make(map[string]string)}

	inputFile := flag.String("input", "", "Path to the solc standard-JSON input")
	outputFile := flag.String("output", "", "Path to the solc standard-JSON output, solc is invoked if not provided")
	solcBinary := flag.String("solc", "solc", "solc binary used when -output is not provided")
	solcVersion := flag.String("solcversion", "", "Compiler version the output was produced by (e.g., 0.8.20)")
	projectDir := flag.String("project", "", "Directory solc is run in, defaults to the input file directory")
	outputDir := flag.String("outdir", "", "Directory to write upgradeable sources to")
	exclude := flag.String("exclude", "", "Comma separated source path globs to leave untouched")
	initializable := flag.String("initializable", "", "Source path of the Initializable base contract")
	publicInit := flag.String("publicinit", "", "Comma separated source paths whose contracts get a public initializer")
	gapSlots := flag.Int("gap", transpile.DefaultGapSlots, "Storage gap slots appended to each contract, 0 to disable")
	diff := flag.Bool("diff", false, "Print a unified diff of every rewritten file")
	reportJsonFile := flag.String("json", "", "File to output transpile details")
	reportChartsFile := flag.String("charts", "", "File to output edits chart image")
	cacheDir := flag.String("cache", "", "Directory of the persistent result cache, disabled if empty")
	cacheMB := flag.Int("cachemb", 200, "Cache memory budget in MB")
	verbose := flag.Bool("v", false, "Log per pass details")

	customPtrs := make(map[string]any)
	for _, cf := range customFlags {
		switch cf.Type {
		case "string":
			customPtrs[cf.Name] = flag.String(cf.Name, cf.DefaultValue.(string), cf.Usage)
		case "int":
			customPtrs[cf.Name] = flag.Int(cf.Name, cf.DefaultValue.(int), cf.Usage)
		case "bool":
			customPtrs[cf.Name] = flag.Bool(cf.Name, cf.DefaultValue.(bool), cf.Usage)
		}
	}

	flag.Parse()

	if *inputFile == "" {
		return nil, errors.New("usage: -input build/input.json [-output build/output.json] -outdir upgradeable")
	} else if *outputDir == "" && !*diff && *reportJsonFile == "" {
		return nil, errors.New("nothing to do, provide at least one of -outdir, -diff or -json")
	} else if *gapSlots < 0 {
		return nil, errors.New("-gap can not be negative")
	}

	config.InputFile = *inputFile
	config.OutputFile = *outputFile
	config.SolcBinary = *solcBinary
	config.SolcVersion = *solcVersion
	config.ProjectDir = *projectDir
	config.OutputDir = *outputDir
	config.InitializablePath = *initializable
	config.GapSlots = *gapSlots
	config.Diff = *diff
	config.ReportJsonFile = *reportJsonFile
	config.ReportChartsFile = *reportChartsFile
	config.CacheDir = *cacheDir
	config.CacheMB = *cacheMB
	config.Verbose = *verbose
	config.ExcludePatterns = splitList(*exclude)
	config.PublicInitializers = splitList(*publicInit)

	for name, ptr := range customPtrs {
		switch v := ptr.(type) {
		case *string:
			config.CustomFlags[name] = *v
		case *int:
			config.CustomFlags[name] = strconv.Itoa(*v)
		case *bool:
			config.CustomFlags[name] = strconv.FormatBool(*v)
		}
	}

	// Path resolution and environment setup
	if err := setupEnvironment(config); err != nil {
		return nil, err
	}
	return config, nil
}

// splitList parses a comma separated flag value, dropping empty entries.
func splitList(value string) []string {
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func setupEnvironment(c *transpile.Config) error {
	if c.ProjectDir == "" {
		c.ProjectDir = filepath.Dir(c.InputFile)
	}
	if envSolc := os.Getenv("SOLC"); envSolc != "" && c.SolcBinary == "solc" {
		c.SolcBinary = envSolc
	}
	return c.Validate()
}
