package entrygen

import (
	"bytes"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Config controls a Generator.
type Config struct {
	// OutputDir receives generated files. Empty writes next to the sources.
	// Entry points call the marked functions unqualified, so files written
	// elsewhere only build when compiled together with their sources as one
	// package, e.g. by listing both files on the tinygo command line. A
	// directory holding Go files of another package is rejected.
	OutputDir string

	// DryRun validates and renders without writing anything.
	DryRun bool
}

// Result is the outcome of generating one source file.
type Result struct {
	Source      string
	Output      string
	Code        []byte
	EntryPoints []EntryPoint
}

// Generator turns kernel-side source files into entry point files.
type Generator struct {
	config Config
	logger *zap.Logger
}

// NewGenerator creates a generator. A nil logger disables logging.
func NewGenerator(config Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{config: config, logger: logger}
}

// Run processes every file. Generated files among the inputs are skipped.
// Nothing is written unless all files are valid.
func (g *Generator) Run(files []string) ([]Result, error) {
	fset := token.NewFileSet()

	var results []Result
	var errs []error
	for _, file := range files {
		if isGenerated(file) {
			g.logger.Debug("Skipping generated file", zap.String("file", file))
			continue
		}

		res, err := g.generate(fset, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if g.config.DryRun {
		return results, nil
	}

	for _, res := range results {
		if err := os.WriteFile(res.Output, res.Code, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", res.Output, err)
		}
		g.logger.Info("Generated entry points",
			zap.String("source", res.Source),
			zap.String("output", res.Output),
			zap.Int("entry_points", len(res.EntryPoints)))
	}
	return results, nil
}

func (g *Generator) generate(fset *token.FileSet, file string) (*Result, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	f, err := ParseFile(fset, file, src)
	if err != nil {
		return nil, err
	}
	if len(f.EntryPoints) == 0 {
		g.logger.Debug("No syscall programs found", zap.String("file", file))
		return nil, nil
	}

	code, err := Generate(f)
	if err != nil {
		return nil, err
	}

	output := OutputPath(file)
	if g.config.OutputDir != "" {
		if err := checkOutputPackage(fset, g.config.OutputDir, f.Package); err != nil {
			return nil, err
		}
		output = filepath.Join(g.config.OutputDir, filepath.Base(output))
	}

	return &Result{
		Source:      file,
		Output:      output,
		Code:        code,
		EntryPoints: f.EntryPoints,
	}, nil
}

func isGenerated(file string) bool {
	src, err := os.ReadFile(file)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(src, []byte(Header))
}

// checkOutputPackage fails if dir already holds Go files of a package other
// than pkg. Test files and generated files are ignored.
func checkOutputPackage(fset *token.FileSet, dir, pkg string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") || isGenerated(file) {
			continue
		}
		af, err := parser.ParseFile(fset, file, nil, parser.PackageClauseOnly)
		if err != nil {
			return fmt.Errorf("failed to read package of %s: %w", file, err)
		}
		if af.Name.Name != pkg {
			return fmt.Errorf("output directory %s holds package %s, entry points belong to package %s", dir, af.Name.Name, pkg)
		}
	}
	return nil
}
