package entrygen

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

// Header is the first line of every generated file.
const Header = "// Code generated by kcall-gen. DO NOT EDIT."

// BuildTag restricts generated files to TinyGo builds, the only toolchain
// that honours the export and section directives.
const BuildTag = "tinygo"

var entryTemplate = template.Must(template.New("entry").Parse(`{{.Header}}

//go:build {{.BuildTag}}

package {{.Package}}

import (
	"unsafe"

	"{{.ContextImportPath}}"
)
{{range .EntryPoints}}
// {{.Shim}} is the entry point of {{.Name}}.
//
//export {{.Name}}
//go:section {{.Section}}
func {{.Shim}}(ctx unsafe.Pointer) int64 {
	return {{.Name}}(syscallctx.New(ctx))
}
{{end}}`))

// Generate renders the entry points of f. It returns nil if f has none.
func Generate(f *File) ([]byte, error) {
	if len(f.EntryPoints) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	err := entryTemplate.Execute(&buf, struct {
		*File
		Header            string
		BuildTag          string
		ContextImportPath string
	}{
		File:              f,
		Header:            Header,
		BuildTag:          BuildTag,
		ContextImportPath: ContextImportPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render entry points for %s: %w", f.Source, err)
	}

	out, err := imports.Process(OutputPath(f.Source), buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format entry points for %s: %w", f.Source, err)
	}
	return out, nil
}

// OutputPath returns the generated file name for a source file:
// prog.go becomes prog_entry.go next to it.
func OutputPath(source string) string {
	dir, base := filepath.Split(source)
	base = strings.TrimSuffix(base, ".go")
	return filepath.Join(dir, base+"_entry.go")
}
