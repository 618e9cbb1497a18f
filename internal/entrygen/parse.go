// Package entrygen generates the entry points of syscall programs written in
// Go and compiled for the BPF target with TinyGo.
//
// A kernel-side function opts in with a directive:
//
//	//kcall:syscall
//	func mySyscall(ctx syscallctx.Context) int64 {
//	    ...
//	}
//
// For every such function the generator emits a shim with the kernel ABI: one
// opaque pointer parameter, an int64 result, exported under the function's own
// name and placed in the "syscall" section where loaders look for syscall
// programs. The shim wraps the pointer in a syscallctx.Context and forwards to
// the function.
package entrygen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

const (
	// Directive marks a function as a syscall program. It takes no arguments.
	Directive = "//kcall:syscall"

	// Section is the ELF section generated entry points are placed in. It
	// is part of the contract with the loader.
	Section = "syscall"

	// ContextImportPath is the package providing the context type.
	ContextImportPath = "github.com/yairfalse/kcall/bpf/syscallctx"

	contextPackageName = "syscallctx"
	contextTypeName    = "Context"
	shimSuffix         = "Entry"
)

// reservedNames are imported by every generated file.
var reservedNames = []string{contextPackageName, "unsafe"}

// Error is a diagnostic about a marked function.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// EntryPoint describes one generated shim.
type EntryPoint struct {
	// Name is the user function and the exported symbol.
	Name    string `yaml:"name"`
	Shim    string `yaml:"shim"`
	Section string `yaml:"section"`
	Source  string `yaml:"source"`
	Line    int    `yaml:"line"`
}

// File is a parsed source file with its marked functions.
type File struct {
	Package     string
	Source      string
	EntryPoints []EntryPoint
}

// ParseFile parses one Go source file and validates every function marked
// with Directive. src follows the rules of go/parser.ParseFile. All problems
// found are returned joined.
func ParseFile(fset *token.FileSet, filename string, src any) (*File, error) {
	af, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	f := &File{
		Package: af.Name.Name,
		Source:  filename,
	}

	alias, hasImport := contextAlias(af)
	declared := topLevelNames(af)

	var errs []error
	for _, decl := range af.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		marked, err := directive(fset, fn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !marked {
			continue
		}

		if !hasImport {
			errs = append(errs, errorf(fset, fn.Name.Pos(), "%s requires an import of %q", fn.Name.Name, ContextImportPath))
			continue
		}
		if err := checkSignature(fset, fn, alias); err != nil {
			errs = append(errs, err)
			continue
		}

		shim := fn.Name.Name + shimSuffix
		if _, ok := declared[shim]; ok {
			errs = append(errs, errorf(fset, fn.Name.Pos(), "entry point %s collides with an existing declaration", shim))
			continue
		}

		f.EntryPoints = append(f.EntryPoints, EntryPoint{
			Name:    fn.Name.Name,
			Shim:    shim,
			Section: Section,
			Source:  filename,
			Line:    fset.Position(fn.Pos()).Line,
		})
	}

	if len(f.EntryPoints) > 0 {
		for _, name := range reservedNames {
			if pos, ok := declared[name]; ok {
				errs = append(errs, errorf(fset, pos, "top-level %s collides with the import of the generated entry points", name))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f, nil
}

// directive reports whether fn carries Directive. Anything after the
// directive is an error: it accepts no attributes.
func directive(fset *token.FileSet, fn *ast.FuncDecl) (bool, error) {
	if fn.Doc == nil {
		return false, nil
	}

	found := false
	for _, c := range fn.Doc.List {
		rest, ok := strings.CutPrefix(c.Text, Directive)
		if !ok {
			continue
		}
		if rest != "" && isIdentRune(rest[0]) {
			// A different directive sharing the prefix.
			continue
		}
		if strings.TrimSpace(rest) != "" {
			return false, errorf(fset, c.Pos(), "unexpected attribute %q", strings.TrimSpace(rest))
		}
		if found {
			return false, errorf(fset, c.Pos(), "duplicate %s directive", Directive)
		}
		found = true
	}
	return found, nil
}

func isIdentRune(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func checkSignature(fset *token.FileSet, fn *ast.FuncDecl, alias string) error {
	name := fn.Name.Name

	if fn.Recv != nil {
		return errorf(fset, fn.Pos(), "%s: methods cannot be syscall programs", name)
	}
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return errorf(fset, fn.Pos(), "%s: generic functions cannot be syscall programs", name)
	}
	if fn.Body == nil {
		return errorf(fset, fn.Pos(), "%s: function has no body", name)
	}
	if name == "_" || name == "main" || name == "init" {
		return errorf(fset, fn.Pos(), "%s cannot be exported as a syscall program", name)
	}

	params := fn.Type.Params.List
	if n := countFields(params); n != 1 {
		return errorf(fset, fn.Type.Params.Pos(), "%s: expected exactly one parameter of type %s, found %d", name, contextType(alias), n)
	}
	if !isContextType(params[0].Type, alias) {
		return errorf(fset, params[0].Type.Pos(), "%s: parameter must be of type %s", name, contextType(alias))
	}

	var results []*ast.Field
	if fn.Type.Results != nil {
		results = fn.Type.Results.List
	}
	if countFields(results) != 1 || !isIdent(results[0].Type, "int64") {
		return errorf(fset, fn.Type.Pos(), "%s: must return exactly one int64", name)
	}
	return nil
}

// contextAlias returns the name under which the file refers to the context
// package. A dot import yields ".".
func contextAlias(af *ast.File) (string, bool) {
	for _, imp := range af.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != ContextImportPath {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" {
				return "", false
			}
			return imp.Name.Name, true
		}
		return contextPackageName, true
	}
	return "", false
}

func isContextType(expr ast.Expr, alias string) bool {
	if alias == "." {
		return isIdent(expr, contextTypeName)
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	return isIdent(sel.X, alias) && sel.Sel.Name == contextTypeName
}

func contextType(alias string) string {
	if alias == "." {
		return contextTypeName
	}
	return alias + "." + contextTypeName
}

func isIdent(expr ast.Expr, name string) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}

func countFields(fields []*ast.Field) int {
	n := 0
	for _, f := range fields {
		if len(f.Names) == 0 {
			n++
			continue
		}
		n += len(f.Names)
	}
	return n
}

func topLevelNames(af *ast.File) map[string]token.Pos {
	names := make(map[string]token.Pos)
	for _, decl := range af.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				names[d.Name.Name] = d.Name.Pos()
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names[s.Name.Name] = s.Name.Pos()
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names[n.Name] = n.Pos()
					}
				}
			}
		}
	}
	return names
}

func errorf(fset *token.FileSet, pos token.Pos, format string, args ...any) *Error {
	return &Error{Pos: fset.Position(pos), Msg: fmt.Sprintf(format, args...)}
}
