package calcengine

import (
	"fmt"

	"github.com/sparrowsheet/calcengine/ast"
	"github.com/sparrowsheet/calcengine/compile"
	"github.com/sparrowsheet/calcengine/ref"
)

// DefineName registers name, compiling definition against origin as its
// parse origin (spec §6.2's define_name). An empty scope registers a
// workbook-wide name; a non-empty scope must already be a registered
// sheet and shadows a same-named global for formulas on that sheet
// (see ResolveName's lookup order).
func (e *Engine) DefineName(name, scope, definition string, origin ref.CellAddr) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var scopeSheet uint32
	scoped := scope != ""
	if scoped {
		id, ok := e.sheetIDs[scope]
		if !ok {
			return fmt.Errorf("define name %q: unknown scope sheet %q", name, scope)
		}
		scopeSheet = id
	}

	expr, err := ast.Parse(definition, ast.ParseContext{
		Origin:       origin,
		ResolveSheet: e.resolveSheetLocked,
		CurrentSheet: scopeSheet,
	})
	if err != nil {
		return fmt.Errorf("define name %q: %w", name, err)
	}
	compiled := compile.Compile(expr, &compile.Resolver{Functions: e.registry})

	key := name
	if scoped {
		key = scopedKey(scopeSheet, name)
	}
	e.names[key] = &definedName{scopeSheet: scopeSheet, scoped: scoped, expr: compiled}
	return nil
}
