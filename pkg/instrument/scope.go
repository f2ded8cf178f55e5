package instrument

import (
	"github.com/dop251/goja/ast"
)

// ExtractVariablesInScope parses the source and returns the names visible at
// a 1-based line/column position: the innermost enclosing function's
// parameters first, then its own name if it has one, then names declared at
// or before the position within that function, nested function bodies
// excluded. At top level the parameter part is empty and top-level
// declarations apply. Order is source order, without duplicates. A source
// that does not parse yields a *errors.SyntaxError.
func (i *Instrumenter) ExtractVariablesInScope(source string, line, column int) ([]string, error) {
	program, err := parseSource(source)
	if err != nil {
		return nil, err
	}
	ix := newLineIndex(source)
	target := ix.offsetOf(line, column)

	c := &collector{
		src:   source,
		ix:    ix,
		hooks: hookNamesFor(i.prefix),
	}
	c.run(program)

	names := &scopeNames{seen: make(map[string]struct{})}
	body := program.Body
	if idx := innermostFunction(c.functions, target); idx >= 0 {
		for _, p := range c.functions[idx].Params {
			names.add(p)
		}
		names.add(c.fnBodies[idx].self)
		body = c.fnBodies[idx].statements
	}

	d := &declCollector{limit: target, out: names}
	d.statements(body)
	return names.names, nil
}

// innermostFunction returns the index of the smallest function body range
// containing the target offset, or -1 when the position is at top level.
func innermostFunction(functions []FunctionInfo, target int) int {
	best := -1
	bestWidth := 0
	for idx, fn := range functions {
		if target < fn.BodyStart || target > fn.BodyEnd {
			continue
		}
		width := fn.BodyEnd - fn.BodyStart
		if best == -1 || width < bestWidth {
			best = idx
			bestWidth = width
		}
	}
	return best
}

type scopeNames struct {
	names []string
	seen  map[string]struct{}
}

func (s *scopeNames) add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

// declCollector gathers declaration names positioned at or before a byte
// offset. It recurses through blocks and control flow but never into nested
// function bodies, and it never walks expressions: assignments declare
// nothing.
type declCollector struct {
	limit int
	out   *scopeNames
}

func (d *declCollector) before(node ast.Node) bool {
	return int(node.Idx0())-1 <= d.limit
}

func (d *declCollector) statements(list []ast.Statement) {
	for _, stmt := range list {
		d.statement(stmt)
	}
}

func (d *declCollector) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case nil:
	case *ast.BlockStatement:
		d.statements(s.List)
	case *ast.VariableStatement:
		d.bindings(s.List)
	case *ast.LexicalDeclaration:
		d.bindings(s.List)
	case *ast.FunctionDeclaration:
		if s.Function != nil && d.before(s.Function) {
			d.out.add(litName(s.Function))
		}
	case *ast.IfStatement:
		d.statement(s.Consequent)
		d.statement(s.Alternate)
	case *ast.WhileStatement:
		d.statement(s.Body)
	case *ast.DoWhileStatement:
		d.statement(s.Body)
	case *ast.ForStatement:
		d.forInit(s.Initializer)
		d.statement(s.Body)
	case *ast.ForInStatement:
		d.forInto(s.Into)
		d.statement(s.Body)
	case *ast.ForOfStatement:
		d.forInto(s.Into)
		d.statement(s.Body)
	case *ast.TryStatement:
		d.statements(s.Body.List)
		if s.Catch != nil {
			if d.before(s.Catch) {
				targetNames(s.Catch.Parameter, d.out.add)
			}
			d.statements(s.Catch.Body.List)
		}
		if s.Finally != nil {
			d.statements(s.Finally.List)
		}
	case *ast.SwitchStatement:
		for _, clause := range s.Body {
			d.statements(clause.Consequent)
		}
	case *ast.LabelledStatement:
		d.statement(s.Statement)
	case *ast.WithStatement:
		d.statement(s.Body)
	}
}

func (d *declCollector) bindings(list []*ast.Binding) {
	for _, b := range list {
		if b == nil || !d.before(b) {
			continue
		}
		targetNames(b.Target, d.out.add)
	}
}

func (d *declCollector) forInit(init ast.ForLoopInitializer) {
	switch ini := init.(type) {
	case *ast.ForLoopInitializerVarDeclList:
		d.bindings(ini.List)
	case *ast.ForLoopInitializerLexicalDecl:
		d.bindings(ini.LexicalDeclaration.List)
	}
}

func (d *declCollector) forInto(into ast.ForInto) {
	switch in := into.(type) {
	case *ast.ForIntoVar:
		if in.Binding != nil && d.before(in.Binding) {
			targetNames(in.Binding.Target, d.out.add)
		}
	case *ast.ForDeclaration:
		if d.before(in) {
			targetNames(in.Target, d.out.add)
		}
	}
}
