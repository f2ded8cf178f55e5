package instrument

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

const anonymousName = "<anonymous>"

// funcScope tracks the names visible inside one function (or at top level)
// in first-seen order.
type funcScope struct {
	names []string
	seen  map[string]struct{}
}

func newFuncScope(names []string) *funcScope {
	s := &funcScope{seen: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *funcScope) add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

func (s *funcScope) snapshot() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// collector walks the AST accumulating instrumentation points, function
// records, and text edits. It keeps one name scope per enclosing function so
// each hook call captures the locals visible where it is spliced. A
// declaration joins its scope only after its own statement has been
// instrumented: the hook ahead of "let x = 1" must not touch x while it is
// still in the temporal dead zone.
type collector struct {
	src           string
	ix            *lineIndex
	hooks         HookNames
	functionHooks bool

	edits     []edit
	points    []InstrumentationPoint
	functions []FunctionInfo
	fnBodies  []fnBody

	scopes []*funcScope
	hint   string
}

// fnBody keeps walker-side detail for each FunctionInfo, aligned by index.
// Statements is nil for expression-bodied arrows.
type fnBody struct {
	statements []ast.Statement
	self       string
}

func (c *collector) run(program *ast.Program) {
	c.scopes = []*funcScope{newFuncScope(nil)}
	c.statements(skipDirectives(program.Body))
}

func (c *collector) scope() *funcScope { return c.scopes[len(c.scopes)-1] }

// skipDirectives drops a leading directive prologue ("use strict" and
// friends) so no hook call is ever spliced ahead of it.
func skipDirectives(list []ast.Statement) []ast.Statement {
	i := 0
	for i < len(list) && isDirective(list[i]) {
		i++
	}
	return list[i:]
}

func isDirective(stmt ast.Statement) bool {
	expr, ok := stmt.(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	_, ok = expr.Expression.(*ast.StringLiteral)
	return ok
}

func (c *collector) statements(list []ast.Statement) {
	for _, stmt := range list {
		c.statement(stmt, false)
	}
}

// statement instruments a single statement. wrap is set for unbraced
// control-flow bodies, which gain braces so the hook call and the original
// statement stay a single body.
func (c *collector) statement(stmt ast.Statement, wrap bool) {
	switch s := stmt.(type) {
	case nil:
		return
	case *ast.BlockStatement:
		c.statements(s.List)
	case *ast.EmptyStatement:
		return
	case *ast.FunctionDeclaration:
		// Declarations are hoisted; execution never pauses on them.
		c.scope().add(litName(s.Function))
		c.function(s.Function, "")
	case *ast.DebuggerStatement:
		c.point(stmt, PointDebugger, wrap)
	case *ast.LabelledStatement:
		c.point(stmt, PointStatement, wrap)
		c.labelled(s)
	default:
		c.point(stmt, PointStatement, wrap)
		c.descend(stmt)
	}
}

// point records an instrumentation point for stmt and splices the matching
// hook call ahead of it.
func (c *collector) point(stmt ast.Statement, kind PointKind, wrap bool) {
	offset := int(stmt.Idx0()) - 1
	line, column := c.ix.position(offset)
	c.points = append(c.points, InstrumentationPoint{
		Offset: offset,
		Line:   line,
		Column: column,
		Kind:   kind,
	})

	name := c.hooks.Statement
	if kind == PointDebugger {
		name = c.hooks.Break
	}
	text := hookCall(name, line, column, c.scope().snapshot())
	if wrap {
		text = "{ " + text
	}
	c.edits = append(c.edits, edit{offset: offset, text: text})
	if wrap {
		c.edits = append(c.edits, edit{offset: c.afterStatement(stmt), text: " }"})
	}
}

// afterStatement returns the offset just past a statement's text and one
// trailing semicolon if present, so a closing brace lands after the whole
// statement.
func (c *collector) afterStatement(stmt ast.Statement) int {
	end := int(stmt.Idx1()) - 1
	i := end
	for i < len(c.src) && (c.src[i] == ' ' || c.src[i] == '\t') {
		i++
	}
	if i < len(c.src) && c.src[i] == ';' {
		return i + 1
	}
	return end
}

// labelled walks the children of a labelled statement. The labelled child
// itself gets no separate point: the hook for the construct sits before the
// label.
func (c *collector) labelled(s *ast.LabelledStatement) {
	switch inner := s.Statement.(type) {
	case nil:
		return
	case *ast.BlockStatement:
		c.statements(inner.List)
	case *ast.FunctionDeclaration:
		c.scope().add(litName(inner.Function))
		c.function(inner.Function, "")
	case *ast.LabelledStatement:
		c.labelled(inner)
	default:
		c.descend(inner)
	}
}

func (c *collector) descend(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.expression(s.Expression)
	case *ast.VariableStatement:
		for _, b := range s.List {
			c.binding(b)
		}
	case *ast.LexicalDeclaration:
		for _, b := range s.List {
			c.binding(b)
		}
	case *ast.IfStatement:
		c.expression(s.Test)
		c.statement(s.Consequent, true)
		c.statement(s.Alternate, true)
	case *ast.WhileStatement:
		c.expression(s.Test)
		c.statement(s.Body, true)
	case *ast.DoWhileStatement:
		c.statement(s.Body, true)
		c.expression(s.Test)
	case *ast.ForStatement:
		c.forInit(s.Initializer)
		c.expression(s.Test)
		c.expression(s.Update)
		c.statement(s.Body, true)
	case *ast.ForInStatement:
		c.forInto(s.Into)
		c.expression(s.Source)
		c.statement(s.Body, true)
	case *ast.ForOfStatement:
		c.forInto(s.Into)
		c.expression(s.Source)
		c.statement(s.Body, true)
	case *ast.ReturnStatement:
		c.expression(s.Argument)
	case *ast.ThrowStatement:
		c.expression(s.Argument)
	case *ast.TryStatement:
		c.statements(s.Body.List)
		if s.Catch != nil {
			targetNames(s.Catch.Parameter, c.scope().add)
			c.statements(s.Catch.Body.List)
		}
		if s.Finally != nil {
			c.statements(s.Finally.List)
		}
	case *ast.SwitchStatement:
		c.expression(s.Discriminant)
		for _, clause := range s.Body {
			c.expression(clause.Test)
			c.statements(clause.Consequent)
		}
	case *ast.WithStatement:
		c.expression(s.Object)
		c.statement(s.Body, true)
	}
}

func (c *collector) forInit(init ast.ForLoopInitializer) {
	switch ini := init.(type) {
	case nil:
	case *ast.ForLoopInitializerExpression:
		c.expression(ini.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		for _, b := range ini.List {
			c.binding(b)
		}
	case *ast.ForLoopInitializerLexicalDecl:
		for _, b := range ini.LexicalDeclaration.List {
			c.binding(b)
		}
	}
}

func (c *collector) forInto(into ast.ForInto) {
	switch in := into.(type) {
	case nil:
	case *ast.ForIntoVar:
		c.binding(in.Binding)
	case *ast.ForDeclaration:
		targetNames(in.Target, c.scope().add)
	case *ast.ForIntoExpression:
		c.expression(in.Expression)
	}
}

// binding registers the declared names and walks the initializer. A single
// plain name doubles as the name hint for an anonymous function initializer.
func (c *collector) binding(b *ast.Binding) {
	if b == nil {
		return
	}
	var names []string
	targetNames(b.Target, func(name string) { names = append(names, name) })
	for _, name := range names {
		c.scope().add(name)
	}
	if len(names) == 1 {
		c.hint = names[0]
	}
	c.expression(b.Initializer)
}

// expression walks an expression looking for function literals. The walk is
// shallow by design: constructs it does not recognize are left alone, which
// only means functions nested inside them go unrecorded.
func (c *collector) expression(expr ast.Expression) {
	hint := c.hint
	c.hint = ""
	switch e := expr.(type) {
	case nil:
		return
	case *ast.FunctionLiteral:
		c.function(e, hint)
	case *ast.ArrowFunctionLiteral:
		c.arrow(e, hint)
	case *ast.AssignExpression:
		c.expression(e.Left)
		if e.Operator == token.ASSIGN {
			c.hint = identName(e.Left)
		}
		c.expression(e.Right)
	case *ast.BinaryExpression:
		c.expression(e.Left)
		c.expression(e.Right)
	case *ast.UnaryExpression:
		c.expression(e.Operand)
	case *ast.ConditionalExpression:
		c.expression(e.Test)
		c.expression(e.Consequent)
		c.expression(e.Alternate)
	case *ast.CallExpression:
		c.expression(e.Callee)
		for _, arg := range e.ArgumentList {
			c.expression(arg)
		}
	case *ast.NewExpression:
		c.expression(e.Callee)
		for _, arg := range e.ArgumentList {
			c.expression(arg)
		}
	case *ast.DotExpression:
		c.expression(e.Left)
	case *ast.BracketExpression:
		c.expression(e.Left)
		c.expression(e.Member)
	case *ast.ObjectLiteral:
		c.object(e)
	case *ast.ArrayLiteral:
		for _, el := range e.Value {
			c.expression(el)
		}
	case *ast.SequenceExpression:
		for _, item := range e.Sequence {
			c.expression(item)
		}
	case *ast.SpreadElement:
		c.expression(e.Expression)
	}
}

func (c *collector) object(lit *ast.ObjectLiteral) {
	for _, prop := range lit.Value {
		switch p := prop.(type) {
		case *ast.PropertyKeyed:
			if p.Computed {
				c.expression(p.Key)
			}
			c.hint = propertyKeyName(p.Key)
			c.expression(p.Value)
		case *ast.SpreadElement:
			c.expression(p.Expression)
		}
	}
}

// function records a function literal and instruments its body.
func (c *collector) function(lit *ast.FunctionLiteral, hint string) {
	if lit == nil || lit.Body == nil {
		return
	}
	name := litName(lit)
	if name == "" {
		name = hint
	}
	if name == "" {
		name = anonymousName
	}

	offset := int(lit.Idx0()) - 1
	line, column := c.ix.position(offset)
	params := flattenParams(lit.ParameterList)
	c.functions = append(c.functions, FunctionInfo{
		Name:      name,
		Line:      line,
		Column:    column,
		Params:    params,
		BodyStart: int(lit.Body.Idx0()) - 1,
		BodyEnd:   int(lit.Body.Idx1()) - 1,
	})
	c.fnBodies = append(c.fnBodies, fnBody{statements: lit.Body.List, self: litName(lit)})
	c.instrumentBody(lit.Body, name, params, litName(lit))
}

func (c *collector) arrow(lit *ast.ArrowFunctionLiteral, hint string) {
	name := hint
	if name == "" {
		name = anonymousName
	}
	offset := int(lit.Idx0()) - 1
	line, column := c.ix.position(offset)
	params := flattenParams(lit.ParameterList)

	switch body := lit.Body.(type) {
	case *ast.BlockStatement:
		c.functions = append(c.functions, FunctionInfo{
			Name:      name,
			Line:      line,
			Column:    column,
			Params:    params,
			BodyStart: int(body.Idx0()) - 1,
			BodyEnd:   int(body.Idx1()) - 1,
		})
		c.fnBodies = append(c.fnBodies, fnBody{statements: body.List})
		c.instrumentBody(body, name, params, "")
	case *ast.ExpressionBody:
		// Expression bodies have no block to host hooks; record the
		// function and walk the expression for nested literals.
		c.functions = append(c.functions, FunctionInfo{
			Name:      name,
			Line:      line,
			Column:    column,
			Params:    params,
			BodyStart: int(body.Expression.Idx0()) - 1,
			BodyEnd:   int(body.Expression.Idx1()) - 1,
		})
		c.fnBodies = append(c.fnBodies, fnBody{})
		c.scopes = append(c.scopes, newFuncScope(params))
		c.expression(body.Expression)
		c.scopes = c.scopes[:len(c.scopes)-1]
	}
}

// instrumentBody splices the entry hook and try/finally exit wrapper into a
// block body, then walks its statements under a fresh scope. The entry hook
// goes after any directive prologue so "use strict" keeps its force.
func (c *collector) instrumentBody(block *ast.BlockStatement, name string, params []string, selfName string) {
	bodyStart := int(block.Idx0()) - 1
	bodyEnd := int(block.Idx1()) - 1
	rest := skipDirectives(block.List)

	if c.functionHooks {
		insertAt := bodyStart + 1
		if len(rest) > 0 {
			insertAt = int(rest[0].Idx0()) - 1
		} else if len(block.List) > 0 {
			insertAt = c.afterStatement(block.List[len(block.List)-1])
		}
		entryLine, entryCol := c.ix.position(insertAt)
		c.points = append(c.points, InstrumentationPoint{
			Offset:       insertAt,
			Line:         entryLine,
			Column:       entryCol,
			Kind:         PointEntry,
			FunctionName: name,
		})
		entry := enterCall(c.hooks, name, entryLine, entryCol, params)
		if len(rest) == 0 {
			// Inserting right after "{" or a directive, not at a
			// statement start.
			entry = " " + entry
		}
		c.edits = append(c.edits,
			edit{offset: insertAt, text: entry},
			edit{offset: bodyEnd - 1, text: exitWrapper(c.hooks)},
		)
	}

	scopeNames := make([]string, 0, len(params)+1)
	scopeNames = append(scopeNames, params...)
	if selfName != "" {
		scopeNames = append(scopeNames, selfName)
	}
	c.scopes = append(c.scopes, newFuncScope(scopeNames))
	c.statements(rest)
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func litName(lit *ast.FunctionLiteral) string {
	if lit != nil && lit.Name != nil {
		return string(lit.Name.Name)
	}
	return ""
}

func identName(expr ast.Expression) string {
	if id, ok := expr.(*ast.Identifier); ok {
		return string(id.Name)
	}
	return ""
}

func propertyKeyName(key ast.Expression) string {
	switch k := key.(type) {
	case *ast.Identifier:
		return string(k.Name)
	case *ast.StringLiteral:
		return string(k.Value)
	}
	return ""
}

// targetNames feeds every name bound by a target to add, flattening
// destructuring patterns in source order.
func targetNames(target ast.BindingTarget, add func(string)) {
	switch t := target.(type) {
	case nil:
	case *ast.Identifier:
		add(string(t.Name))
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch p := prop.(type) {
			case *ast.PropertyShort:
				add(string(p.Name.Name))
			case *ast.PropertyKeyed:
				exprPatternNames(p.Value, add)
			}
		}
		exprPatternNames(t.Rest, add)
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			exprPatternNames(el, add)
		}
		exprPatternNames(t.Rest, add)
	}
}

// exprPatternNames handles pattern positions typed as expressions: array
// elements, rest targets, and defaults.
func exprPatternNames(expr ast.Expression, add func(string)) {
	switch e := expr.(type) {
	case nil:
	case *ast.Identifier:
		add(string(e.Name))
	case *ast.AssignExpression:
		exprPatternNames(e.Left, add)
	case *ast.SpreadElement:
		exprPatternNames(e.Expression, add)
	case *ast.ObjectPattern:
		targetNames(e, add)
	case *ast.ArrayPattern:
		targetNames(e, add)
	}
}

func flattenParams(pl *ast.ParameterList) []string {
	if pl == nil {
		return nil
	}
	var names []string
	add := func(name string) { names = append(names, name) }
	for _, b := range pl.List {
		targetNames(b.Target, add)
	}
	exprPatternNames(pl.Rest, add)
	return names
}
