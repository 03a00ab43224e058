package compiler

import (
	"fmt"
	"strconv"
)

// Compiler translates the token stream of one class straight into VM code.
// Every grammar production is one method; nothing is built in between.
type Compiler struct {
	tokens []Token
	pos    int // index of the next token to consume
	opts   Options

	className string
	subName   string
	subKind   string // constructor, function or method
	syms      *SymbolTable
	nextLabel int // class-wide, never reset between subroutines

	out   *VMWriter // current target; a body buffer inside a subroutine
	class VMWriter  // finished subroutines in source order
	funcs int
}

func newCompiler(tokens []Token, opts Options) *Compiler {
	return &Compiler{
		tokens: tokens,
		opts:   opts,
		syms:   NewSymbolTable(opts.AllowRedeclaration),
	}
}

// peek returns the next token without consuming it.
func (c *Compiler) peek() Token {
	if c.pos < len(c.tokens) {
		return c.tokens[c.pos]
	}
	line := 1
	if n := len(c.tokens); n > 0 {
		line = c.tokens[n-1].Line
	}
	return Token{Type: EOF, Line: line}
}

// next consumes and returns the next token.
func (c *Compiler) next() Token {
	tok := c.peek()
	if c.pos < len(c.tokens) {
		c.pos++
	}
	return tok
}

func (c *Compiler) errExpected(what string) error {
	tok := c.peek()
	return &SyntaxError{Line: tok.Line, Expected: what, Got: tok}
}

func (c *Compiler) expectSymbol(s string) error {
	if !c.peek().IsSymbol(s) {
		return c.errExpected(strconv.Quote(s))
	}
	c.next()
	return nil
}

func (c *Compiler) expectKeyword(words ...string) (Token, error) {
	if !c.peek().IsKeyword(words...) {
		what := strconv.Quote(words[0])
		if len(words) > 1 {
			what = fmt.Sprintf("one of %q", words)
		}
		return Token{}, c.errExpected(what)
	}
	return c.next(), nil
}

func (c *Compiler) expectIdentifier(what string) (Token, error) {
	if c.peek().Type != IDENTIFIER {
		return Token{}, c.errExpected(what)
	}
	return c.next(), nil
}

// compileType consumes int, char, boolean, a class name, or void when allowed.
func (c *Compiler) compileType(allowVoid bool) (string, error) {
	tok := c.peek()
	switch {
	case tok.IsKeyword("int", "char", "boolean"):
	case allowVoid && tok.IsKeyword("void"):
	case tok.Type == IDENTIFIER:
	default:
		return "", c.errExpected("type")
	}
	c.next()
	return tok.Lexeme, nil
}

func (c *Compiler) declare(tok Token, kind Kind, typ string) error {
	if _, err := c.syms.Define(tok.Lexeme, kind, typ); err != nil {
		return &ScopeError{Line: tok.Line, Name: tok.Lexeme, Err: err}
	}
	return nil
}

// resolve looks up a variable reference and checks it can be addressed from
// the current subroutine.
func (c *Compiler) resolve(tok Token) (Var, error) {
	v, ok := c.syms.Lookup(tok.Lexeme)
	if !ok {
		return Var{}, &ScopeError{Line: tok.Line, Name: tok.Lexeme, Err: ErrUndeclaredVariable}
	}
	if v.Kind == Field && c.subKind == "function" {
		return Var{}, &ScopeError{Line: tok.Line, Name: tok.Lexeme, Err: ErrNoReceiver}
	}
	return v, nil
}

func (c *Compiler) pushVar(v Var) {
	c.out.WritePush(v.Kind.Segment(), v.Index)
}

func (c *Compiler) label(n int, role string) string {
	return fmt.Sprintf("%s.%s$%d.%s", c.className, c.subName, n, role)
}

// class: 'class' className '{' classVarDec* subroutineDec* '}'
func (c *Compiler) compileClass() error {
	if _, err := c.expectKeyword("class"); err != nil {
		return err
	}
	name, err := c.expectIdentifier("class name")
	if err != nil {
		return err
	}
	c.className = name.Lexeme
	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	for c.peek().IsKeyword("static", "field") {
		if err := c.compileClassVarDec(); err != nil {
			return err
		}
	}
	for c.peek().IsKeyword("constructor", "function", "method") {
		if err := c.compileSubroutine(); err != nil {
			return err
		}
	}
	if err := c.expectSymbol("}"); err != nil {
		return err
	}
	if c.peek().Type != EOF {
		return c.errExpected("end of input")
	}
	return nil
}

// classVarDec: ('static' | 'field') type varName (',' varName)* ';'
func (c *Compiler) compileClassVarDec() error {
	kw := c.next()
	kind := Static
	if kw.Lexeme == "field" {
		kind = Field
	}
	return c.compileVarList(kind)
}

// varDec: 'var' type varName (',' varName)* ';'
func (c *Compiler) compileVarDec() error {
	c.next() // var
	return c.compileVarList(Local)
}

func (c *Compiler) compileVarList(kind Kind) error {
	typ, err := c.compileType(false)
	if err != nil {
		return err
	}
	for {
		name, err := c.expectIdentifier("variable name")
		if err != nil {
			return err
		}
		if err := c.declare(name, kind, typ); err != nil {
			return err
		}
		if !c.peek().IsSymbol(",") {
			break
		}
		c.next()
	}
	return c.expectSymbol(";")
}

// subroutineDec: ('constructor' | 'function' | 'method') ('void' | type)
// subroutineName '(' parameterList ')' subroutineBody
func (c *Compiler) compileSubroutine() error {
	kw := c.next()
	if _, err := c.compileType(true); err != nil {
		return err
	}
	name, err := c.expectIdentifier("subroutine name")
	if err != nil {
		return err
	}
	c.subKind = kw.Lexeme
	c.subName = name.Lexeme
	c.syms.StartSubroutine()
	if c.subKind == "method" {
		if _, err := c.syms.Define("this", Argument, c.className); err != nil {
			return &ScopeError{Line: kw.Line, Name: "this", Err: err}
		}
	}

	if err := c.expectSymbol("("); err != nil {
		return err
	}
	if err := c.compileParameterList(); err != nil {
		return err
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}

	// The header needs the local count, so the body is buffered first.
	body := &VMWriter{}
	c.out = body
	defer func() { c.out = nil }()

	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	for c.peek().IsKeyword("var") {
		if err := c.compileVarDec(); err != nil {
			return err
		}
	}
	switch c.subKind {
	case "constructor":
		c.out.WritePush(SegConstant, c.syms.Count(Field))
		c.out.WriteCall(fnMemoryAlloc, 1)
		c.out.WritePop(SegPointer, 0)
	case "method":
		c.out.WritePush(SegArgument, 0)
		c.out.WritePop(SegPointer, 0)
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	if err := c.expectSymbol("}"); err != nil {
		return err
	}

	c.class.WriteFunction(c.className+"."+c.subName, c.syms.Count(Local))
	c.class.Append(body)
	c.funcs++
	if c.opts.OnSubroutine != nil {
		c.opts.OnSubroutine(c.className+"."+c.subName, c.syms)
	}
	return nil
}

// parameterList: ((type varName) (',' type varName)*)?
func (c *Compiler) compileParameterList() error {
	if c.peek().IsSymbol(")") {
		return nil
	}
	for {
		typ, err := c.compileType(false)
		if err != nil {
			return err
		}
		name, err := c.expectIdentifier("parameter name")
		if err != nil {
			return err
		}
		if err := c.declare(name, Argument, typ); err != nil {
			return err
		}
		if !c.peek().IsSymbol(",") {
			return nil
		}
		c.next()
	}
}

// statements: statement*
func (c *Compiler) compileStatements() error {
	for {
		tok := c.peek()
		var err error
		switch {
		case tok.IsSymbol("}"):
			return nil
		case tok.IsKeyword("let"):
			err = c.compileLet()
		case tok.IsKeyword("if"):
			err = c.compileIf()
		case tok.IsKeyword("while"):
			err = c.compileWhile()
		case tok.IsKeyword("do"):
			err = c.compileDo()
		case tok.IsKeyword("return"):
			err = c.compileReturn()
		default:
			return c.errExpected("statement")
		}
		if err != nil {
			return err
		}
	}
}

// let: 'let' varName ('[' expression ']')? '=' expression ';'
func (c *Compiler) compileLet() error {
	c.next() // let
	name, err := c.expectIdentifier("variable name")
	if err != nil {
		return err
	}
	v, err := c.resolve(name)
	if err != nil {
		return err
	}

	isArray := false
	if c.peek().IsSymbol("[") {
		c.next()
		c.pushVar(v)
		if err := c.compileExpression(); err != nil {
			return err
		}
		if err := c.expectSymbol("]"); err != nil {
			return err
		}
		c.out.WriteCommand("add")
		isArray = true
	}

	if err := c.expectSymbol("="); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}

	if isArray {
		c.out.WriteArrayStore()
	} else {
		c.out.WritePop(v.Kind.Segment(), v.Index)
	}
	return nil
}

// compileCondition: '(' expression ')' followed by not and a branch to target.
func (c *Compiler) compileCondition(target string) error {
	if err := c.expectSymbol("("); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.expectSymbol(")"); err != nil {
		return err
	}
	c.out.WriteCommand("not")
	c.out.WriteIf(target)
	return nil
}

// compileBlock: '{' statements '}'
func (c *Compiler) compileBlock() error {
	if err := c.expectSymbol("{"); err != nil {
		return err
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	return c.expectSymbol("}")
}

// if: 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
func (c *Compiler) compileIf() error {
	c.next() // if
	n := c.nextLabel
	c.nextLabel++
	start, elseLabel, end := c.label(n, "IF_START"), c.label(n, "IF_ELSE"), c.label(n, "IF_END")

	c.out.WriteLabel(start)
	if err := c.compileCondition(elseLabel); err != nil {
		return err
	}
	if err := c.compileBlock(); err != nil {
		return err
	}
	c.out.WriteGoto(end)
	c.out.WriteLabel(elseLabel)
	if c.peek().IsKeyword("else") {
		c.next()
		if err := c.compileBlock(); err != nil {
			return err
		}
	}
	c.out.WriteLabel(end)
	return nil
}

// while: 'while' '(' expression ')' '{' statements '}'
func (c *Compiler) compileWhile() error {
	c.next() // while
	n := c.nextLabel
	c.nextLabel++
	start, end := c.label(n, "WHILE_START"), c.label(n, "WHILE_END")

	c.out.WriteLabel(start)
	if err := c.compileCondition(end); err != nil {
		return err
	}
	if err := c.compileBlock(); err != nil {
		return err
	}
	c.out.WriteGoto(start)
	c.out.WriteLabel(end)
	return nil
}

// do: 'do' subroutineCall ';'
func (c *Compiler) compileDo() error {
	c.next() // do
	if err := c.compileSubroutineCall(); err != nil {
		return err
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}
	c.out.WritePop(SegTemp, 0)
	return nil
}

// return: 'return' expression? ';'
func (c *Compiler) compileReturn() error {
	c.next() // return
	if c.peek().IsSymbol(";") {
		c.out.WritePush(SegConstant, 0)
	} else if err := c.compileExpression(); err != nil {
		return err
	}
	if err := c.expectSymbol(";"); err != nil {
		return err
	}
	c.out.WriteReturn()
	return nil
}

// expression: term (op term)*, evaluated strictly left to right.
func (c *Compiler) compileExpression() error {
	if err := c.compileTerm(); err != nil {
		return err
	}
	for {
		tok := c.peek()
		if tok.Type != SYMBOL {
			return nil
		}
		cmd, ok := binaryOp(tok.Lexeme)
		if !ok {
			return nil
		}
		c.next()
		if err := c.compileTerm(); err != nil {
			return err
		}
		c.out.WriteCommand(cmd)
	}
}

// term: integerConstant | stringConstant | keywordConstant | varName |
// varName '[' expression ']' | subroutineCall | '(' expression ')' |
// unaryOp term
func (c *Compiler) compileTerm() error {
	tok := c.peek()
	switch tok.Type {
	case INT_CONST:
		c.next()
		n, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return &LexError{Line: tok.Line, Lexeme: tok.Lexeme, Msg: "invalid integer constant"}
		}
		c.out.WritePush(SegConstant, n)
		return nil

	case STRING_CONST:
		c.next()
		c.out.WriteStringConstant(tok.Lexeme)
		return nil

	case KEYWORD:
		switch tok.Lexeme {
		case "true":
			c.out.WritePush(SegConstant, 1)
			c.out.WriteCommand("neg")
		case "false", "null":
			c.out.WritePush(SegConstant, 0)
		case "this":
			c.out.WritePush(SegPointer, 0)
		default:
			return c.errExpected("term")
		}
		c.next()
		return nil

	case SYMBOL:
		if tok.Lexeme == "(" {
			c.next()
			if err := c.compileExpression(); err != nil {
				return err
			}
			return c.expectSymbol(")")
		}
		if cmd, ok := unaryOp(tok.Lexeme); ok {
			c.next()
			if err := c.compileTerm(); err != nil {
				return err
			}
			c.out.WriteCommand(cmd)
			return nil
		}

	case IDENTIFIER:
		save := c.pos
		c.next()
		switch {
		case c.peek().IsSymbol("["):
			v, err := c.resolve(tok)
			if err != nil {
				return err
			}
			c.next()
			c.pushVar(v)
			if err := c.compileExpression(); err != nil {
				return err
			}
			if err := c.expectSymbol("]"); err != nil {
				return err
			}
			c.out.WriteCommand("add")
			c.out.WriteArrayLoad()
			return nil
		case c.peek().IsSymbol("("), c.peek().IsSymbol("."):
			c.pos = save
			return c.compileSubroutineCall()
		default:
			v, err := c.resolve(tok)
			if err != nil {
				return err
			}
			c.pushVar(v)
			return nil
		}
	}
	return c.errExpected("term")
}

// subroutineCall: subroutineName '(' expressionList ')' |
// (className | varName) '.' subroutineName '(' expressionList ')'
func (c *Compiler) compileSubroutineCall() error {
	first, err := c.expectIdentifier("subroutine name")
	if err != nil {
		return err
	}

	if !c.peek().IsSymbol(".") {
		// Implicit self call on the current object.
		c.out.WritePush(SegPointer, 0)
		n, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		c.out.WriteCall(c.className+"."+first.Lexeme, n+1)
		return nil
	}

	c.next() // .
	member, err := c.expectIdentifier("subroutine name")
	if err != nil {
		return err
	}

	if _, ok := c.syms.Lookup(first.Lexeme); ok {
		v, err := c.resolve(first)
		if err != nil {
			return err
		}
		if v.IsPrimitive() {
			return &ScopeError{Line: first.Line, Name: first.Lexeme, Err: ErrPrimitiveReceiver}
		}
		c.pushVar(v)
		n, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		c.out.WriteCall(v.Type+"."+member.Lexeme, n+1)
		return nil
	}

	n, err := c.compileExpressionList()
	if err != nil {
		return err
	}
	c.out.WriteCall(first.Lexeme+"."+member.Lexeme, n)
	return nil
}

// expressionList: '(' (expression (',' expression)*)? ')'
// It returns the number of expressions compiled.
func (c *Compiler) compileExpressionList() (int, error) {
	if err := c.expectSymbol("("); err != nil {
		return 0, err
	}
	if c.peek().IsSymbol(")") {
		c.next()
		return 0, nil
	}
	n := 0
	for {
		if err := c.compileExpression(); err != nil {
			return 0, err
		}
		n++
		if !c.peek().IsSymbol(",") {
			break
		}
		c.next()
	}
	if err := c.expectSymbol(")"); err != nil {
		return 0, err
	}
	return n, nil
}
