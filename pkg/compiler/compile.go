package compiler

import "strings"

// Options tune a single class compilation.
type Options struct {
	// AllowRedeclaration makes a repeated declaration overwrite the earlier
	// one instead of failing with ErrDuplicateDeclaration.
	AllowRedeclaration bool

	// OnSubroutine, if set, is called after each subroutine is compiled with
	// its qualified name and the symbol table still holding its scope.
	OnSubroutine func(name string, syms *SymbolTable)
}

// Output is the VM code of one compiled class.
type Output struct {
	ClassName string
	Lines     []string
	Functions int
}

// String renders the instructions one per line with a trailing newline.
func (o *Output) String() string {
	if len(o.Lines) == 0 {
		return ""
	}
	return strings.Join(o.Lines, "\n") + "\n"
}

// CompileTokens translates the tokens of exactly one class. On error no
// output is returned.
func CompileTokens(tokens []Token, opts Options) (*Output, error) {
	c := newCompiler(tokens, opts)
	if err := c.compileClass(); err != nil {
		return nil, err
	}
	return &Output{
		ClassName: c.className,
		Lines:     c.class.Lines(),
		Functions: c.funcs,
	}, nil
}

// CompileClass tokenizes and translates the source of one class.
func CompileClass(src string, opts Options) (*Output, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return CompileTokens(tokens, opts)
}

// Compile translates one class with default options and returns its VM code.
func Compile(src string) (string, error) {
	out, err := CompileClass(src, Options{})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
