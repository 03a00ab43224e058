package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrUndeclaredVariable   = errors.New("undeclared variable")
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrInvalidKind          = errors.New("invalid storage kind")
	ErrNoReceiver           = errors.New("no object bound")
	ErrPrimitiveReceiver    = errors.New("primitive value used as receiver")
)

// LexError reports a character sequence that is not a valid token.
type LexError struct {
	Line   int
	Lexeme string
	Msg    string
}

func (e *LexError) Error() string {
	if e.Lexeme == "" {
		return fmt.Sprintf("lex error on line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("lex error on line %d: %s %q", e.Line, e.Msg, e.Lexeme)
}

// SyntaxError reports a token that does not fit the grammar at its position.
type SyntaxError struct {
	Line     int
	Expected string
	Got      Token
}

func (e *SyntaxError) Error() string {
	got := e.Got.Lexeme
	if e.Got.Type == EOF {
		got = "end of input"
	}
	return fmt.Sprintf("syntax error on line %d: expected %s, got %q", e.Line, e.Expected, got)
}

// ScopeError reports a name that cannot be declared or resolved.
type ScopeError struct {
	Line int
	Name string
	Err  error
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope error on line %d: %v: %q", e.Line, e.Err, e.Name)
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}
