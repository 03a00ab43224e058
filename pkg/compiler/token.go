package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	KEYWORD      // class, let, while, ...
	SYMBOL       // single character from symbolSet
	IDENTIFIER   // variable / class / subroutine name
	INT_CONST    // decimal integer literal, 0..32767
	STRING_CONST // "..." without the quotes
)

var tokenNames = [...]string{
	EOF:          "EOF",
	KEYWORD:      "KEYWORD",
	SYMBOL:       "SYMBOL",
	IDENTIFIER:   "IDENTIFIER",
	INT_CONST:    "INT_CONST",
	STRING_CONST: "STRING_CONST",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// MaxInt is the largest integer constant the language accepts.
const MaxInt = 32767

// keywords is the fixed set of reserved words.
var keywords = map[string]bool{
	"class":       true,
	"constructor": true,
	"function":    true,
	"method":      true,
	"field":       true,
	"static":      true,
	"var":         true,
	"int":         true,
	"char":        true,
	"boolean":     true,
	"void":        true,
	"true":        true,
	"false":       true,
	"null":        true,
	"this":        true,
	"let":         true,
	"do":          true,
	"if":          true,
	"else":        true,
	"while":       true,
	"return":      true,
}

// symbolSet holds every single-character symbol.
const symbolSet = "{}()[].,;+-*/&|<>=~"

// Token is a single lexical unit produced by Lex.
type Token struct {
	Type   TokenType
	Lexeme string // source text; string constants exclude the quotes
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}

// Is reports whether t has the given type and lexeme.
func (t Token) Is(tt TokenType, lexeme string) bool {
	return t.Type == tt && t.Lexeme == lexeme
}

// IsKeyword reports whether t is one of the given keywords.
func (t Token) IsKeyword(words ...string) bool {
	if t.Type != KEYWORD {
		return false
	}
	for _, w := range words {
		if t.Lexeme == w {
			return true
		}
	}
	return false
}

// IsSymbol reports whether t is the symbol s.
func (t Token) IsSymbol(s string) bool {
	return t.Is(SYMBOL, s)
}
