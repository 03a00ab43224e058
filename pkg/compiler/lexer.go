package compiler

import (
	"strconv"
	"strings"
	"unicode"
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

func (l *Lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

// at reports whether the input continues with prefix.
func (l *Lexer) at(prefix string) bool {
	for i, r := range []rune(prefix) {
		if l.pos+i >= len(l.src) || l.src[l.pos+i] != r {
			return false
		}
	}
	return true
}

// advance consumes n runes, counting newlines.
func (l *Lexer) advance(n int) {
	for ; n > 0 && !l.atEnd(); n-- {
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

// skipTrivia consumes whitespace, "//" comments and "/* */" comments
// (which include "/** */" doc comments) until the next lexeme.
func (l *Lexer) skipTrivia() error {
	for !l.atEnd() {
		switch {
		case unicode.IsSpace(l.peek()):
			l.advance(1)
		case l.at("//"):
			for !l.atEnd() && l.peek() != '\n' {
				l.advance(1)
			}
		case l.at("/*"):
			line := l.line
			l.advance(2)
			for !l.at("*/") {
				if l.atEnd() {
					return &LexError{Line: line, Msg: "unterminated block comment"}
				}
				l.advance(1)
			}
			l.advance(2)
		default:
			return nil
		}
	}
	return nil
}

func isSymbol(r rune) bool {
	return strings.ContainsRune(symbolSet, r)
}

// endsLexeme reports whether r closes a pending lexeme.
func endsLexeme(r rune) bool {
	return unicode.IsSpace(r) || isSymbol(r) || r == '"'
}

// scanString collects a string constant. No escapes are processed.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance(1) // opening "
	start := l.pos
	for !l.atEnd() {
		r := l.peek()
		if r == '"' {
			lexeme := string(l.src[start:l.pos])
			l.advance(1)
			return Token{Type: STRING_CONST, Lexeme: lexeme, Line: line}, nil
		}
		if r == '\n' {
			break
		}
		// Each character becomes a "push constant", and invalid UTF-8
		// decodes to U+FFFD, so both fail here.
		if r > MaxInt {
			return Token{}, &LexError{Line: line, Lexeme: string(r), Msg: "character out of range"}
		}
		l.advance(1)
	}
	return Token{}, &LexError{Line: line, Lexeme: string(l.src[start:l.pos]), Msg: "unterminated string constant"}
}

// scanWord collects a pending lexeme up to the next boundary and classifies it.
func (l *Lexer) scanWord() (Token, error) {
	line := l.line
	start := l.pos
	for !l.atEnd() && !endsLexeme(l.peek()) {
		l.advance(1)
	}
	return classify(string(l.src[start:l.pos]), line)
}

// classify applies keyword, identifier, integer precedence to a closed lexeme.
func classify(lexeme string, line int) (Token, error) {
	if keywords[lexeme] {
		return Token{Type: KEYWORD, Lexeme: lexeme, Line: line}, nil
	}
	if isIdentifier(lexeme) {
		return Token{Type: IDENTIFIER, Lexeme: lexeme, Line: line}, nil
	}
	if isDigits(lexeme) {
		n, err := strconv.Atoi(lexeme)
		if err != nil || n > MaxInt {
			return Token{}, &LexError{Line: line, Lexeme: lexeme, Msg: "integer constant out of range"}
		}
		return Token{Type: INT_CONST, Lexeme: lexeme, Line: line}, nil
	}
	return Token{}, &LexError{Line: line, Lexeme: lexeme, Msg: "invalid token"}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r)) {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// nextToken skips trivia and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.atEnd() {
		return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
	}

	ch := l.peek()
	switch {
	case ch == '"':
		return l.scanString()
	case isSymbol(ch):
		line := l.line
		l.advance(1)
		return Token{Type: SYMBOL, Lexeme: string(ch), Line: line}, nil
	default:
		return l.scanWord()
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first invalid lexeme or unterminated
// comment/string.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
