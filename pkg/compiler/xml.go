package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var xmlTags = map[TokenType]string{
	KEYWORD:      "keyword",
	SYMBOL:       "symbol",
	IDENTIFIER:   "identifier",
	INT_CONST:    "integerConstant",
	STRING_CONST: "stringConstant",
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// WriteTokensXML writes tokens in the <tokens> listing format, one element
// per line. The EOF sentinel is not written.
func WriteTokensXML(w io.Writer, tokens []Token) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "<tokens>")
	for _, tok := range tokens {
		tag, ok := xmlTags[tok.Type]
		if !ok {
			continue
		}
		fmt.Fprintf(bw, "<%s> %s </%s>\n", tag, xmlEscaper.Replace(tok.Lexeme), tag)
	}
	fmt.Fprintln(bw, "</tokens>")
	return bw.Flush()
}
