package compiler

import (
	"bytes"
	"testing"
)

func TestWriteTokensXML(t *testing.T) {
	tokens, err := Lex(`let s = "a<b"; if (x < y & z) {}`)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteTokensXML(&buf, tokens); err != nil {
		t.Fatalf("WriteTokensXML failed: %v", err)
	}
	want := `<tokens>
<keyword> let </keyword>
<identifier> s </identifier>
<symbol> = </symbol>
<stringConstant> a&lt;b </stringConstant>
<symbol> ; </symbol>
<keyword> if </keyword>
<symbol> ( </symbol>
<identifier> x </identifier>
<symbol> &lt; </symbol>
<identifier> y </identifier>
<symbol> &amp; </symbol>
<identifier> z </identifier>
<symbol> ) </symbol>
<symbol> { </symbol>
<symbol> } </symbol>
</tokens>
`
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}
