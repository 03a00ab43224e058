// Command jackdump prints the intermediate stages of compiling one Jack
// class: tokens, per-subroutine symbol tables and the generated VM code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sanity-io/litter"

	"gojack/pkg/compiler"
	"gojack/pkg/vm"
)

const testSource = `class Main {
	function void main() {
		var int x;
		let x = 10 + 20;
		do Output.printInt(x);
		return;
	}
}
`

func main() {
	xml := flag.Bool("xml", false, "print tokens as <tokens> XML instead")
	syms := flag.Bool("syms", true, "print the symbol table of each subroutine")
	ir := flag.Bool("ir", false, "dump the parsed VM program")
	flag.Parse()

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *xml {
		if err := compiler.WriteTokensXML(os.Stdout, tokens); err != nil {
			fmt.Fprintln(os.Stderr, "write error:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	opts := compiler.Options{}
	if *syms {
		opts.OnSubroutine = func(name string, st *compiler.SymbolTable) {
			fmt.Printf("Symbols %s\n%s\n", name, st)
		}
	}
	out, err := compiler.CompileTokens(tokens, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Generated VM code")
	fmt.Print(out)
	fmt.Println()

	if *ir {
		prog, err := vm.Parse(out.String())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		litter.Dump(prog)
	}
}
