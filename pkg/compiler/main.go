// Package compiler provides a Jack tokenizer, scope tables and a
// syntax-directed translator that emits stack-VM code.
//
// Pipeline: Jack source → Lex → CompileTokens → VM instruction text
package compiler
