package compiler

import (
	"fmt"
	"strings"
)

// Segment is a VM memory segment.
type Segment string

const (
	SegConstant Segment = "constant"
	SegArgument Segment = "argument"
	SegLocal    Segment = "local"
	SegStatic   Segment = "static"
	SegThis     Segment = "this"
	SegThat     Segment = "that"
	SegPointer  Segment = "pointer"
	SegTemp     Segment = "temp"
)

// Runtime library entry points the generator calls by name.
const (
	fnMemoryAlloc      = "Memory.alloc"
	fnStringNew        = "String.new"
	fnStringAppendChar = "String.appendChar"
	fnMathMultiply     = "Math.multiply"
	fnMathDivide       = "Math.divide"
)

// binaryOps maps a binary operator symbol to its VM command.
var binaryOps = map[string]string{
	"+": "add",
	"-": "sub",
	"*": "call " + fnMathMultiply + " 2",
	"/": "call " + fnMathDivide + " 2",
	"&": "and",
	"|": "or",
	"<": "lt",
	">": "gt",
	"=": "eq",
}

// unaryOps maps a unary operator symbol to its VM command.
var unaryOps = map[string]string{
	"-": "neg",
	"~": "not",
}

func binaryOp(sym string) (string, bool) {
	cmd, ok := binaryOps[sym]
	return cmd, ok
}

func unaryOp(sym string) (string, bool) {
	cmd, ok := unaryOps[sym]
	return cmd, ok
}

// VMWriter accumulates VM instruction lines.
type VMWriter struct {
	lines []string
}

func (w *VMWriter) line(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *VMWriter) WritePush(seg Segment, index int) {
	w.line("push %s %d", seg, index)
}

func (w *VMWriter) WritePop(seg Segment, index int) {
	w.line("pop %s %d", seg, index)
}

// WriteCommand emits an arithmetic/logical command or a pre-rendered
// operator translation.
func (w *VMWriter) WriteCommand(cmd string) {
	w.lines = append(w.lines, cmd)
}

func (w *VMWriter) WriteLabel(label string) {
	w.line("label %s", label)
}

func (w *VMWriter) WriteGoto(label string) {
	w.line("goto %s", label)
}

func (w *VMWriter) WriteIf(label string) {
	w.line("if-goto %s", label)
}

func (w *VMWriter) WriteCall(name string, nArgs int) {
	w.line("call %s %d", name, nArgs)
}

func (w *VMWriter) WriteFunction(name string, nLocals int) {
	w.line("function %s %d", name, nLocals)
}

func (w *VMWriter) WriteReturn() {
	w.lines = append(w.lines, "return")
}

// WriteStringConstant leaves a new String holding s on the stack.
func (w *VMWriter) WriteStringConstant(s string) {
	runes := []rune(s)
	w.WritePush(SegConstant, len(runes))
	w.WriteCall(fnStringNew, 1)
	for _, r := range runes {
		w.WritePush(SegConstant, int(r))
		w.WriteCall(fnStringAppendChar, 2)
	}
}

// WriteArrayStore pops a value and an element address and stores the value
// through pointer 1. The value is parked in temp 0 so the address can be
// popped first.
func (w *VMWriter) WriteArrayStore() {
	w.WritePop(SegTemp, 0)
	w.WritePop(SegPointer, 1)
	w.WritePush(SegTemp, 0)
	w.WritePop(SegThat, 0)
}

// WriteArrayLoad replaces an element address with the element value.
func (w *VMWriter) WriteArrayLoad() {
	w.WritePop(SegPointer, 1)
	w.WritePush(SegThat, 0)
}

// Append copies all lines of other after the lines of w.
func (w *VMWriter) Append(other *VMWriter) {
	w.lines = append(w.lines, other.lines...)
}

// Lines returns the emitted instructions.
func (w *VMWriter) Lines() []string {
	return w.lines
}

// Len returns the number of emitted instructions.
func (w *VMWriter) Len() int {
	return len(w.lines)
}

// String renders the instructions one per line with a trailing newline.
func (w *VMWriter) String() string {
	if len(w.lines) == 0 {
		return ""
	}
	return strings.Join(w.lines, "\n") + "\n"
}
