package compiler

import (
	"reflect"
	"testing"
)

func TestVMWriter(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *VMWriter)
		want  []string
	}{
		{
			name:  "Push and pop",
			write: func(w *VMWriter) { w.WritePush(SegConstant, 7); w.WritePop(SegLocal, 2) },
			want:  []string{"push constant 7", "pop local 2"},
		},
		{
			name: "Control flow",
			write: func(w *VMWriter) {
				w.WriteLabel("A.f$0.WHILE_START")
				w.WriteIf("A.f$0.WHILE_END")
				w.WriteGoto("A.f$0.WHILE_START")
			},
			want: []string{"label A.f$0.WHILE_START", "if-goto A.f$0.WHILE_END", "goto A.f$0.WHILE_START"},
		},
		{
			name:  "Function call return",
			write: func(w *VMWriter) { w.WriteFunction("A.f", 3); w.WriteCall("B.g", 2); w.WriteReturn() },
			want:  []string{"function A.f 3", "call B.g 2", "return"},
		},
		{
			name:  "String constant",
			write: func(w *VMWriter) { w.WriteStringConstant("Hi") },
			want: []string{
				"push constant 2",
				"call String.new 1",
				"push constant 72",
				"call String.appendChar 2",
				"push constant 105",
				"call String.appendChar 2",
			},
		},
		{
			name:  "Empty string constant",
			write: func(w *VMWriter) { w.WriteStringConstant("") },
			want:  []string{"push constant 0", "call String.new 1"},
		},
		{
			name:  "Array store",
			write: func(w *VMWriter) { w.WriteArrayStore() },
			want:  []string{"pop temp 0", "pop pointer 1", "push temp 0", "pop that 0"},
		},
		{
			name:  "Array load",
			write: func(w *VMWriter) { w.WriteArrayLoad() },
			want:  []string{"pop pointer 1", "push that 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w VMWriter
			tt.write(&w)
			if !reflect.DeepEqual(w.Lines(), tt.want) {
				t.Errorf("got %q, want %q", w.Lines(), tt.want)
			}
		})
	}
}

func TestVMWriter_Append(t *testing.T) {
	var a, b VMWriter
	a.WriteFunction("A.f", 0)
	b.WritePush(SegConstant, 0)
	b.WriteReturn()
	a.Append(&b)

	if a.Len() != 3 {
		t.Fatalf("expected 3 lines, got %d", a.Len())
	}
	want := "function A.f 0\npush constant 0\nreturn\n"
	if a.String() != want {
		t.Errorf("got %q, want %q", a.String(), want)
	}
	var empty VMWriter
	if empty.String() != "" {
		t.Errorf("empty writer rendered %q", empty.String())
	}
}

func TestOperatorTables(t *testing.T) {
	binary := map[string]string{
		"+": "add", "-": "sub", "&": "and", "|": "or",
		"<": "lt", ">": "gt", "=": "eq",
		"*": "call Math.multiply 2", "/": "call Math.divide 2",
	}
	for sym, want := range binary {
		got, ok := binaryOp(sym)
		if !ok || got != want {
			t.Errorf("binaryOp(%q): expected %q, got %q (%v)", sym, want, got, ok)
		}
	}
	if _, ok := binaryOp("~"); ok {
		t.Errorf("~ must not be a binary operator")
	}
	if got, _ := unaryOp("-"); got != "neg" {
		t.Errorf("unaryOp(-): expected neg, got %q", got)
	}
	if got, _ := unaryOp("~"); got != "not" {
		t.Errorf("unaryOp(~): expected not, got %q", got)
	}
}
