package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestSymbolTable(t *testing.T) {
	t.Run("DenseIndicesPerKind", func(t *testing.T) {
		s := NewSymbolTable(false)
		mustDefine(t, s, "count", Static, "int")
		mustDefine(t, s, "x", Field, "int")
		mustDefine(t, s, "y", Field, "int")
		mustDefine(t, s, "cache", Static, "Array")

		tests := []struct {
			name  string
			kind  Kind
			index int
		}{
			{"count", Static, 0},
			{"cache", Static, 1},
			{"x", Field, 0},
			{"y", Field, 1},
		}
		for _, tt := range tests {
			v, ok := s.Lookup(tt.name)
			if !ok {
				t.Fatalf("%s: not found", tt.name)
			}
			if v.Kind != tt.kind || v.Index != tt.index {
				t.Errorf("%s: expected %s %d, got %s %d", tt.name, tt.kind, tt.index, v.Kind, v.Index)
			}
		}
		if n := s.Count(Field); n != 2 {
			t.Errorf("field count: expected 2, got %d", n)
		}
		if n := s.Count(Static); n != 2 {
			t.Errorf("static count: expected 2, got %d", n)
		}
	})

	t.Run("SubroutineShadowsClass", func(t *testing.T) {
		s := NewSymbolTable(false)
		mustDefine(t, s, "x", Field, "int")
		s.StartSubroutine()
		mustDefine(t, s, "x", Local, "char")

		v, _ := s.Lookup("x")
		if v.Kind != Local || v.Type != "char" {
			t.Errorf("expected local char x, got %s %s", v.Kind, v.Type)
		}
	})

	t.Run("StartSubroutineResets", func(t *testing.T) {
		s := NewSymbolTable(false)
		mustDefine(t, s, "f", Field, "int")
		mustDefine(t, s, "a", Argument, "int")
		mustDefine(t, s, "i", Local, "int")

		s.StartSubroutine()
		if _, ok := s.Lookup("a"); ok {
			t.Errorf("argument a survived StartSubroutine")
		}
		if _, ok := s.Lookup("f"); !ok {
			t.Errorf("field f lost on StartSubroutine")
		}
		if n := s.Count(Local); n != 0 {
			t.Errorf("local count: expected 0, got %d", n)
		}
		v := mustDefine(t, s, "b", Argument, "int")
		if v.Index != 0 {
			t.Errorf("argument index after reset: expected 0, got %d", v.Index)
		}
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		s := NewSymbolTable(false)
		mustDefine(t, s, "x", Field, "int")
		_, err := s.Define("x", Static, "int")
		if !errors.Is(err, ErrDuplicateDeclaration) {
			t.Errorf("expected ErrDuplicateDeclaration, got %v", err)
		}
	})

	t.Run("DuplicateOverwrites", func(t *testing.T) {
		s := NewSymbolTable(true)
		mustDefine(t, s, "x", Local, "int")
		mustDefine(t, s, "x", Local, "boolean")

		v, _ := s.Lookup("x")
		if v.Index != 1 || v.Type != "boolean" {
			t.Errorf("expected boolean at 1, got %s at %d", v.Type, v.Index)
		}
		if n := s.Count(Local); n != 2 {
			t.Errorf("local count: expected 2, got %d", n)
		}
	})

	t.Run("UnknownName", func(t *testing.T) {
		s := NewSymbolTable(false)
		if _, ok := s.Lookup("nope"); ok {
			t.Errorf("expected lookup miss")
		}
	})
}

func TestScopeKinds(t *testing.T) {
	cs := NewClassScope(false)
	if _, err := cs.Add("a", Local, "int"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("class scope accepted local: %v", err)
	}
	ss := NewSubroutineScope(false)
	if _, err := ss.Add("a", Field, "int"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("subroutine scope accepted field: %v", err)
	}
	if _, err := ss.Add("a", Argument, "int"); err != nil {
		t.Errorf("subroutine scope rejected argument: %v", err)
	}
}

func TestSymbolTable_String(t *testing.T) {
	s := NewSymbolTable(false)
	mustDefine(t, s, "y", Field, "int")
	mustDefine(t, s, "x", Static, "Point")
	mustDefine(t, s, "i", Local, "int")

	dump := s.String()
	for _, want := range []string{"Class:", "Subroutine:", "static 0 (Point)", "field 0 (int)", "local 0 (int)"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
	if strings.Index(dump, "x ") > strings.Index(dump, "y ") {
		t.Errorf("statics should be listed before fields:\n%s", dump)
	}
	if dump != s.String() {
		t.Errorf("dump is not deterministic")
	}
}

func TestKind_Segment(t *testing.T) {
	tests := []struct {
		kind Kind
		seg  Segment
	}{
		{Static, SegStatic},
		{Field, SegThis},
		{Argument, SegArgument},
		{Local, SegLocal},
	}
	for _, tt := range tests {
		if got := tt.kind.Segment(); got != tt.seg {
			t.Errorf("%s: expected %s, got %s", tt.kind, tt.seg, got)
		}
	}
}

func mustDefine(t *testing.T, s *SymbolTable, name string, kind Kind, typ string) Var {
	t.Helper()
	v, err := s.Define(name, kind, typ)
	if err != nil {
		t.Fatalf("Define(%s) failed: %v", name, err)
	}
	return v
}
