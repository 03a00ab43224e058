package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the storage class of a declared variable.
type Kind int

const (
	Static Kind = iota
	Field
	Argument
	Local
)

var kindNames = [...]string{
	Static:   "static",
	Field:    "field",
	Argument: "argument",
	Local:    "local",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Segment returns the VM segment a variable of kind k lives in.
func (k Kind) Segment() Segment {
	switch k {
	case Static:
		return SegStatic
	case Field:
		return SegThis
	case Argument:
		return SegArgument
	case Local:
		return SegLocal
	}
	return ""
}

// Var is one declared variable.
type Var struct {
	Kind  Kind
	Type  string // int, char, boolean or a class name
	Index int    // dense slot within (table, Kind)
}

// IsPrimitive reports whether v's declared type is a built-in scalar.
func (v Var) IsPrimitive() bool {
	switch v.Type {
	case "int", "char", "boolean":
		return true
	}
	return false
}

// scope is a name table owning exactly two storage kinds.
type scope struct {
	kinds   [2]Kind
	vars    map[string]Var
	counts  map[Kind]int
	replace bool // allow redeclaration by overwriting
}

func newScope(replace bool, kinds ...Kind) scope {
	s := scope{
		vars:    make(map[string]Var),
		counts:  make(map[Kind]int),
		replace: replace,
	}
	copy(s.kinds[:], kinds)
	return s
}

func (s *scope) owns(kind Kind) bool {
	return s.kinds[0] == kind || s.kinds[1] == kind
}

// Add declares name with the next free slot of kind.
func (s *scope) Add(name string, kind Kind, typ string) (Var, error) {
	if !s.owns(kind) {
		return Var{}, fmt.Errorf("%w: %s not allowed here", ErrInvalidKind, kind)
	}
	if _, ok := s.vars[name]; ok && !s.replace {
		return Var{}, ErrDuplicateDeclaration
	}
	v := Var{Kind: kind, Type: typ, Index: s.counts[kind]}
	s.vars[name] = v
	s.counts[kind]++
	return v, nil
}

// Get returns the variable declared as name.
func (s *scope) Get(name string) (Var, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Count returns how many variables of kind have been declared.
func (s *scope) Count(kind Kind) int {
	return s.counts[kind]
}

func (s *scope) dump(sb *strings.Builder, indent string) {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.vars[names[i]], s.vars[names[j]]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Index < b.Index
	})
	for _, name := range names {
		v := s.vars[name]
		fmt.Fprintf(sb, "%s%-20s  %s %d (%s)\n", indent, name, v.Kind, v.Index, v.Type)
	}
}

// ClassScope holds the static and field variables of one class.
type ClassScope struct{ scope }

// SubroutineScope holds the arguments and locals of one subroutine.
type SubroutineScope struct{ scope }

func NewClassScope(allowRedeclaration bool) *ClassScope {
	return &ClassScope{newScope(allowRedeclaration, Static, Field)}
}

func NewSubroutineScope(allowRedeclaration bool) *SubroutineScope {
	return &SubroutineScope{newScope(allowRedeclaration, Argument, Local)}
}

// SymbolTable resolves names through the current subroutine scope and then
// the class scope.
type SymbolTable struct {
	class              *ClassScope
	sub                *SubroutineScope
	allowRedeclaration bool
}

func NewSymbolTable(allowRedeclaration bool) *SymbolTable {
	return &SymbolTable{
		class:              NewClassScope(allowRedeclaration),
		sub:                NewSubroutineScope(allowRedeclaration),
		allowRedeclaration: allowRedeclaration,
	}
}

// StartSubroutine discards the previous subroutine scope.
func (s *SymbolTable) StartSubroutine() {
	s.sub = NewSubroutineScope(s.allowRedeclaration)
}

// Define adds name to whichever table owns kind.
func (s *SymbolTable) Define(name string, kind Kind, typ string) (Var, error) {
	if kind == Static || kind == Field {
		return s.class.Add(name, kind, typ)
	}
	return s.sub.Add(name, kind, typ)
}

// Lookup returns the variable declared as name, subroutine scope first.
func (s *SymbolTable) Lookup(name string) (Var, bool) {
	if v, ok := s.sub.Get(name); ok {
		return v, true
	}
	return s.class.Get(name)
}

// Count returns the number of variables of kind in the owning table.
func (s *SymbolTable) Count(kind Kind) int {
	if kind == Static || kind == Field {
		return s.class.Count(kind)
	}
	return s.sub.Count(kind)
}

// String returns a deterministically ordered dump of both tables.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	sb.WriteString("Class:\n")
	s.class.dump(&sb, "  ")
	sb.WriteString("Subroutine:\n")
	s.sub.dump(&sb, "  ")
	return sb.String()
}
