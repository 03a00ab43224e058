package vmemu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gojack/pkg/vm"
)

// RAM layout.
const (
	RAMSize = 32768

	SP   = 0
	LCL  = 1
	ARG  = 2
	THIS = 3
	THAT = 4

	TempBase   = 5
	StaticBase = 16
	StaticEnd  = 256
	StackBase  = 256
	HeapBase   = 2048
	HeapEnd    = 16384
)

// DefaultMaxSteps bounds Run when MaxSteps is zero.
const DefaultMaxSteps = 10_000_000

// returnToHost marks the frame pushed by Call; returning through it halts.
const returnToHost = -1

var (
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrUnknownFunction = errors.New("unknown function")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrSegmentation    = errors.New("address out of range")
	ErrDivideByZero    = errors.New("division by zero")
	ErrOutOfMemory     = errors.New("heap exhausted")
	ErrStaticOverflow  = errors.New("static segment exhausted")
)

// Builtin is an OS routine implemented natively. It receives the popped
// arguments in call order and returns the value to push.
type Builtin func(m *Machine, args []int16) (int16, error)

// Machine interprets a linked VM program over a 16-bit RAM.
type Machine struct {
	RAM [RAMSize]int16

	PC     int
	Halted bool
	Steps  int

	// MaxSteps bounds a single Run. Zero means DefaultMaxSteps.
	MaxSteps int

	// Output is where Output.* routines write. If nil, os.Stdout is used.
	Output io.Writer

	prog     *vm.Program
	owner    []string       // class of the function containing each instruction
	statics  map[string]int // class -> first static address
	builtins map[string]Builtin
	heap     heap
	exited   bool // Sys.halt was called
}

// NewMachine prepares prog for execution. Static segments are laid out per
// class in order of first appearance.
func NewMachine(prog *vm.Program) (*Machine, error) {
	m := &Machine{
		prog:     prog,
		owner:    make([]string, len(prog.Instructions)),
		statics:  make(map[string]int),
		builtins: make(map[string]Builtin),
		heap:     newHeap(HeapBase, HeapEnd),
	}

	sizes := make(map[string]int)
	var order []string
	current := ""
	for i, in := range prog.Instructions {
		if in.Op == vm.OpFunction {
			current = className(in.Name)
			if _, seen := sizes[current]; !seen {
				sizes[current] = 0
				order = append(order, current)
			}
		}
		m.owner[i] = current
		if in.Segment == "static" && in.Index+1 > sizes[current] {
			sizes[current] = in.Index + 1
		}
	}
	next := StaticBase
	for _, class := range order {
		m.statics[class] = next
		next += sizes[class]
	}
	if next > StaticEnd {
		return nil, fmt.Errorf("%w: %d words needed", ErrStaticOverflow, next-StaticBase)
	}

	registerOS(m)
	m.Reset()
	return m, nil
}

func className(function string) string {
	if dot := strings.IndexByte(function, '.'); dot >= 0 {
		return function[:dot]
	}
	return function
}

// Register mounts fn as the implementation of name. Functions defined by the
// program take precedence over registered ones.
func (m *Machine) Register(name string, fn Builtin) {
	m.builtins[name] = fn
}

// Reset clears the stack pointers. RAM contents and the heap are kept.
func (m *Machine) Reset() {
	m.RAM[SP] = StackBase
	m.RAM[LCL] = StackBase
	m.RAM[ARG] = StackBase
	m.RAM[THIS] = 0
	m.RAM[THAT] = 0
	m.PC = 0
	m.Halted = true
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

func (m *Machine) push(v int16) error {
	sp := int(m.RAM[SP])
	if sp < StackBase || sp >= HeapBase {
		return ErrStackOverflow
	}
	m.RAM[sp] = v
	m.RAM[SP]++
	return nil
}

func (m *Machine) pop() (int16, error) {
	sp := int(m.RAM[SP])
	if sp <= StackBase {
		return 0, ErrStackUnderflow
	}
	m.RAM[SP]--
	return m.RAM[sp-1], nil
}

// Read returns RAM[addr].
func (m *Machine) Read(addr int) (int16, error) {
	if addr < 0 || addr >= RAMSize {
		return 0, fmt.Errorf("%w: %d", ErrSegmentation, addr)
	}
	return m.RAM[addr], nil
}

// Write stores v at RAM[addr].
func (m *Machine) Write(addr int, v int16) error {
	if addr < 0 || addr >= RAMSize {
		return fmt.Errorf("%w: %d", ErrSegmentation, addr)
	}
	m.RAM[addr] = v
	return nil
}

// address resolves a segment reference of the instruction at pc.
func (m *Machine) address(seg string, index, pc int) (int, error) {
	switch seg {
	case "local":
		return int(m.RAM[LCL]) + index, nil
	case "argument":
		return int(m.RAM[ARG]) + index, nil
	case "this":
		return int(m.RAM[THIS]) + index, nil
	case "that":
		return int(m.RAM[THAT]) + index, nil
	case "pointer":
		return THIS + index, nil
	case "temp":
		return TempBase + index, nil
	case "static":
		return m.statics[m.owner[pc]] + index, nil
	}
	return 0, fmt.Errorf("invalid segment %q", seg)
}

// Call runs name with args to completion and returns its result.
func (m *Machine) Call(name string, args ...int16) (int16, error) {
	m.exited = false
	m.Steps = 0
	for _, a := range args {
		if err := m.push(a); err != nil {
			return 0, err
		}
	}

	if _, ok := m.prog.Functions[name]; !ok {
		fn, ok := m.builtins[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
		}
		m.RAM[SP] -= int16(len(args))
		return fn(m, args)
	}

	if err := m.call(name, len(args), returnToHost); err != nil {
		return 0, err
	}
	m.Halted = false
	if err := m.Run(); err != nil {
		return 0, err
	}
	if m.exited {
		m.Reset()
		return 0, nil
	}
	return m.pop()
}

// call enters a program function, saving the caller frame.
func (m *Machine) call(name string, nArgs, ret int) error {
	entry, ok := m.prog.Functions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	for _, v := range []int16{int16(ret), m.RAM[LCL], m.RAM[ARG], m.RAM[THIS], m.RAM[THAT]} {
		if err := m.push(v); err != nil {
			return err
		}
	}
	m.RAM[ARG] = m.RAM[SP] - int16(nArgs) - 5
	m.RAM[LCL] = m.RAM[SP]
	m.PC = entry
	return nil
}

// callBuiltin pops nArgs arguments, runs fn and pushes its result.
func (m *Machine) callBuiltin(fn Builtin, nArgs int) error {
	sp := int(m.RAM[SP])
	if sp-nArgs < StackBase {
		return ErrStackUnderflow
	}
	args := make([]int16, nArgs)
	copy(args, m.RAM[sp-nArgs:sp])
	m.RAM[SP] -= int16(nArgs)
	res, err := fn(m, args)
	if err != nil {
		return err
	}
	if m.exited {
		return nil
	}
	return m.push(res)
}

func (m *Machine) doReturn() error {
	frame := int(m.RAM[LCL])
	if frame < StackBase+5 || frame >= HeapBase {
		return ErrStackUnderflow
	}
	ret := int(m.RAM[frame-5])
	result, err := m.pop()
	if err != nil {
		return err
	}
	arg := int(m.RAM[ARG])
	if err := m.Write(arg, result); err != nil {
		return err
	}
	m.RAM[SP] = int16(arg + 1)
	m.RAM[THAT] = m.RAM[frame-1]
	m.RAM[THIS] = m.RAM[frame-2]
	m.RAM[ARG] = m.RAM[frame-3]
	m.RAM[LCL] = m.RAM[frame-4]
	if ret == returnToHost {
		m.Halted = true
		return nil
	}
	m.PC = ret
	return nil
}

func boolWord(b bool) int16 {
	if b {
		return -1
	}
	return 0
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.PC < 0 || m.PC >= len(m.prog.Instructions) {
		m.Halted = true
		return fmt.Errorf("program counter out of range: %d", m.PC)
	}

	pc := m.PC
	in := m.prog.Instructions[pc]
	m.Steps++
	if err := m.exec(in, pc); err != nil {
		m.Halted = true
		return fmt.Errorf("%s on line %d: %w", in, in.Line, err)
	}
	return nil
}

func (m *Machine) exec(in vm.Instruction, pc int) error {
	m.PC++

	switch in.Op {
	case vm.OpPush:
		if in.Segment == "constant" {
			return m.push(int16(in.Index))
		}
		addr, err := m.address(in.Segment, in.Index, pc)
		if err != nil {
			return err
		}
		v, err := m.Read(addr)
		if err != nil {
			return err
		}
		return m.push(v)

	case vm.OpPop:
		addr, err := m.address(in.Segment, in.Index, pc)
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.Write(addr, v)

	case vm.OpNeg, vm.OpNot:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if in.Op == vm.OpNeg {
			return m.push(-v)
		}
		return m.push(^v)

	case vm.OpAdd, vm.OpSub, vm.OpEq, vm.OpGt, vm.OpLt, vm.OpAnd, vm.OpOr:
		b, err := m.pop()
		if err != nil {
			return err
		}
		a, err := m.pop()
		if err != nil {
			return err
		}
		var r int16
		switch in.Op {
		case vm.OpAdd:
			r = a + b
		case vm.OpSub:
			r = a - b
		case vm.OpEq:
			r = boolWord(a == b)
		case vm.OpGt:
			r = boolWord(a > b)
		case vm.OpLt:
			r = boolWord(a < b)
		case vm.OpAnd:
			r = a & b
		case vm.OpOr:
			r = a | b
		}
		return m.push(r)

	case vm.OpLabel:
		// No operation.

	case vm.OpGoto:
		m.PC = in.Target

	case vm.OpIfGoto:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v != 0 {
			m.PC = in.Target
		}

	case vm.OpFunction:
		for i := 0; i < in.Index; i++ {
			if err := m.push(0); err != nil {
				return err
			}
		}

	case vm.OpCall:
		if _, ok := m.prog.Functions[in.Name]; ok {
			return m.call(in.Name, in.NArgs, m.PC)
		}
		fn, ok := m.builtins[in.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFunction, in.Name)
		}
		return m.callBuiltin(fn, in.NArgs)

	case vm.OpReturn:
		return m.doReturn()
	}
	return nil
}

// Run steps until the machine halts or MaxSteps is exceeded.
func (m *Machine) Run() error {
	limit := m.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	for !m.Halted {
		if m.Steps >= limit {
			m.Halted = true
			return fmt.Errorf("%w after %d steps", ErrStepLimit, m.Steps)
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}
