package vmemu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrArgCount = errors.New("wrong number of arguments")

type block struct {
	addr, size int
}

// heap is a first-fit allocator over [base, end).
type heap struct {
	next, end int
	live      map[int]int // address -> size
	free      []block
}

func newHeap(base, end int) heap {
	return heap{next: base, end: end, live: make(map[int]int)}
}

func (h *heap) alloc(size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("invalid allocation size %d", size)
	}
	if size == 0 {
		size = 1
	}
	for i, b := range h.free {
		if b.size < size {
			continue
		}
		if b.size == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = block{addr: b.addr + size, size: b.size - size}
		}
		h.live[b.addr] = size
		return b.addr, nil
	}
	if h.next+size > h.end {
		return 0, fmt.Errorf("%w: %d words requested", ErrOutOfMemory, size)
	}
	addr := h.next
	h.next += size
	h.live[addr] = size
	return addr, nil
}

func (h *heap) release(addr int) error {
	size, ok := h.live[addr]
	if !ok {
		return fmt.Errorf("deAlloc of unallocated address %d", addr)
	}
	delete(h.live, addr)
	h.free = append(h.free, block{addr: addr, size: size})
	return nil
}

// arity wraps fn with an argument count check.
func arity(name string, n int, fn Builtin) Builtin {
	return func(m *Machine, args []int16) (int16, error) {
		if len(args) != n {
			return 0, fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, name, n, len(args))
		}
		return fn(m, args)
	}
}

// registerOS mounts the native OS subset.
func registerOS(m *Machine) {
	table := []struct {
		name string
		n    int
		fn   Builtin
	}{
		{"Memory.alloc", 1, memoryAlloc},
		{"Memory.deAlloc", 1, memoryDeAlloc},
		{"Memory.peek", 1, memoryPeek},
		{"Memory.poke", 2, memoryPoke},
		{"Math.multiply", 2, mathMultiply},
		{"Math.divide", 2, mathDivide},
		{"Math.abs", 1, mathAbs},
		{"Math.min", 2, mathMin},
		{"Math.max", 2, mathMax},
		{"String.new", 1, stringNew},
		{"String.appendChar", 2, stringAppendChar},
		{"String.length", 1, stringLength},
		{"String.charAt", 2, stringCharAt},
		{"Array.new", 1, memoryAlloc},
		{"Array.dispose", 1, memoryDeAlloc},
		{"Output.printInt", 1, outputPrintInt},
		{"Output.printString", 1, outputPrintString},
		{"Output.printChar", 1, outputPrintChar},
		{"Output.println", 0, outputPrintln},
		{"Sys.halt", 0, sysHalt},
	}
	for _, b := range table {
		m.Register(b.name, arity(b.name, b.n, b.fn))
	}
}

func memoryAlloc(m *Machine, args []int16) (int16, error) {
	addr, err := m.heap.alloc(int(args[0]))
	return int16(addr), err
}

func memoryDeAlloc(m *Machine, args []int16) (int16, error) {
	return 0, m.heap.release(int(args[0]))
}

func memoryPeek(m *Machine, args []int16) (int16, error) {
	return m.Read(int(args[0]))
}

func memoryPoke(m *Machine, args []int16) (int16, error) {
	return 0, m.Write(int(args[0]), args[1])
}

func mathMultiply(_ *Machine, args []int16) (int16, error) {
	return args[0] * args[1], nil
}

func mathDivide(_ *Machine, args []int16) (int16, error) {
	if args[1] == 0 {
		return 0, ErrDivideByZero
	}
	return args[0] / args[1], nil
}

func mathAbs(_ *Machine, args []int16) (int16, error) {
	if args[0] < 0 {
		return -args[0], nil
	}
	return args[0], nil
}

func mathMin(_ *Machine, args []int16) (int16, error) {
	return min(args[0], args[1]), nil
}

func mathMax(_ *Machine, args []int16) (int16, error) {
	return max(args[0], args[1]), nil
}

// A String object is laid out as [capacity, length, chars...].

func stringNew(m *Machine, args []int16) (int16, error) {
	capacity := int(args[0])
	if capacity < 0 {
		return 0, fmt.Errorf("String.new: negative capacity %d", capacity)
	}
	addr, err := m.heap.alloc(capacity + 2)
	if err != nil {
		return 0, err
	}
	m.RAM[addr] = int16(capacity)
	m.RAM[addr+1] = 0
	return int16(addr), nil
}

func stringAppendChar(m *Machine, args []int16) (int16, error) {
	s := int(args[0])
	capacity, err := m.Read(s)
	if err != nil {
		return 0, err
	}
	length, err := m.Read(s + 1)
	if err != nil {
		return 0, err
	}
	if length >= capacity {
		return 0, fmt.Errorf("String.appendChar: string full (capacity %d)", capacity)
	}
	if err := m.Write(s+2+int(length), args[1]); err != nil {
		return 0, err
	}
	m.RAM[s+1] = length + 1
	return args[0], nil
}

func stringLength(m *Machine, args []int16) (int16, error) {
	return m.Read(int(args[0]) + 1)
}

func stringCharAt(m *Machine, args []int16) (int16, error) {
	s, i := int(args[0]), int(args[1])
	length, err := m.Read(s + 1)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= int(length) {
		return 0, fmt.Errorf("String.charAt: index %d out of range [0,%d)", i, length)
	}
	return m.Read(s + 2 + i)
}

// StringAt decodes the String object at addr.
func (m *Machine) StringAt(addr int16) (string, error) {
	length, err := m.Read(int(addr) + 1)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 0; i < int(length); i++ {
		c, err := m.Read(int(addr) + 2 + i)
		if err != nil {
			return "", err
		}
		sb.WriteRune(rune(c))
	}
	return sb.String(), nil
}

func outputPrintInt(m *Machine, args []int16) (int16, error) {
	_, err := m.outputSink().Write([]byte(strconv.Itoa(int(args[0]))))
	return 0, err
}

func outputPrintString(m *Machine, args []int16) (int16, error) {
	s, err := m.StringAt(args[0])
	if err != nil {
		return 0, err
	}
	_, err = m.outputSink().Write([]byte(s))
	return 0, err
}

func outputPrintChar(m *Machine, args []int16) (int16, error) {
	_, err := m.outputSink().Write([]byte(string(rune(args[0]))))
	return 0, err
}

func outputPrintln(m *Machine, _ []int16) (int16, error) {
	_, err := m.outputSink().Write([]byte("\n"))
	return 0, err
}

func sysHalt(m *Machine, _ []int16) (int16, error) {
	m.exited = true
	m.Halted = true
	return 0, nil
}
