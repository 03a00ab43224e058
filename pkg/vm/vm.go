package vm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Op is a VM command.
type Op int

const (
	OpPush Op = iota
	OpPop
	OpAdd
	OpSub
	OpNeg
	OpEq
	OpGt
	OpLt
	OpAnd
	OpOr
	OpNot
	OpLabel
	OpGoto
	OpIfGoto
	OpFunction
	OpCall
	OpReturn
)

var opNames = [...]string{
	OpPush:     "push",
	OpPop:      "pop",
	OpAdd:      "add",
	OpSub:      "sub",
	OpNeg:      "neg",
	OpEq:       "eq",
	OpGt:       "gt",
	OpLt:       "lt",
	OpAnd:      "and",
	OpOr:       "or",
	OpNot:      "not",
	OpLabel:    "label",
	OpGoto:     "goto",
	OpIfGoto:   "if-goto",
	OpFunction: "function",
	OpCall:     "call",
	OpReturn:   "return",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

var zeroOperandOps = map[string]Op{
	"add":    OpAdd,
	"sub":    OpSub,
	"neg":    OpNeg,
	"eq":     OpEq,
	"gt":     OpGt,
	"lt":     OpLt,
	"and":    OpAnd,
	"or":     OpOr,
	"not":    OpNot,
	"return": OpReturn,
}

var memoryOps = map[string]Op{
	"push": OpPush,
	"pop":  OpPop,
}

var branchOps = map[string]Op{
	"label":   OpLabel,
	"goto":    OpGoto,
	"if-goto": OpIfGoto,
}

// segmentLimits holds the exclusive upper bound of each segment's index.
// Zero means unbounded within the address space.
var segmentLimits = map[string]int{
	"constant": 32768,
	"argument": 0,
	"local":    0,
	"static":   240,
	"this":     0,
	"that":     0,
	"pointer":  2,
	"temp":     8,
}

// Instruction is one parsed VM command.
type Instruction struct {
	Op      Op
	Segment string // push/pop
	Index   int    // push/pop index, or the local count of a function
	Name    string // label, branch target, function or callee name
	NArgs   int    // call
	Target  int    // resolved instruction index of a goto/if-goto label
	Line    int
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPush, OpPop:
		return fmt.Sprintf("%s %s %d", in.Op, in.Segment, in.Index)
	case OpLabel, OpGoto, OpIfGoto:
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	case OpFunction:
		return fmt.Sprintf("function %s %d", in.Name, in.Index)
	case OpCall:
		return fmt.Sprintf("call %s %d", in.Name, in.NArgs)
	}
	return in.Op.String()
}

// Program is a parsed, label-resolved instruction stream.
type Program struct {
	Instructions []Instruction
	Functions    map[string]int // qualified name -> index of its function instruction
}

// String renders the program back to VM text, one instruction per line.
func (p *Program) String() string {
	var sb strings.Builder
	for _, in := range p.Instructions {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Parser reads VM text in two passes: the first collects function entries
// and labels, the second builds instructions with resolved branch targets.
type Parser struct {
	labels    map[string]int // function$label -> instruction index
	functions map[string]int
}

type parsedLine struct {
	lineNo   int
	mnemonic string
	operands []string
}

func NewParser() *Parser {
	return &Parser{
		labels:    make(map[string]int),
		functions: make(map[string]int),
	}
}

// Parse reads a complete VM program.
func Parse(code string) (*Program, error) {
	return NewParser().Parse(code)
}

func (p *Parser) Parse(code string) (*Program, error) {
	lines := strings.Split(code, "\n")

	if err := p.pass1(lines); err != nil {
		return nil, err
	}

	return p.pass2(lines)
}

func (p *Parser) pass1(lines []string) error {
	index := 0
	current := ""

	for i, raw := range lines {
		lineNo := i + 1
		pl, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}
		if pl.mnemonic == "" {
			continue
		}

		switch pl.mnemonic {
		case "function":
			if len(pl.operands) != 2 {
				return fmt.Errorf("function expects 2 operands on line %d", lineNo)
			}
			name := pl.operands[0]
			if !isSymbol(name) {
				return fmt.Errorf("invalid function name '%s' on line %d", name, lineNo)
			}
			if _, exists := p.functions[name]; exists {
				return fmt.Errorf("duplicate function '%s' on line %d", name, lineNo)
			}
			p.functions[name] = index
			current = name
		case "label":
			if len(pl.operands) != 1 {
				return fmt.Errorf("label expects 1 operand on line %d", lineNo)
			}
			if current == "" {
				return fmt.Errorf("label '%s' outside a function on line %d", pl.operands[0], lineNo)
			}
			lbl := pl.operands[0]
			if !isSymbol(lbl) {
				return fmt.Errorf("invalid label '%s' on line %d", lbl, lineNo)
			}
			key := scopedLabel(current, lbl)
			if _, exists := p.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			p.labels[key] = index
		}
		index++
	}

	return nil
}

func (p *Parser) pass2(lines []string) (*Program, error) {
	prog := &Program{Functions: p.functions}
	current := ""

	for i, raw := range lines {
		lineNo := i + 1
		pl, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		if pl.mnemonic == "" {
			continue
		}

		mnemonic := pl.mnemonic
		ops := pl.operands
		in := Instruction{Line: lineNo}

		if op, ok := zeroOperandOps[mnemonic]; ok {
			if len(ops) != 0 {
				return nil, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
			}
			in.Op = op
			prog.Instructions = append(prog.Instructions, in)
			continue
		}

		if op, ok := memoryOps[mnemonic]; ok {
			if len(ops) != 2 {
				return nil, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
			}
			idx, err := parseSegmentIndex(ops[0], ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			if op == OpPop && ops[0] == "constant" {
				return nil, fmt.Errorf("cannot pop to constant on line %d", lineNo)
			}
			in.Op, in.Segment, in.Index = op, ops[0], idx
			prog.Instructions = append(prog.Instructions, in)
			continue
		}

		if op, ok := branchOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
			}
			in.Op, in.Name = op, ops[0]
			if op != OpLabel {
				target, ok := p.labels[scopedLabel(current, ops[0])]
				if !ok {
					return nil, fmt.Errorf("undefined label '%s' on line %d", ops[0], lineNo)
				}
				in.Target = target
			}
			prog.Instructions = append(prog.Instructions, in)
			continue
		}

		switch mnemonic {
		case "function":
			n, err := parseCount(ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			in.Op, in.Name, in.Index = OpFunction, ops[0], n
			current = ops[0]
		case "call":
			if len(ops) != 2 {
				return nil, fmt.Errorf("call expects 2 operands on line %d", lineNo)
			}
			if !isSymbol(ops[0]) {
				return nil, fmt.Errorf("invalid function name '%s' on line %d", ops[0], lineNo)
			}
			n, err := parseCount(ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			in.Op, in.Name, in.NArgs = OpCall, ops[0], n
		default:
			return nil, fmt.Errorf("unknown command on line %d: %s", lineNo, mnemonic)
		}
		prog.Instructions = append(prog.Instructions, in)
	}

	return prog, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	pl := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return pl, nil
	}

	fields := strings.Fields(line)
	pl.mnemonic = fields[0]
	if len(fields) > 1 {
		pl.operands = fields[1:]
	}
	return pl, nil
}

func stripComments(line string) string {
	if cut := strings.Index(line, "//"); cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseSegmentIndex(seg, token string, lineNo int) (int, error) {
	limit, ok := segmentLimits[seg]
	if !ok {
		return 0, fmt.Errorf("invalid segment '%s' on line %d", seg, lineNo)
	}
	idx, err := parseCount(token, lineNo)
	if err != nil {
		return 0, err
	}
	if limit > 0 && idx >= limit {
		return 0, fmt.Errorf("%s index out of range on line %d: %d", seg, lineNo, idx)
	}
	return idx, nil
}

func parseCount(token string, lineNo int) (int, error) {
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index '%s' on line %d", token, lineNo)
	}
	return n, nil
}

// isSymbol reports whether s is a valid function or label name: a
// non-digit followed by letters, digits, '_', '.', '$' or ':'.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_.$:", r) {
			return false
		}
	}

	return true
}

func scopedLabel(function, label string) string {
	return function + "$" + label
}

// Link concatenates programs into one, rebasing branch targets and function
// entries. A function defined by more than one program is an error.
func Link(programs ...*Program) (*Program, error) {
	out := &Program{Functions: make(map[string]int)}
	for _, p := range programs {
		base := len(out.Instructions)
		for name, idx := range p.Functions {
			if _, exists := out.Functions[name]; exists {
				return nil, fmt.Errorf("duplicate function '%s' at link time", name)
			}
			out.Functions[name] = base + idx
		}
		for _, in := range p.Instructions {
			if in.Op == OpGoto || in.Op == OpIfGoto {
				in.Target += base
			}
			out.Instructions = append(out.Instructions, in)
		}
	}
	return out, nil
}
