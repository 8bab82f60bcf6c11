// Package proc defines the procedure data model: instructions, procedures,
// and the operator vocabularies they carry. Every other package in this
// module (wire, store, analysis, interp, runtime, builder) operates on
// these types; nothing here depends on them.
package proc

import "fmt"

// MaxInstructions bounds a procedure's instruction count. The cap is 255,
// not 256: the count travels as a single byte on the wire, so it must
// stay strictly below 2^8, and 255 (the full-buffer state) is the
// largest count that byte can hold.
const MaxInstructions = 255

// MaxProcSlot is the highest valid slot index; slots are addressed 0..255.
const MaxProcSlot = 255

// Type tags an Instruction's payload shape.
type Type uint8

const (
	Block Type = iota
	IfElse
	Set
	Unop
	Binop
	Call
	Noop
)

func (t Type) String() string {
	switch t {
	case Block:
		return "BLOCK"
	case IfElse:
		return "IFELSE"
	case Set:
		return "SET"
	case Unop:
		return "UNOP"
	case Binop:
		return "BINOP"
	case Call:
		return "CALL"
	case Noop:
		return "NOOP"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ComparisonOp is the operator carried by BLOCK and IFELSE. It
// occupies four bytes on the wire, the width of a C enum, so packed
// procedures stay byte-compatible with C-side peers.
type ComparisonOp uint32

const (
	CmpEq ComparisonOp = iota
	CmpNeq
	CmpLt
	CmpGt
	CmpLte
	CmpGte
)

var comparisonNames = map[ComparisonOp]string{
	CmpEq: "==", CmpNeq: "!=", CmpLt: "<", CmpGt: ">", CmpLte: "<=", CmpGte: ">=",
}

func (op ComparisonOp) String() string {
	if s, ok := comparisonNames[op]; ok {
		return s
	}
	return fmt.Sprintf("ComparisonOp(%d)", uint32(op))
}

// ParseComparisonOp inverts String() for the builder/shell surface.
func ParseComparisonOp(s string) (ComparisonOp, bool) {
	for op, name := range comparisonNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// UnaryOp is the operator carried by UNOP.
type UnaryOp uint32

const (
	UnopInc UnaryOp = iota
	UnopDec
	UnopNot
	UnopNeg
	UnopIdt
	UnopRmt
)

var unaryNames = map[UnaryOp]string{
	UnopInc: "++", UnopDec: "--", UnopNot: "!", UnopNeg: "neg", UnopIdt: "idt", UnopRmt: "rmt",
}

func (op UnaryOp) String() string {
	if s, ok := unaryNames[op]; ok {
		return s
	}
	return fmt.Sprintf("UnaryOp(%d)", uint32(op))
}

// ParseUnaryOp inverts String().
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for op, name := range unaryNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// BinaryOp is the operator carried by BINOP.
type BinaryOp uint32

const (
	BinopAdd BinaryOp = iota
	BinopSub
	BinopMul
	BinopDiv
	BinopMod
	BinopShl
	BinopShr
	BinopAnd
	BinopOr
	BinopXor
)

var binaryNames = map[BinaryOp]string{
	BinopAdd: "+", BinopSub: "-", BinopMul: "*", BinopDiv: "/", BinopMod: "%",
	BinopShl: "<<", BinopShr: ">>", BinopAnd: "&", BinopOr: "|", BinopXor: "^",
}

func (op BinaryOp) String() string {
	if s, ok := binaryNames[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", uint32(op))
}

// ParseBinaryOp inverts String().
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// Instruction is the tagged record the wire codec, analyzer, and
// interpreter all share. Only the fields relevant to Type are meaningful;
// the rest are zero value: a tagged union flattened into one struct,
// since Go has no union type.
type Instruction struct {
	Node uint16
	Type Type

	// BLOCK, IFELSE
	ParamA string
	CmpOp  ComparisonOp
	ParamB string

	// SET
	Value string

	// UNOP
	UnOp   UnaryOp
	Result string

	// BINOP also uses ParamA, ParamB, Result
	BinOp BinaryOp

	// CALL
	Slot uint8
}

// Procedure is an ordered sequence of at most MaxInstructions instructions.
type Procedure struct {
	Instructions []Instruction
}

// Count returns the instruction count, the value the wire codec stores as
// a single byte.
func (p *Procedure) Count() int {
	return len(p.Instructions)
}

// Append adds an instruction, failing once the procedure is full.
func (p *Procedure) Append(instr Instruction) error {
	if len(p.Instructions) >= MaxInstructions {
		return fmt.Errorf("proc: procedure full (%d instructions)", MaxInstructions)
	}
	p.Instructions = append(p.Instructions, instr)
	return nil
}

// Pop removes and returns the last instruction, if any.
func (p *Procedure) Pop() (Instruction, bool) {
	n := len(p.Instructions)
	if n == 0 {
		return Instruction{}, false
	}
	last := p.Instructions[n-1]
	p.Instructions = p.Instructions[:n-1]
	return last, true
}

// DeepCopy returns a procedure with its own backing instruction slice, so
// the copy can be mutated or freed independently of the original.
func (p *Procedure) DeepCopy() *Procedure {
	cp := &Procedure{Instructions: make([]Instruction, len(p.Instructions))}
	copy(cp.Instructions, p.Instructions)
	return cp
}

// Empty reports whether the procedure has zero instructions, the slot
// store's definition of an empty slot.
func (p *Procedure) Empty() bool {
	return p == nil || len(p.Instructions) == 0
}
