// Package builder implements the instruction-builder operations the
// interactive shell front-end needs: an in-memory "current procedure"
// plus one method per instruction kind, kept as a small stateful type
// instead of process-global state so it stays testable and so
// cmd/procctl can hold more than one in a single process if it ever
// needs to.
package builder

import (
	"fmt"

	"github.com/suprax-systems/csp-proc/proc"
)

// Builder holds the procedure currently under construction by the
// shell, plus which slot indices are reserved (read-only to the
// builder; the server itself enforces no such restriction).
type Builder struct {
	current  proc.Procedure
	reserved int
}

// New returns a Builder with RESERVED_PROC_SLOTS reserved slots and an
// empty current procedure, matching the shell's startup state.
func New(reservedSlots int) *Builder {
	return &Builder{reserved: reservedSlots}
}

// ReservedSlots reports how many low slot indices the builder refuses to
// target with Push (enforced by the caller, e.g. cmd/procctl, not here).
func (b *Builder) ReservedSlots() int { return b.reserved }

// IsReserved reports whether slot is read-only to the builder.
func (b *Builder) IsReserved(slot int) bool { return slot < b.reserved }

// NewProc resets the current procedure to empty, mirroring the shell's
// "proc new" subcommand.
func (b *Builder) NewProc() { b.current = proc.Procedure{} }

// Size returns the current procedure's instruction count.
func (b *Builder) Size() int { return b.current.Count() }

// Pop removes the last-appended instruction, if any, mirroring
// "proc pop". With no index argument this pops the tail; the shell's
// "pop [index]" form removing an arbitrary instruction is supported via
// PopAt.
func (b *Builder) Pop() (proc.Instruction, bool) { return b.current.Pop() }

// PopAt removes the instruction at index, shifting later instructions
// down, for "proc pop <index>".
func (b *Builder) PopAt(index int) (proc.Instruction, error) {
	if index < 0 || index >= len(b.current.Instructions) {
		return proc.Instruction{}, fmt.Errorf("builder: pop index %d out of range (size %d)", index, b.Size())
	}
	instr := b.current.Instructions[index]
	b.current.Instructions = append(b.current.Instructions[:index], b.current.Instructions[index+1:]...)
	return instr, nil
}

// List returns a copy of the current procedure's instructions in order,
// for "proc list".
func (b *Builder) List() []proc.Instruction {
	out := make([]proc.Instruction, len(b.current.Instructions))
	copy(out, b.current.Instructions)
	return out
}

// Current returns a deep copy of the procedure under construction, ready
// to hand to a transport.Client.Push call.
func (b *Builder) Current() *proc.Procedure {
	return b.current.DeepCopy()
}

// Load replaces the current procedure wholesale, e.g. after a "proc
// pull" populates it from a remote slot.
func (b *Builder) Load(p *proc.Procedure) {
	b.current = *p.DeepCopy()
}

// Noop appends a NOOP instruction.
func (b *Builder) Noop() error {
	return b.current.Append(proc.Instruction{Type: proc.Noop})
}

// Set appends a SET instruction writing the literal value to param on
// node (0 meaning "this node").
func (b *Builder) Set(node uint16, paramName, value string) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.Set, ParamA: paramName, Value: value})
}

// Block appends a BLOCK instruction.
func (b *Builder) Block(node uint16, a string, op proc.ComparisonOp, c string) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.Block, ParamA: a, CmpOp: op, ParamB: c})
}

// IfElse appends an IFELSE instruction. Nothing rejects a nested
// IFELSE here: the interpreter's flag machine gives it its literal,
// unsupported meaning rather than an error.
func (b *Builder) IfElse(node uint16, a string, op proc.ComparisonOp, c string) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.IfElse, ParamA: a, CmpOp: op, ParamB: c})
}

// Unop appends a UNOP instruction.
func (b *Builder) Unop(node uint16, paramName string, op proc.UnaryOp, result string) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.Unop, ParamA: paramName, UnOp: op, Result: result})
}

// Binop appends a BINOP instruction.
func (b *Builder) Binop(node uint16, a string, op proc.BinaryOp, c string, result string) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.Binop, ParamA: a, BinOp: op, ParamB: c, Result: result})
}

// Call appends a CALL instruction targeting slot.
func (b *Builder) Call(node uint16, slot uint8) error {
	return b.current.Append(proc.Instruction{Node: node, Type: proc.Call, Slot: slot})
}
