// Package wire implements the procedure wire codec: packing a proc.Procedure
// into its fixed datagram layout and unpacking it back. The codec
// writes starting at packet offset 2; the first two bytes belong to the
// transport's own framing (message header, slot byte) and are never
// touched here.
//
// ═══════════════════════════════════════════════════════════════════════
// WIRE LAYOUT (offset 2 onward)
// ═══════════════════════════════════════════════════════════════════════
//
//	instruction_count  u8
//	instruction[0..count):
//	  node              u16 little-endian
//	  type              u8
//	  <type-specific body, strings are NUL-terminated>
//	    BLOCK/IFELSE: param_a\0  op u32  param_b\0
//	    SET:          param\0  value\0
//	    UNOP:         param\0  op u32  result\0
//	    BINOP:        param_a\0  op u32  param_b\0  result\0
//	    CALL:         slot u8
//	    NOOP:         (nothing)
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/suprax-systems/csp-proc/proc"
)

// HeaderSize is the number of leading transport-framing bytes the codec
// leaves untouched.
const HeaderSize = 2

// CalcProcSize returns the number of body bytes pack would write for p,
// not counting HeaderSize. Callers compare CalcProcSize(p)+HeaderSize
// against the transport's buffer size before attempting to send.
func CalcProcSize(p *proc.Procedure) (int, error) {
	size := 1 // instruction_count
	for i := range p.Instructions {
		n, err := instructionSize(&p.Instructions[i])
		if err != nil {
			return 0, fmt.Errorf("wire: instruction %d: %w", i, err)
		}
		size += n
	}
	return size, nil
}

func instructionSize(instr *proc.Instruction) (int, error) {
	size := 2 + 1 // node + type
	switch instr.Type {
	case proc.Block, proc.IfElse:
		size += len(instr.ParamA) + 1 + 4 + len(instr.ParamB) + 1
	case proc.Set:
		size += len(instr.ParamA) + 1 + len(instr.Value) + 1
	case proc.Unop:
		size += len(instr.ParamA) + 1 + 4 + len(instr.Result) + 1
	case proc.Binop:
		size += len(instr.ParamA) + 1 + 4 + len(instr.ParamB) + 1 + len(instr.Result) + 1
	case proc.Call:
		size += 1
	case proc.Noop:
		// nothing
	default:
		return 0, fmt.Errorf("%w: type %d", ErrUnknownType, instr.Type)
	}
	return size, nil
}

// Pack encodes p into buf starting at HeaderSize, returning the number of
// bytes written (including the header region, i.e. always >= HeaderSize).
// Pack never mutates p. buf must be at least HeaderSize+CalcProcSize(p)
// bytes; ErrBufferTooSmall is returned otherwise.
func Pack(p *proc.Procedure, buf []byte) (int, error) {
	bodySize, err := CalcProcSize(p)
	if err != nil {
		return 0, err
	}
	total := HeaderSize + bodySize
	if len(buf) < total {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, total, len(buf))
	}
	if len(p.Instructions) > proc.MaxInstructions {
		return 0, fmt.Errorf("wire: instruction count %d exceeds max %d", len(p.Instructions), proc.MaxInstructions)
	}

	off := HeaderSize
	buf[off] = byte(len(p.Instructions))
	off++

	for i := range p.Instructions {
		instr := &p.Instructions[i]
		binary.LittleEndian.PutUint16(buf[off:], instr.Node)
		off += 2
		buf[off] = byte(instr.Type)
		off++

		switch instr.Type {
		case proc.Block, proc.IfElse:
			off = putString(buf, off, instr.ParamA)
			binary.LittleEndian.PutUint32(buf[off:], uint32(instr.CmpOp))
			off += 4
			off = putString(buf, off, instr.ParamB)
		case proc.Set:
			off = putString(buf, off, instr.ParamA)
			off = putString(buf, off, instr.Value)
		case proc.Unop:
			off = putString(buf, off, instr.ParamA)
			binary.LittleEndian.PutUint32(buf[off:], uint32(instr.UnOp))
			off += 4
			off = putString(buf, off, instr.Result)
		case proc.Binop:
			off = putString(buf, off, instr.ParamA)
			binary.LittleEndian.PutUint32(buf[off:], uint32(instr.BinOp))
			off += 4
			off = putString(buf, off, instr.ParamB)
			off = putString(buf, off, instr.Result)
		case proc.Call:
			buf[off] = instr.Slot
			off++
		case proc.Noop:
			// nothing
		default:
			return 0, fmt.Errorf("wire: unknown instruction type %d", instr.Type)
		}
	}
	return off, nil
}

func putString(buf []byte, off int, s string) int {
	n := copy(buf[off:], s)
	buf[off+n] = 0
	return off + n + 1
}

// Unpack decodes a procedure from buf starting at HeaderSize. It bound
// checks every read against len(buf) and fails rather than reading past
// the packet, since the decoder cannot trust an attacker- or bug-supplied
// length field.
func Unpack(buf []byte) (*proc.Procedure, error) {
	if len(buf) < HeaderSize+1 {
		return nil, fmt.Errorf("%w: packet too short for header", ErrMalformed)
	}
	off := HeaderSize
	count := int(buf[off])
	off++

	p := &proc.Procedure{Instructions: make([]proc.Instruction, 0, count)}
	for i := 0; i < count; i++ {
		instr, next, err := unpackInstruction(buf, off)
		if err != nil {
			return nil, fmt.Errorf("wire: instruction %d: %w", i, err)
		}
		p.Instructions = append(p.Instructions, instr)
		off = next
	}
	return p, nil
}

func unpackInstruction(buf []byte, off int) (proc.Instruction, int, error) {
	var instr proc.Instruction
	if off+3 > len(buf) {
		return instr, 0, ErrMalformed
	}
	instr.Node = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	instr.Type = proc.Type(buf[off])
	off++

	var ok bool
	switch instr.Type {
	case proc.Block, proc.IfElse:
		instr.ParamA, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
		if off+4 > len(buf) {
			return instr, 0, ErrMalformed
		}
		instr.CmpOp = proc.ComparisonOp(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		instr.ParamB, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
	case proc.Set:
		instr.ParamA, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
		instr.Value, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
	case proc.Unop:
		instr.ParamA, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
		if off+4 > len(buf) {
			return instr, 0, ErrMalformed
		}
		instr.UnOp = proc.UnaryOp(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		instr.Result, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
	case proc.Binop:
		instr.ParamA, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
		if off+4 > len(buf) {
			return instr, 0, ErrMalformed
		}
		instr.BinOp = proc.BinaryOp(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		instr.ParamB, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
		instr.Result, off, ok = getString(buf, off)
		if !ok {
			return instr, 0, ErrMalformed
		}
	case proc.Call:
		if off+1 > len(buf) {
			return instr, 0, ErrMalformed
		}
		instr.Slot = buf[off]
		off++
	case proc.Noop:
		// nothing
	default:
		return instr, 0, fmt.Errorf("%w: type %d", ErrUnknownType, instr.Type)
	}
	return instr, off, nil
}

// getString reads a NUL-terminated string starting at off, bound-checked
// against len(buf).
func getString(buf []byte, off int) (string, int, bool) {
	for i := off; i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[off:i]), i + 1, true
		}
	}
	return "", 0, false
}
