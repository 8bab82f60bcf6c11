// Package interp implements the bytecode-like interpreter: it walks a
// procedure's instructions against its analysis, evaluating the IFELSE
// flag machine, dispatching UNOP/BINOP through the tagged-operand
// tables in operand.go, and rewriting tail calls into the same stack
// frame rather than recursing.
package interp

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/analysis"
	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/platform"
	"github.com/suprax-systems/csp-proc/proc"
)

// Engine executes procedures against a parameter space. One Engine is
// safe to share across concurrent workers; all per-execution state
// (the IFELSE flag, the instruction pointer, the recursion depth) is
// local to a single Run call.
type Engine struct {
	Params param.Space
	Clock  platform.Clock
	Config config.Config
	Log    *logrus.Entry
}

// New returns an Engine.
func New(params param.Space, clock platform.Clock, cfg config.Config) *Engine {
	return &Engine{Params: params, Clock: clock, Config: cfg, Log: logrus.WithField("component", "interp")}
}

// Run executes root's analyzed form to completion or failure.
func (e *Engine) Run(ctx context.Context, root *proc.Procedure, node *analysis.Node) error {
	return e.runLoop(ctx, root, node, 0)
}

// runLoop is the interpreter's core. depth counts only non-tail CALL
// recursion: a tail call rewrites p/node/ip in place within this same
// call and does not increment depth, giving unbounded tail recursion in
// O(1) Go stack frames; a non-tail CALL recurses into runLoop at
// depth+1, so the Go call stack (and this counter) grow together and
// MaxRecursionDepth bounds both.
func (e *Engine) runLoop(ctx context.Context, p *proc.Procedure, node *analysis.Node, depth int) error {
	if depth > e.Config.MaxRecursionDepth {
		return ErrRecursionDepthExceeded
	}

	flag := IfElseNone
	ip := 0
	for ip < len(p.Instructions) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if flag == IfElseFalse {
			flag = IfElseNone
			ip++
			continue
		}
		if flag == IfElseTrue {
			flag = IfElseFalse
		}

		instr := &p.Instructions[ip]
		switch instr.Type {
		case proc.Noop:
			ip++

		case proc.Block:
			if err := e.execBlock(ctx, instr); err != nil {
				return err
			}
			ip++

		case proc.IfElse:
			f, err := e.evalComparison(instr)
			if err != nil {
				return err
			}
			flag = f
			ip++

		case proc.Set:
			if err := e.execSet(instr); err != nil {
				return err
			}
			ip++

		case proc.Unop:
			if err := e.execUnop(instr); err != nil {
				return err
			}
			ip++

		case proc.Binop:
			if err := e.execBinop(instr); err != nil {
				return err
			}
			ip++

		case proc.Call:
			cs, ok := node.CallSiteAt(ip)
			if !ok {
				return fmt.Errorf("interp: no analysis recorded for call at instruction %d", ip)
			}
			callee := cs.Callee
			if callee.Proc.Empty() {
				return fmt.Errorf("%w: slot %d", ErrCalleeSlotEmpty, cs.CalleeSlot)
			}
			if cs.IsTailCall {
				p = callee.Proc
				node = callee
				flag = IfElseNone
				ip = 0
				continue
			}
			if err := e.runLoop(ctx, callee.Proc, callee, depth+1); err != nil {
				return err
			}
			ip++

		default:
			return fmt.Errorf("%w: %s", ErrUnknownInstructionType, instr.Type)
		}
	}
	return nil
}

func (e *Engine) isLocal(node uint16) bool {
	return node == 0 || node == e.Params.LocalNode()
}

func (e *Engine) fetchOperand(node uint16, expr string) (param.Value, error) {
	name, index, hasIndex := ScanParamOffset(expr)
	idx := param.NoIndex
	if hasIndex {
		idx = index
	}
	if e.isLocal(node) {
		return e.Params.Get(name, idx)
	}
	if err := e.Params.DownloadRemoteList(node, e.Config.ParamRemoteTimeout); err != nil {
		return param.Value{}, err
	}
	return e.Params.PullRemote(name, idx, node, e.Config.ParamRemoteTimeout)
}

func (e *Engine) setOperand(node uint16, expr string, v param.Value) error {
	name, index, hasIndex := ScanParamOffset(expr)
	idx := param.NoIndex
	if hasIndex {
		idx = index
	}
	if e.isLocal(node) {
		return e.Params.Set(name, idx, v)
	}
	return e.Params.PushRemote(name, idx, v, node, e.Config.ParamRemoteTimeout, e.Config.ParamAckOnPush)
}

// evalComparison is shared by IFELSE and BLOCK (BLOCK polls it on a
// timer; IFELSE evaluates it once).
func (e *Engine) evalComparison(instr *proc.Instruction) (IfElseFlag, error) {
	a, err := e.fetchOperand(instr.Node, instr.ParamA)
	if err != nil {
		return IfElseErr, err
	}
	b, err := e.fetchOperand(instr.Node, instr.ParamB)
	if err != nil {
		return IfElseErr, err
	}
	if a.Type != b.Type {
		return IfElseErrType, fmt.Errorf("%w: %s vs %s", ErrParamTypeMismatch, a.Type, b.Type)
	}
	result, err := compare(a, b, instr.CmpOp, e.Config.FloatEpsilon)
	if err != nil {
		return IfElseErrType, err
	}
	if result {
		return IfElseTrue, nil
	}
	return IfElseFalse, nil
}

// execBlock repeatedly evaluates the same comparison IFELSE would,
// sleeping MinBlockPeriod between attempts, until it is true or
// MaxBlockTimeout has elapsed.
func (e *Engine) execBlock(ctx context.Context, instr *proc.Instruction) error {
	deadline := e.Clock.Now().Add(e.Config.MaxBlockTimeout)
	for {
		flag, err := e.evalComparison(instr)
		if err != nil {
			return err
		}
		if flag == IfElseTrue {
			return nil
		}
		if !e.Clock.Now().Before(deadline) {
			return ErrBlockTimeout
		}
		if err := e.Clock.Sleep(ctx, e.Config.MinBlockPeriod); err != nil {
			return err
		}
	}
}

func (e *Engine) execSet(instr *proc.Instruction) error {
	name, index, hasIndex := ScanParamOffset(instr.ParamA)
	idx := param.NoIndex
	if hasIndex {
		idx = index
	}
	if e.isLocal(instr.Node) {
		v, err := e.Params.StringToValue(name, instr.Value)
		if err != nil {
			return err
		}
		return e.Params.Set(name, idx, v)
	}
	// The coercion needs the remote parameter's type, so the remote
	// node's descriptor list must be cached before StringToValue runs.
	if err := e.Params.DownloadRemoteList(instr.Node, e.Config.ParamRemoteTimeout); err != nil {
		return err
	}
	v, err := e.Params.StringToValue(name, instr.Value)
	if err != nil {
		return err
	}
	return e.Params.PushRemote(name, idx, v, instr.Node, e.Config.ParamRemoteTimeout, e.Config.ParamAckOnPush)
}

// execUnop fetches the source, computes, and stores the result. The
// source is read from the instruction's target node and the result is
// written locally; UnopRmt swaps the locality, reading from the local
// node and writing the result to the instruction's target node.
func (e *Engine) execUnop(instr *proc.Instruction) error {
	fetchNode := instr.Node
	resultNode := uint16(0)
	if instr.UnOp == proc.UnopRmt {
		fetchNode = 0
		resultNode = instr.Node
	}

	v, err := e.fetchOperand(fetchNode, instr.ParamA)
	if err != nil {
		return err
	}
	result, err := applyUnop(instr.UnOp, v)
	if err != nil {
		return err
	}
	return e.setOperand(resultNode, instr.Result, result)
}

func (e *Engine) execBinop(instr *proc.Instruction) error {
	a, err := e.fetchOperand(instr.Node, instr.ParamA)
	if err != nil {
		return err
	}
	b, err := e.fetchOperand(instr.Node, instr.ParamB)
	if err != nil {
		return err
	}
	if a.Type != b.Type {
		return fmt.Errorf("%w: %s vs %s", ErrParamTypeMismatch, a.Type, b.Type)
	}
	result, err := applyBinop(instr.BinOp, a, b)
	if err != nil {
		return err
	}
	return e.setOperand(instr.Node, instr.Result, result)
}
