// Package analysis implements the static pre-execution analyzer: a
// recursive walk over a procedure's CALL instructions that produces a
// call-graph-shaped tree of Node values, flags each CALL as a tail call
// or not, and breaks cycles by reusing the in-flight analysis node for a
// slot that is already being analyzed.
//
// The tree lives in an arena (a plain slice owned by the Analyzer),
// with a map from slot number to node; nodes are reused by lookup
// instead of by pointer aliasing, and freeing is simply letting the
// Analyzer go out of scope.
package analysis

import "github.com/suprax-systems/csp-proc/proc"

// Fetcher resolves a call-graph edge's callee procedure. Fetch reports
// ok=false for an empty (or not-yet-pushed) slot; that is not an
// analysis-time error, since resolution is deferred to run time so
// push order never matters.
type Fetcher interface {
	Fetch(slot int) (*proc.Procedure, bool)
}

// CallSite is one CALL instruction's analysis: which slot it targets,
// whether it is a tail call, and the (possibly shared) analysis of the
// callee.
type CallSite struct {
	Index      int
	CalleeSlot int
	IsTailCall bool
	Callee     *Node
}

// Node is the analysis of one procedure: its CALL sites in instruction
// order. Proc is nil if the slot was empty when this node was created;
// the interpreter fails the CALL at run time if it is still empty.
type Node struct {
	Slot      int
	Proc      *proc.Procedure
	CallSites []CallSite
}

// Analyzer holds the cycle guard (the "already analyzed / in flight"
// table) for one analysis pass. A fresh Analyzer is created
// per run (see runtime.Supervisor), so the guard never leaks state
// between unrelated procedure runs.
type Analyzer struct {
	fetch Fetcher
	arena []*Node
	index map[int]*Node
}

// New returns an Analyzer that resolves CALL callees via fetch.
func New(fetch Fetcher) *Analyzer {
	return &Analyzer{fetch: fetch, index: make(map[int]*Node)}
}

// Analyze walks root (stored at rootSlot) and returns its analysis node.
func (a *Analyzer) Analyze(root *proc.Procedure, rootSlot int) *Node {
	return a.analyzeSlot(rootSlot, root)
}

func (a *Analyzer) analyzeSlot(slot int, p *proc.Procedure) *Node {
	if n, ok := a.index[slot]; ok {
		return n
	}
	n := &Node{Slot: slot, Proc: p}
	a.index[slot] = n // register in flight before descending: breaks cycles
	a.arena = append(a.arena, n)

	if p == nil {
		return n
	}
	for i := range p.Instructions {
		instr := &p.Instructions[i]
		if instr.Type != proc.Call {
			continue
		}
		calleeSlot := int(instr.Slot)
		callee, ok := a.fetch.Fetch(calleeSlot)
		if !ok {
			callee = nil
		}
		n.CallSites = append(n.CallSites, CallSite{
			Index:      i,
			CalleeSlot: calleeSlot,
			IsTailCall: isTailCall(p, i),
			Callee:     a.analyzeSlot(calleeSlot, callee),
		})
	}
	return n
}

// CallSiteAt returns the analyzed CallSite for the CALL instruction at
// ip, if any.
func (n *Node) CallSiteAt(ip int) (CallSite, bool) {
	for _, cs := range n.CallSites {
		if cs.Index == ip {
			return cs, true
		}
	}
	return CallSite{}, false
}

// isTailCall implements the detection rule from the data model: a CALL
// at index i is a tail call iff nothing but NOOPs follow it, accounting
// for IFELSE's "next instruction is the if-clause, the one after that is
// the else-clause" convention.
func isTailCall(p *proc.Procedure, i int) bool {
	n := len(p.Instructions)
	start := i + 1
	if i > 0 && p.Instructions[i-1].Type == proc.IfElse && i+1 < n {
		start = i + 2
	}
	for j := start; j < n; j++ {
		if p.Instructions[j].Type != proc.Noop {
			return false
		}
	}
	return true
}
