package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/suprax-systems/csp-proc/builder"
	"github.com/suprax-systems/csp-proc/proc"
	"github.com/suprax-systems/csp-proc/transport"
)

// shell bundles the session state the cobra command tree needs to
// implement the "proc" command group: the procedure under construction
// plus the transport client used to reach a node.
type shell struct {
	b      *builder.Builder
	client *transport.Client
}

func newShell(client *transport.Client, reservedSlots int) *shell {
	return &shell{b: builder.New(reservedSlots), client: client}
}

func parseNode(s string) (uint16, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid node %q: %w", s, err)
	}
	return uint16(n), nil
}

func parseSlot(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", s, err)
	}
	return uint8(n), nil
}

// newProcCmd builds the "proc" command group and all its subcommands,
// bound to sh: one subcommand per builder or client operation.
func newProcCmd(sh *shell) *cobra.Command {
	root := &cobra.Command{
		Use:   "proc",
		Short: "Build, push, and run stored procedures",
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Start a new, empty procedure",
			RunE: func(cmd *cobra.Command, args []string) error {
				sh.b.NewProc()
				return nil
			},
		},
		&cobra.Command{
			Use:   "del <slot> [node]",
			Short: "Delete the procedure stored at slot",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				node, err := parseNode(optArg(args, 1))
				if err != nil {
					return err
				}
				return sh.client.Del(cmd.Context(), node, slot)
			},
		},
		&cobra.Command{
			Use:   "pull <slot> [node]",
			Short: "Fetch a stored procedure into the builder",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				node, err := parseNode(optArg(args, 1))
				if err != nil {
					return err
				}
				p, err := sh.client.Pull(cmd.Context(), node, slot)
				if err != nil {
					return err
				}
				sh.b.Load(p)
				fmt.Fprintf(cmd.OutOrStdout(), "pulled %d instructions from slot %d\n", p.Count(), slot)
				return nil
			},
		},
		&cobra.Command{
			Use:   "push <slot> [node]",
			Short: "Push the current procedure to slot",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				node, err := parseNode(optArg(args, 1))
				if err != nil {
					return err
				}
				if sh.b.IsReserved(int(slot)) {
					return fmt.Errorf("slot %d is reserved", slot)
				}
				return sh.client.Push(cmd.Context(), node, slot, sh.b.Current())
			},
		},
		&cobra.Command{
			Use:   "size",
			Short: "Print the current procedure's instruction count",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), sh.b.Size())
				return nil
			},
		},
		&cobra.Command{
			Use:   "pop [index]",
			Short: "Remove the last instruction, or the one at index",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					instr, ok := sh.b.Pop()
					if !ok {
						return fmt.Errorf("procedure is empty")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "popped %s\n", instr.Type)
					return nil
				}
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid index %q: %w", args[0], err)
				}
				instr, err := sh.b.PopAt(idx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "popped %s\n", instr.Type)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the current procedure's instructions",
			RunE: func(cmd *cobra.Command, args []string) error {
				for i, instr := range sh.b.List() {
					fmt.Fprintf(cmd.OutOrStdout(), "%3d: %s\n", i, describeInstruction(instr))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "slots [node]",
			Short: "List occupied slots on node",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				node, err := parseNode(optArg(args, 0))
				if err != nil {
					return err
				}
				slots, err := sh.client.Slots(cmd.Context(), node)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), slots)
				return nil
			},
		},
		&cobra.Command{
			Use:   "run <slot> [node]",
			Short: "Run the procedure stored at slot",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				node, err := parseNode(optArg(args, 1))
				if err != nil {
					return err
				}
				return sh.client.Run(cmd.Context(), node, slot)
			},
		},
		&cobra.Command{
			Use:   "block <a> <op> <b> [node]",
			Short: "Append a BLOCK instruction",
			Args:  cobra.RangeArgs(3, 4),
			RunE: func(cmd *cobra.Command, args []string) error {
				op, ok := proc.ParseComparisonOp(args[1])
				if !ok {
					return fmt.Errorf("unknown comparison operator %q", args[1])
				}
				node, err := parseNode(optArg(args, 3))
				if err != nil {
					return err
				}
				return sh.b.Block(node, args[0], op, args[2])
			},
		},
		&cobra.Command{
			Use:   "ifelse <a> <op> <b> [node]",
			Short: "Append an IFELSE instruction",
			Args:  cobra.RangeArgs(3, 4),
			RunE: func(cmd *cobra.Command, args []string) error {
				op, ok := proc.ParseComparisonOp(args[1])
				if !ok {
					return fmt.Errorf("unknown comparison operator %q", args[1])
				}
				node, err := parseNode(optArg(args, 3))
				if err != nil {
					return err
				}
				return sh.b.IfElse(node, args[0], op, args[2])
			},
		},
		&cobra.Command{
			Use:   "noop",
			Short: "Append a NOOP instruction",
			RunE: func(cmd *cobra.Command, args []string) error {
				return sh.b.Noop()
			},
		},
		&cobra.Command{
			Use:   "set <param> <value> [node]",
			Short: "Append a SET instruction",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				node, err := parseNode(optArg(args, 2))
				if err != nil {
					return err
				}
				return sh.b.Set(node, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unop <param> <op> <result> [node]",
			Short: "Append a UNOP instruction",
			Args:  cobra.RangeArgs(3, 4),
			RunE: func(cmd *cobra.Command, args []string) error {
				op, ok := proc.ParseUnaryOp(args[1])
				if !ok {
					return fmt.Errorf("unknown unary operator %q", args[1])
				}
				node, err := parseNode(optArg(args, 3))
				if err != nil {
					return err
				}
				return sh.b.Unop(node, args[0], op, args[2])
			},
		},
		&cobra.Command{
			Use:   "binop <a> <op> <b> <result> [node]",
			Short: "Append a BINOP instruction",
			Args:  cobra.RangeArgs(4, 5),
			RunE: func(cmd *cobra.Command, args []string) error {
				op, ok := proc.ParseBinaryOp(args[1])
				if !ok {
					return fmt.Errorf("unknown binary operator %q", args[1])
				}
				node, err := parseNode(optArg(args, 4))
				if err != nil {
					return err
				}
				return sh.b.Binop(node, args[0], op, args[2], args[3])
			},
		},
		&cobra.Command{
			Use:   "call <slot> [node]",
			Short: "Append a CALL instruction",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				slot, err := parseSlot(args[0])
				if err != nil {
					return err
				}
				node, err := parseNode(optArg(args, 1))
				if err != nil {
					return err
				}
				return sh.b.Call(node, slot)
			},
		},
	)

	return root
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func describeInstruction(instr proc.Instruction) string {
	switch instr.Type {
	case proc.Block:
		return fmt.Sprintf("BLOCK %s %s %s @node%d", instr.ParamA, instr.CmpOp, instr.ParamB, instr.Node)
	case proc.IfElse:
		return fmt.Sprintf("IFELSE %s %s %s @node%d", instr.ParamA, instr.CmpOp, instr.ParamB, instr.Node)
	case proc.Set:
		return fmt.Sprintf("SET %s = %q @node%d", instr.ParamA, instr.Value, instr.Node)
	case proc.Unop:
		return fmt.Sprintf("UNOP %s %s -> %s @node%d", instr.UnOp, instr.ParamA, instr.Result, instr.Node)
	case proc.Binop:
		return fmt.Sprintf("BINOP %s %s %s -> %s @node%d", instr.ParamA, instr.BinOp, instr.ParamB, instr.Result, instr.Node)
	case proc.Call:
		return fmt.Sprintf("CALL slot %d @node%d", instr.Slot, instr.Node)
	default:
		return instr.Type.String()
	}
}
