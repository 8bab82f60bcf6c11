// Command procctl is the interactive shell front-end: it exposes the
// "proc" command group either as a one-shot CLI invocation or, with no
// arguments, as a line-oriented REPL.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/transport"
)

func main() {
	var (
		addr          string
		transportKind string
		node          uint16
	)

	cfg := config.Defaults()

	rootCmd := &cobra.Command{
		Use:           "procctl",
		Short:         "Interactive builder and client for csp-proc procedures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "server host:port (udp transport only)")
	rootCmd.PersistentFlags().StringVar(&transportKind, "transport", "udp", "transport: udp or pipe")
	rootCmd.PersistentFlags().Uint16Var(&node, "node", 0, "not consulted: requests with no explicit node arg target node 0")

	client := transport.NewClient(nil)
	client.Port = cfg.TransportPort

	// The transport is built only once cobra has parsed the persistent
	// flags, so --transport and --addr take effect.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		t, err := buildTransport(transportKind, addr)
		if err != nil {
			return err
		}
		client.Transport = t
		return nil
	}

	sh := newShell(client, cfg.ReservedProcSlots)
	rootCmd.AddCommand(newProcCmd(sh))

	if len(os.Args) > 1 {
		rootCmd.SetArgs(os.Args[1:])
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	runREPL(rootCmd)
}

func buildTransport(kind, addr string) (transport.Transport, error) {
	switch kind {
	case "pipe":
		return transport.NewPipeTransport(), nil
	case "udp", "":
		if addr == "" {
			return nil, fmt.Errorf("--addr is required for the udp transport")
		}
		return &transport.UDPTransport{
			Resolve: func(node uint16) (string, error) { return addr, nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

// runREPL reads whitespace-separated command lines from stdin, each
// dispatched through the same cobra command tree a one-shot invocation
// uses, so "proc set p 1" typed interactively behaves identically to
// `procctl proc set p 1` on the command line.
func runREPL(root *cobra.Command) {
	fmt.Println("csp-proc shell -- type 'proc <subcommand>' or 'exit'")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		args := strings.Fields(line)
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}
