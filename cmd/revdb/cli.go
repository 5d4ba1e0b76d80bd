package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/willibrandon/revdb/pkg/replay"
	"github.com/willibrandon/revdb/pkg/revdb"
)

// CLI is the interactive command loop over a replay navigator
type CLI struct {
	nav      *replay.Navigator
	session  *revdb.Session
	describe func() string
	in       io.Reader
	out      io.Writer
	running  bool
}

// NewCLI creates a command loop. describe renders the program state for
// the info command.
func NewCLI(nav *replay.Navigator, s *revdb.Session, describe func() string, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		nav:      nav,
		session:  s,
		describe: describe,
		in:       in,
		out:      out,
	}
}

// Start runs the command loop until quit or the end of input
func (c *CLI) Start() {
	c.running = true
	scanner := bufio.NewScanner(c.in)

	heading(c.out, "revdb replay navigator")
	c.printHelp()

	for c.running {
		fmt.Fprint(c.out, "(revdb) ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return
		}
		c.handleCommand(strings.TrimSpace(scanner.Text()))
	}
}

// printHelp displays available commands
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  continue (c)          - Run to the next breakpoint")
	fmt.Fprintln(c.out, "  step (s) [n]          - Step forward n steps")
	fmt.Fprintln(c.out, "  backstep (b) [n]      - Step backward n steps")
	fmt.Fprintln(c.out, "  goto (g) <step>       - Go to a step")
	fmt.Fprintln(c.out, "  info (i)              - Show the current position")
	fmt.Fprintln(c.out, "  break (bp) <step>     - Break at a step (or step:N, uid:N)")
	fmt.Fprintln(c.out, "  bp remove|enable|disable <id>")
	fmt.Fprintln(c.out, "  list (l)              - List breakpoints")
	fmt.Fprintln(c.out, "\nGeneral commands:")
	fmt.Fprintln(c.out, "  help (h)              - Show this help message")
	fmt.Fprintln(c.out, "  quit (q)              - Exit")
}

// handleCommand processes user input
func (c *CLI) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "h", "help":
		c.printHelp()
	case "c", "continue":
		c.report(c.nav.Continue())
	case "s", "step":
		if n, ok := c.count(args); ok {
			c.report(c.nav.StepForward(n))
		}
	case "b", "backstep":
		if n, ok := c.count(args); ok {
			c.report(c.nav.StepBackward(n))
		}
	case "g", "goto":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "Usage: goto <step>")
			return
		}
		step, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid step: %v\n", err)
			return
		}
		c.report(c.nav.GoTo(step))
	case "i", "info":
		c.handleInfo()
	case "bp", "break", "breakpoint":
		c.handleBreakpointCommand(args)
	case "l", "list":
		c.handleListBreakpoints()
	case "q", "quit", "exit":
		c.running = false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n", cmd)
		c.printHelp()
	}
}

// count parses an optional step count, defaulting to one
func (c *CLI) count(args []string) (uint64, bool) {
	if len(args) == 0 {
		return 1, true
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || n == 0 {
		fmt.Fprintf(c.out, "Invalid count: %s\n", args[0])
		return 0, false
	}
	return n, true
}

func (c *CLI) report(reason replay.StopReason, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	switch reason {
	case replay.StopBreakpoint:
		fmt.Fprintf(c.out, "Breakpoint hit at step %d\n", c.nav.CurrentStep())
	case replay.StopObject:
		uid, _ := c.session.UniqueID(c.nav.LastObject())
		fmt.Fprintf(c.out, "Object uid:%d allocated at step %d\n", uid, c.nav.CurrentStep())
	case replay.StopFinished:
		fmt.Fprintf(c.out, "Program finished at step %d\n", c.nav.CurrentStep())
	default:
		fmt.Fprintf(c.out, "Now at step %d\n", c.nav.CurrentStep())
	}
}

// handleInfo shows the current position in the recording
func (c *CLI) handleInfo() {
	s := c.session
	fmt.Fprintf(c.out, "Step %d of %d, log offset %d, next uid %d\n",
		s.GetValue(revdb.SelectCurrentStep),
		s.GetValue(revdb.SelectTotalSteps),
		s.GetValue(revdb.SelectOffset),
		s.GetValue(revdb.SelectNextID))
	if c.describe != nil {
		fmt.Fprintf(c.out, "  %s\n", c.describe())
	}
}

// handleBreakpointCommand handles all breakpoint-related commands
func (c *CLI) handleBreakpointCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: breakpoint <step|step:N|uid:N> or <command> <id>")
		fmt.Fprintln(c.out, "Commands: list, remove, enable, disable")
		return
	}

	bm := c.nav.Breakpoints()
	command := args[0]
	switch command {
	case "list":
		c.handleListBreakpoints()
	case "remove", "enable", "disable":
		if len(args) < 2 {
			fmt.Fprintf(c.out, "Usage: bp %s <id>\n", command)
			return
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid breakpoint ID: %v\n", err)
			return
		}

		switch command {
		case "remove":
			err = bm.RemoveBreakpoint(id)
		case "enable":
			err = bm.EnableBreakpoint(id)
		default:
			err = bm.DisableBreakpoint(id)
		}
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "Breakpoint %d: %sd\n", id, strings.TrimSuffix(command, "e"))
	default:
		bp, err := bm.AddBreakpoint(command)
		if err != nil {
			fmt.Fprintf(c.out, "Error setting breakpoint: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "Breakpoint %s\n", bp)
	}
}

// handleListBreakpoints lists all breakpoints
func (c *CLI) handleListBreakpoints() {
	bps := c.nav.Breakpoints().GetBreakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(c.out, "No breakpoints")
		return
	}
	fmt.Fprintln(c.out, "Breakpoints:")
	for _, bp := range bps {
		fmt.Fprintf(c.out, "  %s\n", bp)
	}
}
