package terminal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/slatedbg/slate/pkg/debuginfo"
	"github.com/slatedbg/slate/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	// aliases[0] is the full command name, aliases[1] the minimum
	// accepted prefix. Any prefix of the full name at least as long as
	// the minimum also dispatches here.
	aliases []string
	helpMsg string
	cmdFn   cmdfunc

	// allowedStopped marks the commands usable before the inferior has
	// been started.
	allowedStopped bool
}

func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return strings.HasPrefix(c.aliases[0], cmdstr) && len(cmdstr) >= len(c.aliases[1])
}

// Commands holds the command table of the terminal.
type Commands struct {
	cmds []command
}

// DebugCommands returns the default command table.
func DebugCommands() *Commands {
	c := &Commands{}
	c.cmds = []command{
		{aliases: []string{"help", "h"}, allowedStopped: true, cmdFn: helpCommand, helpMsg: "Prints the help message."},
		{aliases: []string{"break", "br"}, cmdFn: breakCommand, helpMsg: `Sets a breakpoint.

	break <function>
	break <file>:<line>`},
		{aliases: []string{"backtrace", "bt"}, cmdFn: backtraceCommand, helpMsg: "Prints the stack frames of the current thread."},
		{aliases: []string{"continue", "c"}, cmdFn: continueCommand, helpMsg: "Runs until a breakpoint is hit or the process terminates."},
		{aliases: []string{"delete", "d"}, cmdFn: deleteCommand, helpMsg: "Removes all breakpoints."},
		{aliases: []string{"finish", "f"}, cmdFn: finishCommand, helpMsg: "Runs to the end of the current stack frame."},
		{aliases: []string{"info", "i"}, cmdFn: infoCommand, helpMsg: "Prints the CPU registers."},
		{aliases: []string{"next", "n"}, cmdFn: nextCommand, helpMsg: "Steps to the next source line, without entering function calls."},
		{aliases: []string{"print", "p"}, cmdFn: printCommand, helpMsg: `Prints the value of a variable.

	print <variable>`},
		{aliases: []string{"quit", "q"}, allowedStopped: true, cmdFn: quitCommand, helpMsg: "Terminates the inferior and exits."},
		{aliases: []string{"set", "se"}, cmdFn: setCommand, helpMsg: `Writes the low 32 bits of a variable.

	set <variable> <value>`},
		{aliases: []string{"start", "sta"}, allowedStopped: true, cmdFn: startCommand, helpMsg: "Launches the target, breaks on main and runs to it."},
		{aliases: []string{"step", "ste"}, cmdFn: stepCommand, helpMsg: `Steps to the next source line, entering function calls.

	step [count]`},
	}
	return c
}

// Merge adds the user-configured aliases to the command table.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

func (c *Commands) find(cmdstr string) *command {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			return &c.cmds[i]
		}
	}
	return nil
}

// call dispatches one parsed command line.
func (c *Commands) call(t *Term, cmdstr, args string) error {
	cmd := c.find(cmdstr)
	if cmd == nil {
		return fmt.Errorf("command %q not available", cmdstr)
	}
	if !cmd.allowedStopped && !t.Running() {
		fmt.Fprintln(t.stdout, "The target is not currently running.")
		return nil
	}
	return cmd.cmdFn(t, args)
}

// parseCommand splits a raw input line into the command word and its
// argument rest, honoring shell-style quoting.
func parseCommand(cmdstr string) (string, string) {
	vals, err := argv.Argv(cmdstr, func(s string) (string, error) { return s, nil }, nil)
	if err != nil || len(vals) == 0 || len(vals[0]) == 0 {
		fields := strings.SplitN(cmdstr, " ", 2)
		if len(fields) == 1 {
			return fields[0], ""
		}
		return fields[0], strings.TrimSpace(fields[1])
	}
	return vals[0][0], strings.Join(vals[0][1:], " ")
}

func helpCommand(t *Term, args string) error {
	if args != "" {
		for _, c := range t.cmds.cmds {
			if c.match(args) {
				fmt.Fprintln(t.stdout, c.helpMsg)
				return nil
			}
		}
		return fmt.Errorf("command %q not available", args)
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '\t', 0)
	sorted := make([]command, len(t.cmds.cmds))
	copy(sorted, t.cmds.cmds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].aliases[0] < sorted[j].aliases[0] })
	for _, c := range sorted {
		h := c.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", c.aliases[0], c.aliases[1], h)
	}
	return w.Flush()
}

func breakCommand(t *Term, args string) error {
	if args == "" {
		fmt.Fprintln(t.stdout, "Expected a breakpoint location.")
		return nil
	}

	var (
		addr uint64
		file string
		line int
		err  error
	)
	if strings.ContainsRune(args, ':') {
		tokens := strings.Split(args, ":")
		if len(tokens) != 2 {
			fmt.Fprintln(t.stdout, "Expected a location of the form <file>:<line>.")
			return nil
		}
		file = tokens[0]
		line, err = strconv.Atoi(tokens[1])
		if err != nil {
			fmt.Fprintf(t.stdout, "Expected a line number, got %q.\n", tokens[1])
			return nil
		}
		addr, err = t.bi.PCForFileLine(line, file)
		if err != nil {
			if errors.Is(err, debuginfo.ErrNotFound) {
				fmt.Fprintf(t.stdout, "Unable to set breakpoint on %s:%d.\n", file, line)
				return nil
			}
			return err
		}
	} else {
		loc, err := t.bi.SourceLocationForFunction(args)
		if err != nil {
			if errors.Is(err, debuginfo.ErrNotFound) {
				fmt.Fprintf(t.stdout, "Function %s not found.\n", args)
				return nil
			}
			return err
		}
		addr, file, line = loc.Address, loc.File, loc.Line
	}

	if _, err := t.target.SetBreakpoint(addr); err != nil {
		if errors.Is(err, proc.ErrBreakpointExists) {
			fmt.Fprintf(t.stdout, "A breakpoint already exists at %#x.\n", addr)
			return nil
		}
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d set at %#x (%s:%d)\n", len(t.target.Breakpoints), addr, file, line)
	return nil
}

func backtraceCommand(t *Term, args string) error {
	frames, err := t.target.Backtrace()
	if err != nil {
		return err
	}
	for i, frame := range frames {
		fmt.Fprintf(t.stdout, "#%d : %s", i, frame.Function)
		if frame.HasLoc {
			fmt.Fprintf(t.stdout, " (%s:%d)", frame.Loc.File, frame.Loc.Line)
		}
		fmt.Fprintln(t.stdout)
	}
	return nil
}

func continueCommand(t *Term, args string) error {
	bp, err := t.target.Continue()
	if err != nil {
		return err
	}
	if bp == nil {
		return nil
	}
	fmt.Fprintf(t.stdout, "Hit breakpoint at %#x", bp.Addr)
	if loc, err := t.bi.SourceLocationForPC(bp.Addr, false); err == nil {
		fmt.Fprintf(t.stdout, " (%s:%d)", loc.File, loc.Line)
	}
	fmt.Fprintln(t.stdout)
	return nil
}

func deleteCommand(t *Term, args string) error {
	n, err := t.target.ClearBreakpoints()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Deleted %d breakpoints.\n", n)
	return nil
}

func finishCommand(t *Term, args string) error {
	retAddr, err := t.target.StepOut()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Run till end of current stack frame (%#x", retAddr)
	if loc, err := t.bi.SourceLocationForPC(retAddr, false); err == nil {
		fmt.Fprintf(t.stdout, ", %s:%d", loc.File, loc.Line)
	}
	fmt.Fprintln(t.stdout, ")")
	return nil
}

func infoCommand(t *Term, args string) error {
	regs, err := t.target.Registers()
	if err != nil {
		return err
	}
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)
	for _, reg := range regs.Slice() {
		fmt.Fprintf(w, "%s\t%d\t(%#x)\n", reg.Name, reg.Value, reg.Value)
	}
	return w.Flush()
}

func nextCommand(t *Term, args string) error {
	loc, err := t.target.Next()
	if err != nil {
		if errors.Is(err, debuginfo.ErrNotFound) {
			fmt.Fprintln(t.stdout, "No debug information available for the current location.")
			return nil
		}
		return err
	}
	fmt.Fprintf(t.stdout, "Stopped at %#x (%s:%d)\n", loc.Address, loc.File, loc.Line)
	return nil
}

func printCommand(t *Term, args string) error {
	if args == "" {
		fmt.Fprintln(t.stdout, "Expected a variable name.")
		return nil
	}
	value, err := t.target.ReadVariable(args)
	if err != nil {
		if errors.Is(err, debuginfo.ErrNotFound) {
			fmt.Fprintf(t.stdout, "Unable to retrieve value for variable %s.\n", args)
			return nil
		}
		return err
	}
	fmt.Fprintf(t.stdout, "%d\n", value)
	return nil
}

func quitCommand(t *Term, args string) error {
	if t.Running() {
		fmt.Fprintf(t.stdout, "Sending SIGTERM to process %d\n", t.target.Pid)
		if err := t.target.Kill(); err != nil {
			return err
		}
	}
	t.quitting = true
	return nil
}

func setCommand(t *Term, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Fprintln(t.stdout, "Expected a variable name and value.")
		return nil
	}
	value, err := strconv.ParseInt(fields[1], 0, 32)
	if err != nil {
		fmt.Fprintf(t.stdout, "Expected an integer value, got %q.\n", fields[1])
		return nil
	}
	if err := t.target.WriteVariable(fields[0], int32(value)); err != nil {
		if errors.Is(err, debuginfo.ErrNotFound) {
			fmt.Fprintf(t.stdout, "No symbol named %s in the current context.\n", fields[0])
			return nil
		}
		return err
	}
	return nil
}

func startCommand(t *Term, args string) error {
	if t.Running() {
		fmt.Fprintln(t.stdout, "The target is already running.")
		return nil
	}

	fmt.Fprintf(t.stdout, "Starting: %s\n", t.path)
	target, err := proc.Launch(t.path, t.bi)
	if err != nil {
		return err
	}
	target.MaxBacktraceDepth = t.conf.MaxBacktraceDepth
	t.target = target

	loc, err := t.bi.SourceLocationForFunction("main")
	if err != nil {
		if errors.Is(err, debuginfo.ErrNotFound) {
			fmt.Fprintln(t.stdout, "Function main not found, running to completion.")
			return continueCommand(t, "")
		}
		return err
	}
	if _, err := t.target.SetBreakpoint(loc.Address); err != nil {
		return err
	}
	return continueCommand(t, "")
}

func stepCommand(t *Term, args string) error {
	count := 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			fmt.Fprintf(t.stdout, "Expected a step count, got %q.\n", args)
			return nil
		}
		count = n
	}

	for i := 0; i < count; i++ {
		loc, err := t.target.Step()
		if err != nil {
			if errors.Is(err, debuginfo.ErrNotFound) {
				fmt.Fprintln(t.stdout, "No debug information available for the current location.")
				return nil
			}
			return err
		}
		fmt.Fprintf(t.stdout, "Stopped at %#x (%s:%d)\n", loc.Address, loc.File, loc.Line)
	}
	return nil
}
