// Package terminal implements the interactive command loop: reading user
// input, dispatching to the debugger commands and rendering their
// results.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/slatedbg/slate/pkg/config"
	"github.com/slatedbg/slate/pkg/debuginfo"
	"github.com/slatedbg/slate/pkg/elffile"
	"github.com/slatedbg/slate/pkg/logflags"
	"github.com/slatedbg/slate/pkg/proc"
)

const terminalPrompt = "(slate) "

// Term represents the terminal running slate.
type Term struct {
	path   string
	elf    *elffile.File
	bi     *debuginfo.DebugInfo
	target *proc.Target

	conf   *config.Config
	prompt string
	line   *liner.State
	cmds   *Commands
	stdout io.Writer
	dumb   bool
	log    logflags.Logger

	// quitting is set by the quit command; the loop exits after the
	// current command completes.
	quitting bool
}

// New builds a terminal for the target executable at path. The debug
// information is parsed eagerly so a malformed target fails before the
// prompt is shown.
func New(path string, conf *config.Config) (*Term, error) {
	elf, err := elffile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open target %s: %v", path, err)
	}
	bi, err := debuginfo.New(elf)
	if err != nil {
		elf.Close()
		return nil, fmt.Errorf("unable to read debug information of %s: %v", path, err)
	}

	if conf == nil {
		conf = &config.Config{}
	}
	t := &Term{
		path:   path,
		elf:    elf,
		bi:     bi,
		conf:   conf,
		prompt: terminalPrompt,
		stdout: os.Stdout,
		dumb:   strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdin.Fd()),
		log:    logflags.DebuggerLogger(),
	}
	t.cmds = DebugCommands()
	if conf.Aliases != nil {
		t.cmds.Merge(conf.Aliases)
	}
	return t, nil
}

// Run runs the command loop and returns the exit status.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.line.Close()
	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)

	historyPath, err := config.HistoryFilePath()
	if err == nil {
		if f, err := os.Open(historyPath); err == nil {
			t.line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(historyPath); err == nil {
				t.line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintf(t.stdout, "Type 'help' for a list of commands.\n")

	for !t.quitting {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				// Treat end of input as a quit request.
				if err := t.cmds.call(t, "quit", ""); err != nil {
					return 1, err
				}
				continue
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}
		if cmdstr == "" {
			continue
		}

		cmd, args := parseCommand(cmdstr)
		if err := t.cmds.call(t, cmd, args); err != nil {
			var exited proc.ErrProcessExited
			if errors.As(err, &exited) {
				fmt.Fprintf(os.Stderr, "%v\n", exited)
				return 1, nil
			}
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
	return 0, nil
}

func (t *Term) promptForInput() (string, error) {
	if t.dumb {
		fmt.Fprint(t.stdout, t.prompt)
		return readlineDumb()
	}
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return strings.TrimSpace(l), nil
}

func readlineDumb() (string, error) {
	var line []byte
	var b [1]byte
	for {
		n, err := os.Stdin.Read(b[:])
		if n == 0 || err != nil {
			if len(line) == 0 {
				return "", io.EOF
			}
			return strings.TrimSpace(string(line)), nil
		}
		if b[0] == '\n' {
			return strings.TrimSpace(string(line)), nil
		}
		line = append(line, b[0])
	}
}

// complete provides tab completion: command names at the start of the
// line, function names after a break command.
func (t *Term) complete(line string) []string {
	fields := strings.Fields(line)
	if len(fields) >= 1 && (fields[0] == "break" || fields[0] == "br" || fields[0] == "b") {
		prefix := ""
		if len(fields) >= 2 {
			prefix = fields[1]
		}
		var out []string
		for _, fn := range t.bi.Functions(prefix) {
			out = append(out, fields[0]+" "+fn)
		}
		return out
	}

	var out []string
	for _, c := range t.cmds.cmds {
		if strings.HasPrefix(c.aliases[0], line) {
			out = append(out, c.aliases[0])
		}
	}
	return out
}

// Running reports whether the inferior exists and is stopped at a trap.
func (t *Term) Running() bool {
	return t.target.Valid()
}
