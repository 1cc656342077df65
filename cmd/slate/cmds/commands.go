// Package cmds implements the command-line interface of slate.
package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slatedbg/slate/pkg/config"
	"github.com/slatedbg/slate/pkg/logflags"
	"github.com/slatedbg/slate/pkg/terminal"
	"github.com/slatedbg/slate/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should
	// produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	conf *config.Config
)

const slateCommandLongDesc = `slate is a source level debugger for C and C++ programs on linux/amd64.

It reads the DWARF v4 debug information of the target executable and lets you
set breakpoints by function name or file:line, step at source-line
granularity, inspect and modify local variables, and print stack backtraces.`

// New returns the root command of the slate binary.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "slate <executable>",
		Short: "slate is a source level debugger for C/C++ programs.",
		Long:  slateCommandLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			os.Exit(debugRun(args[0]))
			return nil
		},
	}
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugging log output.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debugger, dwarf, dwarfline)")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes log to the specified file or file descriptor number.")

	rootCommand.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slate version: %s\n", version.Version)
		},
	})

	return rootCommand
}

func debugRun(target string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logflags.Close()

	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	term, err := terminal.New(target, conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}
