// Package logflags routes the debugger's component logging. Each
// component gets a logrus logger that stays silent unless the component
// was named in the --log-output flag.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	debugger  = false
	dwarf     = false
	dwarfLine = false

	logOut io.WriteCloser
)

func makeLogger(flag bool, fields logrus.Fields) Logger {
	lf := logrus.New()
	if logOut != nil {
		lf.Out = logOut
	} else {
		lf.Out = os.Stderr
	}
	lf.Level = logrus.DebugLevel
	if !flag {
		lf.Level = logrus.PanicLevel
	}
	return &logrusLogger{lf.WithFields(fields)}
}

// Debugger returns true if the debugger package should log.
func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a logger for the debugger package.
func DebuggerLogger() Logger {
	return makeLogger(debugger, logrus.Fields{"layer": "debugger"})
}

// Dwarf returns true if the DWARF readers should log.
func Dwarf() bool {
	return dwarf
}

// DwarfLogger returns a logger for the DWARF readers.
func DwarfLogger() Logger {
	return makeLogger(dwarf, logrus.Fields{"layer": "dwarf"})
}

// DwarfLine returns true if the line-number VM should log recoverable
// decode anomalies.
func DwarfLine() bool {
	return dwarfLine
}

// DwarfLineLogger returns a logger for the line-number VM.
func DwarfLineLogger() Logger {
	return makeLogger(dwarfLine, logrus.Fields{"layer": "dwarf", "kind": "line"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the component gates based on the contents of logstr and
// redirects output to logDest when given.
func Setup(logFlag bool, logstr, logDest string) error {
	if err := initLogOut(logDest); err != nil {
		return err
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debugger":
			debugger = true
		case "dwarf":
			dwarf = true
		case "dwarfline":
			dwarfLine = true
		default:
			return fmt.Errorf("invalid log output argument %q", logcmd)
		}
	}
	return nil
}

// Close closes the log output destination, if one was configured.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// initLogOut redirects logging to the file path or file descriptor number
// in dest.
func initLogOut(dest string) error {
	if dest == "" {
		return nil
	}
	var f *os.File
	if n, err := strconv.Atoi(dest); err == nil && n >= 0 {
		f = os.NewFile(uintptr(n), "slate-logs")
	} else {
		var err error
		f, err = os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
	}
	logOut = f
	log.SetOutput(f)
	logrus.StandardLogger().SetOutput(f)
	return nil
}
