package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

// logging.go replaces the teacher's -vb verbose flag's fmt.Println
// statistics (and the dev fmt.Println printouts left in
// backend/lir/regalloc.go, marked "// TODO: Delete dev printout" there)
// with structured logrus logging, per SPEC_FULL.md §1.3.

// Log is the package-wide logger. Its level is set once by
// ConfigureLogging at startup from Options.Verbose; every other
// package takes a *logrus.Entry built from it rather than holding its own
// logger instance.
var Log = logrus.New()

// ConfigureLogging sets Log's level and formatter from opt.Verbose.
func ConfigureLogging(verbose bool) {
	Log.Out = os.Stderr
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// FunctionLogger returns a logrus.Entry pre-tagged with the function being
// compiled, used by backend/lower.go and compile/batch.go.
func FunctionLogger(function string) *logrus.Entry {
	return Log.WithField("function", function)
}
