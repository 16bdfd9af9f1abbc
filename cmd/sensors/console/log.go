package console

import (
	"fmt"
	"io"
	"os"
)

const (
	PictoStop        = "🚫"
	PictoGhost       = "👻"
	PictoThermometer = "🌡"
	PictoPressure    = "🌀"
)

var writer io.Writer = os.Stdout
var errWriter io.Writer = os.Stderr

// Trace enables Debugf output.
var Trace bool

func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

func Warnf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Yellow("WARN"), fmt.Sprintf(msg, args...))
}

func Infof(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", White("..."), fmt.Sprintf(msg, args...))
}

func Debugf(msg string, args ...interface{}) {
	if Trace {
		_, _ = fmt.Fprintf(writer, "%s %s\n", White("[DEBUG]"), fmt.Sprintf(msg, args...))
	}
}

func Print(msg string) {
	_, _ = fmt.Fprintln(writer, msg)
}
