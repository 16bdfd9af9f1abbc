package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit codes returned by the cli.
const (
	ExitFailure   = 1
	ExitNoReading = 2
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports err, highlighted, under the given context with ExitFailure.
func Fail(context string, err error) cli.ExitCoder {
	return Exit(ExitFailure, "%s: %s", context, Red(err))
}
