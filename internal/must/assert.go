package must

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

func Assert(cond bool, failMessage string) {
	if !cond {
		slog.Error(failMessage)
		os.Exit(1)
	}
}

func Fail(message string) {
	Assert(false, fmt.Sprintf("assertion failed: %s", message))
}

func NoError(err error) {
	if err != nil {
		Fail(err.Error())
	}
}

// CastFloat64 parses s or exits, for embedded datasets only.
func CastFloat64(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	NoError(err)
	return f
}
