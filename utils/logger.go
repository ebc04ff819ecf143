package utils

import (
	"os"

	"github.com/inconshreveable/log15/v3"
)

// NewLogger builds the process root logger. Unknown levels fall back to info.
func NewLogger(level, format string) log15.Logger {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		lvl = log15.LvlInfo
	}

	var f log15.Format
	switch format {
	case "json":
		f = log15.JsonFormat()
	case "terminal":
		f = log15.TerminalFormat()
	default:
		f = log15.LogfmtFormat()
	}

	l := log15.New("app", "srtrack")
	l.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stdout, f)))
	return l
}
