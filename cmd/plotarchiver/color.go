package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type verdictKind int

const (
	verdictInfo verdictKind = iota
	verdictOK
	verdictWarn
	verdictError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorizeVerdict(kind verdictKind, value string, enabled bool) string {
	if !enabled {
		return value
	}
	var color string
	switch kind {
	case verdictOK:
		color = ansiGreen
	case verdictWarn:
		color = ansiYellow
	case verdictError:
		color = ansiRed
	default:
		return value
	}
	return color + value + ansiReset
}
