package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	quietMode bool
	noColor   = !isTerminal(os.Stdout)
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		plain := noColor
		mu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetOutput redirects console output. Colors are disabled unless w is a
// terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	f, ok := w.(*os.File)
	noColor = !ok || !isTerminal(f)
}

// SetNoColor turns off ANSI colors
func SetNoColor(disabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if disabled {
		noColor = true
	}
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quietMode
}

func printf(force bool, format string, args ...interface{}) {
	mu.Lock()
	w, quiet := out, quietMode
	mu.Unlock()
	if quiet && !force {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintError prints an error message in red. It is shown in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	printf(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	printf(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}

// ProgressBarString renders done out of total as a fixed-width bar
func ProgressBarString(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled) + "]"
}
