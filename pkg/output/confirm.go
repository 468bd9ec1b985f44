package output

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Confirm prompts the operator for a single y/n keystroke before a
// destructive action (e.g. wiping persisted registry state), reading the
// keystroke in raw mode so the terminal doesn't echo it back as a line
// the user has to press Enter on. Returns false on any read failure,
// non-"y" answer, or when stdin isn't a terminal (so the destructive
// action is never silently approved in a non-interactive context).
func (p *Printer) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)

	fd := int(os.Stdin.Fd())
	if !isatty.IsTerminal(uintptr(fd)) {
		fmt.Fprintln(p.out, "n (no terminal attached)")
		return false
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintln(p.out, "n (could not read terminal)")
		return false
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		fmt.Fprintln(p.out)
		return false
	}
	fmt.Fprintln(p.out, string(buf[0]))

	return buf[0] == 'y' || buf[0] == 'Y'
}
