package output

import (
	"bytes"
	"strings"
	"testing"
)

// Confirm reads the keystroke from os.Stdin directly (it needs raw-mode
// access to a real terminal fd), so under `go test` stdin is never a tty
// and Confirm must refuse rather than block or silently approve.
func TestConfirm_NoTerminalRefuses(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	if got := p.Confirm("delete everything?"); got {
		t.Error("expected Confirm to return false when stdin is not a terminal")
	}
	if !strings.Contains(buf.String(), "delete everything?") {
		t.Errorf("expected prompt to be written to the printer's writer, got %q", buf.String())
	}
}
