// pkg/escpos/listing.go
package escpos

import (
	"fmt"
	"io"
)

// FormatListing renders one line per command: a zero padded index followed
// by the command label.
func FormatListing(cmds []ParsedCommand) []string {
	lines := make([]string, len(cmds))
	for i, pc := range cmds {
		lines[i] = fmt.Sprintf("%04d: %s", i, pc.Command.Label())
	}
	return lines
}

// WriteListing writes FormatListing output to w, newline terminated.
func WriteListing(w io.Writer, cmds []ParsedCommand) error {
	for _, line := range FormatListing(cmds) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// MergeText joins adjacent Text commands whose states share a line style.
// Other commands are passed through unchanged and in order.
func MergeText(cmds []ParsedCommand) []ParsedCommand {
	out := make([]ParsedCommand, 0, len(cmds))
	for _, pc := range cmds {
		t, ok := pc.Command.(Text)
		if ok && len(out) > 0 {
			last := &out[len(out)-1]
			if prev, isText := last.Command.(Text); isText && last.State.SameLineStyle(pc.State) {
				last.Command = Text{Value: prev.Value + t.Value}
				continue
			}
		}
		out = append(out, pc)
	}
	return out
}
