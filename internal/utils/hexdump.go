// internal/utils/hexdump.go
package utils

import (
	"fmt"
	"strings"
)

// HexDumpWidth is the number of bytes per hex dump row.
const HexDumpWidth = 16

// PrettyHex formats data as rows of HexDumpWidth bytes, each prefixed
// with its offset, e.g. "0000: 1b 40 48 69 ".
func PrettyHex(data []byte) string {
	var sb strings.Builder
	for offset := 0; offset < len(data); offset += HexDumpWidth {
		if offset > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%04x: ", offset)
		for _, b := range data[offset:min(offset+HexDumpWidth, len(data))] {
			fmt.Fprintf(&sb, "%02x ", b)
		}
	}
	return sb.String()
}
