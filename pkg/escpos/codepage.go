// pkg/escpos/codepage.go
package escpos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// CodePage selects how text runs are turned into strings. It is a decode
// parameter; the stream itself never switches it.
type CodePage int

const (
	// CodePageUTF8 decodes valid UTF-8 as is and falls back to
	// Windows-1252 for runs that are not valid UTF-8.
	CodePageUTF8 CodePage = iota
	CodePage437
	CodePage850
	CodePageWindows1252
)

var codePageNames = map[CodePage]string{
	CodePageUTF8:        "utf8",
	CodePage437:         "cp437",
	CodePage850:         "cp850",
	CodePageWindows1252: "windows1252",
}

func (c CodePage) String() string {
	if name, ok := codePageNames[c]; ok {
		return name
	}
	return fmt.Sprintf("codepage(%d)", int(c))
}

// ParseCodePage accepts the names returned by String plus a few common
// aliases. Matching is case-insensitive.
func ParseCodePage(name string) (CodePage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8", "auto":
		return CodePageUTF8, nil
	case "cp437", "437", "ibm437":
		return CodePage437, nil
	case "cp850", "850", "ibm850":
		return CodePage850, nil
	case "windows1252", "windows-1252", "cp1252", "1252", "latin1":
		return CodePageWindows1252, nil
	}
	return CodePageUTF8, fmt.Errorf("unknown code page %q", name)
}

// DecodeText converts raw text bytes to a string under cp.
func DecodeText(b []byte, cp CodePage) string {
	switch cp {
	case CodePage437:
		return decodeCharmap(charmap.CodePage437, b)
	case CodePage850:
		return decodeCharmap(charmap.CodePage850, b)
	case CodePageWindows1252:
		return decodeCharmap(charmap.Windows1252, b)
	default:
		if utf8.Valid(b) {
			return string(b)
		}
		return decodeCharmap(charmap.Windows1252, b)
	}
}

func decodeCharmap(cm *charmap.Charmap, b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(cm.DecodeByte(c))
	}
	return sb.String()
}
