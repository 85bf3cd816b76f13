// pkg/barcode/barcode.go
package barcode

// Symbology identifies a supported 1-D barcode family.
type Symbology int

const (
	SymbologyUnknown Symbology = iota
	SymbologyCode128
	SymbologyEAN
	SymbologyITF
)

func (s Symbology) String() string {
	switch s {
	case SymbologyCode128:
		return "code128"
	case SymbologyEAN:
		return "ean"
	case SymbologyITF:
		return "itf"
	default:
		return "unknown"
	}
}

// QuietZoneModules is the blank margin renderers should leave on each side
// of a symbol. It is not part of Result.Runs.
const QuietZoneModules = 10

// Result is an encoded symbol. Runs holds consecutive module counts of
// alternating color, the first run being dark when StartsDark is set.
type Result struct {
	Symbology  Symbology `json:"symbology"`
	Runs       []int     `json:"runs"`
	StartsDark bool      `json:"starts_dark"`
	Text       string    `json:"text"`
}

// Modules returns the total symbol width in modules.
func (r Result) Modules() int {
	total := 0
	for _, n := range r.Runs {
		total += n
	}
	return total
}

// SymbologyForMode maps a GS k mode byte to the symbology it selects.
// Both the NUL terminated (0-6) and length prefixed (65-73) forms are
// recognized.
func SymbologyForMode(mode byte) Symbology {
	switch mode {
	case 73:
		return SymbologyCode128
	case 2, 3, 67, 68:
		return SymbologyEAN
	case 5, 70:
		return SymbologyITF
	default:
		return SymbologyUnknown
	}
}

// Encode converts a GS k payload to module runs. ok is false when the mode
// is unsupported or the payload cannot be encoded.
func Encode(mode byte, payload []byte) (Result, bool) {
	switch SymbologyForMode(mode) {
	case SymbologyCode128:
		return EncodeCode128(payload)
	case SymbologyEAN:
		return EncodeEAN(string(payload))
	case SymbologyITF:
		return EncodeITF(string(payload))
	default:
		return Result{}, false
	}
}

// BitsToRuns collapses a sequence of 0/1 modules into run lengths.
func BitsToRuns(bits []byte) (runs []int, startsDark bool, ok bool) {
	if len(bits) == 0 {
		return nil, false, false
	}
	current, n := bits[0], 0
	for _, b := range bits {
		if b == current {
			n++
			continue
		}
		runs = append(runs, n)
		current, n = b, 1
	}
	runs = append(runs, n)
	return runs, bits[0] == 1, true
}

func digitsOnly(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return out
}
