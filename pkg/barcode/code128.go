// pkg/barcode/code128.go
package barcode

import "strings"

// code128Patterns holds bar/space widths for symbol values 0-106.
// Value 106 is the stop pattern and carries the final bar.
var code128Patterns = [107]string{
	"212222", "222122", "222221", "121223", "121322", "131222", "122213", "122312",
	"132212", "221213", "221312", "231212", "112232", "122132", "122231", "113222",
	"123122", "123221", "223211", "221132", "221231", "213212", "223112", "312131",
	"311222", "321122", "321221", "312212", "322112", "322211", "212123", "212321",
	"232121", "111323", "131123", "131321", "112313", "132113", "132311", "211313",
	"231113", "231311", "112133", "112331", "132131", "113123", "113321", "133121",
	"313121", "211331", "231131", "213113", "213311", "213131", "311123", "311321",
	"331121", "312113", "312311", "332111", "314111", "221411", "431111", "111224",
	"111422", "121124", "121421", "141122", "141221", "112214", "112412", "122114",
	"122411", "142112", "142211", "241211", "221114", "413111", "241112", "134111",
	"111242", "121142", "121241", "114212", "124112", "124211", "411212", "421112",
	"421211", "212141", "214121", "412121", "111143", "111341", "131141", "114113",
	"114311", "411113", "411311", "113141", "114131", "311141", "411131", "211412",
	"211214", "211232", "2331112",
}

const (
	code128FNC3   = 96
	code128FNC2   = 97
	code128CodeC  = 99
	code128CodeB  = 100 // FNC4 while in set B
	code128CodeA  = 101 // FNC4 while in set A
	code128FNC1   = 102
	code128StartA = 103
	code128StartB = 104
	code128StartC = 105
	code128Stop   = 106
)

type codeSet int

const (
	setA codeSet = iota
	setB
	setC
)

// code128Symbols converts an ESC/POS Code128 payload into its start value
// and data symbol values. A leading {A, {B or {C picks the start set,
// otherwise set B is used.
func code128Symbols(payload []byte) (start int, values []int) {
	set := setB
	if len(payload) >= 2 && payload[0] == '{' {
		switch payload[1] {
		case 'A':
			set, payload = setA, payload[2:]
		case 'B':
			set, payload = setB, payload[2:]
		case 'C':
			set, payload = setC, payload[2:]
		}
	}
	start = code128StartA + int(set)

	toB := func() {
		if set == setC {
			values = append(values, code128CodeB)
			set = setB
		}
	}
	// set A has no lowercase or braces
	leaveAForB := func() {
		if set != setB {
			values = append(values, code128CodeB)
			set = setB
		}
	}

	for i := 0; i < len(payload); {
		b := payload[i]
		if b == '{' && i+1 < len(payload) {
			handled := true
			switch payload[i+1] {
			case '{':
				leaveAForB()
				values = append(values, '{'-32)
			case 'A':
				values = append(values, code128CodeA)
				set = setA
			case 'B':
				values = append(values, code128CodeB)
				set = setB
			case 'C':
				values = append(values, code128CodeC)
				set = setC
			case '1':
				values = append(values, code128FNC1)
			case '2':
				toB()
				values = append(values, code128FNC2)
			case '3':
				toB()
				values = append(values, code128FNC3)
			case '4':
				toB()
				if set == setA {
					values = append(values, code128CodeA)
				} else {
					values = append(values, code128CodeB)
				}
			default:
				handled = false
			}
			if handled {
				i += 2
				continue
			}
		}

		switch set {
		case setC:
			if i+1 < len(payload) && isDigit(payload[i]) && isDigit(payload[i+1]) {
				values = append(values, int(payload[i]-'0')*10+int(payload[i+1]-'0'))
				i += 2
			} else {
				toB()
			}
		case setA:
			switch {
			case b < 32:
				values = append(values, int(b)+64)
			case b <= 95:
				values = append(values, int(b)-32)
			case b <= 127:
				leaveAForB()
				values = append(values, int(b)-32)
			default:
				values = append(values, '?'-32)
			}
			i++
		default:
			if b >= 32 && b <= 127 {
				values = append(values, int(b)-32)
			} else {
				values = append(values, '?'-32)
			}
			i++
		}
	}
	return start, values
}

// Code128Checksum returns (start + sum of value*position) mod 103, with
// positions counted from 1.
func Code128Checksum(start int, values []int) int {
	sum := start
	for i, v := range values {
		sum += v * (i + 1)
	}
	return sum % 103
}

// Code128Text strips code set switches and function codes from a payload
// and unescapes {{, giving the human readable line.
func Code128Text(payload []byte) string {
	if len(payload) >= 2 && payload[0] == '{' && strings.IndexByte("ABC", payload[1]) >= 0 {
		payload = payload[2:]
	}
	var sb strings.Builder
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if c == '{' && i+1 < len(payload) {
			switch next := payload[i+1]; {
			case next == '{':
				sb.WriteByte('{')
				i++
				continue
			case strings.IndexByte("ABC1234", next) >= 0:
				i++
				continue
			}
		}
		sb.WriteByte(c)
	}
	return strings.ToValidUTF8(sb.String(), "�")
}

// EncodeCode128 encodes payload as a Code128 symbol.
func EncodeCode128(payload []byte) (Result, bool) {
	start, values := code128Symbols(payload)
	if len(values) == 0 {
		return Result{}, false
	}

	symbols := make([]int, 0, len(values)+3)
	symbols = append(symbols, start)
	symbols = append(symbols, values...)
	symbols = append(symbols, Code128Checksum(start, values), code128Stop)

	runs := make([]int, 0, len(symbols)*6+1)
	for _, v := range symbols {
		if v < 0 || v >= len(code128Patterns) {
			return Result{}, false
		}
		for _, w := range code128Patterns[v] {
			runs = append(runs, int(w-'0'))
		}
	}

	return Result{
		Symbology:  SymbologyCode128,
		Runs:       runs,
		StartsDark: true,
		Text:       Code128Text(payload),
	}, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
