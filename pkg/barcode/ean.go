// pkg/barcode/ean.go
package barcode

var (
	eanL = [10]string{
		"0001101", "0011001", "0010011", "0111101", "0100011",
		"0110001", "0101111", "0111011", "0110111", "0001011",
	}
	eanG = [10]string{
		"0100111", "0110011", "0011011", "0100001", "0011101",
		"0111001", "0000101", "0010001", "0001001", "0010111",
	}
	eanR = [10]string{
		"1110010", "1100110", "1101100", "1000010", "1011100",
		"1001110", "1010000", "1000100", "1001000", "1110100",
	}
	// eanParity selects L or G patterns for the left half of an EAN-13,
	// keyed by the implicit first digit.
	eanParity = [10]string{
		"LLLLLL", "LLGLGG", "LLGGLG", "LLGGGL", "LGLLGG",
		"LGGLLG", "LGGGLL", "LGLGLG", "LGLGGL", "LGGLGL",
	}
)

const (
	eanEdgeGuard   = "101"
	eanCenterGuard = "01010"
)

// EANCheckDigit computes the check digit for a string of digits, weighting
// them 3 and 1 alternately from the rightmost.
func EANCheckDigit(digits []byte) byte {
	sum := 0
	for i := range digits {
		d := int(digits[len(digits)-1-i] - '0')
		if i%2 == 0 {
			sum += 3 * d
		} else {
			sum += d
		}
	}
	return byte('0' + (10-sum%10)%10)
}

// EncodeEAN encodes an EAN-13 or EAN-8 symbol. Non-digits are ignored; 7
// or 12 digits get a computed check digit appended. Any other count fails.
func EncodeEAN(payload string) (Result, bool) {
	digits := digitsOnly(payload)
	if len(digits) == 7 || len(digits) == 12 {
		digits = append(digits, EANCheckDigit(digits))
	}

	var bits []byte
	switch len(digits) {
	case 13:
		parity := eanParity[digits[0]-'0']
		bits = appendBits(bits, eanEdgeGuard)
		for i, c := range digits[1:7] {
			if parity[i] == 'G' {
				bits = appendBits(bits, eanG[c-'0'])
			} else {
				bits = appendBits(bits, eanL[c-'0'])
			}
		}
		bits = appendBits(bits, eanCenterGuard)
		for _, c := range digits[7:] {
			bits = appendBits(bits, eanR[c-'0'])
		}
		bits = appendBits(bits, eanEdgeGuard)
	case 8:
		bits = appendBits(bits, eanEdgeGuard)
		for _, c := range digits[:4] {
			bits = appendBits(bits, eanL[c-'0'])
		}
		bits = appendBits(bits, eanCenterGuard)
		for _, c := range digits[4:] {
			bits = appendBits(bits, eanR[c-'0'])
		}
		bits = appendBits(bits, eanEdgeGuard)
	default:
		return Result{}, false
	}

	runs, dark, ok := BitsToRuns(bits)
	if !ok || !dark {
		return Result{}, false
	}
	return Result{
		Symbology:  SymbologyEAN,
		Runs:       runs,
		StartsDark: true,
		Text:       string(digits),
	}, true
}

func appendBits(bits []byte, pattern string) []byte {
	for i := 0; i < len(pattern); i++ {
		bits = append(bits, pattern[i]-'0')
	}
	return bits
}
