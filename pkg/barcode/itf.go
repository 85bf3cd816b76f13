// pkg/barcode/itf.go
package barcode

// itfPatterns are the five element widths of each digit, 1 narrow, 3 wide.
var itfPatterns = [10][5]int{
	{1, 1, 3, 3, 1},
	{3, 1, 1, 1, 3},
	{1, 3, 1, 1, 3},
	{3, 3, 1, 1, 1},
	{1, 1, 3, 1, 3},
	{3, 1, 3, 1, 1},
	{1, 3, 3, 1, 1},
	{1, 1, 1, 3, 3},
	{3, 1, 1, 3, 1},
	{1, 3, 1, 3, 1},
}

var (
	itfStart = []int{1, 1, 1, 1}
	itfStop  = []int{3, 1, 1}
)

// EncodeITF encodes an Interleaved 2 of 5 symbol. Non-digits are ignored
// and an odd digit count is padded with a leading zero.
func EncodeITF(payload string) (Result, bool) {
	digits := digitsOnly(payload)
	if len(digits) == 0 {
		return Result{}, false
	}
	if len(digits)%2 == 1 {
		digits = append([]byte{'0'}, digits...)
	}

	runs := make([]int, 0, len(itfStart)+len(digits)*5+len(itfStop))
	runs = append(runs, itfStart...)
	for i := 0; i+1 < len(digits); i += 2 {
		bars, spaces := itfPatterns[digits[i]-'0'], itfPatterns[digits[i+1]-'0']
		for k := 0; k < 5; k++ {
			runs = append(runs, bars[k], spaces[k])
		}
	}
	runs = append(runs, itfStop...)

	return Result{
		Symbology:  SymbologyITF,
		Runs:       runs,
		StartsDark: true,
		Text:       string(digits),
	}, true
}
