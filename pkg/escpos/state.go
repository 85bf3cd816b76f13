// pkg/escpos/state.go
package escpos

// Alignment is the horizontal justification applied to printed lines.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// HRIPosition is where a barcode's human readable interpretation is printed.
type HRIPosition int

const (
	HRINone HRIPosition = iota
	HRIAbove
	HRIBelow
	HRIBoth
)

func (p HRIPosition) String() string {
	switch p {
	case HRIAbove:
		return "above"
	case HRIBelow:
		return "below"
	case HRIBoth:
		return "both"
	default:
		return "none"
	}
}

// Power-on barcode defaults of common 80mm thermal printers.
const (
	DefaultBarcodeHeight      = 162
	DefaultBarcodeModuleWidth = 3
)

// PrinterState is the formatting context active when a command executes.
// It is a plain value: every emitted command carries its own copy, so
// snapshots can be compared with == and never alias each other.
type PrinterState struct {
	Bold               bool        `json:"bold"`
	Alignment          Alignment   `json:"alignment"`
	WidthMultiplier    int         `json:"width_multiplier"`
	HeightMultiplier   int         `json:"height_multiplier"`
	BarcodeHRI         HRIPosition `json:"barcode_hri"`
	BarcodeHeight      int         `json:"barcode_height"`
	BarcodeModuleWidth int         `json:"barcode_module_width"`
	BarcodeHRIFont     int         `json:"barcode_hri_font"`
}

// DefaultState returns the state of a freshly initialized printer.
func DefaultState() PrinterState {
	return PrinterState{
		Alignment:          AlignLeft,
		WidthMultiplier:    1,
		HeightMultiplier:   1,
		BarcodeHRI:         HRINone,
		BarcodeHeight:      DefaultBarcodeHeight,
		BarcodeModuleWidth: DefaultBarcodeModuleWidth,
	}
}

// SetSize updates the character multipliers, clamping both to at least 1.
func (s *PrinterState) SetSize(width, height int) {
	s.WidthMultiplier = max(width, 1)
	s.HeightMultiplier = max(height, 1)
}

// SameLineStyle reports whether text printed under s and other may be
// joined into a single run without changing its appearance.
func (s PrinterState) SameLineStyle(other PrinterState) bool {
	return s.Bold == other.Bold &&
		s.Alignment == other.Alignment &&
		s.WidthMultiplier == other.WidthMultiplier &&
		s.HeightMultiplier == other.HeightMultiplier
}

// Columns returns how many characters fit on a line of baseColumns
// normal-width characters. Only the width multiplier narrows the line.
func (s PrinterState) Columns(baseColumns int) int {
	return max(baseColumns/max(s.WidthMultiplier, 1), 1)
}
