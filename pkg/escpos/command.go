// pkg/escpos/command.go
package escpos

import (
	"fmt"
	"strings"
)

// Command is one decoded element of a print stream. The concrete types
// below form a closed set; switch on them with a type switch.
type Command interface {
	// Name is a stable snake_case identifier for the command type.
	Name() string
	// Label is the short form shown in command listings.
	Label() string

	command()
}

// ParsedCommand pairs a command with the printer state it executed under.
type ParsedCommand struct {
	State   PrinterState
	Command Command
}

// Text is a run of printable bytes decoded with the active code page.
type Text struct {
	Value string
}

// UnrecognizedByte is a single byte that neither starts a text run nor a
// known control sequence.
type UnrecognizedByte struct {
	Byte byte
}

// Newline is LF.
type Newline struct{}

// HorizontalTab is HT.
type HorizontalTab struct{}

// Reset is ESC @. The state attached to it is the state before the reset.
type Reset struct{}

// BoldSet is ESC E n.
type BoldSet struct {
	On bool
}

// AlignSet is ESC a n.
type AlignSet struct {
	Alignment Alignment
}

// SizeSet is GS ! n. Width and Height are the resulting multipliers.
type SizeSet struct {
	Raw    byte
	Width  int
	Height int
}

// Cut is GS V.
type Cut struct{}

// RasterImage is GS v 0: Height rows of WidthBytes bytes, MSB first.
type RasterImage struct {
	Mode       byte
	WidthBytes int
	Height     int
	Data       []byte
}

// QR is the result of a GS ( k store/print sequence.
type QR struct {
	Model      byte
	ModuleSize byte
	ECC        byte
	Data       []byte
}

// Barcode is GS k. Data is the raw payload; symbology encoding is done on
// demand by package barcode.
type Barcode struct {
	Mode byte
	Data []byte
}

// BarcodeHRIPosition is GS H n.
type BarcodeHRIPosition struct {
	Position HRIPosition
}

// BarcodeHeight is GS h n.
type BarcodeHeight struct {
	Dots int
}

// BarcodeModuleWidth is GS w n.
type BarcodeModuleWidth struct {
	Width int
}

// BarcodeHRIFont is GS f n.
type BarcodeHRIFont struct {
	Font int
}

// UnknownEscOpcode is an ESC sequence this decoder does not interpret.
type UnknownEscOpcode struct {
	Opcode byte
}

// UnknownGsOpcode is a GS sequence this decoder does not interpret.
type UnknownGsOpcode struct {
	Opcode byte
}

func (Text) command()               {}
func (UnrecognizedByte) command()   {}
func (Newline) command()            {}
func (HorizontalTab) command()      {}
func (Reset) command()              {}
func (BoldSet) command()            {}
func (AlignSet) command()           {}
func (SizeSet) command()            {}
func (Cut) command()                {}
func (RasterImage) command()        {}
func (QR) command()                 {}
func (Barcode) command()            {}
func (BarcodeHRIPosition) command() {}
func (BarcodeHeight) command()      {}
func (BarcodeModuleWidth) command() {}
func (BarcodeHRIFont) command()     {}
func (UnknownEscOpcode) command()   {}
func (UnknownGsOpcode) command()    {}

func (Text) Name() string               { return "text" }
func (UnrecognizedByte) Name() string   { return "unrecognized_byte" }
func (Newline) Name() string            { return "newline" }
func (HorizontalTab) Name() string      { return "horizontal_tab" }
func (Reset) Name() string              { return "reset" }
func (BoldSet) Name() string            { return "bold_set" }
func (AlignSet) Name() string           { return "align_set" }
func (SizeSet) Name() string            { return "size_set" }
func (Cut) Name() string                { return "cut" }
func (RasterImage) Name() string        { return "raster_image" }
func (QR) Name() string                 { return "qr" }
func (Barcode) Name() string            { return "barcode" }
func (BarcodeHRIPosition) Name() string { return "barcode_hri_position" }
func (BarcodeHeight) Name() string      { return "barcode_height" }
func (BarcodeModuleWidth) Name() string { return "barcode_module_width" }
func (BarcodeHRIFont) Name() string     { return "barcode_hri_font" }
func (UnknownEscOpcode) Name() string   { return "unknown_esc_opcode" }
func (UnknownGsOpcode) Name() string    { return "unknown_gs_opcode" }

const maxLabelText = 60

func (c Text) Label() string {
	snippet := []rune(c.Value)
	if len(snippet) > maxLabelText {
		return "TXT  " + string(snippet[:maxLabelText]) + "…"
	}
	return "TXT  " + c.Value
}

func (c UnrecognizedByte) Label() string { return fmt.Sprintf("UNK  %02X", c.Byte) }
func (Newline) Label() string            { return "CTL  LF" }
func (HorizontalTab) Label() string      { return "CTL  HT (TAB)" }
func (Reset) Label() string              { return "CTL  ESC @ (INIT)" }
func (c BoldSet) Label() string          { return fmt.Sprintf("CTL  ESC E (BOLD=%t)", c.On) }
func (c AlignSet) Label() string         { return fmt.Sprintf("CTL  ESC a (ALIGN=%s)", c.Alignment) }
func (Cut) Label() string                { return "CTL  GS V (CUT)" }

func (c SizeSet) Label() string {
	return fmt.Sprintf("CTL  GS ! (SIZE raw=%02X w=%d h=%d)", c.Raw, c.Width, c.Height)
}

func (c RasterImage) Label() string {
	return fmt.Sprintf("CTL  GS v 0 (IMG m=%02X %dx%d bytes=%d)", c.Mode, c.WidthBytes*8, c.Height, len(c.Data))
}

func (c QR) Label() string {
	return fmt.Sprintf("CTL  QR (model=%d size=%d ecc=%d bytes=%d)", c.Model, c.ModuleSize, c.ECC, len(c.Data))
}

func (c Barcode) Label() string {
	return fmt.Sprintf("CTL  GS k (BARCODE m=%02X bytes=%d)", c.Mode, len(c.Data))
}

func (c BarcodeHRIPosition) Label() string {
	return fmt.Sprintf("CTL  GS H (HRI=%s)", c.Position)
}

func (c BarcodeHeight) Label() string      { return fmt.Sprintf("CTL  GS h (BARCODE HEIGHT=%d)", c.Dots) }
func (c BarcodeModuleWidth) Label() string { return fmt.Sprintf("CTL  GS w (BARCODE WIDTH=%d)", c.Width) }
func (c BarcodeHRIFont) Label() string     { return fmt.Sprintf("CTL  GS f (HRI FONT=%d)", c.Font) }
func (c UnknownEscOpcode) Label() string   { return fmt.Sprintf("CTL  ESC %02X (?)", c.Opcode) }
func (c UnknownGsOpcode) Label() string    { return fmt.Sprintf("CTL  GS %02X (?)", c.Opcode) }

// IsControl reports whether cmd is a control command, as opposed to text
// or an unrecognized byte.
func IsControl(cmd Command) bool {
	switch cmd.(type) {
	case Text, UnrecognizedByte:
		return false
	default:
		return true
	}
}

// HasVisibleOutput reports whether a decoded job would put anything on
// paper: non-blank text, an image, a QR code, a barcode or a cut. POS
// software sends short status polls that decode to nothing visible.
func HasVisibleOutput(commands []ParsedCommand) bool {
	for _, pc := range commands {
		switch c := pc.Command.(type) {
		case Text:
			if strings.TrimSpace(c.Value) != "" {
				return true
			}
		case RasterImage, QR, Barcode, Cut:
			return true
		}
	}
	return false
}
