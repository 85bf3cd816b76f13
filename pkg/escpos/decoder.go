// pkg/escpos/decoder.go
package escpos

const (
	LF  = 0x0A
	CR  = 0x0D
	HT  = 0x09
	ESC = 0x1B
	GS  = 0x1D
	NUL = 0x00
)

// DefaultBarcodeNULMaxMode is the highest GS k mode byte whose payload is
// NUL terminated. Modes above it carry a one byte length prefix.
const DefaultBarcodeNULMaxMode byte = 6

// QR defaults restored by ESC @.
const (
	DefaultQRModel      byte = 2
	DefaultQRModuleSize byte = 4
	DefaultQRECC        byte = 48
)

// Options configures a Decoder.
type Options struct {
	CodePage CodePage
	// BarcodeNULMaxMode overrides DefaultBarcodeNULMaxMode when non-nil.
	BarcodeNULMaxMode *byte
}

// Decoder turns raw ESC/POS bytes into commands. A Decoder holds no state
// between calls and is safe for concurrent use.
type Decoder struct {
	codePage   CodePage
	nulMaxMode byte
}

func NewDecoder(opts Options) *Decoder {
	d := &Decoder{
		codePage:   opts.CodePage,
		nulMaxMode: DefaultBarcodeNULMaxMode,
	}
	if opts.BarcodeNULMaxMode != nil {
		d.nulMaxMode = *opts.BarcodeNULMaxMode
	}
	return d
}

// Decode parses data with the default options and the given code page,
// starting from DefaultState.
func Decode(data []byte, cp CodePage) []ParsedCommand {
	return NewDecoder(Options{CodePage: cp}).Decode(data)
}

// Decode parses data starting from DefaultState.
func (d *Decoder) Decode(data []byte) []ParsedCommand {
	cmds, _ := d.DecodeWithState(data, DefaultState())
	return cmds
}

// DecodeWithState parses data starting from initial and also returns the
// state left after the last byte, so a caller can carry formatting across
// jobs. QR assembly always starts empty.
func (d *Decoder) DecodeWithState(data []byte, initial PrinterState) ([]ParsedCommand, PrinterState) {
	s := &session{
		dec:   d,
		data:  data,
		state: initial,
		qr:    newQRAssembly(),
	}
	for i := 0; i < len(data); {
		next := s.step(i)
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return s.out, s.state
}

// qrAssembly collects GS ( k function calls until a print is requested.
type qrAssembly struct {
	model      byte
	moduleSize byte
	ecc        byte
	data       []byte
}

func newQRAssembly() qrAssembly {
	return qrAssembly{
		model:      DefaultQRModel,
		moduleSize: DefaultQRModuleSize,
		ecc:        DefaultQRECC,
	}
}

// store appends symbol data. Only sub-mode '0' carries data.
func (q *qrAssembly) store(payload []byte) {
	if len(payload) >= 1 && payload[0] == 0x30 {
		q.data = append(q.data, payload[1:]...)
	}
}

// print returns the pending symbol and clears the buffer. ok is false when
// nothing was stored.
func (q *qrAssembly) print() (QR, bool) {
	if len(q.data) == 0 {
		return QR{}, false
	}
	qr := QR{Model: q.model, ModuleSize: q.moduleSize, ECC: q.ecc, Data: q.data}
	q.data = nil
	return qr, true
}

type session struct {
	dec   *Decoder
	data  []byte
	state PrinterState
	qr    qrAssembly
	out   []ParsedCommand
}

func (s *session) emit(cmd Command) {
	s.out = append(s.out, ParsedCommand{State: s.state, Command: cmd})
}

// has reports whether n bytes starting at i are available.
func (s *session) has(i, n int) bool {
	return n >= 0 && i >= 0 && len(s.data)-i >= n
}

// step decodes the element starting at i and returns the index of the next
// unread byte.
func (s *session) step(i int) int {
	switch b := s.data[i]; b {
	case LF:
		s.emit(Newline{})
		return i + 1
	case CR:
		return i + 1
	case HT:
		s.emit(HorizontalTab{})
		return i + 1
	case ESC:
		return s.escape(i)
	case GS:
		return s.group(i)
	default:
		return s.text(i)
	}
}

func (s *session) text(i int) int {
	j := i
	for j < len(s.data) && s.data[j] >= 0x20 {
		j++
	}
	if j == i {
		s.emit(UnrecognizedByte{Byte: s.data[i]})
		return i + 1
	}
	s.emit(Text{Value: DecodeText(s.data[i:j], s.dec.codePage)})
	return j
}

func (s *session) escape(i int) int {
	if !s.has(i, 2) {
		return i + 1
	}
	op := s.data[i+1]
	switch op {
	case '@':
		s.emit(Reset{})
		s.state = DefaultState()
		s.qr = newQRAssembly()
		return i + 2
	case 'E':
		if !s.has(i, 3) {
			return i + 2
		}
		s.state.Bold = s.data[i+2]&0x01 == 1
		s.emit(BoldSet{On: s.state.Bold})
		return i + 3
	case 'a':
		if !s.has(i, 3) {
			return i + 2
		}
		switch s.data[i+2] {
		case 1, '1':
			s.state.Alignment = AlignCenter
		case 2, '2':
			s.state.Alignment = AlignRight
		default:
			s.state.Alignment = AlignLeft
		}
		s.emit(AlignSet{Alignment: s.state.Alignment})
		return i + 3
	default:
		s.emit(UnknownEscOpcode{Opcode: op})
		return i + 2
	}
}

func (s *session) group(i int) int {
	if !s.has(i, 2) {
		return i + 1
	}
	op := s.data[i+1]
	switch op {
	case 'H', 'h', 'w', 'f', '!':
		if !s.has(i, 3) {
			return i + 2
		}
		s.barcodeSetting(op, s.data[i+2])
		return i + 3
	case 'v':
		return s.raster(i)
	case '(':
		return s.function(i)
	case 'k':
		return s.barcode(i)
	case 'V':
		s.emit(Cut{})
		// Function A is GS V m, function B adds a feed byte.
		n := 3
		if s.has(i, 3) {
			switch s.data[i+2] {
			case 65, 66, 97, 98, 103, 104:
				n = 4
			}
		}
		return min(i+n, len(s.data))
	default:
		s.emit(UnknownGsOpcode{Opcode: op})
		return i + 2
	}
}

func (s *session) barcodeSetting(op, n byte) {
	switch op {
	case 'H':
		switch n {
		case 1, '1':
			s.state.BarcodeHRI = HRIAbove
		case 2, '2':
			s.state.BarcodeHRI = HRIBelow
		case 3, '3':
			s.state.BarcodeHRI = HRIBoth
		default:
			s.state.BarcodeHRI = HRINone
		}
		s.emit(BarcodeHRIPosition{Position: s.state.BarcodeHRI})
	case 'h':
		s.state.BarcodeHeight = max(int(n), 1)
		s.emit(BarcodeHeight{Dots: s.state.BarcodeHeight})
	case 'w':
		s.state.BarcodeModuleWidth = max(int(n), 1)
		s.emit(BarcodeModuleWidth{Width: s.state.BarcodeModuleWidth})
	case 'f':
		s.state.BarcodeHRIFont = int(n)
		s.emit(BarcodeHRIFont{Font: s.state.BarcodeHRIFont})
	case '!':
		s.state.SetSize(int(n&0x0F)+1, int(n>>4)+1)
		s.emit(SizeSet{Raw: n, Width: s.state.WidthMultiplier, Height: s.state.HeightMultiplier})
	}
}

// raster decodes GS v 0 m xL xH yL yH d1...dk.
func (s *session) raster(i int) int {
	const header = 8
	if !s.has(i, header) {
		return i + 2
	}
	if s.data[i+2] != '0' {
		s.emit(UnknownGsOpcode{Opcode: 'v'})
		return i + 2
	}
	mode := s.data[i+3]
	widthBytes := int(s.data[i+4]) | int(s.data[i+5])<<8
	height := int(s.data[i+6]) | int(s.data[i+7])<<8
	start := i + header
	size := widthBytes * height
	if !s.has(start, size) {
		return start
	}
	img := make([]byte, size)
	copy(img, s.data[start:start+size])
	s.emit(RasterImage{Mode: mode, WidthBytes: widthBytes, Height: height, Data: img})
	return start + size
}

// function decodes GS ( X pL pH followed by pL+pH*256 parameter bytes.
// Only the QR functions of GS ( k are interpreted.
func (s *session) function(i int) int {
	const header = 5
	if !s.has(i, header) {
		return i + 2
	}
	size := int(s.data[i+3]) | int(s.data[i+4])<<8
	start := i + header
	if !s.has(start, size) {
		return start
	}
	end := start + size
	if s.data[i+2] != 'k' || size < 2 || s.data[start] != 0x31 {
		s.emit(UnknownGsOpcode{Opcode: '('})
		return end
	}
	fn, args := s.data[start+1], s.data[start+2:end]
	switch fn {
	case 0x41:
		if len(args) >= 1 {
			s.qr.model = args[0]
		}
	case 0x43:
		if len(args) >= 1 {
			s.qr.moduleSize = args[0]
		}
	case 0x45:
		if len(args) >= 1 {
			s.qr.ecc = args[0]
		}
	case 0x50:
		s.qr.store(args)
	case 0x51:
		if qr, ok := s.qr.print(); ok {
			s.emit(qr)
		}
	}
	return end
}

// barcode decodes GS k m. Low modes use NUL termination, the rest a
// length byte.
func (s *session) barcode(i int) int {
	if !s.has(i, 3) {
		return i + 2
	}
	mode := s.data[i+2]
	if mode <= s.dec.nulMaxMode {
		start := i + 3
		j := start
		for j < len(s.data) && s.data[j] != NUL {
			j++
		}
		s.emit(Barcode{Mode: mode, Data: clone(s.data[start:j])})
		if j < len(s.data) {
			return j + 1
		}
		return j
	}
	if !s.has(i, 4) {
		return i + 3
	}
	n := int(s.data[i+3])
	start := i + 4
	if !s.has(start, n) {
		return start
	}
	s.emit(Barcode{Mode: mode, Data: clone(s.data[start : start+n])})
	return start + n
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
