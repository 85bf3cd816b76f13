package utils

import (
	"strings"
	"testing"
)

func TestPrettyHex(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, ""},
		{"short", []byte{0x1b, 0x40, 'H', 'i'}, "0000: 1b 40 48 69 "},
		{
			"two rows",
			[]byte("0123456789abcdefXY"),
			"0000: 30 31 32 33 34 35 36 37 38 39 61 62 63 64 65 66 \n0010: 58 59 ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrettyHex(tt.data); got != tt.want {
				t.Errorf("PrettyHex() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrettyHex_RowCount(t *testing.T) {
	data := make([]byte, 16*40+1)
	rows := strings.Split(PrettyHex(data), "\n")
	if len(rows) != 41 {
		t.Fatalf("rows = %d, want 41", len(rows))
	}
	if !strings.HasPrefix(rows[40], "0280: ") {
		t.Errorf("last row = %q", rows[40])
	}
}
