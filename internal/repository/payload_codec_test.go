package repository

import (
	"bytes"
	"testing"
)

func TestEncodePayload_CompressesRepetitiveJobs(t *testing.T) {
	payload := bytes.Repeat([]byte("Item 1 ............ 4.50\n"), 200)

	stored, encoding := encodePayload(payload, true)
	if encoding != PayloadEncodingZstd {
		t.Fatalf("encoding = %q, want %q", encoding, PayloadEncodingZstd)
	}
	if len(stored) >= len(payload) {
		t.Errorf("stored %d bytes for a %d byte payload", len(stored), len(payload))
	}

	decoded, err := decodePayload(stored, encoding, len(payload))
	if err != nil {
		t.Fatalf("decodePayload failed: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("decoded payload differs from original")
	}
}

func TestEncodePayload_StoresRaw(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		compress bool
	}{
		{"disabled", bytes.Repeat([]byte{0x1B, 0x40}, 100), false},
		{"tiny", []byte{0x1B, 0x40}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, encoding := encodePayload(tt.payload, tt.compress)
			if encoding != PayloadEncodingRaw {
				t.Errorf("encoding = %q, want raw", encoding)
			}
			if !bytes.Equal(stored, tt.payload) {
				t.Errorf("stored = %x, want %x", stored, tt.payload)
			}
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	if _, err := decodePayload([]byte("abc"), "lz4", 3); err == nil {
		t.Error("expected error for unknown encoding")
	}
	if _, err := decodePayload([]byte("not zstd"), PayloadEncodingZstd, 8); err == nil {
		t.Error("expected error for corrupt zstd frame")
	}

	stored, _ := encodePayload(bytes.Repeat([]byte("A"), 512), true)
	if _, err := decodePayload(stored, PayloadEncodingZstd, 100); err == nil {
		t.Error("expected error for size mismatch")
	}
}
