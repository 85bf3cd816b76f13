package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJob(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.bin")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write job: %v", err)
	}
	return path
}

func TestRun_Listing(t *testing.T) {
	path := writeJob(t, "\x1b@Hi\n\x1dk\x46\x040123")

	var out bytes.Buffer
	if err := run([]string{"--barcodes", path}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"(13 bytes)",
		"0000: CTL  ESC @ (INIT)\n",
		"0001: TXT  Hi\n",
		"0002: CTL  LF\n",
		"0003: CTL  GS k (BARCODE m=46 bytes=4)\n",
		`0003: itf "0123"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_CodePageAndHex(t *testing.T) {
	path := writeJob(t, "\x82t\x82")

	var out bytes.Buffer
	if err := run([]string{"-c", "cp850", "-x", path}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "0000: 82 74 82 ") {
		t.Errorf("missing hex dump:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "0000: TXT  été") {
		t.Errorf("missing cp850 text:\n%s", out.String())
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no files", nil},
		{"bad code page", []string{"-c", "ebcdic", "x.bin"}},
		{"bad threshold", []string{"--barcode-threshold", "300", "x.bin"}},
		{"missing file", []string{filepath.Join(os.TempDir(), "does-not-exist.bin")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(tt.args, &out); err == nil {
				t.Error("expected error")
			}
		})
	}
}
