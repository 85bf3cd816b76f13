package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"escpos-service/pkg/escpos"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Capture.TCP.Address != "0.0.0.0:9100" {
		t.Errorf("capture.tcp.address = %q", cfg.Capture.TCP.Address)
	}
	if cfg.Capture.TCP.ReadTimeout != 5*time.Second {
		t.Errorf("capture.tcp.read_timeout = %v", cfg.Capture.TCP.ReadTimeout)
	}
	if cfg.Capture.TCP.AcceptPollInterval != 25*time.Millisecond {
		t.Errorf("capture.tcp.accept_poll_interval = %v", cfg.Capture.TCP.AcceptPollInterval)
	}
	if cfg.Jobs.MaxJobs != 25 || cfg.Jobs.NoiseMaxBytes != 32 || !cfg.Jobs.IgnoreNoise {
		t.Errorf("jobs = %+v", cfg.Jobs)
	}
	if cfg.Jobs.PruneAfter != 2*time.Hour {
		t.Errorf("jobs.prune_after = %v", cfg.Jobs.PruneAfter)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage.driver = %q", cfg.Storage.Driver)
	}
	if cfg.CodePage() != escpos.CodePageUTF8 {
		t.Errorf("code page = %v", cfg.CodePage())
	}
	opts := cfg.DecoderOptions()
	if opts.BarcodeNULMaxMode == nil || *opts.BarcodeNULMaxMode != escpos.DefaultBarcodeNULMaxMode {
		t.Errorf("barcode threshold = %v", opts.BarcodeNULMaxMode)
	}
	if cfg.App.Name != "test" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
}

func TestLoadFile_FileAndEnvironment(t *testing.T) {
	t.Setenv("ESCPOS_SERVICE_JOBS_MAX_JOBS", "7")
	path := writeConfig(t, strings.Join([]string{
		"capture:",
		"  tcp:",
		"    address: 127.0.0.1:9101",
		"decoder:",
		"  codepage: cp437",
		"  barcode_nul_max_mode: 3",
	}, "\n"))

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Capture.TCP.Address != "127.0.0.1:9101" {
		t.Errorf("address = %q", cfg.Capture.TCP.Address)
	}
	if cfg.CodePage() != escpos.CodePage437 {
		t.Errorf("code page = %v, want cp437", cfg.CodePage())
	}
	if cfg.Decoder.BarcodeNULMaxMode != 3 {
		t.Errorf("barcode_nul_max_mode = %d", cfg.Decoder.BarcodeNULMaxMode)
	}
	if cfg.Jobs.MaxJobs != 7 {
		t.Errorf("jobs.max_jobs = %d, want 7 from environment", cfg.Jobs.MaxJobs)
	}
}

func TestLoadFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad codepage", "decoder:\n  codepage: ebcdic\n", "decoder.codepage"},
		{"bad driver", "storage:\n  driver: sqlite\n", "storage.driver"},
		{"zero max jobs", "jobs:\n  max_jobs: 0\n", "jobs.max_jobs"},
		{"serial without port", "capture:\n  serial:\n    enabled: true\n", "capture.serial.port"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Database: DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "jobs", SSLMode: "disable",
	}}}
	want := "host=db port=5433 user=u password=p dbname=jobs sslmode=disable"
	if got := cfg.GetDatabaseDSN(); got != want {
		t.Errorf("GetDatabaseDSN() = %q, want %q", got, want)
	}
}
