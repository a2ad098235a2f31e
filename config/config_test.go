package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ChristianF88/radixcl/radixsort"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFull(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(input, []byte("3 1 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, `
[sort]
size = 1000
seed = 7
order = "desc"
backend = "cpu"
device = 0
inputFile = "`+input+`"
outputFile = "`+filepath.Join(dir, "out.txt")+`"
verify = false

[pipeline]
keyBits = 16
digitBits = 4
groupSize = 32
blockSize = 512
transition = "copy"

[output]
plotPath = "`+filepath.Join(dir, "plot.html")+`"
compact = true
plain = true

[serve]
port = "6000"
readTimeout = "5s"
interval = 2
maxBatch = 4096
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Sort.Size != 1000 || cfg.Sort.Seed != 7 || cfg.Sort.Order != "desc" {
		t.Errorf("Unexpected sort section: %+v", cfg.Sort)
	}
	if cfg.Sort.Verify {
		t.Error("Expected verify=false")
	}
	if cfg.Sort.InputFile != input {
		t.Errorf("Expected inputFile %q, got %q", input, cfg.Sort.InputFile)
	}
	if cfg.Pipeline.KeyBits != 16 || cfg.Pipeline.DigitBits != 4 || cfg.Pipeline.GroupSize != 32 || cfg.Pipeline.BlockSize != 512 {
		t.Errorf("Unexpected pipeline section: %+v", cfg.Pipeline)
	}
	if !cfg.Output.Compact || !cfg.Output.Plain {
		t.Errorf("Unexpected output section: %+v", cfg.Output)
	}
	if cfg.Serve.Port != "6000" {
		t.Errorf("Expected port 6000, got %q", cfg.Serve.Port)
	}
	if cfg.Serve.ReadTimeout != 5*time.Second {
		t.Errorf("Expected readTimeout 5s, got %v", cfg.Serve.ReadTimeout)
	}
	if cfg.Serve.Interval != 2*time.Second {
		t.Errorf("Expected interval 2s, got %v", cfg.Serve.Interval)
	}
	if cfg.Serve.MaxBatch != 4096 {
		t.Errorf("Expected maxBatch 4096, got %d", cfg.Serve.MaxBatch)
	}

	if err := cfg.ValidateSort(); err != nil {
		t.Errorf("ValidateSort failed: %v", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("ValidateServe failed: %v", err)
	}

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	want := radixsort.Params{
		KeyBits:           16,
		DigitBits:         4,
		GroupSize:         32,
		BlockSize:         512,
		Order:             radixsort.Descending,
		Transition:        radixsort.CopyBack,
		CaptureHistograms: true,
	}
	if p != want {
		t.Errorf("Expected params %+v, got %+v", want, p)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Sort.Size != DefaultSize {
		t.Errorf("Expected default size %d, got %d", DefaultSize, cfg.Sort.Size)
	}
	if cfg.Sort.Seed != DefaultSeed {
		t.Errorf("Expected default seed %d, got %d", DefaultSeed, cfg.Sort.Seed)
	}
	if cfg.Sort.Backend != "cpu" {
		t.Errorf("Expected default backend cpu, got %q", cfg.Sort.Backend)
	}
	if !cfg.Sort.Verify {
		t.Error("Expected verify enabled by default")
	}
	if cfg.Serve.Port != DefaultPort || cfg.Serve.Interval != DefaultInterval {
		t.Errorf("Unexpected serve defaults: %+v", cfg.Serve)
	}

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if p != radixsort.DefaultParams() {
		t.Errorf("Expected default params, got %+v", p)
	}
	if err := cfg.ValidateSort(); err != nil {
		t.Errorf("ValidateSort failed on defaults: %v", err)
	}
}

func TestLoadConfigPartialSection(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
[sort]
size = 10
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sort.Size != 10 {
		t.Errorf("Expected size 10, got %d", cfg.Sort.Size)
	}
	if cfg.Sort.Backend != "cpu" || cfg.Sort.Seed != DefaultSeed || !cfg.Sort.Verify {
		t.Errorf("Unset fields lost their defaults: %+v", cfg.Sort)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad toml", "[sort\nsize = 1", "failed to parse config file"},
		{"unknown section", "[cluster]\nx = 1", "unknown section"},
		{"not a table", "sort = 5", "must be a table"},
		{"string size", "[sort]\nsize = \"big\"", "size must be an integer"},
		{"fractional group", "[pipeline]\ngroupSize = 1.5", "groupSize must be an integer"},
		{"bad duration", "[serve]\ninterval = \"soon\"", "invalid interval"},
		{"bool timeout", "[serve]\nreadTimeout = true", "readTimeout must be a duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateSort(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"negative size", func(c *Config) { c.Sort.Size = -1 }, "size must not be negative"},
		{"missing input", func(c *Config) { c.Sort.InputFile = "/nonexistent/keys.txt" }, "input file does not exist"},
		{"empty backend", func(c *Config) { c.Sort.Backend = "" }, "backend is required"},
		{"negative device", func(c *Config) { c.Sort.Device = -2 }, "device must not be negative"},
		{"output dir", func(c *Config) { c.Sort.OutputFile = "/nonexistent/dir/out.txt" }, "outputFile directory does not exist"},
		{"plot dir", func(c *Config) { c.Output.PlotPath = "/nonexistent/dir/plot.html" }, "plotPath directory does not exist"},
		{"bad order", func(c *Config) { c.Sort.Order = "sideways" }, "unknown order"},
		{"bad transition", func(c *Config) { c.Pipeline.Transition = "teleport" }, "unknown transition"},
		{"digit bits", func(c *Config) { c.Pipeline.DigitBits = 9 }, "digitBits"},
		{"key bits multiple", func(c *Config) { c.Pipeline.KeyBits = 30; c.Pipeline.DigitBits = 8 }, "not a multiple"},
		{"group size", func(c *Config) { c.Pipeline.GroupSize = 48 }, "not a power of two"},
		{"block size", func(c *Config) { c.Pipeline.GroupSize = 64; c.Pipeline.BlockSize = 32 }, "smaller than groupSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.ValidateSort()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no section", func(c *Config) { c.Serve = nil }, "serve configuration section is required"},
		{"empty port", func(c *Config) { c.Serve.Port = "" }, "port is required"},
		{"zero interval", func(c *Config) { c.Serve.Interval = 0 }, "interval must be positive"},
		{"zero timeout", func(c *Config) { c.Serve.ReadTimeout = 0 }, "readTimeout must be positive"},
		{"zero batch", func(c *Config) { c.Serve.MaxBatch = 0 }, "maxBatch must be positive"},
		{"no backend", func(c *Config) { c.Sort.Backend = "" }, "backend is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.ValidateServe()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestServePortInteger(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "[serve]\nport = 7000\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Serve.Port != "7000" {
		t.Errorf("Expected port 7000, got %q", cfg.Serve.Port)
	}
}
