package config

import (
	"os"
	"testing"
)

func FuzzLoadConfig(f *testing.F) {
	f.Add([]byte(""))

	f.Add([]byte(`
[sort]
size = 4096
seed = 3
order = "descending"
`))

	f.Add([]byte(`
[pipeline]
keyBits = 32
digitBits = 4
groupSize = 16
transition = "copy"
`))

	f.Add([]byte(`
[serve]
port = "5044"
readTimeout = "1m"
interval = 5
maxBatch = 1024
`))

	f.Fuzz(func(t *testing.T, data []byte) {
		configPath := t.TempDir() + "/fuzz.toml"
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			return
		}
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return
		}
		// Validation must not panic on anything LoadConfig accepts.
		_ = cfg.ValidatePipeline()
		_ = cfg.ValidateServe()
	})
}
