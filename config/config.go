package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ChristianF88/radixcl/compute"
	"github.com/ChristianF88/radixcl/radixsort"
)

const (
	DefaultSize        = 1 << 16
	DefaultSeed        = 1
	DefaultPort        = "5044"
	DefaultReadTimeout = 30 * time.Second
	DefaultInterval    = 10 * time.Second
	DefaultMaxBatch    = 1 << 20
)

type SortConfig struct {
	Size       int    `toml:"size"`
	Seed       int64  `toml:"seed"`
	Order      string `toml:"order"`
	Backend    string `toml:"backend"`
	Device     int    `toml:"device"`
	InputFile  string `toml:"inputFile"`
	OutputFile string `toml:"outputFile"`
	Verify     bool   `toml:"verify"`
}

type PipelineConfig struct {
	KeyBits    int    `toml:"keyBits"`
	DigitBits  int    `toml:"digitBits"`
	GroupSize  int    `toml:"groupSize"`
	BlockSize  int    `toml:"blockSize"`
	Transition string `toml:"transition"`
}

type OutputConfig struct {
	PlotPath string `toml:"plotPath"`
	Compact  bool   `toml:"compact"`
	Plain    bool   `toml:"plain"`
}

type ServeConfig struct {
	Port        string        `toml:"port"`
	ReadTimeout time.Duration `toml:"readTimeout"`
	Interval    time.Duration `toml:"interval"`
	MaxBatch    int           `toml:"maxBatch"`
}

type Config struct {
	Sort     *SortConfig     `toml:"sort"`
	Pipeline *PipelineConfig `toml:"pipeline"`
	Output   *OutputConfig   `toml:"output"`
	Serve    *ServeConfig    `toml:"serve"`
}

// Default returns a configuration with every section at its defaults.
func Default() *Config {
	return &Config{
		Sort:     defaultSortConfig(),
		Pipeline: &PipelineConfig{},
		Output:   &OutputConfig{},
		Serve:    defaultServeConfig(),
	}
}

func defaultSortConfig() *SortConfig {
	return &SortConfig{
		Size:    DefaultSize,
		Seed:    DefaultSeed,
		Order:   radixsort.Ascending.String(),
		Backend: compute.CPUName,
		Verify:  true,
	}
}

func defaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Port:        DefaultPort,
		ReadTimeout: DefaultReadTimeout,
		Interval:    DefaultInterval,
		MaxBatch:    DefaultMaxBatch,
	}
}

func LoadConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]any
	if _, err := toml.Decode(string(configData), &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config := &Config{}
	for key, value := range rawConfig {
		section, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q must be a table", key)
		}
		switch key {
		case "sort":
			config.Sort, err = parseSortConfig(section)
		case "pipeline":
			config.Pipeline, err = parsePipelineConfig(section)
		case "output":
			config.Output = parseOutputConfig(section)
		case "serve":
			config.Serve, err = parseServeConfig(section)
		default:
			return nil, fmt.Errorf("unknown section [%s]", key)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing [%s]: %w", key, err)
		}
	}

	if config.Sort == nil {
		config.Sort = defaultSortConfig()
	}
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	if config.Output == nil {
		config.Output = &OutputConfig{}
	}
	if config.Serve == nil {
		config.Serve = defaultServeConfig()
	}
	return config, nil
}

// intValue accepts TOML integers and integral floats.
func intValue(m map[string]any, key string) (int64, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int64:
		return n, true, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false, fmt.Errorf("%s must be an integer, got %v", key, n)
		}
		return int64(n), true, nil
	}
	return 0, false, fmt.Errorf("%s must be an integer, got %T", key, v)
}

// durationValue accepts "30s" style strings and integer seconds.
func durationValue(m map[string]any, key string) (time.Duration, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, false, fmt.Errorf("invalid %s %q: %w", key, d, err)
		}
		return parsed, true, nil
	case int64:
		return time.Duration(d) * time.Second, true, nil
	}
	return 0, false, fmt.Errorf("%s must be a duration, got %T", key, v)
}

func parseSortConfig(m map[string]any) (*SortConfig, error) {
	config := defaultSortConfig()
	if v, ok, err := intValue(m, "size"); err != nil {
		return nil, err
	} else if ok {
		config.Size = int(v)
	}
	if v, ok, err := intValue(m, "seed"); err != nil {
		return nil, err
	} else if ok {
		config.Seed = v
	}
	if v, ok, err := intValue(m, "device"); err != nil {
		return nil, err
	} else if ok {
		config.Device = int(v)
	}
	if v, ok := m["order"].(string); ok {
		config.Order = v
	}
	if v, ok := m["backend"].(string); ok {
		config.Backend = v
	}
	if v, ok := m["inputFile"].(string); ok {
		config.InputFile = v
	}
	if v, ok := m["outputFile"].(string); ok {
		config.OutputFile = v
	}
	if v, ok := m["verify"].(bool); ok {
		config.Verify = v
	}
	return config, nil
}

func parsePipelineConfig(m map[string]any) (*PipelineConfig, error) {
	config := &PipelineConfig{}
	fields := []struct {
		key string
		dst *int
	}{
		{"keyBits", &config.KeyBits},
		{"digitBits", &config.DigitBits},
		{"groupSize", &config.GroupSize},
		{"blockSize", &config.BlockSize},
	}
	for _, f := range fields {
		v, ok, err := intValue(m, f.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*f.dst = int(v)
		}
	}
	if v, ok := m["transition"].(string); ok {
		config.Transition = v
	}
	return config, nil
}

func parseOutputConfig(m map[string]any) *OutputConfig {
	config := &OutputConfig{}
	if v, ok := m["plotPath"].(string); ok {
		config.PlotPath = v
	}
	if v, ok := m["compact"].(bool); ok {
		config.Compact = v
	}
	if v, ok := m["plain"].(bool); ok {
		config.Plain = v
	}
	return config
}

func parseServeConfig(m map[string]any) (*ServeConfig, error) {
	config := defaultServeConfig()
	switch v := m["port"].(type) {
	case string:
		config.Port = v
	case int64:
		config.Port = fmt.Sprint(v)
	}
	if d, ok, err := durationValue(m, "readTimeout"); err != nil {
		return nil, err
	} else if ok {
		config.ReadTimeout = d
	}
	if d, ok, err := durationValue(m, "interval"); err != nil {
		return nil, err
	} else if ok {
		config.Interval = d
	}
	if v, ok, err := intValue(m, "maxBatch"); err != nil {
		return nil, err
	} else if ok {
		config.MaxBatch = int(v)
	}
	return config, nil
}

// Params converts the pipeline section into radix sort parameters.
func (c *Config) Params() (radixsort.Params, error) {
	order, err := radixsort.ParseOrder(c.Sort.Order)
	if err != nil {
		return radixsort.Params{}, err
	}
	transition, err := radixsort.ParseTransition(c.Pipeline.Transition)
	if err != nil {
		return radixsort.Params{}, err
	}
	p := radixsort.Params{
		KeyBits:           c.Pipeline.KeyBits,
		DigitBits:         c.Pipeline.DigitBits,
		GroupSize:         c.Pipeline.GroupSize,
		BlockSize:         c.Pipeline.BlockSize,
		Order:             order,
		Transition:        transition,
		CaptureHistograms: c.Output != nil && c.Output.PlotPath != "",
	}
	p.Normalize()
	return p, nil
}

func (c *Config) ValidateSort() error {
	if c.Sort == nil {
		return fmt.Errorf("sort configuration section is required")
	}
	if c.Sort.InputFile == "" && c.Sort.Size < 0 {
		return fmt.Errorf("size must not be negative, got %d", c.Sort.Size)
	}
	if c.Sort.InputFile != "" {
		if _, err := os.Stat(c.Sort.InputFile); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", c.Sort.InputFile)
		}
	}
	if c.Sort.Backend == "" {
		return fmt.Errorf("backend is required in sort configuration")
	}
	if c.Sort.Device < 0 {
		return fmt.Errorf("device must not be negative, got %d", c.Sort.Device)
	}
	if err := validateParentDir("outputFile", c.Sort.OutputFile); err != nil {
		return err
	}
	if c.Output != nil {
		if err := validateParentDir("plotPath", c.Output.PlotPath); err != nil {
			return err
		}
	}
	return c.ValidatePipeline()
}

func (c *Config) ValidatePipeline() error {
	if c.Pipeline == nil {
		return fmt.Errorf("pipeline configuration section is required")
	}
	if c.Sort == nil {
		return fmt.Errorf("sort configuration section is required")
	}
	p, err := c.Params()
	if err != nil {
		return err
	}
	return p.Validate()
}

func (c *Config) ValidateServe() error {
	if c.Serve == nil {
		return fmt.Errorf("serve configuration section is required")
	}
	if c.Serve.Port == "" {
		return fmt.Errorf("port is required in serve configuration")
	}
	if c.Serve.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Serve.Interval)
	}
	if c.Serve.ReadTimeout <= 0 {
		return fmt.Errorf("readTimeout must be positive, got %v", c.Serve.ReadTimeout)
	}
	if c.Serve.MaxBatch <= 0 {
		return fmt.Errorf("maxBatch must be positive, got %d", c.Serve.MaxBatch)
	}
	if c.Sort == nil || c.Sort.Backend == "" {
		return fmt.Errorf("backend is required in sort configuration")
	}
	return c.ValidatePipeline()
}

func validateParentDir(name, path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%s directory does not exist: %s", name, dir)
	}
	return nil
}
