package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ChristianF88/radixcl/compute"
	"github.com/ChristianF88/radixcl/config"
	"github.com/ChristianF88/radixcl/version"
	cli "github.com/urfave/cli/v2"
)

// parseDate attempts to parse the build date
func parseDate(d string) time.Time {
	t, err := time.Parse(time.RFC3339, d)
	if err != nil {
		return time.Now()
	}
	return t
}

// Shared flag definitions to eliminate duplication
var (
	// Configuration flags
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to configuration file (mutually exclusive with other flags)",
	}

	// Input flags
	sizeFlag = &cli.IntFlag{
		Name:  "size",
		Usage: "Number of random keys to generate when no input file is given",
		Value: config.DefaultSize,
	}
	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "Seed for the random key generator",
		Value: config.DefaultSeed,
	}
	inputFlag = &cli.StringFlag{
		Name:  "input",
		Usage: "Path to a key file (whitespace-separated decimal, 0x hex or dotted IPv4 keys, '#' comments)",
	}
	outputFileFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Path where to write the sorted keys, one per line",
	}

	// Device flags
	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "Compute back end (see 'devices')",
		Value: compute.CPUName,
	}
	deviceFlag = &cli.IntFlag{
		Name:  "device",
		Usage: "Device index within the back end",
		Value: 0,
	}

	// Pipeline flags
	orderFlag = &cli.StringFlag{
		Name:  "order",
		Usage: "Sort order: ascending or descending",
		Value: "ascending",
	}
	keyBitsFlag = &cli.IntFlag{
		Name:  "keyBits",
		Usage: "Number of low key bits to sort by (1-32)",
		Value: 32,
	}
	digitBitsFlag = &cli.IntFlag{
		Name:  "digitBits",
		Usage: "Bits per digit pass (1-8); keyBits must be a multiple",
		Value: 8,
	}
	groupSizeFlag = &cli.IntFlag{
		Name:  "groupSize",
		Usage: "Work items per work-group (power of two)",
		Value: 64,
	}
	blockSizeFlag = &cli.IntFlag{
		Name:  "blockSize",
		Usage: "Keys per work-group in histogram and permute (default groupSize*2^digitBits)",
	}
	transitionFlag = &cli.StringFlag{
		Name:  "transition",
		Usage: "How a pass output becomes the next input: swap or copy",
		Value: "swap",
	}
	verifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "Compare the device result with a host reference sort",
		Value: true,
	}

	// Output flags
	plotPathFlag = &cli.StringFlag{
		Name:  "plotPath",
		Usage: "Path where to save the histogram plot (e.g., '/path/to/histograms.html'). If not provided, no plot will be generated.",
	}
	compactFlag = &cli.BoolFlag{
		Name:  "compact",
		Usage: "Output compact JSON (no pretty printing)",
		Value: false,
	}
	plainFlag = &cli.BoolFlag{
		Name:  "plain",
		Usage: "Output plain text format for easy readability",
		Value: false,
	}
	tuiFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Launch TUI (Terminal User Interface) mode",
		Value: false,
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Log pipeline details to stderr",
		Value: false,
	}

	// Serve-specific flags
	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: "Port to listen on for lumberjack v2 batches",
		Value: 5044,
	}
	readTimeoutFlag = &cli.DurationFlag{
		Name:  "readTimeout",
		Usage: "Lumberjack connection read timeout",
		Value: config.DefaultReadTimeout,
	}
	intervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Usage: "Time between sorts of the received keys",
		Value: config.DefaultInterval,
	}
	maxBatchFlag = &cli.IntFlag{
		Name:  "maxBatch",
		Usage: "Maximum keys drained per iteration",
		Value: config.DefaultMaxBatch,
	}
)

var pipelineFlags = []cli.Flag{
	backendFlag,
	deviceFlag,
	orderFlag,
	keyBitsFlag,
	digitBitsFlag,
	groupSizeFlag,
	blockSizeFlag,
	transitionFlag,
}

// Shared validation functions
func validateConfigModeFlags(c *cli.Context, allowedFlags []string) error {
	allowed := make(map[string]bool)
	for _, flag := range allowedFlags {
		allowed[flag] = true
	}

	flagsToCheck := []string{
		"size", "seed", "input", "output", "backend", "device", "order",
		"keyBits", "digitBits", "groupSize", "blockSize", "transition", "verify",
		"plotPath", "port", "readTimeout", "interval", "maxBatch",
		"tui", "compact", "plain", "verbose",
	}

	for _, flag := range flagsToCheck {
		if c.IsSet(flag) && !allowed[flag] {
			return fmt.Errorf("when using --config, only %v flags are allowed", allowedFlags)
		}
	}
	return nil
}

func validatePlotPath(plotPath string) error {
	if plotPath != "" {
		plotDir := filepath.Dir(plotPath)
		if plotDir == "." {
			plotDir, _ = os.Getwd()
		}
		if _, err := os.Stat(plotDir); os.IsNotExist(err) {
			return fmt.Errorf("plot directory does not exist: %s", plotDir)
		}
	}
	return nil
}

func validateInputFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	return nil
}

// pipelineFromFlags fills the pipeline and device settings shared by sort and serve.
func pipelineFromFlags(c *cli.Context, cfg *config.Config) {
	cfg.Sort.Backend = c.String("backend")
	cfg.Sort.Device = c.Int("device")
	cfg.Sort.Order = c.String("order")
	cfg.Pipeline = &config.PipelineConfig{
		KeyBits:    c.Int("keyBits"),
		DigitBits:  c.Int("digitBits"),
		GroupSize:  c.Int("groupSize"),
		BlockSize:  c.Int("blockSize"),
		Transition: c.String("transition"),
	}
}

// Command handler functions to reduce deep nesting

// handleSortCommand processes the sort command
func handleSortCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleSortConfigMode(c, configPath)
	}
	return handleSortFlagsMode(c)
}

// handleSortConfigMode handles sort command when using config file
func handleSortConfigMode(c *cli.Context, configPath string) error {
	if err := validateConfigModeFlags(c, []string{"tui", "compact", "plain", "verbose"}); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateSort(); err != nil {
		return fmt.Errorf("invalid sort configuration: %w", err)
	}

	outputConfig := OutputConfig{
		Compact: c.Bool("compact") || cfg.Output.Compact,
		Plain:   c.Bool("plain") || cfg.Output.Plain,
		TUI:     c.Bool("tui"),
	}
	return SortFromConfig(cfg, outputConfig, newLogger(c.App.ErrWriter, c.Bool("verbose")), c.App.Writer)
}

// handleSortFlagsMode handles sort command when using CLI flags only
func handleSortFlagsMode(c *cli.Context) error {
	if input := c.String("input"); input != "" {
		if err := validateInputFileExists(input); err != nil {
			return err
		}
		if c.IsSet("size") || c.IsSet("seed") {
			return fmt.Errorf("size and seed cannot be combined with input")
		}
	}
	if err := validatePlotPath(c.String("plotPath")); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Sort.Size = c.Int("size")
	cfg.Sort.Seed = c.Int64("seed")
	cfg.Sort.InputFile = c.String("input")
	cfg.Sort.OutputFile = c.String("output")
	cfg.Sort.Verify = c.Bool("verify")
	cfg.Output.PlotPath = c.String("plotPath")
	pipelineFromFlags(c, cfg)

	if err := cfg.ValidateSort(); err != nil {
		return err
	}

	outputConfig := OutputConfig{
		Compact: c.Bool("compact"),
		Plain:   c.Bool("plain"),
		TUI:     c.Bool("tui"),
	}
	return SortFromConfig(cfg, outputConfig, newLogger(c.App.ErrWriter, c.Bool("verbose")), c.App.Writer)
}

// handleServeCommand processes the serve command
func handleServeCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleServeConfigMode(c, configPath)
	}
	return handleServeFlagsMode(c)
}

// handleServeConfigMode handles serve command when using config file
func handleServeConfigMode(c *cli.Context, configPath string) error {
	if err := validateConfigModeFlags(c, []string{"compact", "plain", "verbose"}); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid serve configuration: %w", err)
	}

	outputConfig := OutputConfig{
		Compact: c.Bool("compact") || cfg.Output.Compact,
		Plain:   c.Bool("plain") || cfg.Output.Plain,
	}
	return Serve(c.Context, cfg, outputConfig, newLogger(c.App.ErrWriter, c.Bool("verbose")), c.App.Writer)
}

// handleServeFlagsMode handles serve command when using CLI flags only
func handleServeFlagsMode(c *cli.Context) error {
	cfg := config.Default()
	cfg.Sort.Verify = c.Bool("verify")
	cfg.Serve = &config.ServeConfig{
		Port:        fmt.Sprint(c.Int("port")),
		ReadTimeout: c.Duration("readTimeout"),
		Interval:    c.Duration("interval"),
		MaxBatch:    c.Int("maxBatch"),
	}
	pipelineFromFlags(c, cfg)

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	outputConfig := OutputConfig{
		Compact: c.Bool("compact"),
		Plain:   c.Bool("plain"),
	}
	return Serve(c.Context, cfg, outputConfig, newLogger(c.App.ErrWriter, c.Bool("verbose")), c.App.Writer)
}

// handleDevicesCommand lists back ends and their devices
func handleDevicesCommand(c *cli.Context) error {
	return ListDevices(c.App.Writer)
}

var App = &cli.App{
	Name:     "radixcl",
	Usage:    "Sort uint32 keys with a data-parallel LSD radix sort on a compute back end",
	Version:  version.Version,
	Compiled: parseDate(version.Date),
	Commands: []*cli.Command{
		{
			Name:  "sort",
			Usage: "Sort random or file keys, verify and report",
			Flags: append([]cli.Flag{
				// Configuration
				configFlag,
				// Input flags
				sizeFlag,
				seedFlag,
				inputFlag,
				outputFileFlag,
				verifyFlag,
				// Output flags
				plotPathFlag,
				compactFlag,
				plainFlag,
				tuiFlag,
				verboseFlag,
			}, pipelineFlags...),
			Action: handleSortCommand,
		},
		{
			Name:  "serve",
			Usage: "Receive keys over lumberjack v2 and sort them periodically",
			Flags: append([]cli.Flag{
				// Configuration
				configFlag,
				// Serve-specific flags
				portFlag,
				readTimeoutFlag,
				intervalFlag,
				maxBatchFlag,
				verifyFlag,
				// Output flags
				compactFlag,
				plainFlag,
				verboseFlag,
			}, pipelineFlags...),
			Action: handleServeCommand,
		},
		{
			Name:   "devices",
			Usage:  "List compute back ends and their devices",
			Action: handleDevicesCommand,
		},
	},
}
