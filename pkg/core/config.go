package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config — central configuration for a burstcore engine instance.
//
// Resolved through a four-level hierarchy where each layer overrides values
// set by the layer beneath it:
//
//	Priority (highest → lowest):
//	  1. Programmatic overrides (CLI flags applied after loading)
//	  2. Environment variables (BURSTCORE_* prefix)
//	  3. YAML configuration file
//	  4. Built-in defaults
//
// Duration fields accept standard Go duration strings when supplied through
// the YAML file or environment variables (e.g. "30s", "5m").
// ---------------------------------------------------------------------------

// NPUConfig groups neuron/synapse storage capacities.
type NPUConfig struct {
	// MaxNeurons is the fixed capacity of the neuron SoA.
	MaxNeurons int `yaml:"maxNeurons"`

	// MaxSynapses is the fixed capacity of the synapse SoA.
	MaxSynapses int `yaml:"maxSynapses"`

	// MaxPendingInjections bounds the sensory injection staging list;
	// overflow drops the oldest entry and logs once.
	MaxPendingInjections int `yaml:"maxPendingInjections"`

	// PowerDrive is the fixed charge added every tick to neurons in the
	// reserved power area.
	PowerDrive float32 `yaml:"powerDrive"`
}

// ConnectomeConfig groups cortical-area/genome settings.
type ConnectomeConfig struct {
	// GenomeSnapshotPath is the file cmd/burstcored loads the JSON genome
	// snapshot from at startup (Manager.LoadGenomeFromJSON) and writes it
	// back to on shutdown (Manager.SaveGenomeToJSON).
	GenomeSnapshotPath string `yaml:"genomeSnapshotPath"`

	// Compress is carried through defaults, YAML, environment and CLI, but
	// no code path reads it: genome snapshots are always plain JSON.
	Compress bool `yaml:"compress"`
}

// BurstLoopConfig groups tick-scheduler settings.
type BurstLoopConfig struct {
	// FrequencyHz is the target tick rate.
	FrequencyHz float64 `yaml:"frequencyHz"`

	// OvershootLogThreshold is the minimum tick overshoot duration that
	// triggers a log line.
	OvershootLogThreshold time.Duration `yaml:"overshootLogThreshold"`

	// ShutdownJoinTimeout bounds how long Stop() waits for the scheduler
	// goroutine before logging a non-fatal missed join.
	ShutdownJoinTimeout time.Duration `yaml:"shutdownJoinTimeout"`

	// PublisherBlockWarnThreshold is loaded from defaults, YAML and
	// environment, but the burst loop does not read it: publisher calls are
	// not timed and no blocking warning is logged.
	PublisherBlockWarnThreshold time.Duration `yaml:"publisherBlockWarnThreshold"`
}

// ParamQueueConfig groups the parameter-update queue's settings.
type ParamQueueConfig struct {
	// Capacity is the fixed buffer size of the MPSC channel.
	Capacity int `yaml:"capacity"`
}

// SHMConfig groups shared-memory writer settings.
type SHMConfig struct {
	// VisualizationPath, if non-empty, attaches a visualization SHM writer
	// at startup.
	VisualizationPath string `yaml:"visualizationPath"`

	// MotorPath, if non-empty, attaches a motor SHM writer at startup.
	MotorPath string `yaml:"motorPath"`
}

// Config is the root configuration object for a burstcore engine instance.
type Config struct {
	NPU        NPUConfig        `yaml:"npu"`
	Connectome ConnectomeConfig `yaml:"connectome"`
	BurstLoop  BurstLoopConfig  `yaml:"burstLoop"`
	ParamQueue ParamQueueConfig `yaml:"paramQueue"`
	SHM        SHMConfig        `yaml:"shm"`
}

// ---------------------------------------------------------------------------
// Factory functions
// ---------------------------------------------------------------------------

// DefaultConfig returns a Config populated with production-safe defaults.
func DefaultConfig() *Config {
	return &Config{
		NPU: NPUConfig{
			MaxNeurons:           1_000_000,
			MaxSynapses:          10_000_000,
			MaxPendingInjections: 1 << 16,
			PowerDrive:           1.0,
		},
		Connectome: ConnectomeConfig{
			GenomeSnapshotPath: "./data/genome.msgpack",
			Compress:           true,
		},
		BurstLoop: BurstLoopConfig{
			FrequencyHz:                 90,
			OvershootLogThreshold:       1 * time.Second,
			ShutdownJoinTimeout:         2 * time.Second,
			PublisherBlockWarnThreshold: 5 * time.Second,
		},
		ParamQueue: ParamQueueConfig{
			Capacity: 4096,
		},
		SHM: SHMConfig{
			VisualizationPath: "",
			MotorPath:         "",
		},
	}
}

// ConfigFromFile reads a YAML configuration file and merges it on top of
// the built-in defaults. Fields absent from the file retain their defaults.
func ConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// ConfigFromEnv applies environment variable overrides to the given Config.
// If cfg is nil a new default Config is created first.
//
// Environment variable mapping (all optional, prefix BURSTCORE_):
//
//	BURSTCORE_MAX_NEURONS               → NPU.MaxNeurons
//	BURSTCORE_MAX_SYNAPSES              → NPU.MaxSynapses
//	BURSTCORE_MAX_PENDING_INJECTIONS    → NPU.MaxPendingInjections
//	BURSTCORE_POWER_DRIVE               → NPU.PowerDrive
//	BURSTCORE_GENOME_SNAPSHOT_PATH      → Connectome.GenomeSnapshotPath
//	BURSTCORE_COMPRESS                  → Connectome.Compress       ("true"/"false")
//	BURSTCORE_FREQUENCY_HZ              → BurstLoop.FrequencyHz
//	BURSTCORE_OVERSHOOT_LOG_THRESHOLD   → BurstLoop.OvershootLogThreshold (duration string)
//	BURSTCORE_SHUTDOWN_JOIN_TIMEOUT     → BurstLoop.ShutdownJoinTimeout   (duration string)
//	BURSTCORE_PUBLISHER_BLOCK_WARN      → BurstLoop.PublisherBlockWarnThreshold (duration string)
//	BURSTCORE_PARAM_QUEUE_CAPACITY      → ParamQueue.Capacity
//	BURSTCORE_SHM_VISUALIZATION_PATH    → SHM.VisualizationPath
//	BURSTCORE_SHM_MOTOR_PATH            → SHM.MotorPath
func ConfigFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	setEnvInt("BURSTCORE_MAX_NEURONS", &cfg.NPU.MaxNeurons)
	setEnvInt("BURSTCORE_MAX_SYNAPSES", &cfg.NPU.MaxSynapses)
	setEnvInt("BURSTCORE_MAX_PENDING_INJECTIONS", &cfg.NPU.MaxPendingInjections)
	setEnvFloat32("BURSTCORE_POWER_DRIVE", &cfg.NPU.PowerDrive)

	setEnvStr("BURSTCORE_GENOME_SNAPSHOT_PATH", &cfg.Connectome.GenomeSnapshotPath)
	setEnvBool("BURSTCORE_COMPRESS", &cfg.Connectome.Compress)

	setEnvFloat("BURSTCORE_FREQUENCY_HZ", &cfg.BurstLoop.FrequencyHz)
	setEnvDuration("BURSTCORE_OVERSHOOT_LOG_THRESHOLD", &cfg.BurstLoop.OvershootLogThreshold)
	setEnvDuration("BURSTCORE_SHUTDOWN_JOIN_TIMEOUT", &cfg.BurstLoop.ShutdownJoinTimeout)
	setEnvDuration("BURSTCORE_PUBLISHER_BLOCK_WARN", &cfg.BurstLoop.PublisherBlockWarnThreshold)

	setEnvInt("BURSTCORE_PARAM_QUEUE_CAPACITY", &cfg.ParamQueue.Capacity)

	setEnvStr("BURSTCORE_SHM_VISUALIZATION_PATH", &cfg.SHM.VisualizationPath)
	setEnvStr("BURSTCORE_SHM_MOTOR_PATH", &cfg.SHM.MotorPath)

	return cfg
}

// LoadConfig implements the full four-level configuration hierarchy:
//
//  1. Start with built-in defaults.
//  2. If configPath is non-empty, overlay the YAML file.
//  3. Apply environment variable overrides.
//  4. The caller may then apply programmatic overrides (e.g. CLI flags).
func LoadConfig(configPath string) (*Config, error) {
	var cfg *Config

	if configPath != "" {
		var err error
		cfg, err = ConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	cfg = ConfigFromEnv(cfg)
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate performs structural validation of the entire configuration.
// Returns a descriptive error for the first invalid field encountered.
func (c *Config) Validate() error {
	if c.NPU.MaxNeurons < 1 {
		return fmt.Errorf("npu.maxNeurons must be >= 1, got %d", c.NPU.MaxNeurons)
	}
	if c.NPU.MaxSynapses < 1 {
		return fmt.Errorf("npu.maxSynapses must be >= 1, got %d", c.NPU.MaxSynapses)
	}
	if c.NPU.MaxPendingInjections < 1 {
		return fmt.Errorf("npu.maxPendingInjections must be >= 1, got %d", c.NPU.MaxPendingInjections)
	}

	if c.Connectome.GenomeSnapshotPath == "" {
		return fmt.Errorf("connectome.genomeSnapshotPath must not be empty")
	}

	if c.BurstLoop.FrequencyHz <= 0 {
		return fmt.Errorf("burstLoop.frequencyHz must be > 0, got %f", c.BurstLoop.FrequencyHz)
	}
	if c.BurstLoop.ShutdownJoinTimeout <= 0 {
		return fmt.Errorf("burstLoop.shutdownJoinTimeout must be > 0")
	}
	if c.BurstLoop.OvershootLogThreshold <= 0 {
		return fmt.Errorf("burstLoop.overshootLogThreshold must be > 0")
	}

	if c.ParamQueue.Capacity < 1 {
		return fmt.Errorf("paramQueue.capacity must be >= 1, got %d", c.ParamQueue.Capacity)
	}

	if c.NPU.MaxNeurons > 10_000_000 {
		log.Printf("⚠ WARNING: npu.maxNeurons=%d is extremely high; memory usage will be significant — proceed only if you know what you are doing", c.NPU.MaxNeurons)
	}
	if c.BurstLoop.FrequencyHz > 1000 {
		log.Printf("⚠ WARNING: burstLoop.frequencyHz=%f is very high; busy-wait scheduling will consume a full core", c.BurstLoop.FrequencyHz)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Environment variable helpers
// ---------------------------------------------------------------------------

func setEnvStr(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func setEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setEnvDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func setEnvFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func setEnvFloat32(key string, target *float32) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*target = float32(f)
		}
	}
}

// ---------------------------------------------------------------------------
// CLI flag overrides — final layer of the configuration hierarchy.
// ---------------------------------------------------------------------------

// CLIOverrides carries optional values set via command-line flags.
// Pointer fields are nil when the flag was not explicitly provided,
// allowing the caller to distinguish "not set" from the zero value.
type CLIOverrides struct {
	ConfigPath            *string
	MaxNeurons            *int
	MaxSynapses           *int
	MaxPendingInjections  *int
	PowerDrive            *float32
	GenomeSnapshotPath    *string
	Compress              *bool
	FrequencyHz           *float64
	OvershootLogThreshold *time.Duration
	ShutdownJoinTimeout   *time.Duration
	ParamQueueCapacity    *int
	SHMVisualizationPath  *string
	SHMMotorPath          *string
}

// ApplyCLIOverrides patches the Config with any explicitly-set CLI flags.
// Only non-nil fields in the CLIOverrides are applied, preserving all
// values resolved from earlier hierarchy layers.
func (c *Config) ApplyCLIOverrides(o *CLIOverrides) {
	if o == nil {
		return
	}
	if o.MaxNeurons != nil {
		c.NPU.MaxNeurons = *o.MaxNeurons
	}
	if o.MaxSynapses != nil {
		c.NPU.MaxSynapses = *o.MaxSynapses
	}
	if o.MaxPendingInjections != nil {
		c.NPU.MaxPendingInjections = *o.MaxPendingInjections
	}
	if o.PowerDrive != nil {
		c.NPU.PowerDrive = *o.PowerDrive
	}
	if o.GenomeSnapshotPath != nil {
		c.Connectome.GenomeSnapshotPath = *o.GenomeSnapshotPath
	}
	if o.Compress != nil {
		c.Connectome.Compress = *o.Compress
	}
	if o.FrequencyHz != nil {
		c.BurstLoop.FrequencyHz = *o.FrequencyHz
	}
	if o.OvershootLogThreshold != nil {
		c.BurstLoop.OvershootLogThreshold = *o.OvershootLogThreshold
	}
	if o.ShutdownJoinTimeout != nil {
		c.BurstLoop.ShutdownJoinTimeout = *o.ShutdownJoinTimeout
	}
	if o.ParamQueueCapacity != nil {
		c.ParamQueue.Capacity = *o.ParamQueueCapacity
	}
	if o.SHMVisualizationPath != nil {
		c.SHM.VisualizationPath = *o.SHMVisualizationPath
	}
	if o.SHMMotorPath != nil {
		c.SHM.MotorPath = *o.SHMMotorPath
	}
}

// ---------------------------------------------------------------------------
// Lifecycle helpers
// ---------------------------------------------------------------------------

// WaitForShutdown blocks until an OS interrupt or termination signal is
// received, then cancels the provided context to initiate graceful shutdown.
func WaitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received signal %v, initiating shutdown...", sig)
		cancel()
	case <-ctx.Done():
	}
}

// PrintBanner prints the burstcore ASCII art banner to stdout.
func PrintBanner() {
	banner := `
 _               _   _____
| |__  _   _ _ __ ___| |_ ___ ___  _ __ ___
| '_ \| | | | '__/ __| __/ __/ _ \| '__/ _ \
| |_) | |_| | |  \__ \ |_ (_| (_) | | |  __/
|_.__/ \__,_|_|  |___/\__\___\___/|_|  \___|

    tick-driven spiking connectome core
    ────────────────────────────────────
`
	fmt.Print(banner)
}
