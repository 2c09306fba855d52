package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/burstloop"
	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
	"github.com/corticodb/burstcore/pkg/paramqueue"
	"github.com/corticodb/burstcore/pkg/shm"
)

func main() {
	var cliOverrides core.CLIOverrides

	rootCmd := &cobra.Command{
		Use:   "burstcored",
		Short: "burstcore - tick-driven spiking connectome engine",
		Long:  "A standalone neural processing unit daemon: structure-of-arrays neuron/synapse storage, a connectome manager, and a burst loop scheduler driving ticks at a configured frequency.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), &cliOverrides)
		},
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	cliOverrides.ConfigPath = f.StringP("config", "f", "", "Path to YAML config file (overrides BURSTCORE_CONFIG env)")
	cliOverrides.MaxNeurons = f.Int("max-neurons", 0, "Maximum neurons in the NPU's SoA storage")
	cliOverrides.MaxSynapses = f.Int("max-synapses", 0, "Maximum synapses in the NPU's SoA storage")
	cliOverrides.MaxPendingInjections = f.Int("max-pending-injections", 0, "Bound on the sensory injection staging list")
	cliOverrides.PowerDrive = f.Float32("power-drive", 0, "Fixed per-tick charge for the reserved power area")
	cliOverrides.GenomeSnapshotPath = f.String("genome-path", "", "Path to the genome JSON snapshot to load at startup")
	cliOverrides.Compress = f.Bool("compress", false, "Set connectome.compress (not read by any code path; snapshots are plain JSON)")
	cliOverrides.FrequencyHz = f.Float64("frequency-hz", 0, "Burst loop tick frequency")
	cliOverrides.ParamQueueCapacity = f.Int("param-queue-capacity", 0, "Parameter update queue buffer size")
	cliOverrides.SHMVisualizationPath = f.String("viz-shm-path", "", "Path for the visualization SHM writer")
	cliOverrides.SHMMotorPath = f.String("motor-shm-path", "", "Path for the motor SHM writer")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet, cliOverrides *core.CLIOverrides) error {
	core.PrintBanner()

	configPath := ""
	if cliOverrides.ConfigPath != nil && *cliOverrides.ConfigPath != "" {
		configPath = *cliOverrides.ConfigPath
	} else {
		configPath = os.Getenv("BURSTCORE_CONFIG")
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyExplicitFlags(flags, cfg, cliOverrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Printf("NPU capacity: %d neurons, %d synapses", cfg.NPU.MaxNeurons, cfg.NPU.MaxSynapses)
	log.Printf("Burst loop: %.1f Hz", cfg.BurstLoop.FrequencyHz)

	storage := npu.NewStorage(cfg.NPU.MaxNeurons, cfg.NPU.MaxSynapses, cfg.NPU.MaxPendingInjections)
	be := backend.NewCPUBackend()
	n := npu.New(storage, be, cfg.NPU.PowerDrive)
	manager := connectome.NewManager(n)
	log.Println("NPU and Connectome Manager initialized")

	if cfg.Connectome.GenomeSnapshotPath != "" {
		if data, readErr := os.ReadFile(cfg.Connectome.GenomeSnapshotPath); readErr == nil {
			if err := manager.LoadGenomeFromJSON(data); err != nil {
				log.Printf("⚠ failed to load genome snapshot %s: %v", cfg.Connectome.GenomeSnapshotPath, err)
			} else {
				log.Printf("genome snapshot loaded from %s", cfg.Connectome.GenomeSnapshotPath)
			}
		} else {
			log.Printf("no genome snapshot at %s, starting with an empty connectome", cfg.Connectome.GenomeSnapshotPath)
		}
	}

	pq := paramqueue.NewQueue(cfg.ParamQueue.Capacity)
	runner := burstloop.NewRunner(manager, pq, cfg.BurstLoop.FrequencyHz)
	runner.Configure(cfg.BurstLoop.ShutdownJoinTimeout, cfg.BurstLoop.OvershootLogThreshold)
	log.Println("Burst loop runner initialized")

	if cfg.SHM.VisualizationPath != "" {
		writer, err := shm.NewWriter(cfg.SHM.VisualizationPath, defaultSHMRegionSize)
		if err != nil {
			log.Printf("⚠ failed to attach visualization SHM writer at %s: %v", cfg.SHM.VisualizationPath, err)
		} else {
			runner.AttachVizSHMWriter(writer)
			log.Printf("visualization SHM writer attached at %s", cfg.SHM.VisualizationPath)
		}
	}
	if cfg.SHM.MotorPath != "" {
		writer, err := shm.NewWriter(cfg.SHM.MotorPath, defaultSHMRegionSize)
		if err != nil {
			log.Printf("⚠ failed to attach motor SHM writer at %s: %v", cfg.SHM.MotorPath, err)
		} else {
			runner.AttachMotorSHMWriter(writer)
			log.Printf("motor SHM writer attached at %s", cfg.SHM.MotorPath)
		}
	}

	runner.Start()
	log.Println("burstcored is ready!")
	log.Println("--------------------------------------------")

	ctx, cancel := context.WithCancel(context.Background())
	core.WaitForShutdown(ctx, cancel)

	log.Println("Initiating graceful shutdown...")
	runner.Stop()

	if cfg.Connectome.GenomeSnapshotPath != "" {
		data, err := manager.SaveGenomeToJSON()
		if err != nil {
			log.Printf("final genome save error: %v", err)
		} else if err := os.WriteFile(cfg.Connectome.GenomeSnapshotPath, data, 0o644); err != nil {
			log.Printf("final genome write error: %v", err)
		}
	}

	log.Println("burstcored shutdown complete")
	return nil
}

// defaultSHMRegionSize is the initial mapped region for an attached SHM
// writer. The region is not grown: a frame larger than it fails WriteAt and
// the burst loop logs and drops that frame.
const defaultSHMRegionSize = 1 << 20

// applyExplicitFlags applies only the CLI flags that were explicitly set
// by the user, so unset flags never override values resolved from YAML
// or environment variables.
func applyExplicitFlags(flags *pflag.FlagSet, cfg *core.Config, o *core.CLIOverrides) {
	explicit := make(map[string]bool)
	flags.Visit(func(f *pflag.Flag) { explicit[f.Name] = true })

	if !explicit["max-neurons"] {
		o.MaxNeurons = nil
	}
	if !explicit["max-synapses"] {
		o.MaxSynapses = nil
	}
	if !explicit["max-pending-injections"] {
		o.MaxPendingInjections = nil
	}
	if !explicit["power-drive"] {
		o.PowerDrive = nil
	}
	if !explicit["genome-path"] {
		o.GenomeSnapshotPath = nil
	}
	if !explicit["compress"] {
		o.Compress = nil
	}
	if !explicit["frequency-hz"] {
		o.FrequencyHz = nil
	}
	if !explicit["param-queue-capacity"] {
		o.ParamQueueCapacity = nil
	}
	if !explicit["viz-shm-path"] {
		o.SHMVisualizationPath = nil
	}
	if !explicit["motor-shm-path"] {
		o.SHMMotorPath = nil
	}

	cfg.ApplyCLIOverrides(o)
}
