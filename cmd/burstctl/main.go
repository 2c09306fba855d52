package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corticodb/burstcore/pkg/backend"
	"github.com/corticodb/burstcore/pkg/burstloop"
	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
	"github.com/corticodb/burstcore/pkg/paramqueue"
)

// shell holds the in-process engine the REPL drives: a freshly constructed
// NPU/Connectome Manager pair plus a stopped burst loop runner, all local
// to this process (there is no remote server for burstctl to dial —
// unlike the teacher's HTTP admin client, this engine has no network
// surface to administer remotely).
type shell struct {
	manager *connectome.Manager
	runner  *burstloop.Runner
}

func newShell(cfg *core.Config) *shell {
	storage := npu.NewStorage(cfg.NPU.MaxNeurons, cfg.NPU.MaxSynapses, cfg.NPU.MaxPendingInjections)
	n := npu.New(storage, backend.NewCPUBackend(), cfg.NPU.PowerDrive)
	manager := connectome.NewManager(n)
	pq := paramqueue.NewQueue(cfg.ParamQueue.Capacity)
	runner := burstloop.NewRunner(manager, pq, cfg.BurstLoop.FrequencyHz)
	return &shell{manager: manager, runner: runner}
}

func main() {
	var genomePath string

	rootCmd := &cobra.Command{
		Use:   "burstctl",
		Short: "burstctl - interactive console for a burstcore engine",
		Long:  "A REPL for building a connectome by hand: register cortical areas, populate neurons, inject sensory potentials, and single-step burst ticks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := core.DefaultConfig()
			sh := newShell(cfg)
			if genomePath != "" {
				data, err := os.ReadFile(genomePath)
				if err != nil {
					return fmt.Errorf("reading genome file: %w", err)
				}
				if err := sh.manager.LoadGenomeFromJSON(data); err != nil {
					return fmt.Errorf("loading genome: %w", err)
				}
			}
			runREPL(sh)
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&genomePath, "genome", "", "Load a genome JSON snapshot before starting the shell")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
