package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
)

const replHelp = `
burstctl interactive shell — available commands:

  area add <name> <w> <h> <d> <threshold> <neurons_per_voxel>
                                     Register a custom cortical area
  neuron add <area>                 Run neurogenesis for a registered area
  inject <area> <local_index> <potential>
                                     Stage a sensory injection at a neuron
                                     by its position in the area's creation
                                     order (0-based)
  tick                               Run one burst synchronously
  stats                              Show neuron/synapse/burst counts
  areas                              List registered areas

  help, \h                          Show this help
  quit, \q, exit                    Exit
`

// runREPL starts the interactive shell against an already-constructed
// shell (its NPU and Connectome Manager are process-local; there is no
// remote connection to establish).
func runREPL(sh *shell) {
	fmt.Println("Connected to an in-process burstcore engine.")
	fmt.Println("Type \\h for commands, \\q to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("burstctl> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if dispatch(sh, line) {
			fmt.Println("Bye.")
			break
		}
	}
}

// dispatch parses and executes one REPL line, returning true when the
// user wants to quit.
func dispatch(sh *shell, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case `\q`, "quit", "exit":
		return true

	case `\h`, "help":
		fmt.Print(replHelp)

	case "area":
		if len(parts) >= 2 && parts[1] == "add" {
			replAreaAdd(sh, parts[2:])
		} else {
			fmt.Fprintln(os.Stderr, "usage: area add <name> <w> <h> <d> <threshold> <neurons_per_voxel>")
		}

	case "neuron":
		if len(parts) >= 2 && parts[1] == "add" {
			replNeuronAdd(sh, parts[2:])
		} else {
			fmt.Fprintln(os.Stderr, "usage: neuron add <area>")
		}

	case "inject":
		replInject(sh, parts[1:])

	case "tick":
		count := sh.runner.Step()
		fmt.Printf("burst_count=%d\n", count)

	case "stats":
		replStats(sh)

	case "areas":
		for _, id := range sh.manager.ListAreas() {
			area, _ := sh.manager.GetArea(id)
			fmt.Printf("%-6d %-20s neurons=%d state=%s\n", area.Index, area.Name, len(area.NeuronIDs), area.State)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (try \\h)\n", parts[0])
	}
	return false
}

func replAreaAdd(sh *shell, args []string) {
	if len(args) != 6 {
		fmt.Fprintln(os.Stderr, "usage: area add <name> <w> <h> <d> <threshold> <neurons_per_voxel>")
		return
	}
	name := args[0]
	w, err1 := strconv.ParseUint(args[1], 10, 32)
	h, err2 := strconv.ParseUint(args[2], 10, 32)
	d, err3 := strconv.ParseUint(args[3], 10, 32)
	threshold, err4 := strconv.ParseFloat(args[4], 32)
	npv, err5 := strconv.ParseUint(args[5], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		fmt.Fprintln(os.Stderr, "error: all dimension/threshold/neurons_per_voxel arguments must be numeric")
		return
	}

	area := connectome.Area{
		ID:         core.NewCustomCorticalID(name),
		Name:       name,
		Dimensions: connectome.Dimensions{Width: uint32(w), Height: uint32(h), Depth: uint32(d)},
		Defaults: connectome.NeuronDefaults{
			Threshold:       float32(threshold),
			ThresholdLimit:  float32(threshold) * 10,
			NeuronsPerVoxel: uint32(npv),
		},
	}
	idx, err := sh.manager.AddCorticalArea(area)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("registered %q at index %d\n", name, idx)
}

func replNeuronAdd(sh *shell, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: neuron add <area>")
		return
	}
	id, ok := resolveAreaByName(sh, args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "error: no such area %q\n", args[0])
		return
	}
	count, err := sh.manager.CreateNeuronsForArea(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("created %d neurons\n", count)
}

func replInject(sh *shell, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: inject <area> <local_index> <potential>")
		return
	}
	id, ok := resolveAreaByName(sh, args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "error: no such area %q\n", args[0])
		return
	}
	localIdx, err1 := strconv.Atoi(args[1])
	potential, err2 := strconv.ParseFloat(args[2], 32)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(os.Stderr, "error: local_index and potential must be numeric")
		return
	}

	area, _ := sh.manager.GetArea(id)
	if localIdx < 0 || localIdx >= len(area.NeuronIDs) {
		fmt.Fprintf(os.Stderr, "error: local_index %d out of range [0,%d)\n", localIdx, len(area.NeuronIDs))
		return
	}
	sh.manager.NPU().StageInjection(area.NeuronIDs[localIdx], float32(potential))
	fmt.Println("staged")
}

func replStats(sh *shell) {
	n := sh.manager.NPU()
	fmt.Printf("neurons=%d synapses=%d burst_count=%d frequency=%.1fHz running=%v\n",
		n.GetNeuronCount(), n.GetSynapseCount(), n.GetBurstCount(), sh.runner.GetFrequency(), sh.runner.IsRunning())
}

func resolveAreaByName(sh *shell, name string) (core.CorticalID, bool) {
	for _, id := range sh.manager.ListAreas() {
		area, _ := sh.manager.GetArea(id)
		if area.Name == name {
			return id, true
		}
	}
	return core.CorticalID{}, false
}
