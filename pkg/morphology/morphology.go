// Package morphology computes (source, target, weight, conductance, type)
// synapse tuples for the destination-mapping rules a cortical area declares
// against another area, per the connectome manager's synaptogenesis phase.
package morphology

import "github.com/corticodb/burstcore/pkg/core"

// Voxel is one neuron's position within its cortical area, paired with its
// id, as seen by a builder.
type Voxel struct {
	ID      core.NeuronID
	X, Y, Z uint32
}

// Synapse is one synaptogenesis output tuple.
type Synapse struct {
	Source      core.NeuronID
	Target      core.NeuronID
	Weight      uint8
	Conductance uint8
	SynapseType uint8
}

// Rule is a single destination-mapping rule between a source and a target
// area. Kind selects the builder; Params carries builder-specific values
// (read by name, since the rule set comes from an already-parsed runtime
// genome rather than a typed-per-kind struct).
type Rule struct {
	Kind        string
	Weight      uint8
	Conductance uint8
	SynapseType uint8
	// Params holds kind-specific knobs: "block_size" for BlockToBlock,
	// "vector_x", "vector_y", "vector_z" for Vector, and "pattern_count"
	// with "pattern_<n>_x/y/z" for Pattern.
	Params map[string]float64
}

// Builder computes the synapse set a rule produces between a source and a
// target area's voxel sets.
type Builder interface {
	Build(rule Rule, sources, targets []Voxel) ([]Synapse, error)
}

// ForKind resolves the builder for a rule's kind, returning
// InvalidMorphology if the kind is unsupported.
func ForKind(kind string) (Builder, error) {
	switch kind {
	case "projector":
		return Projector{}, nil
	case "block_to_block":
		return BlockToBlock{}, nil
	case "vector":
		return Vector{}, nil
	case "pattern":
		return Pattern{}, nil
	case "direct":
		return Direct{}, nil
	default:
		return nil, core.InvalidMorphology(kind)
	}
}

// Build resolves and runs the builder for rule.Kind in one call.
func Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	b, err := ForKind(rule.Kind)
	if err != nil {
		return nil, err
	}
	return b.Build(rule, sources, targets)
}

func makeSynapse(rule Rule, src, tgt core.NeuronID) Synapse {
	return Synapse{
		Source:      src,
		Target:      tgt,
		Weight:      rule.Weight,
		Conductance: rule.Conductance,
		SynapseType: rule.SynapseType,
	}
}
