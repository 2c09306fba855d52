package morphology

import "github.com/corticodb/burstcore/pkg/core"

// Projector connects every source neuron to every target neuron (dense
// fan-out), the simplest morphology, selected by Kind "projector".
type Projector struct{}

func (Projector) Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	out := make([]Synapse, 0, len(sources)*len(targets))
	for _, s := range sources {
		for _, t := range targets {
			out = append(out, makeSynapse(rule, s.ID, t.ID))
		}
	}
	return out, nil
}

// BlockToBlock partitions both voxel spaces into cubes of side
// rule.Params["block_size"] (default 1) and connects every source neuron in
// a block to every target neuron in the block occupying the same block
// coordinate, a coarser-grained projection used for bulk area-to-area
// wiring without a full dense fan-out.
type BlockToBlock struct{}

func (BlockToBlock) Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	size := blockSize(rule)

	srcBlocks := make(map[[3]uint32][]Voxel)
	for _, v := range sources {
		key := blockKey(v, size)
		srcBlocks[key] = append(srcBlocks[key], v)
	}
	tgtBlocks := make(map[[3]uint32][]Voxel)
	for _, v := range targets {
		key := blockKey(v, size)
		tgtBlocks[key] = append(tgtBlocks[key], v)
	}

	var out []Synapse
	for key, srcGroup := range srcBlocks {
		tgtGroup, ok := tgtBlocks[key]
		if !ok {
			continue
		}
		for _, s := range srcGroup {
			for _, t := range tgtGroup {
				out = append(out, makeSynapse(rule, s.ID, t.ID))
			}
		}
	}
	return out, nil
}

func blockSize(rule Rule) uint32 {
	if v, ok := rule.Params["block_size"]; ok && v >= 1 {
		return uint32(v)
	}
	return 1
}

func blockKey(v Voxel, size uint32) [3]uint32 {
	return [3]uint32{v.X / size, v.Y / size, v.Z / size}
}

// Vector connects each source neuron to the target neuron found at a fixed
// offset from its own coordinate, with dx, dy, dz taken from rule.Params
// "vector_x", "vector_y", "vector_z". Source voxels with no target at the offset produce no synapse.
type Vector struct{}

func (Vector) Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	dx, dy, dz := vectorOffset(rule)
	byCoord := coordIDs(targets)

	out := make([]Synapse, 0, len(sources))
	for _, s := range sources {
		if int64(s.X)+dx < 0 || int64(s.Y)+dy < 0 || int64(s.Z)+dz < 0 {
			continue
		}
		tx := offset(s.X, dx)
		ty := offset(s.Y, dy)
		tz := offset(s.Z, dz)
		if t, ok := byCoord[[3]uint32{tx, ty, tz}]; ok {
			out = append(out, makeSynapse(rule, s.ID, t))
		}
	}
	return out, nil
}

func vectorOffset(rule Rule) (int64, int64, int64) {
	return int64(rule.Params["vector_x"]), int64(rule.Params["vector_y"]), int64(rule.Params["vector_z"])
}

func offset(base uint32, delta int64) uint32 {
	v := int64(base) + delta
	if v < 0 {
		return 0
	}
	return uint32(v)
}

func coordIDs(voxels []Voxel) map[[3]uint32]core.NeuronID {
	m := make(map[[3]uint32]core.NeuronID, len(voxels))
	for _, v := range voxels {
		m[[3]uint32{v.X, v.Y, v.Z}] = v.ID
	}
	return m
}

// Pattern connects each source voxel to every target voxel reachable via
// one of a declared set of relative offsets (rule.Params "pattern_n_x",
// "pattern_n_y", "pattern_n_z" for n = 0..count-1, with "pattern_count"
// giving the number of offsets). An empty pattern set behaves like Direct.
type Pattern struct{}

func (Pattern) Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	count := int(rule.Params["pattern_count"])
	if count == 0 {
		return Direct{}.Build(rule, sources, targets)
	}
	byCoord := coordIDs(targets)

	var out []Synapse
	for _, s := range sources {
		for i := 0; i < count; i++ {
			dx := int64(rule.Params[patternKey(i, "x")])
			dy := int64(rule.Params[patternKey(i, "y")])
			dz := int64(rule.Params[patternKey(i, "z")])
			if int64(s.X)+dx < 0 || int64(s.Y)+dy < 0 || int64(s.Z)+dz < 0 {
				continue
			}
			coord := [3]uint32{offset(s.X, dx), offset(s.Y, dy), offset(s.Z, dz)}
			if t, ok := byCoord[coord]; ok {
				out = append(out, makeSynapse(rule, s.ID, t))
			}
		}
	}
	return out, nil
}

func patternKey(i int, axis string) string {
	return "pattern_" + itoa(i) + "_" + axis
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	for i > 0 {
		pos--
		digits[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(digits[pos:])
}

// Direct is the degenerate 1:1 identity mapping: a source voxel connects to
// the target voxel at the same (x, y, z), when one exists. ForKind has no
// default kind: a rule selects Direct only by naming its kind.
type Direct struct{}

func (Direct) Build(rule Rule, sources, targets []Voxel) ([]Synapse, error) {
	byCoord := coordIDs(targets)
	out := make([]Synapse, 0, len(sources))
	for _, s := range sources {
		if t, ok := byCoord[[3]uint32{s.X, s.Y, s.Z}]; ok {
			out = append(out, makeSynapse(rule, s.ID, t))
		}
	}
	return out, nil
}
