package npu

import "github.com/corticodb/burstcore/pkg/backend"

// FCL is the per-tick Fire Candidate List: neurons that received synaptic
// input this tick, mapped to their accumulated potential. Rebuilt every
// burst.
type FCL = backend.FCL

// NewFCL returns an empty Fire Candidate List.
func NewFCL() FCL {
	return make(FCL)
}
