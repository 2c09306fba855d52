// Package paramqueue is the MPSC parameter-update queue the burst loop
// drains once per tick, applying each update directly against an NPU
// through its owning Connectome Manager.
package paramqueue

import (
	"time"

	"github.com/corticodb/burstcore/pkg/core"
)

// Supported parameter names, forming a closed set; anything else is
// silently ignored (counted as 0 applied).
const (
	FiringThreshold          = "firing_threshold"
	FiringThresholdIncrement = "firing_threshold_increment"
	FiringThresholdLimit     = "firing_threshold_limit"
	RefractoryPeriod         = "refractory_period"
	LeakCoefficient          = "leak_coefficient"
	ConsecutiveFireCount     = "consecutive_fire_count"
	SnoozePeriod             = "snooze_period"
	Excitability             = "excitability"
	MPChargeAccumulation     = "mp_charge_accumulation"
	PostsynapticCurrent      = "postsynaptic_current"
	MPDrivenPSP              = "mp_driven_psp"
	PSPUniformDistribution   = "psp_uniform_distribution"
)

var supported = map[string]bool{
	FiringThreshold:          true,
	FiringThresholdIncrement: true,
	FiringThresholdLimit:     true,
	RefractoryPeriod:         true,
	LeakCoefficient:          true,
	ConsecutiveFireCount:     true,
	SnoozePeriod:             true,
	Excitability:             true,
	MPChargeAccumulation:     true,
	PostsynapticCurrent:      true,
	MPDrivenPSP:              true,
	PSPUniformDistribution:   true,
}

// Supported reports whether name is one of the closed set of parameter
// names the queue knows how to apply.
func Supported(name string) bool {
	return supported[name]
}

// ParameterUpdate is one queued runtime tuning request. Value carries
// scalar parameters; Gradient carries the [gx, gy, gz] spatial-gradient
// coefficients consumed only by FiringThresholdIncrement, alongside
// BaseThreshold.
type ParameterUpdate struct {
	CorticalID    core.CorticalID
	CorticalIndex core.CorticalIndex
	ParameterName string
	Value         float64
	BaseThreshold *float64
	Gradient      [3]float64
	Timestamp     time.Time
}

// Queue is a fixed-capacity MPSC channel of parameter updates. Push never
// blocks: once full, the newest update is dropped and counted.
type Queue struct {
	ch      chan *ParameterUpdate
	dropped uint64
}

// NewQueue allocates a queue with the given fixed capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *ParameterUpdate, capacity)}
}

// Push enqueues an update without blocking. It may be called from any
// goroutine. Returns false if the queue was full and the update was
// dropped.
func (q *Queue) Push(u *ParameterUpdate) bool {
	select {
	case q.ch <- u:
		return true
	default:
		q.dropped++
		return false
	}
}

// Dropped returns the number of updates dropped due to a full queue.
func (q *Queue) Dropped() uint64 {
	return q.dropped
}

// DrainAll empties the queue without blocking, returning every update
// currently buffered in FIFO order.
func (q *Queue) DrainAll() []*ParameterUpdate {
	var out []*ParameterUpdate
	for {
		select {
		case u := <-q.ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

// Len returns the number of updates currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}
