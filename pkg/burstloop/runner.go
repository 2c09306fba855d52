// Package burstloop drives the NPU's per-tick process_burst entry point at
// a configured frequency, rate-limits publication to visualization/motor
// subscribers, and drains the parameter queue between ticks. It generalizes
// the teacher's pkg/daemon scheduler (one goroutine per background task,
// ctx/cancel/WaitGroup shutdown, a chunked wait-for-interval loop) to a
// single burst-tick loop with the adaptive sleep strategy the burst loop
// requires.
package burstloop

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corticodb/burstcore/pkg/connectome"
	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/npu"
	"github.com/corticodb/burstcore/pkg/paramqueue"
	"github.com/corticodb/burstcore/pkg/shm"
)

// stopJoinTimeout bounds how long Stop waits for the scheduler goroutine
// to exit; a missed join is logged and non-fatal, per §4.6.
const stopJoinTimeout = 2 * time.Second

// maxSleepChunk bounds every sleep call so the shutdown flag is re-checked
// at least this often.
const maxSleepChunk = 50 * time.Millisecond

// PlasticityCallback is invoked once per tick while the NPU writer lock is
// still held, so it can read FireLedger-consistent state.
type PlasticityCallback func(burst core.BurstCount)

// PostBurstCallback is invoked once per tick after the NPU lock has been
// released. It must not acquire the NPU lock synchronously.
type PostBurstCallback func(burst core.BurstCount)

// Runner is the burst loop's scheduler. One Runner drives exactly one NPU
// via its owning Connectome Manager.
type Runner struct {
	manager    *connectome.Manager
	npu        *npu.NPU
	paramQueue *paramqueue.Queue

	frequencyMHz atomic.Uint64 // frequency in milli-hertz, to keep it lock-free
	running      atomic.Bool
	burstCount   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subMu sync.Mutex
	viz   map[string]*vizSubscriber
	motor map[string]*motorSubscriber

	shmMu       sync.Mutex
	vizWriter   *shm.Writer
	motorWriter *shm.Writer

	sensoryIntake SensoryIntake
	vizPublisher  VisualizationPublisher
	motorPublisher MotorPublisher

	cbMu          sync.RWMutex
	plasticityCB  PlasticityCallback
	postBurstCB   PostBurstCallback

	idMu          sync.RWMutex
	indexToID     map[core.CorticalIndex]string
	granularities map[core.CorticalIndex]Granularity

	missingAgentWarned sync.Map // agent id -> struct{}, reset on re-registration

	shutdownJoinTimeout   time.Duration
	overshootLogThreshold time.Duration
}

// SensoryIntake polls for externally-produced sensory payloads to stage
// into the NPU at the start of a tick.
type SensoryIntake interface {
	PollSensoryData() ([]byte, bool, error)
}

// VisualizationPublisher delivers a per-agent visualization frame when no
// SHM writer is attached.
type VisualizationPublisher interface {
	PublishRawFireQueueForAgent(agentID string, payload []byte) error
}

// MotorPublisher delivers a per-agent motor frame.
type MotorPublisher interface {
	PublishMotor(agentID string, payload []byte) error
}

// NewRunner constructs a Runner for the given manager/queue at the
// requested initial frequency (Hz). The scheduler is not started until
// Start is called. Shutdown join timeout and overshoot logging threshold
// default to the values named in §4.6/§5 (2s, 1s) and can be overridden
// with Configure before Start is called.
func NewRunner(m *connectome.Manager, pq *paramqueue.Queue, frequencyHz float64) *Runner {
	r := &Runner{
		manager:                m,
		npu:                    m.NPU(),
		paramQueue:             pq,
		viz:                    make(map[string]*vizSubscriber),
		motor:                  make(map[string]*motorSubscriber),
		indexToID:              make(map[core.CorticalIndex]string),
		granularities:          make(map[core.CorticalIndex]Granularity),
		shutdownJoinTimeout:    stopJoinTimeout,
		overshootLogThreshold:  time.Second,
	}
	r.frequencyMHz.Store(hzToMilliHz(frequencyHz))
	return r
}

// Configure overrides the scheduler's shutdown-join and overshoot-logging
// thresholds from a loaded core.Config's BurstLoop section. Call before
// Start; it is not safe to call concurrently with a running scheduler.
func (r *Runner) Configure(shutdownJoinTimeout, overshootLogThreshold time.Duration) {
	if shutdownJoinTimeout > 0 {
		r.shutdownJoinTimeout = shutdownJoinTimeout
	}
	if overshootLogThreshold > 0 {
		r.overshootLogThreshold = overshootLogThreshold
	}
}

// Start launches the scheduler goroutine. Calling Start on an already
// running Runner is a no-op.
func (r *Runner) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.run()
}

// Stop signals the scheduler to exit and waits up to the shutdown join
// timeout (stopJoinTimeout unless Configure set another) for it to do so. A missed join is logged and treated as non-fatal: the
// goroutine keeps running detached and Stop returns anyway.
func (r *Runner) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.shutdownJoinTimeout):
		log.Printf("burstloop: scheduler did not stop within %s, continuing detached", r.shutdownJoinTimeout)
	}
}

// IsRunning reports whether the scheduler goroutine is active.
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// GetBurstCount returns the tick counter observed by this Runner, which
// tracks the NPU's own counter.
func (r *Runner) GetBurstCount() core.BurstCount {
	return core.BurstCount(r.burstCount.Load())
}

// SetFrequency changes the target tick rate; takes effect from the next
// tick's deadline computation onward.
func (r *Runner) SetFrequency(hz float64) {
	r.frequencyMHz.Store(hzToMilliHz(hz))
}

// GetFrequency returns the current target tick rate in Hz.
func (r *Runner) GetFrequency() float64 {
	return milliHzToHz(r.frequencyMHz.Load())
}

// Step runs exactly one burst synchronously and returns the resulting
// burst count, for callers driving ticks by hand (an admin console,
// deterministic tests) rather than through the scheduler goroutine. It
// must not be called concurrently with Start/Stop on the same Runner.
func (r *Runner) Step() core.BurstCount {
	r.tick()
	return r.GetBurstCount()
}

// SetSensoryIntake attaches (or detaches, with nil) the sensory intake
// polled at the start of each tick.
func (r *Runner) SetSensoryIntake(intake SensoryIntake) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.sensoryIntake = intake
}

// SetVisualizationPublisher attaches the trait used when no SHM writer is
// installed for the visualization path.
func (r *Runner) SetVisualizationPublisher(p VisualizationPublisher) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.vizPublisher = p
}

// SetMotorPublisher attaches the trait used when no SHM writer is
// installed for the motor path.
func (r *Runner) SetMotorPublisher(p MotorPublisher) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.motorPublisher = p
}

// AttachVizSHMWriter installs (or replaces, with nil) the shared-memory
// writer used for the visualization path. When non-nil it takes priority
// over the visualization publisher trait for the whole tick.
func (r *Runner) AttachVizSHMWriter(w *shm.Writer) {
	r.shmMu.Lock()
	defer r.shmMu.Unlock()
	r.vizWriter = w
}

// AttachMotorSHMWriter installs (or replaces, with nil) the shared-memory
// writer used for the motor path.
func (r *Runner) AttachMotorSHMWriter(w *shm.Writer) {
	r.shmMu.Lock()
	defer r.shmMu.Unlock()
	r.motorWriter = w
}

// SetPlasticityNotifyCallback installs the callback invoked once per tick
// while the NPU lock is still held.
func (r *Runner) SetPlasticityNotifyCallback(cb PlasticityCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.plasticityCB = cb
}

// SetPostBurstCallback installs the callback invoked once per tick after
// the NPU lock has been released.
func (r *Runner) SetPostBurstCallback(cb PostBurstCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.postBurstCB = cb
}

// RefreshCorticalIDMappings replaces the cortical index -> id table the
// publication path uses to label fire-queue groups. Callers typically
// derive this from connectome.Manager.ListAreas after a topology change.
func (r *Runner) RefreshCorticalIDMappings(mapping map[core.CorticalIndex]string) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	r.indexToID = mapping
}

// RefreshVisualizationGranularities replaces the per-area voxel-binning
// table the visualization path applies to large areas.
func (r *Runner) RefreshVisualizationGranularities(g map[core.CorticalIndex]Granularity) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	r.granularities = g
}

func (r *Runner) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		tickStart := time.Now()
		period := time.Duration(float64(time.Second) / r.GetFrequency())
		deadline := tickStart.Add(period)

		r.tick()

		if !r.sleepUntil(deadline, period) {
			return
		}
	}
}

// sleepUntil applies §4.6's adaptive sleep strategy and returns false if
// the scheduler should exit instead of continuing to the next tick.
func (r *Runner) sleepUntil(deadline time.Time, period time.Duration) bool {
	now := time.Now()
	if now.After(deadline) {
		overshoot := now.Sub(deadline)
		if overshoot > r.overshootLogThreshold {
			log.Printf("burstloop: tick overshot deadline by %s", overshoot)
		}
		select {
		case <-r.ctx.Done():
			return false
		default:
			return true
		}
	}

	hz := period.Seconds()
	if hz <= 0 {
		return r.waitChunked(deadline)
	}
	frequencyHz := 1 / hz

	switch {
	case frequencyHz < 5:
		return r.waitChunked(deadline)
	case frequencyHz <= 100:
		remaining := deadline.Sub(now)
		sleepPortion := time.Duration(float64(remaining) * 0.8)
		sleepDeadline := now.Add(sleepPortion)
		if !r.waitChunked(sleepDeadline) {
			return false
		}
		return r.busyWait(deadline)
	default:
		return r.busyWait(deadline)
	}
}

func (r *Runner) waitChunked(deadline time.Time) bool {
	for {
		now := time.Now()
		if !now.Before(deadline) {
			return true
		}
		chunk := deadline.Sub(now)
		if chunk > maxSleepChunk {
			chunk = maxSleepChunk
		}
		timer := time.NewTimer(chunk)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (r *Runner) busyWait(deadline time.Time) bool {
	for time.Now().Before(deadline) {
		select {
		case <-r.ctx.Done():
			return false
		default:
		}
	}
	return true
}

func hzToMilliHz(hz float64) uint64 {
	if hz <= 0 {
		return 0
	}
	return uint64(hz * 1000)
}

func milliHzToHz(mhz uint64) float64 {
	return float64(mhz) / 1000
}
