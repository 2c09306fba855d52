package connectome

import "github.com/corticodb/burstcore/pkg/core"

// lifecycleCallbacks holds optional hooks fired on area state transitions,
// mirroring the teacher's lifecycle manager's SetCallbacks shape re-keyed
// from brain-activity states to area lifecycle states.
type lifecycleCallbacks struct {
	onRegistered func(id core.CorticalID)
	onPopulated  func(id core.CorticalID)
	onConnected  func(id core.CorticalID)
	onRemoved    func(id core.CorticalID)
}

// SetLifecycleCallbacks installs the optional transition hooks. Callbacks
// are invoked synchronously under the manager's write lock, so they must
// not call back into the Manager.
func (m *Manager) SetLifecycleCallbacks(onRegistered, onPopulated, onConnected, onRemoved func(core.CorticalID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = lifecycleCallbacks{
		onRegistered: onRegistered,
		onPopulated:  onPopulated,
		onConnected:  onConnected,
		onRemoved:    onRemoved,
	}
}

// transitions lists the only state changes advance permits;
// every other pair is a no-op, keeping transitions idempotent.
var transitions = map[AreaState]AreaState{
	StateEmpty:      StateRegistered,
	StateRegistered: StatePopulated,
	StatePopulated:  StateConnected,
}

// advance steps area through successive lifecycle states until it reaches
// target, firing the matching callback once for each step taken; it is a
// no-op if the area is already at or past target. Must be called with the
// manager's write lock held.
func (m *Manager) advance(a *Area, target AreaState) {
	if a.State >= target {
		return
	}
	for a.State < target {
		next, ok := transitions[a.State]
		if !ok {
			return
		}
		a.State = next
		m.fireCallback(a.ID, next)
	}
}

func (m *Manager) fireCallback(id core.CorticalID, state AreaState) {
	switch state {
	case StateRegistered:
		if m.callbacks.onRegistered != nil {
			m.callbacks.onRegistered(id)
		}
	case StatePopulated:
		if m.callbacks.onPopulated != nil {
			m.callbacks.onPopulated(id)
		}
	case StateConnected:
		if m.callbacks.onConnected != nil {
			m.callbacks.onConnected(id)
		}
	case StateRemoved:
		if m.callbacks.onRemoved != nil {
			m.callbacks.onRemoved(id)
		}
	}
}
