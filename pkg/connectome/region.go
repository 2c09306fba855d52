package connectome

import "github.com/corticodb/burstcore/pkg/core"

// Region is one node of the brain region hierarchy (§3.6): a stable-UUID
// tree node owning a set of cortical ids, with an optional parent.
type Region struct {
	ID         string
	Name       string
	Type       string
	CorticalID []core.CorticalID
	ParentID   string // empty means root
}

// AddRegion inserts a new region under parentID ("" for root), generating a
// fresh UUID for it. Returns ErrInternal if parentID is non-empty and
// unknown, or if inserting would create a cycle.
func (m *Manager) AddRegion(name, typ, parentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parentID != "" {
		if _, ok := m.regions[parentID]; !ok {
			return "", core.Internalf("unknown parent region %s", parentID)
		}
	}

	id := core.NewRegionID()
	m.regions[id] = &Region{ID: id, Name: name, Type: typ, ParentID: parentID}
	return id, nil
}

// AssignCorticalID attaches a cortical id to a region, detaching it from
// any region it was previously assigned to so that each cortical id
// appears in at most one region.
func (m *Manager) AssignCorticalID(regionID string, corticalID core.CorticalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.regions[regionID]
	if !ok {
		return core.Internalf("unknown region %s", regionID)
	}
	for _, other := range m.regions {
		other.CorticalID = removeCorticalID(other.CorticalID, corticalID)
	}
	r.CorticalID = append(r.CorticalID, corticalID)
	return nil
}

func removeCorticalID(ids []core.CorticalID, target core.CorticalID) []core.CorticalID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// GetRegion returns a copy of a region's current metadata.
func (m *Manager) GetRegion(id string) (Region, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.regions[id]
	if !ok {
		return Region{}, false
	}
	return *r, true
}

// isDescendant reports whether candidate is id or a descendant of id,
// used to reject cycles before reparenting. Must be called with the lock
// held.
func (m *Manager) isDescendant(id, candidate string) bool {
	for candidate != "" {
		if candidate == id {
			return true
		}
		r, ok := m.regions[candidate]
		if !ok {
			return false
		}
		candidate = r.ParentID
	}
	return false
}

// Reparent moves a region under a new parent, refusing the move if it
// would create a cycle.
func (m *Manager) Reparent(id, newParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.regions[id]
	if !ok {
		return core.Internalf("unknown region %s", id)
	}
	if newParentID != "" {
		if _, ok := m.regions[newParentID]; !ok {
			return core.Internalf("unknown parent region %s", newParentID)
		}
		if m.isDescendant(id, newParentID) {
			return core.Internalf("reparenting %s under %s would create a cycle", id, newParentID)
		}
	}
	r.ParentID = newParentID
	return nil
}
