package connectome

import (
	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/morphology"
)

// Builder stages a full genome load without touching any lock, per Design
// Notes §9: the original source's "global singleton manager with re-entrant
// lock expectations" hazard is replaced here by staging everything
// lock-free and committing once. Commit is the only point that takes the
// Connectome lock.
type Builder struct {
	areas    []Area
	regions  []stagedRegion
	mappings []stagedMapping
}

type stagedRegion struct {
	region     GenomeRegion
	corticalID []core.CorticalID
}

type stagedMapping struct {
	src, dst core.CorticalID
	rules    []morphology.Rule
}

// NewBuilder returns an empty staging builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddArea stages an area for registration.
func (b *Builder) AddArea(a Area) {
	b.areas = append(b.areas, a)
}

// AddRegion stages a region for insertion.
func (b *Builder) AddRegion(r GenomeRegion, corticalID []core.CorticalID) {
	b.regions = append(b.regions, stagedRegion{region: r, corticalID: corticalID})
}

// AddMapping stages a destination-mapping rule set between two areas.
func (b *Builder) AddMapping(src, dst core.CorticalID, rules []morphology.Rule) {
	b.mappings = append(b.mappings, stagedMapping{src: src, dst: dst, rules: rules})
}

// Commit applies every staged area, region, and mapping to m atomically
// under a single acquisition of the Connectome lock, replacing any
// previously loaded genome entirely.
func (m *Manager) Commit(b *Builder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.areas = make(map[core.CorticalID]*Area)
	m.indexToID = make(map[core.CorticalIndex]core.CorticalID)
	m.nextIndex = core.FirstRegularCorticalIndex
	m.regions = make(map[string]*Region)
	m.mappings = make(map[mappingKey][]morphology.Rule)

	for _, a := range b.areas {
		if _, err := m.addCorticalAreaLocked(a); err != nil {
			return err
		}
	}

	for _, sr := range b.regions {
		region := &Region{ID: sr.region.ID, Name: sr.region.Name, Type: sr.region.Type, ParentID: sr.region.ParentID, CorticalID: sr.corticalID}
		if region.ID == "" {
			region.ID = core.NewRegionID()
		}
		m.regions[region.ID] = region
	}

	for _, a := range b.areas {
		if _, err := m.createNeuronsForAreaLocked(a.ID); err != nil {
			return err
		}
	}

	for _, sm := range b.mappings {
		key := mappingKey{sm.src, sm.dst}
		m.mappings[key] = append(m.mappings[key], sm.rules...)
	}

	for key := range m.mappings {
		if _, err := m.regenerateSynapsesForMappingLocked(key.src, key.dst); err != nil {
			return err
		}
	}
	return nil
}
