package connectome

import (
	"encoding/json"
	"fmt"

	"github.com/corticodb/burstcore/pkg/core"
	"github.com/corticodb/burstcore/pkg/morphology"
)

// RuntimeGenome is the already-parsed intermediate struct this module
// consumes; genome *file* grammar parsing happens upstream and is out of
// scope here (§1). It is JSON/YAML-decodable directly.
type RuntimeGenome struct {
	Title   string             `json:"title" yaml:"title"`
	Version string             `json:"version" yaml:"version"`
	Areas   []GenomeArea       `json:"cortical_areas" yaml:"cortical_areas"`
	Regions []GenomeRegion     `json:"brain_regions" yaml:"brain_regions"`
	Rules   []GenomeMappingSet `json:"mappings" yaml:"mappings"`
}

// GenomeArea is one cortical area entry in a RuntimeGenome.
type GenomeArea struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Index       uint32      `json:"index" yaml:"index"`
	Width       uint32      `json:"width" yaml:"width"`
	Height      uint32      `json:"height" yaml:"height"`
	Depth       uint32      `json:"depth" yaml:"depth"`
	Defaults    NeuronDefaults `json:"defaults" yaml:"defaults"`
	Granularity Granularity    `json:"granularity" yaml:"granularity"`
}

// GenomeRegion is one brain-region entry in a RuntimeGenome.
type GenomeRegion struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	ParentID   string   `json:"parent_id" yaml:"parent_id"`
	CorticalID []string `json:"cortical_ids" yaml:"cortical_ids"`
}

// GenomeMappingSet is a src->dst destination-mapping rule set entry.
type GenomeMappingSet struct {
	SourceID string            `json:"source_id" yaml:"source_id"`
	TargetID string            `json:"target_id" yaml:"target_id"`
	Rules    []morphology.Rule `json:"rules" yaml:"rules"`
}

// LoadGenomeFromJSON decodes a JSON-encoded RuntimeGenome and loads it.
func (m *Manager) LoadGenomeFromJSON(data []byte) error {
	var genome RuntimeGenome
	if err := json.Unmarshal(data, &genome); err != nil {
		return fmt.Errorf("connectome: decoding genome json: %w", err)
	}
	return m.LoadFromGenome(genome)
}

// LoadFromGenome clears existing area/region state and develops the brain
// described by genome, staged through a Builder and committed atomically
// per the Design Notes §9 reentrancy fix — load never calls back into a
// locked Manager.
func (m *Manager) LoadFromGenome(genome RuntimeGenome) error {
	b := NewBuilder()

	idByString := make(map[string]core.CorticalID, len(genome.Areas))
	for _, ga := range genome.Areas {
		id, err := core.CorticalIDFromString(ga.ID)
		if err != nil {
			return fmt.Errorf("connectome: area %q: %w", ga.Name, err)
		}
		idByString[ga.ID] = id
		b.AddArea(Area{
			ID:          id,
			Index:       core.CorticalIndex(ga.Index),
			Name:        ga.Name,
			Category:    id.Category(),
			Dimensions:  Dimensions{Width: max1(ga.Width), Height: max1(ga.Height), Depth: max1(ga.Depth)},
			Defaults:    ga.Defaults,
			Granularity: ga.Granularity,
		})
	}

	for _, gr := range genome.Regions {
		corticalIDs := make([]core.CorticalID, 0, len(gr.CorticalID))
		for _, s := range gr.CorticalID {
			if id, ok := idByString[s]; ok {
				corticalIDs = append(corticalIDs, id)
			}
		}
		b.AddRegion(GenomeRegion{ID: gr.ID, Name: gr.Name, Type: gr.Type, ParentID: gr.ParentID}, corticalIDs)
	}

	for _, rs := range genome.Rules {
		src, ok1 := idByString[rs.SourceID]
		dst, ok2 := idByString[rs.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		b.AddMapping(src, dst, rs.Rules)
	}

	return m.Commit(b)
}

// SaveGenomeToJSON marshals the current area/region/mapping state back into
// a RuntimeGenome JSON document. Round-tripping through LoadGenomeFromJSON
// produces a logically equal set of areas and regions (order-independent).
func (m *Manager) SaveGenomeToJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	genome := RuntimeGenome{Version: "1.0"}
	for _, a := range m.areas {
		genome.Areas = append(genome.Areas, GenomeArea{
			ID:          a.ID.String(),
			Name:        a.Name,
			Index:       uint32(a.Index),
			Width:       a.Dimensions.Width,
			Height:      a.Dimensions.Height,
			Depth:       a.Dimensions.Depth,
			Defaults:    a.Defaults,
			Granularity: a.Granularity,
		})
	}
	for _, r := range m.regions {
		ids := make([]string, 0, len(r.CorticalID))
		for _, id := range r.CorticalID {
			ids = append(ids, id.String())
		}
		genome.Regions = append(genome.Regions, GenomeRegion{
			ID: r.ID, Name: r.Name, Type: r.Type, ParentID: r.ParentID, CorticalID: ids,
		})
	}
	for key, rules := range m.mappings {
		genome.Rules = append(genome.Rules, GenomeMappingSet{
			SourceID: key.src.String(),
			TargetID: key.dst.String(),
			Rules:    rules,
		})
	}

	return json.Marshal(genome)
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}
