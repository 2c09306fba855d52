package wire

import (
	"github.com/corticodb/burstcore/pkg/npu"
)

// IDResolver maps a cortical index to the base64 cortical id string the
// container keys on; the burst loop supplies this from the Connectome
// Manager's index->id table.
type IDResolver func(index uint32) (string, bool)

// Granularity is a visualization voxel-binning factor; GX/GY/GZ of 0 mean
// "no aggregation" for that axis.
type Granularity struct {
	GX, GY, GZ uint32
}

// FromSample builds a Container from a fire queue sample. filter, if
// non-nil, restricts output to the cortical ids it reports true for
// (the motor path's per-agent subscription filter); pass nil for the
// visualization path, which publishes every area.
//
// granularities, if non-nil, bins each area's fired points per §4.6's
// large-area aggregation rule: points falling in the same
// (floor(x/gx), floor(y/gy), floor(z/gz)) chunk collapse into one
// synthetic point at the chunk center, with potential = mean; the number
// of points in the chunk is not carried in the output. This binning only
// applies when building the visualization container; callers building a
// motor container must pass a nil granularities map.
func FromSample(sample *npu.FireQueueSample, resolve IDResolver, filter map[string]bool, granularities map[uint32]Granularity) (*Container, error) {
	c := NewContainer()
	for _, g := range sample.Groups {
		id, ok := resolve(uint32(g.CorticalIndex))
		if !ok {
			continue
		}
		if filter != nil && !filter[id] {
			continue
		}

		x, y, z, p := g.X, g.Y, g.Z, g.Potentials
		if granularities != nil {
			if gran, ok := granularities[uint32(g.CorticalIndex)]; ok && (gran.GX > 1 || gran.GY > 1 || gran.GZ > 1) {
				x, y, z, p = bin(g.X, g.Y, g.Z, g.Potentials, gran)
			}
		}
		if err := c.Put(id, x, y, z, p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type chunkKey struct{ cx, cy, cz uint32 }

type chunkAccum struct {
	sum   float32
	count uint32
}

func bin(x, y, z []uint32, p []float32, g Granularity) (bx, by, bz []uint32, bp []float32) {
	gx, gy, gz := g.GX, g.GY, g.GZ
	if gx == 0 {
		gx = 1
	}
	if gy == 0 {
		gy = 1
	}
	if gz == 0 {
		gz = 1
	}

	chunks := make(map[chunkKey]*chunkAccum)
	order := make([]chunkKey, 0)
	for i := range x {
		k := chunkKey{x[i] / gx, y[i] / gy, z[i] / gz}
		a, ok := chunks[k]
		if !ok {
			a = &chunkAccum{}
			chunks[k] = a
			order = append(order, k)
		}
		a.sum += p[i]
		a.count++
	}

	bx = make([]uint32, 0, len(order))
	by = make([]uint32, 0, len(order))
	bz = make([]uint32, 0, len(order))
	bp = make([]float32, 0, len(order))
	for _, k := range order {
		a := chunks[k]
		bx = append(bx, k.cx*gx+gx/2)
		by = append(by, k.cy*gy+gy/2)
		bz = append(bz, k.cz*gz+gz/2)
		bp = append(bp, a.sum/float32(a.count))
	}
	return bx, by, bz, bp
}
