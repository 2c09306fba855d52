// Package wire defines the sensory/motor payload container and its
// msgpack encoding, a wire format whose logical shape is opaque to the core: CorticalID -> parallel x/y/z/p
// arrays of equal length.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// AreaPoints is one cortical area's fired-point payload: parallel arrays,
// all the same length.
type AreaPoints struct {
	X []uint32  `msgpack:"x"`
	Y []uint32  `msgpack:"y"`
	Z []uint32  `msgpack:"z"`
	P []float32 `msgpack:"p"`
}

// Container is the full wire payload: cortical id (base64) -> points.
type Container struct {
	Areas map[string]AreaPoints `msgpack:"areas"`
}

// NewContainer returns an empty container ready for population.
func NewContainer() *Container {
	return &Container{Areas: make(map[string]AreaPoints)}
}

// Put appends one area's points, replacing any existing entry for that id.
func (c *Container) Put(corticalID string, x, y, z []uint32, p []float32) error {
	if len(x) != len(y) || len(y) != len(z) || len(z) != len(p) {
		return fmt.Errorf("wire: mismatched array lengths for %s: x=%d y=%d z=%d p=%d",
			corticalID, len(x), len(y), len(z), len(p))
	}
	c.Areas[corticalID] = AreaPoints{X: x, Y: y, Z: z, P: p}
	return nil
}

// Encode msgpack-serializes the container.
func Encode(c *Container) ([]byte, error) {
	return msgpack.Marshal(c)
}

// Decode msgpack-deserializes a container.
func Decode(data []byte) (*Container, error) {
	var c Container
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("wire: decoding container: %w", err)
	}
	if c.Areas == nil {
		c.Areas = make(map[string]AreaPoints)
	}
	return &c, nil
}
