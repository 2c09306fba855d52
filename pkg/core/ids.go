package core

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// CorticalIndex is the dense integer assigned to a cortical area at
// registration. Indices 0, 1 and 2 are reserved for the core death, power
// and fatigue areas respectively; regular areas start at 3.
type CorticalIndex uint32

const (
	DeathCorticalIndex   CorticalIndex = 0
	PowerCorticalIndex   CorticalIndex = 1
	FatigueCorticalIndex CorticalIndex = 2

	// FirstRegularCorticalIndex is the first index handed out by the
	// manager's next_index cursor.
	FirstRegularCorticalIndex CorticalIndex = 3
)

// IsReserved reports whether idx is one of the three core indices.
func (idx CorticalIndex) IsReserved() bool {
	return idx == DeathCorticalIndex || idx == PowerCorticalIndex || idx == FatigueCorticalIndex
}

// NeuronID is a dense index into the neuron SoA; also its storage position.
type NeuronID uint32

// SynapseIndex is a dense index into the synapse SoA.
type SynapseIndex uint32

// BurstCount is the monotonically increasing tick counter.
type BurstCount uint64

// CategoryKind is the tag of a CorticalCategory.
type CategoryKind uint8

const (
	CategoryCore CategoryKind = iota
	CategoryBrainInput
	CategoryBrainOutput
	CategoryCustom
	CategoryMemory
)

func (k CategoryKind) String() string {
	switch k {
	case CategoryCore:
		return "core"
	case CategoryBrainInput:
		return "input"
	case CategoryBrainOutput:
		return "output"
	case CategoryCustom:
		return "custom"
	case CategoryMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// CoreSubKind distinguishes the three reserved core areas.
type CoreSubKind uint8

const (
	CoreDeath CoreSubKind = iota
	CorePower
	CoreFatigue
)

// CorticalCategory is a tagged value recovered from the bytes of a
// CorticalID. For CategoryCore, Sub identifies which of death/power/fatigue
// this is; Flag is otherwise used by BrainInput/BrainOutput to carry a
// single device/sensor discriminator byte.
type CorticalCategory struct {
	Kind CategoryKind
	Sub  CoreSubKind
	Flag byte
}

// ReservedIndex returns the index a core category must occupy, and whether
// the category is a core one at all.
func (c CorticalCategory) ReservedIndex() (CorticalIndex, bool) {
	if c.Kind != CategoryCore {
		return 0, false
	}
	switch c.Sub {
	case CoreDeath:
		return DeathCorticalIndex, true
	case CorePower:
		return PowerCorticalIndex, true
	case CoreFatigue:
		return FatigueCorticalIndex, true
	default:
		return 0, false
	}
}

// CorticalID is a fixed 8-byte identifier encoding a CorticalCategory
// prefix plus a payload distinguishing custom/memory/input/output areas
// from one another. Byte 0 is the CategoryKind, byte 1 is Sub/Flag, the
// remaining 6 bytes are a name-derived payload (zero for core areas).
type CorticalID [8]byte

// NewCoreCorticalID builds the identifier for one of the three reserved
// core areas.
func NewCoreCorticalID(sub CoreSubKind) CorticalID {
	var id CorticalID
	id[0] = byte(CategoryCore)
	id[1] = byte(sub)
	return id
}

// NewBrainInputID builds a brain-input area identifier; flag distinguishes
// sensor channels sharing the input category.
func NewBrainInputID(name string, flag byte) CorticalID {
	return newNamedID(CategoryBrainInput, flag, name)
}

// NewBrainOutputID builds a brain-output area identifier.
func NewBrainOutputID(name string, flag byte) CorticalID {
	return newNamedID(CategoryBrainOutput, flag, name)
}

// NewCustomCorticalID builds a custom-area identifier from a human name.
func NewCustomCorticalID(name string) CorticalID {
	return newNamedID(CategoryCustom, 0, name)
}

// NewMemoryCorticalID builds a memory-area identifier from a human name.
func NewMemoryCorticalID(name string) CorticalID {
	return newNamedID(CategoryMemory, 0, name)
}

func newNamedID(kind CategoryKind, flag byte, name string) CorticalID {
	var id CorticalID
	id[0] = byte(kind)
	id[1] = flag
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
	copy(id[2:], sum[:6])
	return id
}

// Category recovers the tagged category encoded in id's bytes.
func (id CorticalID) Category() CorticalCategory {
	return CorticalCategory{
		Kind: CategoryKind(id[0]),
		Sub:  CoreSubKind(id[1]),
		Flag: id[1],
	}
}

// String returns the base64 (RawURLEncoding) form of the identifier.
func (id CorticalID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// CorticalIDFromString decodes the base64 form produced by String.
func CorticalIDFromString(s string) (CorticalID, error) {
	var id CorticalID
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("decoding cortical id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("decoding cortical id %q: expected %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Well-known core identifiers, mirroring the "_death"/"_power"/"_fatigue"
// reserved area names.
var (
	DeathCorticalID   = NewCoreCorticalID(CoreDeath)
	PowerCorticalID   = NewCoreCorticalID(CorePower)
	FatigueCorticalID = NewCoreCorticalID(CoreFatigue)
)

// NewRegionID generates a fresh brain-region identifier.
func NewRegionID() string {
	return uuid.New().String()
}
