package registry

import (
	"fmt"

	"voxelize/internal/voxel"
)

// UV is the texture rectangle of a block face.
type UV struct {
	StartU float32 `json:"startU"`
	EndU   float32 `json:"endU"`
	StartV float32 `json:"startV"`
	EndV   float32 `json:"endV"`
}

// CornerData is one corner of a block face: a position in unit-cube space and
// its texture coordinate.
type CornerData struct {
	Pos [3]float32 `json:"pos"`
	UV  [2]float32 `json:"uv"`
}

// BlockFace describes one renderable face of a block.
type BlockFace struct {
	Name string `json:"name"`

	// Dir is the outward direction of the face, one of the six axis units.
	Dir [3]int `json:"dir"`

	Corners [4]CornerData `json:"corners"`
	Range   UV            `json:"range"`

	// Independent faces are emitted regardless of neighbor occlusion.
	Independent bool `json:"independent"`
	// Isolated faces, like independent ones, are emitted regardless of
	// neighbor occlusion; they go into the same geometry batch as the others.
	Isolated bool `json:"isolated"`

	TextureGroup string `json:"textureGroup,omitempty"`
}

// AABB is an axis-aligned bounding box in unit-cube space.
type AABB struct {
	MinX, MinY, MinZ float32
	MaxX, MaxY, MaxZ float32
}

// Union expands this AABB to cover another.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		MinX: min(a.MinX, b.MinX),
		MinY: min(a.MinY, b.MinY),
		MinZ: min(a.MinZ, b.MinZ),
		MaxX: max(a.MaxX, b.MaxX),
		MaxY: max(a.MaxY, b.MaxY),
		MaxZ: max(a.MaxZ, b.MaxZ),
	}
}

// BlockRule is a predicate on a neighboring voxel, used by dynamic patterns.
type BlockRule struct {
	Offset   [3]int
	ID       *uint32
	Rotation *voxel.Rotation
	Stage    *uint32
}

// BlockDynamicPattern swaps a block's faces and AABBs when its rule matches the
// surrounding voxels.
type BlockDynamicPattern struct {
	Rules         []BlockRule
	Faces         []BlockFace
	AABBs         []AABB
	IsTransparent [6]bool
}

// Block is a single block definition.
type Block struct {
	ID   uint32
	Name string

	Rotatable  bool
	YRotatable bool

	IsEmpty  bool
	IsFluid  bool
	IsLight  bool
	IsOpaque bool

	// IsTransparent is the per-face transparency mask, ordered
	// [PX, PY, PZ, NX, NY, NZ]. True means light passes through that face.
	IsTransparent [6]bool

	// TransparentStandalone blocks never occlude their own kind.
	TransparentStandalone bool

	RedLightLevel   uint32
	GreenLightLevel uint32
	BlueLightLevel  uint32

	Faces []BlockFace
	AABBs []AABB

	DynamicPatterns []BlockDynamicPattern
}

// IsSeeThrough reports whether any face of the block lets light through.
func (b *Block) IsSeeThrough() bool {
	for _, transparent := range b.IsTransparent {
		if transparent {
			return true
		}
	}
	return false
}

// RotatedTransparency returns the transparency mask mapped through a rotation.
func (b *Block) RotatedTransparency(rotation voxel.Rotation) [6]bool {
	if !b.Rotatable && !b.YRotatable {
		return b.IsTransparent
	}
	return rotation.RotateTransparency(b.IsTransparent)
}

// IsFullCube reports whether the block's collision volume is exactly the unit
// cube, meaning it fully covers any face it touches.
func (b *Block) IsFullCube() bool {
	if len(b.AABBs) != 1 {
		return false
	}
	box := b.AABBs[0]
	return box.MinX == 0 && box.MinY == 0 && box.MinZ == 0 &&
		box.MaxX == 1 && box.MaxY == 1 && box.MaxZ == 1
}

// LightReduce reports whether the block attenuates but does not fully block
// light. Only fluids return true.
func (b *Block) LightReduce() bool {
	return b.IsFluid
}

// Registry is the immutable set of block definitions a world runs with.
// Published once at server start; safe for concurrent reads.
type Registry struct {
	blocksByID   map[uint32]*Block
	blocksByName map[string]*Block
}

// NewRegistry creates an empty registry with only air registered.
func NewRegistry() *Registry {
	r := &Registry{
		blocksByID:   make(map[uint32]*Block),
		blocksByName: make(map[string]*Block),
	}

	r.Register(&Block{
		ID:            0,
		Name:          "air",
		IsEmpty:       true,
		IsTransparent: [6]bool{true, true, true, true, true, true},
	})

	return r
}

// Register adds a block definition. Registering an existing id replaces it.
func (r *Registry) Register(block *Block) {
	r.blocksByID[block.ID] = block
	r.blocksByName[block.Name] = block
}

// BlockByID looks up a block by id, falling back to air for unknown ids.
func (r *Registry) BlockByID(id uint32) *Block {
	if block, ok := r.blocksByID[id]; ok {
		return block
	}
	return r.blocksByID[0]
}

// BlockByName looks up a block definition by name.
func (r *Registry) BlockByName(name string) (*Block, error) {
	block, ok := r.blocksByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown block %q", name)
	}
	return block, nil
}

// HasType reports whether a block id is registered.
func (r *Registry) HasType(id uint32) bool {
	_, ok := r.blocksByID[id]
	return ok
}

// IsAir reports whether an id maps to the empty block.
func (r *Registry) IsAir(id uint32) bool {
	return r.BlockByID(id).IsEmpty
}

// CheckHeight reports whether a block id counts as the top of a column for the
// height map.
func (r *Registry) CheckHeight(id uint32) bool {
	return !r.IsAir(id)
}
