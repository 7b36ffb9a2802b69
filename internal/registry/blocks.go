package registry

// SixFaces returns the canonical six faces of a full unit cube, ordered
// px, py, pz, nx, ny, nz. Corner order matches the mesher's triangle
// winding (0,1,2)(2,1,3).
func SixFaces() []BlockFace {
	return []BlockFace{
		{
			Name: "px",
			Dir:  [3]int{1, 0, 0},
			Corners: [4]CornerData{
				{Pos: [3]float32{1, 1, 1}, UV: [2]float32{0, 1}},
				{Pos: [3]float32{1, 0, 1}, UV: [2]float32{0, 0}},
				{Pos: [3]float32{1, 1, 0}, UV: [2]float32{1, 1}},
				{Pos: [3]float32{1, 0, 0}, UV: [2]float32{1, 0}},
			},
		},
		{
			Name: "py",
			Dir:  [3]int{0, 1, 0},
			Corners: [4]CornerData{
				{Pos: [3]float32{0, 1, 1}, UV: [2]float32{1, 1}},
				{Pos: [3]float32{1, 1, 1}, UV: [2]float32{0, 1}},
				{Pos: [3]float32{0, 1, 0}, UV: [2]float32{1, 0}},
				{Pos: [3]float32{1, 1, 0}, UV: [2]float32{0, 0}},
			},
		},
		{
			Name: "pz",
			Dir:  [3]int{0, 0, 1},
			Corners: [4]CornerData{
				{Pos: [3]float32{0, 0, 1}, UV: [2]float32{0, 0}},
				{Pos: [3]float32{1, 0, 1}, UV: [2]float32{1, 0}},
				{Pos: [3]float32{0, 1, 1}, UV: [2]float32{0, 1}},
				{Pos: [3]float32{1, 1, 1}, UV: [2]float32{1, 1}},
			},
		},
		{
			Name: "nx",
			Dir:  [3]int{-1, 0, 0},
			Corners: [4]CornerData{
				{Pos: [3]float32{0, 1, 0}, UV: [2]float32{0, 1}},
				{Pos: [3]float32{0, 0, 0}, UV: [2]float32{0, 0}},
				{Pos: [3]float32{0, 1, 1}, UV: [2]float32{1, 1}},
				{Pos: [3]float32{0, 0, 1}, UV: [2]float32{1, 0}},
			},
		},
		{
			Name: "ny",
			Dir:  [3]int{0, -1, 0},
			Corners: [4]CornerData{
				{Pos: [3]float32{1, 0, 1}, UV: [2]float32{1, 0}},
				{Pos: [3]float32{0, 0, 1}, UV: [2]float32{0, 0}},
				{Pos: [3]float32{1, 0, 0}, UV: [2]float32{1, 1}},
				{Pos: [3]float32{0, 0, 0}, UV: [2]float32{0, 1}},
			},
		},
		{
			Name: "nz",
			Dir:  [3]int{0, 0, -1},
			Corners: [4]CornerData{
				{Pos: [3]float32{1, 0, 0}, UV: [2]float32{0, 0}},
				{Pos: [3]float32{0, 0, 0}, UV: [2]float32{1, 0}},
				{Pos: [3]float32{1, 1, 0}, UV: [2]float32{0, 1}},
				{Pos: [3]float32{0, 1, 0}, UV: [2]float32{1, 1}},
			},
		},
	}
}

// FullCube is the AABB covering the whole unit cube.
func FullCube() AABB {
	return AABB{MaxX: 1, MaxY: 1, MaxZ: 1}
}

// NewCube builds an opaque full-cube block.
func NewCube(id uint32, name string) *Block {
	return &Block{
		ID:       id,
		Name:     name,
		IsOpaque: true,
		Faces:    SixFaces(),
		AABBs:    []AABB{FullCube()},
	}
}

// NewLight builds a light-emitting, see-through full-cube block.
func NewLight(id uint32, name string, red, green, blue uint32) *Block {
	return &Block{
		ID:              id,
		Name:            name,
		IsLight:         true,
		IsTransparent:   [6]bool{true, true, true, true, true, true},
		RedLightLevel:   red,
		GreenLightLevel: green,
		BlueLightLevel:  blue,
		Faces:           SixFaces(),
		AABBs:           []AABB{FullCube()},
	}
}

// NewFluid builds a see-through fluid block whose faces are dropped only
// where they touch the same fluid.
func NewFluid(id uint32, name string) *Block {
	return &Block{
		ID:                    id,
		Name:                  name,
		IsFluid:               true,
		IsTransparent:         [6]bool{true, true, true, true, true, true},
		TransparentStandalone: true,
		Faces:                 SixFaces(),
		AABBs:                 []AABB{FullCube()},
	}
}

// Default returns the registry the stock server runs with.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewCube(1, "stone"))
	r.Register(NewCube(2, "dirt"))
	r.Register(NewCube(3, "grass"))
	r.Register(NewFluid(4, "water"))
	r.Register(NewCube(5, "sand"))
	r.Register(NewCube(6, "wood"))
	r.Register(NewCube(7, "leaves"))
	r.Register(NewLight(8, "torch", 15, 11, 6))
	return r
}
