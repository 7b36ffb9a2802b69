package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// blockDefinition is the JSON model of one block, matching the camelCase
// convention of the client-side block packs.
type blockDefinition struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`

	Rotatable  bool `json:"rotatable"`
	YRotatable bool `json:"yRotatable"`

	IsEmpty  bool `json:"isEmpty"`
	IsFluid  bool `json:"isFluid"`
	IsLight  bool `json:"isLight"`
	IsOpaque bool `json:"isOpaque"`

	IsTransparent         *[6]bool `json:"isTransparent"`
	TransparentStandalone bool     `json:"transparentStandalone"`

	RedLightLevel   uint32 `json:"redLightLevel"`
	GreenLightLevel uint32 `json:"greenLightLevel"`
	BlueLightLevel  uint32 `json:"blueLightLevel"`

	Faces []BlockFace  `json:"faces"`
	AABBs [][6]float32 `json:"aabbs"`
}

// LoadBlocks reads a JSON array of block definitions into the registry.
// Omitted faces and AABBs default to a full cube; omitted transparency
// defaults to opaque sides for opaque blocks and to transparent sides for
// empty or non-opaque ones.
func LoadBlocks(path string, r *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read block definitions: %w", err)
	}

	var definitions []blockDefinition
	if err := json.Unmarshal(data, &definitions); err != nil {
		return fmt.Errorf("parse block definitions: %w", err)
	}

	for _, def := range definitions {
		if def.Name == "" {
			return fmt.Errorf("block %d has no name", def.ID)
		}

		block := &Block{
			ID:                    def.ID,
			Name:                  def.Name,
			Rotatable:             def.Rotatable,
			YRotatable:            def.YRotatable,
			IsEmpty:               def.IsEmpty,
			IsFluid:               def.IsFluid,
			IsLight:               def.IsLight,
			IsOpaque:              def.IsOpaque,
			TransparentStandalone: def.TransparentStandalone,
			RedLightLevel:         def.RedLightLevel,
			GreenLightLevel:       def.GreenLightLevel,
			BlueLightLevel:        def.BlueLightLevel,
			Faces:                 def.Faces,
		}

		if def.IsTransparent != nil {
			block.IsTransparent = *def.IsTransparent
		} else if def.IsEmpty || !def.IsOpaque {
			block.IsTransparent = [6]bool{true, true, true, true, true, true}
		}

		if len(block.Faces) == 0 && !def.IsEmpty {
			block.Faces = SixFaces()
		}

		if len(def.AABBs) == 0 {
			if !def.IsEmpty {
				block.AABBs = []AABB{FullCube()}
			}
		} else {
			for _, box := range def.AABBs {
				block.AABBs = append(block.AABBs, AABB{
					MinX: box[0], MinY: box[1], MinZ: box[2],
					MaxX: box[3], MaxY: box[4], MaxZ: box[5],
				})
			}
		}

		r.Register(block)
	}

	return nil
}
