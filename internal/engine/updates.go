package engine

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelize/internal/lights"
	"voxelize/internal/meshing"
	"voxelize/internal/profiling"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

var lightColors = [4]voxel.LightColor{voxel.Sunlight, voxel.Red, voxel.Green, voxel.Blue}

// processUpdates applies up to MaxUpdatesPerTick queued block edits: voxel
// write, height-map fixup, light removal, light placement or re-flood, then a
// batched remesh of every touched chunk and one Update broadcast.
func (e *Engine) processUpdates() {
	defer profiling.Track("engine.processUpdates")()

	if len(e.updates) == 0 {
		return
	}

	cfg := e.cfg
	reg := e.res.Registry
	chunks := e.chunks

	var deferred []world.VoxelUpdate
	var results [][3]int
	dirty := map[voxel.Coords]struct{}{}

	var redFlood, greenFlood, blueFlood, sunFlood []lights.Node

	count := 0
	for count < cfg.MaxUpdatesPerTick && len(e.updates) > 0 {
		count++

		update := e.updates[0]
		e.updates = e.updates[1:]

		vx, vy, vz := update.Voxel[0], update.Voxel[1], update.Voxel[2]
		updatedID := voxel.ExtractID(update.Raw)
		rotation := voxel.ExtractRotation(update.Raw)

		// Out-of-world writes are silently no-ops; unknown ids are dropped
		// loudly.
		if vy < 0 || vy >= cfg.MaxHeight {
			continue
		}
		coords := voxel.MapVoxelToChunk(vx, vy, vz, cfg.ChunkSize)
		if !chunks.IsWithinWorld(coords) {
			continue
		}
		if !reg.HasType(updatedID) {
			e.log.Warn("dropping edit with unknown block id",
				zap.Uint32("id", updatedID),
				zap.Ints("voxel", []int{vx, vy, vz}))
			e.metrics.UpdatesDropped.Inc()
			continue
		}

		// Edits against chunks that are still generating or meshing wait
		// for the next tick.
		if !chunks.IsChunkReady(coords) {
			deferred = append(deferred, update)
			continue
		}

		currentRaw := chunks.GetRawVoxel(vx, vy, vz)
		currentID := voxel.ExtractID(currentRaw)
		currentType := reg.BlockByID(currentID)
		updatedType := reg.BlockByID(updatedID)

		if reg.IsAir(updatedID) && reg.IsAir(currentID) {
			continue
		}

		currentTransparency := currentType.RotatedTransparency(voxel.ExtractRotation(currentRaw))
		updatedTransparency := updatedType.IsTransparent
		if updatedType.Rotatable || updatedType.YRotatable {
			updatedTransparency = updatedType.RotatedTransparency(rotation)
		}

		// Re-proposing the identical block is a no-op.
		if currentID == updatedID && currentRaw == update.Raw {
			continue
		}

		world.SetVoxel(chunks, vx, vy, vz, updatedID)
		if updatedType.Rotatable || updatedType.YRotatable {
			world.SetVoxelRotation(chunks, vx, vy, vz, rotation)
		}
		if stage := voxel.ExtractStage(update.Raw); stage > 0 {
			world.SetVoxelStage(chunks, vx, vy, vz, stage)
		}

		e.updateHeightAt(vx, vy, vz, updatedID)

		e.removeLightsAt(vx, vy, vz, currentTransparency, updatedTransparency, updatedType.IsOpaque)

		// Placing a light source seeds its channels; opening the block up
		// re-floods whatever the neighbors hold.
		if updatedType.IsLight {
			if updatedType.RedLightLevel > 0 {
				world.SetTorchLight(chunks, vx, vy, vz, updatedType.RedLightLevel, voxel.Red)
				redFlood = append(redFlood, lights.Node{Voxel: [3]int{vx, vy, vz}, Level: updatedType.RedLightLevel})
			}
			if updatedType.GreenLightLevel > 0 {
				world.SetTorchLight(chunks, vx, vy, vz, updatedType.GreenLightLevel, voxel.Green)
				greenFlood = append(greenFlood, lights.Node{Voxel: [3]int{vx, vy, vz}, Level: updatedType.GreenLightLevel})
			}
			if updatedType.BlueLightLevel > 0 {
				world.SetTorchLight(chunks, vx, vy, vz, updatedType.BlueLightLevel, voxel.Blue)
				blueFlood = append(blueFlood, lights.Node{Voxel: [3]int{vx, vy, vz}, Level: updatedType.BlueLightLevel})
			}
		} else {
			for _, offset := range lights.VoxelNeighbors {
				nvy := vy + offset[1]
				if nvy < 0 || nvy >= cfg.MaxHeight {
					continue
				}
				nvx, nvz := vx+offset[0], vz+offset[2]

				nRaw := chunks.GetRawVoxel(nvx, nvy, nvz)
				nBlock := reg.BlockByID(voxel.ExtractID(nRaw))
				nTransparency := nBlock.RotatedTransparency(voxel.ExtractRotation(nRaw))

				// Only neighbors that just became reachable re-flood.
				couldBefore := lights.CanEnter(currentTransparency, nTransparency, offset[0], offset[1], offset[2])
				canNow := lights.CanEnter(updatedTransparency, nTransparency, offset[0], offset[1], offset[2])
				if couldBefore || !canNow {
					continue
				}

				nVoxel := [3]int{nvx, nvy, nvz}
				if level := world.GetSunlight(chunks, nvx, nvy, nvz); level > 0 {
					sunFlood = append(sunFlood, lights.Node{Voxel: nVoxel, Level: level})
				}
				if level := world.GetTorchLight(chunks, nvx, nvy, nvz, voxel.Red); level > 0 {
					redFlood = append(redFlood, lights.Node{Voxel: nVoxel, Level: level})
				}
				if level := world.GetTorchLight(chunks, nvx, nvy, nvz, voxel.Green); level > 0 {
					greenFlood = append(greenFlood, lights.Node{Voxel: nVoxel, Level: level})
				}
				if level := world.GetTorchLight(chunks, nvx, nvy, nvz, voxel.Blue); level > 0 {
					blueFlood = append(blueFlood, lights.Node{Voxel: nVoxel, Level: level})
				}
			}
		}

		for _, affected := range chunks.VoxelAffectedChunks(vx, vy, vz) {
			dirty[affected] = struct{}{}
		}

		results = append(results, [3]int{vx, vy, vz})
		e.metrics.VoxelUpdates.Inc()
	}

	e.updates = append(e.updates, deferred...)

	if len(redFlood) > 0 {
		lights.FloodLight(chunks, redFlood, voxel.Red, reg, cfg, nil)
	}
	if len(greenFlood) > 0 {
		lights.FloodLight(chunks, greenFlood, voxel.Green, reg, cfg, nil)
	}
	if len(blueFlood) > 0 {
		lights.FloodLight(chunks, blueFlood, voxel.Blue, reg, cfg, nil)
	}
	if len(sunFlood) > 0 {
		lights.FloodLight(chunks, sunFlood, voxel.Sunlight, reg, cfg, nil)
	}

	e.remeshDirty(dirty)
	e.broadcastUpdates(results)
}

// updateHeightAt patches a column's height after one voxel changed.
func (e *Engine) updateHeightAt(vx, vy, vz int, updatedID uint32) {
	chunks := e.chunks
	reg := e.res.Registry
	height := int(chunks.GetMaxHeight(vx, vz))

	if reg.IsAir(updatedID) {
		if vy == height {
			for y := vy - 1; y >= 0; y-- {
				if y == 0 || reg.CheckHeight(world.GetVoxel(chunks, vx, y, vz)) {
					chunks.SetMaxHeight(vx, vz, uint32(y))
					break
				}
			}
		}
	} else if height < vy {
		chunks.SetMaxHeight(vx, vz, uint32(vy))
	}
}

// removeLightsAt clears light from an edited voxel. Opaque replacements strip
// every channel; partially transparent ones only remove light that can no
// longer cross a face, falling back to full removal when nothing else fired.
func (e *Engine) removeLightsAt(
	vx, vy, vz int,
	currentTransparency, updatedTransparency [6]bool,
	updatedIsOpaque bool,
) {
	cfg := e.cfg
	reg := e.res.Registry
	chunks := e.chunks

	removeAll := func() {
		if world.GetSunlight(chunks, vx, vy, vz) != 0 {
			lights.RemoveLight(chunks, [3]int{vx, vy, vz}, voxel.Sunlight, reg, cfg)
		}
		for _, color := range []voxel.LightColor{voxel.Red, voxel.Green, voxel.Blue} {
			if world.GetTorchLight(chunks, vx, vy, vz, color) != 0 {
				lights.RemoveLight(chunks, [3]int{vx, vy, vz}, color, reg, cfg)
			}
		}
	}

	if updatedIsOpaque {
		removeAll()
		return
	}

	removals := 0

	sourceLevels := [4]uint32{
		world.GetSunlight(chunks, vx, vy, vz),
		world.GetTorchLight(chunks, vx, vy, vz, voxel.Red),
		world.GetTorchLight(chunks, vx, vy, vz, voxel.Green),
		world.GetTorchLight(chunks, vx, vy, vz, voxel.Blue),
	}

	for _, offset := range lights.VoxelNeighbors {
		nvy := vy + offset[1]
		if nvy < 0 || nvy >= cfg.MaxHeight {
			continue
		}
		nvx, nvz := vx+offset[0], vz+offset[2]

		nRaw := chunks.GetRawVoxel(nvx, nvy, nvz)
		nBlock := reg.BlockByID(voxel.ExtractID(nRaw))
		nTransparency := nBlock.RotatedTransparency(voxel.ExtractRotation(nRaw))

		// Only faces that light used to cross but no longer can matter here.
		couldBefore := lights.CanEnter(currentTransparency, nTransparency, offset[0], offset[1], offset[2])
		canNow := lights.CanEnter(updatedTransparency, nTransparency, offset[0], offset[1], offset[2])
		if !couldBefore || canNow {
			continue
		}

		for channel, color := range lightColors {
			var nLevel uint32
			if color == voxel.Sunlight {
				nLevel = world.GetSunlight(chunks, nvx, nvy, nvz)
			} else {
				nLevel = world.GetTorchLight(chunks, nvx, nvy, nvz, color)
			}
			if nLevel == 0 {
				continue
			}

			// The neighbor's light descended from this cell, or is a
			// full-level sun column continuing downward.
			if nLevel < sourceLevels[channel] ||
				(color == voxel.Sunlight && offset[1] == -1 &&
					nLevel == cfg.MaxLightLevel && sourceLevels[channel] == cfg.MaxLightLevel) {
				removals++
				lights.RemoveLight(chunks, [3]int{nvx, nvy, nvz}, color, reg, cfg)
			}
		}
	}

	// Nothing fired for this semi-transparent block: treat it as opaque.
	if removals == 0 {
		removeAll()
	}
}

// remeshDirty rebuilds the dirty sub-chunks of every touched ready chunk
// synchronously, sub-chunks in parallel, and queues the Update send.
func (e *Engine) remeshDirty(dirty map[voxel.Coords]struct{}) {
	for coords := range dirty {
		if !e.chunks.IsChunkReady(coords) {
			continue
		}

		chunk := e.chunks.Raw(coords)
		if len(chunk.UpdatedLevels) == 0 {
			continue
		}

		space := e.chunks.MakeSpace(coords, int(e.cfg.MaxLightLevel)).
			NeedsVoxels().NeedsLights().NeedsHeightMaps().Strict().Build()

		blocksPerSubChunk := e.cfg.MaxHeight / e.cfg.SubChunks

		levels := make([]int, 0, len(chunk.UpdatedLevels))
		for level := range chunk.UpdatedLevels {
			levels = append(levels, level)
		}
		meshes := make([]*world.SubMesh, len(levels))

		var group errgroup.Group
		for i, level := range levels {
			group.Go(func() error {
				min := [3]int{chunk.Min[0], level * blocksPerSubChunk, chunk.Min[2]}
				max := [3]int{chunk.Max[0], (level + 1) * blocksPerSubChunk, chunk.Max[2]}

				meshes[i] = &world.SubMesh{
					Level:       level,
					Opaque:      meshing.MeshSpace(min, max, space, e.res.Registry, e.cfg, meshing.PassOpaque),
					Transparent: meshing.MeshSpace(min, max, space, e.res.Registry, e.cfg, meshing.PassTransparent),
				}
				return nil
			})
		}
		_ = group.Wait()

		for i, level := range levels {
			chunk.Meshes[level] = meshes[i]
		}

		chunk.UpdatedLevels = make(map[int]struct{})

		if e.cfg.Saving {
			e.queueSave(chunk)
		}

		e.chunks.AddChunkToSend(coords, world.MessageUpdate)
	}
}

// broadcastUpdates reads back the final voxel and light words of each applied
// edit and pushes one Update message to every client.
func (e *Engine) broadcastUpdates(results [][3]int) {
	if len(results) == 0 || e.transport == nil {
		return
	}

	entries := make([]UpdateEntry, 0, len(results))
	for _, position := range results {
		entries = append(entries, UpdateEntry{
			Vx:    position[0],
			Vy:    position[1],
			Vz:    position[2],
			Voxel: e.chunks.GetRawVoxel(position[0], position[1], position[2]),
			Light: e.chunks.GetRawLight(position[0], position[1], position[2]),
		})
	}

	e.transport.Broadcast(&Message{Type: MessageTypeUpdate, Updates: entries})
}
