// Package storage persists chunks to disk, one JSON file per chunk. Voxel and
// height-map arrays are zlib-compressed little-endian u32 streams, base64
// encoded. Lights are never persisted; they are recomputed on load.
package storage

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"voxelize/internal/voxel"
)

// ChunkData is the persisted subset of a chunk.
type ChunkData struct {
	Coords    voxel.Coords
	ID        string
	Voxels    []uint32
	HeightMap []uint32
}

type chunkFile struct {
	ID        string `json:"id"`
	Voxels    string `json:"voxels"`
	HeightMap string `json:"height_map"`
}

func encodeU32(data []uint32) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}

	var compressed bytes.Buffer
	writer := zlib.NewWriter(&compressed)
	if _, err := writer.Write(raw); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

func decodeU32(encoded string) ([]uint32, error) {
	if encoded == "" {
		return nil, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt u32 stream: %d bytes", len(raw))
	}

	data := make([]uint32, len(raw)/4)
	for i := range data {
		data[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return data, nil
}

func chunkPath(dir string, coords voxel.Coords) string {
	return filepath.Join(dir, coords.Name()+".json")
}

// SaveChunk writes a chunk file atomically: temp file, fsync, rename.
func SaveChunk(dir string, data ChunkData) error {
	voxels, err := encodeU32(data.Voxels)
	if err != nil {
		return fmt.Errorf("encode voxels: %w", err)
	}
	heightMap, err := encodeU32(data.HeightMap)
	if err != nil {
		return fmt.Errorf("encode height map: %w", err)
	}

	payload, err := json.Marshal(chunkFile{
		ID:        data.ID,
		Voxels:    voxels,
		HeightMap: heightMap,
	})
	if err != nil {
		return fmt.Errorf("marshal chunk file: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}

	path := chunkPath(dir, data.Coords)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := file.Write(payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync chunk: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close chunk: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename chunk: %w", err)
	}

	return nil
}

// LoadChunk reads a chunk file back. A missing file is reported through
// os.IsNotExist on the wrapped error; it means the chunk needs generating.
func LoadChunk(dir string, coords voxel.Coords) (*ChunkData, error) {
	payload, err := os.ReadFile(chunkPath(dir, coords))
	if err != nil {
		return nil, err
	}

	var file chunkFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("unmarshal chunk %v: %w", coords, err)
	}

	voxels, err := decodeU32(file.Voxels)
	if err != nil {
		return nil, fmt.Errorf("decode voxels of %v: %w", coords, err)
	}
	heightMap, err := decodeU32(file.HeightMap)
	if err != nil {
		return nil, fmt.Errorf("decode height map of %v: %w", coords, err)
	}

	return &ChunkData{
		Coords:    coords,
		ID:        file.ID,
		Voxels:    voxels,
		HeightMap: heightMap,
	}, nil
}
