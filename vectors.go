package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Zelak312/mflowinter/flowinter"
	"github.com/goccy/go-json"
)

// VectorFile is the on-disk dump of a motion search: one geometry and the
// block vectors of every analysed frame. Each vector is [x, y, sad].
type VectorFile struct {
	Geometry flowinter.Geometry `json:"geometry"`
	Fields   []VectorFileField  `json:"fields"`
}

type VectorFileField struct {
	Frame     int        `json:"frame"`
	Direction string     `json:"direction"`
	Delta     int        `json:"delta"`
	Usable    *bool      `json:"usable"`
	Vectors   [][3]int64 `json:"vectors"`
}

type vectorKey struct {
	frame int
	dir   flowinter.Direction
	delta int
}

// VectorStore indexes the fields of a vector file by frame, direction and
// temporal distance.
type VectorStore struct {
	geometry flowinter.Geometry
	fields   map[vectorKey]*flowinter.Field
}

func parseDirection(s string) (flowinter.Direction, error) {
	switch s {
	case "forward":
		return flowinter.Forward, nil
	case "backward":
		return flowinter.Backward, nil
	}
	return 0, fmt.Errorf("unknown vector direction %q", s)
}

func LoadVectorFile(path string) (*VectorStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file VectorFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding vector file: %w", err)
	}

	return NewVectorStore(&file)
}

func NewVectorStore(file *VectorFile) (*VectorStore, error) {
	if err := file.Geometry.Validate(); err != nil {
		return nil, err
	}

	blkX, blkY := file.Geometry.Blocks()
	store := &VectorStore{
		geometry: file.Geometry,
		fields:   make(map[vectorKey]*flowinter.Field, len(file.Fields)),
	}

	for i, vf := range file.Fields {
		dir, err := parseDirection(vf.Direction)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}

		if vf.Delta <= 0 {
			return nil, fmt.Errorf("field %d: delta must be positive, got %d", i, vf.Delta)
		}

		if len(vf.Vectors) != blkX*blkY {
			return nil, fmt.Errorf("field %d: %w: %d vectors for %dx%d blocks", i, flowinter.ErrFieldShape, len(vf.Vectors), blkX, blkY)
		}

		usable := true
		if vf.Usable != nil {
			usable = *vf.Usable
		}

		blocks := make([]flowinter.Block, len(vf.Vectors))
		for j, v := range vf.Vectors {
			blocks[j] = flowinter.Block{
				Col:    j % blkX,
				Row:    j / blkX,
				MV:     flowinter.MV{X: int(v[0]), Y: int(v[1]), SAD: v[2]},
				Usable: usable,
			}
		}

		field, err := flowinter.NewField(dir, vf.Delta, blkX, blkY, blocks, usable)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}

		key := vectorKey{frame: vf.Frame, dir: dir, delta: vf.Delta}
		if _, ok := store.fields[key]; ok {
			return nil, fmt.Errorf("field %d: duplicate %s field for frame %d delta %d", i, dir, vf.Frame, vf.Delta)
		}
		store.fields[key] = field
	}

	if len(store.fields) == 0 {
		return nil, errors.New("vector file has no fields")
	}

	return store, nil
}

func (s *VectorStore) Geometry() flowinter.Geometry { return s.geometry }

// Field returns the field searched at frame, or nil when the dump has none.
func (s *VectorStore) Field(frame int, dir flowinter.Direction, delta int) *flowinter.Field {
	return s.fields[vectorKey{frame: frame, dir: dir, delta: delta}]
}

// Pair returns the fields used to synthesize frames between n and n+delta.
// Forward comes from n+delta, Backward from n; the extra pair from the
// outer neighbours. Missing fields are nil.
func (s *VectorStore) Pair(n, delta int) (bwd, fwd, bwdExtra, fwdExtra *flowinter.Field) {
	return s.Field(n, flowinter.Backward, delta),
		s.Field(n+delta, flowinter.Forward, delta),
		s.Field(n+delta, flowinter.Backward, delta),
		s.Field(n, flowinter.Forward, delta)
}
