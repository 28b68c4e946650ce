package rendergraph

import "github.com/tpeel/meshgraph/common"

// DefaultUniformData is the single process-wide uniform structure updated
// every frame and bound into every job's group 1. Field order and sizes
// match the packed layout the shaders expect; every field is 4-byte
// aligned and the struct as a whole packs to a multiple of 16 bytes.
type DefaultUniformData struct {
	ScreenWidth  float32
	ScreenHeight float32
	FrameIndex   uint32
	NumMeshes    uint32

	RandomScalars [4]float32

	ViewMatrix               [16]float32
	ProjectionMatrix         [16]float32
	ViewProjectionMatrix     [16]float32
	PrevViewMatrix           [16]float32
	PrevProjectionMatrix     [16]float32
	PrevViewProjectionMatrix [16]float32
	JitteredViewProjection   [16]float32

	CameraPosition [4]float32
	CameraLookDir  [4]float32

	LightRadiance [4]float32
	LightDir      [4]float32

	AODistanceThreshold float32
	_padding            [3]float32
}

// Bytes serializes the uniform structure for a GPU buffer write.
func (d *DefaultUniformData) Bytes() []byte {
	return common.StructToBytes(d)
}

// SelectMeshInfo is the selection read-back record written by the
// selection shader and copied into C6's staging buffer. The field list
// (mesh id, selection coord, padding, min/max position 4-vectors) packs
// to 48 bytes; this module copies 64 bytes end to end, matching the copy
// width observed in the original implementation's read-back step, with
// 16 trailing padding bytes.
type SelectMeshInfo struct {
	MeshID      int32
	SelectedX   int32
	SelectedY   int32
	_padding    int32
	MinPosition [4]float32
	MaxPosition [4]float32
	_tailPad    [4]float32
}

// SelectMeshInfoBytes is the byte width copied from the selection job's
// uniform buffer into the staging buffer each read-back cycle.
const SelectMeshInfoBytes = 64

// Bytes serializes the selection record for a uniform buffer write.
func (s *SelectMeshInfo) Bytes() []byte {
	return common.StructToBytes(s)
}

// ParseSelectMeshInfo reads a SelectMeshInfo out of a mapped staging
// buffer range.
func ParseSelectMeshInfo(data []byte) SelectMeshInfo {
	var s SelectMeshInfo
	copy(common.StructToBytes(&s), data)
	return s
}

// explosionUniformBytes packs the (num_meshes, multiplier) pair written
// into a deferred-draw job's indirectUniformData uniform.
func explosionUniformBytes(numMeshes uint32, multiplier float32) []byte {
	type explosionUniform struct {
		NumMeshes  uint32
		Multiplier float32
	}
	u := explosionUniform{NumMeshes: numMeshes, Multiplier: multiplier}
	return common.StructToBytes(&u)
}

// selectionCursorUniformBytes packs the (selected, x, y) triple written
// into the selection job's uniformBuffer while a capture is pending or
// being resolved.
func selectionCursorUniformBytes(selected, x, y int32) []byte {
	type selectionCursorUniform struct {
		Selected int32
		X        int32
		Y        int32
	}
	u := selectionCursorUniform{Selected: selected, X: x, Y: y}
	return common.StructToBytes(&u)
}
