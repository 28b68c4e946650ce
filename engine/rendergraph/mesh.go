package rendergraph

import (
	"encoding/binary"
	"fmt"
	"math"
)

// meshExtentBytes is the packed size of one MeshExtent record (two
// float32x4 vectors).
const meshExtentBytes = 32

// meshTriangleRangeBytes is the packed size of one MeshTriangleRange pair.
const meshTriangleRangeBytes = 8

// MeshTriangleRange is one sub-mesh's [start, end) triangle-index range.
type MeshTriangleRange struct {
	Start uint32
	End   uint32
}

// MeshExtent is a sub-mesh's (or the aggregate's) axis-aligned bounding
// box, stored as two homogeneous 4-vectors.
type MeshExtent struct {
	Min [4]float32
	Max [4]float32
}

// Vertex is one packed mesh vertex: position, uv, normal, each a
// homogeneous 4-vector.
type Vertex struct {
	Position [4]float32
	UV       [4]float32
	Normal   [4]float32
}

// MeshAsset is the fully parsed packed mesh binary described by
// SPEC_FULL.md section 3.
type MeshAsset struct {
	MeshCount            uint32
	TotalVertexCount     uint32
	TotalTriangleCount   uint32
	VertexStride         uint32
	TriangleStartOffset  uint32
	TriangleRanges       []MeshTriangleRange // length MeshCount
	Extents              []MeshExtent        // length MeshCount+1, trailing entry is the aggregate
	Vertices             []Vertex            // length TotalVertexCount
	TriangleIndices      []uint32            // length 3*TotalTriangleCount
}

// ParseMeshAsset parses the packed little-endian mesh binary format.
func ParseMeshAsset(data []byte) (*MeshAsset, error) {
	const headerBytes = 5 * 4
	if len(data) < headerBytes {
		return nil, fmt.Errorf("rendergraph: mesh asset truncated: shorter than header")
	}

	a := &MeshAsset{
		MeshCount:           binary.LittleEndian.Uint32(data[0:4]),
		TotalVertexCount:    binary.LittleEndian.Uint32(data[4:8]),
		TotalTriangleCount:  binary.LittleEndian.Uint32(data[8:12]),
		VertexStride:        binary.LittleEndian.Uint32(data[12:16]),
		TriangleStartOffset: binary.LittleEndian.Uint32(data[16:20]),
	}

	off := headerBytes

	rangesBytes := int(a.MeshCount) * meshTriangleRangeBytes
	if len(data) < off+rangesBytes {
		return nil, fmt.Errorf("rendergraph: mesh asset truncated: triangle ranges")
	}
	a.TriangleRanges = make([]MeshTriangleRange, a.MeshCount)
	for i := range a.TriangleRanges {
		base := off + i*meshTriangleRangeBytes
		a.TriangleRanges[i] = MeshTriangleRange{
			Start: binary.LittleEndian.Uint32(data[base : base+4]),
			End:   binary.LittleEndian.Uint32(data[base+4 : base+8]),
		}
	}
	off += rangesBytes

	extentCount := int(a.MeshCount) + 1
	extentsBytes := extentCount * meshExtentBytes
	if len(data) < off+extentsBytes {
		return nil, fmt.Errorf("rendergraph: mesh asset truncated: extents")
	}
	a.Extents = make([]MeshExtent, extentCount)
	for i := range a.Extents {
		base := off + i*meshExtentBytes
		a.Extents[i] = readExtent(data[base : base+meshExtentBytes])
	}
	off += extentsBytes

	vertexBytes := int(a.TotalVertexCount) * vertexStrideBytes
	if len(data) < off+vertexBytes {
		return nil, fmt.Errorf("rendergraph: mesh asset truncated: vertices")
	}
	a.Vertices = make([]Vertex, a.TotalVertexCount)
	for i := range a.Vertices {
		base := off + i*vertexStrideBytes
		a.Vertices[i] = readVertex(data[base : base+vertexStrideBytes])
	}
	off += vertexBytes

	indexCount := int(a.TotalTriangleCount) * 3
	indexBytes := indexCount * 4
	if len(data) < off+indexBytes {
		return nil, fmt.Errorf("rendergraph: mesh asset truncated: triangle indices")
	}
	a.TriangleIndices = make([]uint32, indexCount)
	for i := range a.TriangleIndices {
		base := off + i*4
		a.TriangleIndices[i] = binary.LittleEndian.Uint32(data[base : base+4])
	}

	return a, nil
}

// Serialize reproduces the packed little-endian binary format exactly.
func (a *MeshAsset) Serialize() []byte {
	headerBytes := 5 * 4
	total := headerBytes +
		len(a.TriangleRanges)*meshTriangleRangeBytes +
		len(a.Extents)*meshExtentBytes +
		len(a.Vertices)*vertexStrideBytes +
		len(a.TriangleIndices)*4

	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[0:4], a.MeshCount)
	binary.LittleEndian.PutUint32(out[4:8], a.TotalVertexCount)
	binary.LittleEndian.PutUint32(out[8:12], a.TotalTriangleCount)
	binary.LittleEndian.PutUint32(out[12:16], a.VertexStride)
	binary.LittleEndian.PutUint32(out[16:20], a.TriangleStartOffset)

	off := headerBytes
	for _, r := range a.TriangleRanges {
		binary.LittleEndian.PutUint32(out[off:off+4], r.Start)
		binary.LittleEndian.PutUint32(out[off+4:off+8], r.End)
		off += meshTriangleRangeBytes
	}

	for _, e := range a.Extents {
		writeExtent(out[off:off+meshExtentBytes], e)
		off += meshExtentBytes
	}

	for _, v := range a.Vertices {
		writeVertex(out[off:off+vertexStrideBytes], v)
		off += vertexStrideBytes
	}

	for _, idx := range a.TriangleIndices {
		binary.LittleEndian.PutUint32(out[off:off+4], idx)
		off += 4
	}

	return out
}

// MeshTriangleRangeBufferBytes returns the byte size the Resource Registry
// allocates for meshTriangleIndexRanges: sized from the semantic count,
// mesh_count * sizeof(MeshTriangleRange).
func (a *MeshAsset) MeshTriangleRangeBufferBytes() uint64 {
	return uint64(a.MeshCount) * meshTriangleRangeBytes
}

// MeshExtentBufferBytes returns the byte size the Resource Registry
// allocates for meshExtents: (mesh_count+1) * sizeof(MeshExtent).
func (a *MeshAsset) MeshExtentBufferBytes() uint64 {
	return uint64(a.MeshCount+1) * meshExtentBytes
}

func readExtent(b []byte) MeshExtent {
	var e MeshExtent
	for i := 0; i < 4; i++ {
		e.Min[i] = readFloat32(b[i*4 : i*4+4])
		e.Max[i] = readFloat32(b[16+i*4 : 16+i*4+4])
	}
	return e
}

func writeExtent(b []byte, e MeshExtent) {
	for i := 0; i < 4; i++ {
		writeFloat32(b[i*4:i*4+4], e.Min[i])
		writeFloat32(b[16+i*4:16+i*4+4], e.Max[i])
	}
}

func readVertex(b []byte) Vertex {
	var v Vertex
	for i := 0; i < 4; i++ {
		v.Position[i] = readFloat32(b[i*4 : i*4+4])
		v.UV[i] = readFloat32(b[16+i*4 : 16+i*4+4])
		v.Normal[i] = readFloat32(b[32+i*4 : 32+i*4+4])
	}
	return v
}

func writeVertex(b []byte, v Vertex) {
	for i := 0; i < 4; i++ {
		writeFloat32(b[i*4:i*4+4], v.Position[i])
		writeFloat32(b[16+i*4:16+i*4+4], v.UV[i])
		writeFloat32(b[32+i*4:32+i*4+4], v.Normal[i])
	}
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func writeFloat32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}
