package rendergraph

import (
	"bytes"
	"testing"
)

func sampleMeshAsset() *MeshAsset {
	return &MeshAsset{
		MeshCount:           2,
		TotalVertexCount:    4,
		TotalTriangleCount:  2,
		VertexStride:        vertexStrideBytes,
		TriangleStartOffset: 0,
		TriangleRanges: []MeshTriangleRange{
			{Start: 0, End: 3},
			{Start: 3, End: 6},
		},
		Extents: []MeshExtent{
			{Min: [4]float32{-1, -1, -1, 1}, Max: [4]float32{1, 1, 1, 1}},
			{Min: [4]float32{0, 0, 0, 1}, Max: [4]float32{2, 2, 2, 1}},
			{Min: [4]float32{-1, -1, -1, 1}, Max: [4]float32{2, 2, 2, 1}},
		},
		Vertices: []Vertex{
			{Position: [4]float32{0, 0, 0, 1}, UV: [4]float32{0, 0, 0, 0}, Normal: [4]float32{0, 1, 0, 0}},
			{Position: [4]float32{1, 0, 0, 1}, UV: [4]float32{1, 0, 0, 0}, Normal: [4]float32{0, 1, 0, 0}},
			{Position: [4]float32{0, 1, 0, 1}, UV: [4]float32{0, 1, 0, 0}, Normal: [4]float32{0, 1, 0, 0}},
			{Position: [4]float32{1, 1, 0, 1}, UV: [4]float32{1, 1, 0, 0}, Normal: [4]float32{0, 1, 0, 0}},
		},
		TriangleIndices: []uint32{0, 1, 2, 1, 3, 2},
	}
}

func TestMeshAssetRoundTrip(t *testing.T) {
	orig := sampleMeshAsset()
	serialized := orig.Serialize()

	parsed, err := ParseMeshAsset(serialized)
	if err != nil {
		t.Fatalf("ParseMeshAsset: %v", err)
	}

	reserialized := parsed.Serialize()
	if !bytes.Equal(serialized, reserialized) {
		t.Fatalf("round trip produced different bytes: %d vs %d", len(serialized), len(reserialized))
	}

	if parsed.MeshCount != orig.MeshCount || parsed.TotalVertexCount != orig.TotalVertexCount {
		t.Fatalf("header mismatch after round trip: %+v", parsed)
	}
	if len(parsed.TriangleRanges) != len(orig.TriangleRanges) {
		t.Fatalf("triangle range count mismatch: got %d want %d", len(parsed.TriangleRanges), len(orig.TriangleRanges))
	}
	if len(parsed.Extents) != int(orig.MeshCount)+1 {
		t.Fatalf("extent count mismatch: got %d want %d", len(parsed.Extents), orig.MeshCount+1)
	}
}

func TestMeshTriangleRangeBufferSizing(t *testing.T) {
	a := sampleMeshAsset()
	// Resolved Open Question: sized from the semantic count, not from
	// total vertex count * sizeof(Vertex).
	got := a.MeshTriangleRangeBufferBytes()
	want := uint64(a.MeshCount) * meshTriangleRangeBytes
	if got != want {
		t.Fatalf("MeshTriangleRangeBufferBytes() = %d, want %d", got, want)
	}

	wrongLegacySize := uint64(a.TotalVertexCount) * vertexStrideBytes
	if got == wrongLegacySize {
		t.Fatalf("buffer size matches the rejected legacy sizing (%d); expected the semantic size", wrongLegacySize)
	}
}

func TestMeshExtentBufferSizing(t *testing.T) {
	a := sampleMeshAsset()
	got := a.MeshExtentBufferBytes()
	want := uint64(a.MeshCount+1) * meshExtentBytes
	if got != want {
		t.Fatalf("MeshExtentBufferBytes() = %d, want %d", got, want)
	}
}

func TestParseMeshAssetTruncated(t *testing.T) {
	if _, err := ParseMeshAsset([]byte{0, 0, 0}); err == nil {
		t.Fatal("expected error for truncated header")
	}

	full := sampleMeshAsset().Serialize()
	if _, err := ParseMeshAsset(full[:len(full)-1]); err == nil {
		t.Fatal("expected error for truncated trailing index")
	}
}
