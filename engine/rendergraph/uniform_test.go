package rendergraph

import (
	"encoding/binary"
	"testing"
)

func TestExplosionUniformBytesLayout(t *testing.T) {
	b := explosionUniformBytes(1234, 3.0)
	if len(b) != 8 {
		t.Fatalf("len = %d, want 8", len(b))
	}
	if got := binary.LittleEndian.Uint32(b[0:4]); got != 1234 {
		t.Fatalf("num meshes = %d, want 1234", got)
	}
}

func TestSelectionCursorUniformBytesLayout(t *testing.T) {
	b := selectionCursorUniformBytes(-1, 256, 300)
	if len(b) != 12 {
		t.Fatalf("len = %d, want 12", len(b))
	}
	selected := int32(binary.LittleEndian.Uint32(b[0:4]))
	x := int32(binary.LittleEndian.Uint32(b[4:8]))
	y := int32(binary.LittleEndian.Uint32(b[8:12]))
	if selected != -1 || x != 256 || y != 300 {
		t.Fatalf("got (%d,%d,%d), want (-1,256,300)", selected, x, y)
	}
}

func TestParseSelectMeshInfoRoundTrip(t *testing.T) {
	orig := SelectMeshInfo{
		MeshID:      43, // shader-written id; caller subtracts 1 elsewhere
		SelectedX:   -1,
		SelectedY:   -1,
		MinPosition: [4]float32{-1, -1, -1, 1},
		MaxPosition: [4]float32{1, 1, 1, 1},
	}
	data := orig.Bytes()
	if len(data) != SelectMeshInfoBytes {
		t.Fatalf("serialized size = %d, want %d", len(data), SelectMeshInfoBytes)
	}
	parsed := ParseSelectMeshInfo(data)
	if parsed.MeshID != orig.MeshID {
		t.Fatalf("mesh id = %d, want %d", parsed.MeshID, orig.MeshID)
	}
	if parsed.MinPosition != orig.MinPosition || parsed.MaxPosition != orig.MaxPosition {
		t.Fatalf("bounding box mismatch: %+v", parsed)
	}
}
