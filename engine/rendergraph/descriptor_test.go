package rendergraph

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestParseJobListOrderAndFields(t *testing.T) {
	doc := `{
		"Jobs": [
			{"Name": "Mesh Culling Compute", "Type": "Compute", "PassType": "Compute", "Pipeline": "culling.json", "Dispatch": [16, 1, 1]},
			{"Name": "Deferred Indirect Graphics", "Type": "Graphics", "PassType": "Draw Meshes", "Pipeline": "deferred.json"}
		]
	}`

	entries, err := ParseJobList([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJobList: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Name != "Mesh Culling Compute" || entries[1].Name != "Deferred Indirect Graphics" {
		t.Fatalf("declared order not preserved: %+v", entries)
	}
	if entries[0].Kind != JobKindCompute {
		t.Fatalf("job 0 kind = %v, want Compute", entries[0].Kind)
	}
	if entries[0].Dispatch != [3]uint32{16, 1, 1} {
		t.Fatalf("job 0 dispatch = %+v, want [16 1 1]", entries[0].Dispatch)
	}
	if entries[1].PassType != PassTypeDrawMeshes {
		t.Fatalf("job 1 pass type = %v, want DrawMeshes", entries[1].PassType)
	}
}

func TestParseJobListDuplicateName(t *testing.T) {
	doc := `{"Jobs": [
		{"Name": "A", "Type": "Compute", "PassType": "Compute", "Pipeline": "a.json"},
		{"Name": "A", "Type": "Compute", "PassType": "Compute", "Pipeline": "a2.json"}
	]}`
	_, err := ParseJobList([]byte(doc))
	if err == nil {
		t.Fatal("expected DuplicateResource error")
	}
	if _, ok := err.(*DuplicateResource); !ok {
		t.Fatalf("got %T, want *DuplicateResource", err)
	}
}

func TestParseJobListMissingName(t *testing.T) {
	doc := `{"Jobs": [{"Type": "Compute", "PassType": "Compute", "Pipeline": "a.json"}]}`
	_, err := ParseJobList([]byte(doc))
	if err == nil {
		t.Fatal("expected ConfigError for missing Name")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("got %T, want *ConfigError", err)
	}
}

func TestParseJobListMissingTopLevelJobs(t *testing.T) {
	_, err := ParseJobList([]byte(`{}`))
	if err == nil {
		t.Fatal("expected ConfigError for missing Jobs array")
	}
}

func TestParseJobListTrailingNUL(t *testing.T) {
	doc := []byte(`{"Jobs": [{"Name": "A", "Type": "Compute", "PassType": "Compute", "Pipeline": "a.json"}]}`)
	doc = append(doc, 0)
	entries, err := ParseJobList(doc)
	if err != nil {
		t.Fatalf("ParseJobList with trailing NUL: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestParsePipelineAttachmentsAndResources(t *testing.T) {
	doc := `{
		"Shader": "shaders/culling.wgsl",
		"Attachments": [
			{"Name": "Draw Calls", "Type": "BufferOutput", "Size": 4096, "Usage": "Indirect"},
			{"Name": "Num Draw Calls", "Type": "BufferOutput", "Size": 16}
		],
		"ShaderResources": [
			{"name": "visibilityFlags", "type": "buffer", "usage": "read_only_storage"}
		]
	}`
	desc, err := ParsePipeline("Mesh Culling Compute", []byte(doc))
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if len(desc.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(desc.Attachments))
	}
	if !desc.Attachments[0].Indirect {
		t.Fatalf("expected first attachment to carry the Indirect usage flag")
	}
	if desc.Attachments[0].Role != AttachmentBufferOutput {
		t.Fatalf("attachment 0 role = %v, want BufferOutput", desc.Attachments[0].Role)
	}
	if len(desc.ShaderResources) != 1 || desc.ShaderResources[0].Usage != ResourceUsageReadOnlyStorage {
		t.Fatalf("shader resources parsed incorrectly: %+v", desc.ShaderResources)
	}
	// Defaults applied when DepthStencilState/RasterState are absent.
	if !desc.DepthStencil.Enabled || !desc.DepthStencil.WriteEnabled {
		t.Fatalf("expected default depth-stencil state enabled+write, got %+v", desc.DepthStencil)
	}
	if desc.Raster.LoadOp != LoadOpClear || desc.Raster.StoreOp != StoreOpStore {
		t.Fatalf("expected default raster load/store ops, got %+v", desc.Raster)
	}
}

func TestParsePipelineInputAttachmentRequiresParentJob(t *testing.T) {
	doc := `{
		"Shader": "shaders/draw.wgsl",
		"Attachments": [
			{"Name": "Draw Calls", "Type": "BufferInput"}
		]
	}`
	_, err := ParsePipeline("Deferred Indirect Graphics", []byte(doc))
	if err == nil {
		t.Fatal("expected ConfigError for input attachment missing ParentJob")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("got %T, want *ConfigError", err)
	}
}

func TestParsePipelineMissingAttachments(t *testing.T) {
	_, err := ParsePipeline("Job", []byte(`{"Shader": "shaders/x.wgsl"}`))
	if err == nil {
		t.Fatal("expected ConfigError for missing Attachments array")
	}
}

func TestParsePipelineDuplicateAttachmentName(t *testing.T) {
	doc := `{
		"Shader": "shaders/x.wgsl",
		"Attachments": [
			{"Name": "Out", "Type": "TextureOutput"},
			{"Name": "Out", "Type": "TextureOutput"}
		]
	}`
	_, err := ParsePipeline("Job", []byte(doc))
	if _, ok := err.(*DuplicateResource); !ok {
		t.Fatalf("got %T, want *DuplicateResource", err)
	}
}

func TestParseTextureFormatDefaultAndExplicit(t *testing.T) {
	f, err := parseTextureFormat("")
	if err != nil || f != wgpu.TextureFormatRGBA32Float {
		t.Fatalf("default format = %v, %v", f, err)
	}
	if _, err := parseTextureFormat("not-a-format"); err == nil {
		t.Fatal("expected error for unrecognized format")
	}
}
