package rendergraph

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/tpeel/meshgraph/common"
	"github.com/tpeel/meshgraph/engine/profiler"
	"github.com/tpeel/meshgraph/engine/renderer/material"
)

// CreateDescriptor supplies everything setup needs from the Host: the GPU
// device/queue/instance triple, screen dimensions, the mesh asset path
// prefix, the job-pipeline JSON path, and a shared sampler.
type CreateDescriptor struct {
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Instance *wgpu.Instance

	ScreenWidth  uint32
	ScreenHeight uint32

	MeshAssetPrefix string
	JobListPath     string

	Loader BlobLoader

	// Sampler is the shared sampler bound into group 1 of every job that has
	// a texture binding. When nil, Setup creates a nearest-filtering,
	// clamp-to-edge sampler.
	Sampler *wgpu.Sampler

	// EnableProfiler turns on periodic FPS/heap logging of the draw loop.
	EnableProfiler bool

	// MaterialManifestPath, if non-empty, names a JSON file listing
	// companion materials to decode alongside the mesh asset (see
	// SPEC_FULL.md section 4.8). These never reach the GPU draw path;
	// they're surfaced through Renderer.CompanionMaterials for a viewer's
	// material preview / thumbnail UI.
	MaterialManifestPath string
}

// Renderer is the Host-facing API facade over the render graph: setup,
// draw, swap-chain access, buffer pokes, and the selection cycle.
type Renderer struct {
	backend  Backend
	registry Registry
	graph    *Graph
	executor *Executor

	sampler  *wgpu.Sampler
	profiler *profiler.Profiler

	materials []material.Material
}

// Setup loads the mesh asset and companion material files, populates the
// Resource Registry, assembles the render graph, and returns a ready
// Renderer. See SPEC_FULL.md section 4.7 for the full setup sequence.
func Setup(desc CreateDescriptor) (*Renderer, error) {
	backend := NewBackend(desc.Device, desc.Queue, desc.Instance)
	registry := NewRegistry()

	triangleData, err := desc.Loader.Load(desc.MeshAssetPrefix + "-triangles.bin")
	if err != nil {
		return nil, fmt.Errorf("rendergraph: load mesh asset: %w", err)
	}
	mesh, err := ParseMeshAsset(triangleData)
	if err != nil {
		return nil, err
	}

	if err := uploadMeshBuffers(backend, registry, mesh); err != nil {
		return nil, err
	}

	midData, err := desc.Loader.Load(desc.MeshAssetPrefix + ".mid")
	if err != nil {
		return nil, fmt.Errorf("rendergraph: load material-id file: %w", err)
	}
	if err := uploadVerbatimBuffer(backend, registry, BufferNameMeshMaterialIDs, midData); err != nil {
		return nil, err
	}

	matData, err := desc.Loader.Load(desc.MeshAssetPrefix + ".mat")
	if err != nil {
		return nil, fmt.Errorf("rendergraph: load material file: %w", err)
	}
	if err := uploadVerbatimBuffer(backend, registry, BufferNameMeshMaterials, matData); err != nil {
		return nil, err
	}

	if err := allocateVisibilityFlags(backend, registry, mesh.MeshCount); err != nil {
		return nil, err
	}
	if err := allocateDefaultUniformBuffer(backend, registry); err != nil {
		return nil, err
	}
	if err := allocateFullScreenTriangle(backend, registry); err != nil {
		return nil, err
	}
	if err := allocateBlueNoiseBuffer(backend, registry); err != nil {
		return nil, err
	}

	sampler := desc.Sampler
	if sampler == nil {
		sampler, err = desc.Device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:        "Render Graph Sampler",
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
			AddressModeW: wgpu.AddressModeClampToEdge,
			MagFilter:    wgpu.FilterModeNearest,
			MinFilter:    wgpu.FilterModeNearest,
		})
		if err != nil {
			return nil, fmt.Errorf("rendergraph: create shared sampler: %w", err)
		}
	}

	defaultUniformBuf, defaultUniformSize, _ := registry.Resolve(BufferNameDefaultUniform)

	builder := NewJobBuilder(backend, desc.ScreenWidth, desc.ScreenHeight, desc.Loader)
	graph, err := AssembleGraph(builder, desc.Loader, desc.JobListPath, defaultUniformBuf, defaultUniformSize, sampler)
	if err != nil {
		return nil, err
	}

	if culling := graph.Job(cullingJobName); culling != nil {
		if buf, _, ok := culling.OutputBuffer(indirectUniformName); ok {
			desc.Queue.WriteBuffer(buf, 0, explosionUniformBytes(mesh.MeshCount, 1.0))
		}
	}

	selection, err := NewSelectionTracker(backend)
	if err != nil {
		return nil, err
	}

	executor := NewExecutor(backend, graph, registry, selection, mesh.MeshCount)

	var companionMaterials []material.Material
	if desc.MaterialManifestPath != "" {
		companionMaterials, err = loadCompanionMaterials(desc.Loader, desc.MaterialManifestPath)
		if err != nil {
			return nil, fmt.Errorf("rendergraph: load companion materials: %w", err)
		}
	}

	r := &Renderer{backend: backend, registry: registry, graph: graph, executor: executor, sampler: sampler, materials: companionMaterials}
	if desc.EnableProfiler {
		r.profiler = profiler.NewProfiler()
	}
	return r, nil
}

// companionMaterialEntry is one record of a material manifest file: the
// JSON sibling of a mesh asset's compiled `.mat` blob, naming the texture
// files a viewer should decode for presentation.
type companionMaterialEntry struct {
	Name                         string     `json:"name"`
	BaseColor                    [4]float32 `json:"baseColor"`
	Metallic                     float32    `json:"metallic"`
	Roughness                    float32    `json:"roughness"`
	DiffuseTexturePath           string     `json:"diffuseTexturePath"`
	NormalTexturePath            string     `json:"normalTexturePath"`
	MetallicRoughnessTexturePath string     `json:"metallicRoughnessTexturePath"`
}

// loadCompanionMaterials decodes a material manifest and eagerly decodes
// each referenced texture file, so a load-time error surfaces at Setup
// rather than the first time a viewer asks for pixel data.
func loadCompanionMaterials(loader BlobLoader, path string) ([]material.Material, error) {
	data, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	var entries []companionMaterialEntry
	if err := json.Unmarshal(trimTrailingNUL(data), &entries); err != nil {
		return nil, fmt.Errorf("parse material manifest %s: %w", path, err)
	}

	materials := make([]material.Material, 0, len(entries))
	for _, entry := range entries {
		opts := []material.MaterialBuilderOption{
			material.WithName(entry.Name),
			material.WithBaseColor(entry.BaseColor),
			material.WithMetallic(entry.Metallic),
			material.WithRoughness(entry.Roughness),
		}

		if tex, err := decodeCompanionTexture(entry.Name, "diffuse", entry.DiffuseTexturePath); err != nil {
			return nil, err
		} else if tex != nil {
			opts = append(opts, material.WithDiffuseTexture(tex))
		}
		if tex, err := decodeCompanionTexture(entry.Name, "normal", entry.NormalTexturePath); err != nil {
			return nil, err
		} else if tex != nil {
			opts = append(opts, material.WithNormalTexture(tex))
		}
		if tex, err := decodeCompanionTexture(entry.Name, "metallic-roughness", entry.MetallicRoughnessTexturePath); err != nil {
			return nil, err
		} else if tex != nil {
			opts = append(opts, material.WithMetallicRoughnessTexture(tex))
		}

		materials = append(materials, material.NewMaterial(opts...))
	}
	return materials, nil
}

func decodeCompanionTexture(materialName, slot, path string) (*common.ImportedTexture, error) {
	if path == "" {
		return nil, nil
	}
	tex := &common.ImportedTexture{Name: materialName + " " + slot, Path: path}
	if _, _, _, err := tex.Decode(); err != nil {
		return nil, fmt.Errorf("decode %s texture %q for material %q: %w", slot, path, materialName, err)
	}
	return tex, nil
}

// CompanionMaterials returns the materials decoded from the manifest named
// by CreateDescriptor.MaterialManifestPath, or nil if none was supplied.
func (r *Renderer) CompanionMaterials() []material.Material {
	return r.materials
}

func uploadMeshBuffers(backend Backend, registry Registry, mesh *MeshAsset) error {
	device := backend.Device()
	queue := backend.Queue()

	vertexBytes := serializeVertices(mesh.Vertices)
	vertexBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameVertex,
		Size:  uint64(len(vertexBytes)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate vertex buffer: %w", err)
	}
	queue.WriteBuffer(vertexBuf, 0, vertexBytes)
	if err := registry.Put(BufferNameVertex, vertexBuf, uint64(len(vertexBytes))); err != nil {
		return err
	}

	indexBytes := serializeIndices(mesh.TriangleIndices)
	indexBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameIndex,
		Size:  uint64(len(indexBytes)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate index buffer: %w", err)
	}
	queue.WriteBuffer(indexBuf, 0, indexBytes)
	if err := registry.Put(BufferNameIndex, indexBuf, uint64(len(indexBytes))); err != nil {
		return err
	}

	rangeBytes := serializeTriangleRanges(mesh.TriangleRanges)
	rangeBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameMeshTriangleRanges,
		Size:  mesh.MeshTriangleRangeBufferBytes(),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate mesh triangle ranges buffer: %w", err)
	}
	queue.WriteBuffer(rangeBuf, 0, rangeBytes)
	if err := registry.Put(BufferNameMeshTriangleRanges, rangeBuf, mesh.MeshTriangleRangeBufferBytes()); err != nil {
		return err
	}

	extentBytes := serializeExtents(mesh.Extents)
	extentBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameMeshExtents,
		Size:  mesh.MeshExtentBufferBytes(),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate mesh extents buffer: %w", err)
	}
	queue.WriteBuffer(extentBuf, 0, extentBytes)
	return registry.Put(BufferNameMeshExtents, extentBuf, mesh.MeshExtentBufferBytes())
}

func serializeVertices(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*vertexStrideBytes)
	for i, v := range vertices {
		writeVertex(out[i*vertexStrideBytes:(i+1)*vertexStrideBytes], v)
	}
	return out
}

func serializeIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], idx)
	}
	return out
}

func serializeTriangleRanges(ranges []MeshTriangleRange) []byte {
	out := make([]byte, len(ranges)*meshTriangleRangeBytes)
	for i, r := range ranges {
		base := i * meshTriangleRangeBytes
		binary.LittleEndian.PutUint32(out[base:base+4], r.Start)
		binary.LittleEndian.PutUint32(out[base+4:base+8], r.End)
	}
	return out
}

func serializeExtents(extents []MeshExtent) []byte {
	out := make([]byte, len(extents)*meshExtentBytes)
	for i, e := range extents {
		writeExtent(out[i*meshExtentBytes:(i+1)*meshExtentBytes], e)
	}
	return out
}

func uploadVerbatimBuffer(backend Backend, registry Registry, name string, data []byte) error {
	device := backend.Device()
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate %s: %w", name, err)
	}
	backend.Queue().WriteBuffer(buf, 0, data)
	return registry.Put(name, buf, uint64(len(data)))
}

func allocateVisibilityFlags(backend Backend, registry Registry, meshCount uint32) error {
	size := uint64(meshCount) * 4
	device := backend.Device()
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameVisibilityFlags,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate visibility flags: %w", err)
	}
	backend.Queue().WriteBuffer(buf, 0, make([]byte, size))
	return registry.Put(BufferNameVisibilityFlags, buf, size)
}

func allocateDefaultUniformBuffer(backend Backend, registry Registry) error {
	var zero DefaultUniformData
	size := uint64(len(zero.Bytes()))
	device := backend.Device()
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameDefaultUniform,
		Size:  size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate default uniform buffer: %w", err)
	}
	return registry.Put(BufferNameDefaultUniform, buf, size)
}

// fullScreenTriangleVertices is the fixed 3-vertex CCW triangle covering
// clip space, grounded in renderer.cpp's aFullScreenTriangles.
var fullScreenTriangleVertices = []Vertex{
	{Position: [4]float32{-1, 3, 0, 1}, UV: [4]float32{0, -1, 0, 0}, Normal: [4]float32{0, 0, 1, 0}},
	{Position: [4]float32{-1, -1, 0, 1}, UV: [4]float32{0, 1, 0, 0}, Normal: [4]float32{0, 0, 1, 0}},
	{Position: [4]float32{3, -1, 0, 1}, UV: [4]float32{2, 1, 0, 0}, Normal: [4]float32{0, 0, 1, 0}},
}

func allocateFullScreenTriangle(backend Backend, registry Registry) error {
	data := serializeVertices(fullScreenTriangleVertices)
	device := backend.Device()
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameFullScreenTriangle,
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate full screen triangle: %w", err)
	}
	backend.Queue().WriteBuffer(buf, 0, data)
	return registry.Put(BufferNameFullScreenTriangle, buf, uint64(len(data)))
}

func allocateBlueNoiseBuffer(backend Backend, registry Registry) error {
	size := uint64(blueNoiseEntries) * 8 // float32x2 per entry
	device := backend.Device()
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: BufferNameBlueNoise,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("rendergraph: allocate blue noise buffer: %w", err)
	}
	backend.Queue().WriteBuffer(buf, 0, make([]byte, size))
	return registry.Put(BufferNameBlueNoise, buf, size)
}

// Draw implements the Host-facing per-frame draw entry point.
func (r *Renderer) Draw(desc DrawDescriptor) error {
	if r.profiler != nil {
		r.profiler.Tick()
	}
	return r.executor.Draw(desc)
}

// GetSwapChainTexture returns the final composite texture.
func (r *Renderer) GetSwapChainTexture() (*wgpu.Texture, bool) {
	return r.executor.GetSwapChainTexture()
}

// SetBufferData writes bytes at offset into a named job-owned buffer.
func (r *Renderer) SetBufferData(jobName, bufferName string, data []byte, offset uint64) error {
	job := r.graph.Job(jobName)
	if job == nil {
		return &ConfigError{Job: jobName, Field: "Name", Msg: "no such job"}
	}
	buf, _, ok := job.OutputBuffer(bufferName)
	if !ok {
		return &ConfigError{Job: jobName, Field: bufferName, Msg: "no such buffer on job"}
	}
	r.backend.Queue().WriteBuffer(buf, offset, data)
	return nil
}

// SetGlobalBufferData writes bytes at offset into a named global buffer
// registered with the Resource Registry (e.g. visibilityFlags).
func (r *Renderer) SetGlobalBufferData(bufferName string, data []byte, offset uint64) error {
	buf, _, ok := r.registry.Resolve(bufferName)
	if !ok {
		return &ConfigError{Field: bufferName, Msg: "no such global buffer"}
	}
	r.backend.Queue().WriteBuffer(buf, offset, data)
	return nil
}

// HighlightSelectedMesh initiates the selection read-back cycle.
func (r *Renderer) HighlightSelectedMesh(x, y int32) {
	r.executor.HighlightSelectedMesh(x, y)
}

// SetExplosionMultiplier schedules a deferred-draw uniform update.
func (r *Renderer) SetExplosionMultiplier(value float32) {
	r.executor.SetExplosionMultiplier(value)
}

// GetSelectionInfo returns the latest resolved selection record.
func (r *Renderer) GetSelectionInfo() SelectMeshInfo {
	return r.executor.GetSelectionInfo()
}

// GetNumMeshes returns the mesh count baked in at setup.
func (r *Renderer) GetNumMeshes() uint32 {
	return r.executor.GetNumMeshes()
}

// GetFrameIndex returns the number of Draw calls completed so far.
func (r *Renderer) GetFrameIndex() uint32 {
	return r.executor.FrameIndex()
}
